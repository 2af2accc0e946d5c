package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	mcpclient "github.com/mark3labs/mcp-go/client"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/hakari/internal/auth"
	"github.com/ashita-ai/hakari/internal/ctxutil"
	"github.com/ashita-ai/hakari/internal/model"
	"github.com/ashita-ai/hakari/internal/service/runstats"
	"github.com/ashita-ai/hakari/internal/testutil"
)

type fakeSource struct {
	entries map[string][]model.MetricEntry // keyed by project + "/" + run
	err     error
}

func (f *fakeSource) ScenarioEntries(_ context.Context, projectID, runID string) ([]model.MetricEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[projectID+"/"+runID], nil
}

func newTestServer(t *testing.T, src *fakeSource) *Server {
	t.Helper()
	logger := testutil.TestLogger()
	return New(runstats.New(src, nil, logger), logger, "test")
}

func sampleSource() *fakeSource {
	return &fakeSource{entries: map[string][]model.MetricEntry{
		"proj-a/run-1": {
			{EntityID: "s1", Data: model.MetricData{"accuracy": model.Number(0.5), "passed": model.Bool(true)}},
			{EntityID: "s2", Data: model.MetricData{"accuracy": model.Number(1), "passed": model.Bool(false)}},
		},
	}}
}

func claimsCtx(projects ...string) context.Context {
	return ctxutil.WithClaims(context.Background(), &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "agent"},
		Role:             model.RoleReader,
		Projects:         projects,
	})
}

func toolRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	}
}

// parseToolText extracts the first TextContent text from a CallToolResult.
func parseToolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no TextContent found in tool result")
	return ""
}

func TestHandleAggregate(t *testing.T) {
	s := newTestServer(t, &fakeSource{})

	result, err := s.handleAggregate(context.Background(), toolRequest("hakari_aggregate", map[string]any{
		"entries": `[{"entity_id":"a","data":{"score":2,"label":"x"}},{"entity_id":"b","data":{"score":4,"label":"y"}}]`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))

	var out model.AggregateResponse
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &out))
	assert.Equal(t, model.StatsNumeric, out.Metrics["score"].Kind)
	assert.InDelta(t, 3.0, out.Metrics["score"].Mean, 1e-9)
	assert.Equal(t, model.StatsCategorical, out.Metrics["label"].Kind)
}

func TestHandleAggregate_Errors(t *testing.T) {
	s := newTestServer(t, &fakeSource{})

	tests := []struct {
		name    string
		args    map[string]any
		wantMsg string
	}{
		{"missing", map[string]any{}, "entries is required"},
		{"not json", map[string]any{"entries": "nope"}, "JSON array"},
		{"empty", map[string]any{"entries": "[]"}, "Entries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleAggregate(context.Background(), toolRequest("hakari_aggregate", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, parseToolText(t, result), tt.wantMsg)
		})
	}
}

func TestHandleRunStats(t *testing.T) {
	s := newTestServer(t, sampleSource())

	result, err := s.handleRunStats(claimsCtx("proj-a"), toolRequest("hakari_run_stats", map[string]any{
		"project_id": "proj-a",
		"run_id":     "run-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))

	var out model.RunStatsResponse
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &out))
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, 2, out.ScenarioCount)
	assert.InDelta(t, 0.75, out.Metrics["accuracy"].Mean, 1e-9)
	assert.Equal(t, 1, out.Metrics["passed"].FrequencyOf(model.BoolScalar(true)))
}

func TestHandleRunStats_Denied(t *testing.T) {
	s := newTestServer(t, sampleSource())
	args := map[string]any{"project_id": "proj-a", "run_id": "run-1"}

	result, err := s.handleRunStats(context.Background(), toolRequest("hakari_run_stats", args))
	require.NoError(t, err)
	assert.True(t, result.IsError, "no claims")

	result, err = s.handleRunStats(claimsCtx("proj-b"), toolRequest("hakari_run_stats", args))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "does not grant access")

	result, err = s.handleRunStats(claimsCtx(model.AllProjects), toolRequest("hakari_run_stats", args))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestHandleRunStats_Errors(t *testing.T) {
	s := newTestServer(t, &fakeSource{err: errors.New("db down")})

	result, err := s.handleRunStats(claimsCtx("proj-a"), toolRequest("hakari_run_stats", map[string]any{"project_id": "proj-a"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "run_id is required")

	result, err = s.handleRunStats(claimsCtx("proj-a"), toolRequest("hakari_run_stats", map[string]any{"project_id": "proj-a", "run_id": "r"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "db down")
}

func TestParseRunStatsURI(t *testing.T) {
	p, r, err := parseRunStatsURI("hakari://projects/proj-a/runs/nightly%2F42/stats")
	require.NoError(t, err)
	assert.Equal(t, "proj-a", p)
	assert.Equal(t, "nightly/42", r)

	for _, bad := range []string{
		"hakari://projects/proj-a/runs/r1",
		"hakari://projects//runs/r1/stats",
		"hakari://projects/p/runs/a/b/stats",
		"other://projects/p/runs/r/stats",
		"hakari://projects/p/runs/%zz/stats",
	} {
		_, _, err := parseRunStatsURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestHandleRunStatsResource(t *testing.T) {
	s := newTestServer(t, sampleSource())
	req := mcplib.ReadResourceRequest{}
	req.Params.URI = "hakari://projects/proj-a/runs/run-1/stats"

	contents, err := s.handleRunStatsResource(claimsCtx("proj-a"), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", text.MIMEType)
	assert.Contains(t, text.Text, `"scenario_count": 2`)

	_, err = s.handleRunStatsResource(claimsCtx("proj-b"), req)
	assert.ErrorIs(t, err, errProjectAccess)
}

func TestReviewRunPrompt(t *testing.T) {
	s := newTestServer(t, &fakeSource{})

	req := mcplib.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"project_id": "proj-a", "run_id": "run-1"}
	result, err := s.handleReviewRunPrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	text, ok := result.Messages[0].Content.(mcplib.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, `hakari_run_stats with project_id="proj-a" and run_id="run-1"`)

	req.Params.Arguments = map[string]string{"project_id": "proj-a"}
	_, err = s.handleReviewRunPrompt(context.Background(), req)
	assert.Error(t, err)
}

func TestInProcessClientListsCapabilities(t *testing.T) {
	s := newTestServer(t, &fakeSource{})
	ctx := context.Background()

	client, err := mcpclient.NewInProcessClient(s.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Start(ctx))

	initReq := mcplib.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcplib.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcplib.Implementation{Name: "test", Version: "0"}
	info, err := client.Initialize(ctx, initReq)
	require.NoError(t, err)
	assert.Equal(t, "hakari", info.ServerInfo.Name)

	tools, err := client.ListTools(ctx, mcplib.ListToolsRequest{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"hakari_aggregate", "hakari_run_stats"}, names)

	templates, err := client.ListResourceTemplates(ctx, mcplib.ListResourceTemplatesRequest{})
	require.NoError(t, err)
	require.Len(t, templates.ResourceTemplates, 1)

	prompts, err := client.ListPrompts(ctx, mcplib.ListPromptsRequest{})
	require.NoError(t, err)
	require.Len(t, prompts.Prompts, 1)
	assert.Equal(t, "review-run", prompts.Prompts[0].Name)

	// Stateless aggregation works end to end through the protocol.
	result, err := client.CallTool(ctx, toolRequest("hakari_aggregate", map[string]any{
		"entries": `[{"entity_id":"a","data":{"ok":true}}]`,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}
