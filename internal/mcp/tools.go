package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/hakari/internal/ctxutil"
	"github.com/ashita-ai/hakari/internal/model"
)

func (s *Server) registerTools() {
	// hakari_aggregate: stateless aggregation of caller-supplied entries.
	s.mcpServer.AddTool(
		mcplib.NewTool("hakari_aggregate",
			mcplib.WithDescription(`Aggregate metric values across entities into summary statistics.

WHEN TO USE: You have per-scenario (or per-sample) metric data in hand and
want descriptive statistics without storing anything.

INPUT: entries is a JSON array of {"entity_id": "...", "data": {...}} objects.
Each data map holds metric key -> value. Values may be numbers, booleans,
strings, or arrays of strings (labels).

WHAT YOU GET BACK: one entry per metric key. Numeric keys report sum, mean,
min, max, range, percentiles, IQRs and a histogram. Boolean keys report
true/false/null frequencies. String and label keys report frequencies,
unique values and a rank of the most common values.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("entries",
				mcplib.Description(`JSON array of entries, e.g. [{"entity_id":"s1","data":{"accuracy":0.9}}]`),
				mcplib.Required(),
			),
		),
		s.handleAggregate,
	)

	// hakari_run_stats: aggregation of every stored scenario record of a run.
	s.mcpServer.AddTool(
		mcplib.NewTool("hakari_run_stats",
			mcplib.WithDescription(`Summarize the stored scenario metrics of an evaluation run.

WHEN TO USE: To see how a run did overall: average scores, pass rates,
distribution of categorical outcomes. The run-level record is not included;
only scenario records are aggregated.

EXAMPLE: project_id="chatbot", run_id="nightly-2024-06-01"`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("project_id",
				mcplib.Description("Project the run belongs to"),
				mcplib.Required(),
			),
			mcplib.WithString("run_id",
				mcplib.Description("Run identifier"),
				mcplib.Required(),
			),
		),
		s.handleRunStats,
	)
}

func (s *Server) handleAggregate(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	raw := request.GetString("entries", "")
	if raw == "" {
		return errorResult("entries is required"), nil
	}

	var req model.AggregateRequest
	if err := json.Unmarshal([]byte(raw), &req.Entries); err != nil {
		return errorResult(fmt.Sprintf("entries must be a JSON array of {entity_id, data} objects: %v", err)), nil
	}
	if len(req.Entries) > maxAggregateEntries {
		return errorResult(fmt.Sprintf("at most %d entries are accepted", maxAggregateEntries)), nil
	}
	if err := req.Validate(); err != nil {
		return errorResult(model.ValidationMessage(err)), nil
	}

	return jsonResult(model.AggregateResponse{Metrics: s.runStats.Aggregate(req.Entries)})
}

func (s *Server) handleRunStats(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	projectID := request.GetString("project_id", "")
	runID := request.GetString("run_id", "")
	if err := model.ValidateIdentifier("project_id", projectID); err != nil {
		return errorResult(err.Error()), nil
	}
	if err := model.ValidateIdentifier("run_id", runID); err != nil {
		return errorResult(err.Error()), nil
	}

	out, err := s.computeRunStats(ctx, projectID, runID)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(out)
}

var errProjectAccess = errors.New("token does not grant access to this project")

// computeRunStats checks the caller's project access before computing.
func (s *Server) computeRunStats(ctx context.Context, projectID, runID string) (*model.RunStatsResponse, error) {
	claims := ctxutil.ClaimsFromContext(ctx)
	if claims == nil || !claims.CanAccess(projectID) {
		return nil, errProjectAccess
	}
	out, err := s.runStats.Compute(ctx, projectID, runID)
	if err != nil {
		s.logger.Error("mcp: run stats failed", "error", err, "project_id", projectID, "run_id", runID)
		return nil, fmt.Errorf("run stats failed: %w", err)
	}
	return out, nil
}
