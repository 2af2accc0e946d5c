package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/hakari/internal/model"
)

const (
	runStatsURIPrefix = "hakari://projects/"
	runStatsURIInfix  = "/runs/"
	runStatsURISuffix = "/stats"
)

func (s *Server) registerResources() {
	// hakari://projects/{project_id}/runs/{run_id}/stats: run aggregation.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			runStatsURIPrefix+"{project_id}"+runStatsURIInfix+"{run_id}"+runStatsURISuffix,
			"Run Statistics",
			mcplib.WithTemplateDescription("Aggregated scenario metrics of an evaluation run"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleRunStatsResource,
	)
}

func (s *Server) handleRunStatsResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	projectID, runID, err := parseRunStatsURI(uri)
	if err != nil {
		return nil, err
	}

	out, err := s.computeRunStats(ctx, projectID, runID)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: encode run stats: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// parseRunStatsURI extracts the path-escaped project and run identifiers
// from hakari://projects/{project_id}/runs/{run_id}/stats.
func parseRunStatsURI(uri string) (projectID, runID string, err error) {
	rest, ok := strings.CutPrefix(uri, runStatsURIPrefix)
	if ok {
		rest, ok = strings.CutSuffix(rest, runStatsURISuffix)
	}
	var rawProject, rawRun string
	if ok {
		rawProject, rawRun, ok = strings.Cut(rest, runStatsURIInfix)
	}
	if !ok || strings.Contains(rawRun, "/") {
		return "", "", fmt.Errorf("mcp: invalid run stats URI %q", uri)
	}

	if projectID, err = url.PathUnescape(rawProject); err != nil {
		return "", "", fmt.Errorf("mcp: invalid project_id in %q", uri)
	}
	if runID, err = url.PathUnescape(rawRun); err != nil {
		return "", "", fmt.Errorf("mcp: invalid run_id in %q", uri)
	}
	if err := model.ValidateIdentifier("project_id", projectID); err != nil {
		return "", "", fmt.Errorf("mcp: %w", err)
	}
	if err := model.ValidateIdentifier("run_id", runID); err != nil {
		return "", "", fmt.Errorf("mcp: %w", err)
	}
	return projectID, runID, nil
}
