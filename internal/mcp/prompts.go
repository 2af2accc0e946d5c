package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// review-run: walks an agent through reading a run's statistics.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("review-run",
			mcplib.WithPromptDescription("Review the aggregated metrics of an evaluation run"),
			mcplib.WithArgument("project_id",
				mcplib.ArgumentDescription("Project the run belongs to"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("run_id",
				mcplib.ArgumentDescription("Run to review"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleReviewRunPrompt,
	)
}

func (s *Server) handleReviewRunPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	projectID := request.Params.Arguments["project_id"]
	runID := request.Params.Arguments["run_id"]
	if projectID == "" || runID == "" {
		return nil, fmt.Errorf("project_id and run_id arguments are required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Review evaluation run %s", runID),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Review evaluation run %[2]q in project %[1]q.

1. CALL hakari_run_stats with project_id=%[1]q and run_id=%[2]q.

2. For each numeric metric, report the mean and the p50/p90 percentiles.
   Call out metrics whose min is far below the mean: a few scenarios are
   dragging the score down.

3. For each boolean metric, report the pass rate as true / (true + false).
   Mention null counts separately; they are scenarios that never reported.

4. For categorical and label metrics, list the top entries of rank.

5. Finish with a one-paragraph verdict: is this run better or worse than
   you would expect, and which scenarios deserve a closer look?`, projectID, runID),
				},
			},
		},
	}, nil
}
