// Package runstats aggregates the stored scenario metrics of a run.
//
// Both the HTTP API and the MCP server delegate here so run statistics are
// computed the same way regardless of the interface.
package runstats

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/hakari/internal/model"
	"github.com/ashita-ai/hakari/internal/stats"
	"github.com/ashita-ai/hakari/internal/telemetry"
)

// computeTimeout bounds a shared computation. Waiters keep their own
// deadlines; the computation itself is detached from any single caller.
const computeTimeout = 30 * time.Second

// EntrySource loads the scenario-level metric data of a run.
// *storage.DB satisfies it.
type EntrySource interface {
	ScenarioEntries(ctx context.Context, projectID, runID string) ([]model.MetricEntry, error)
}

// Service computes run statistics.
type Service struct {
	source     EntrySource
	aggregator *stats.Aggregator
	logger     *slog.Logger

	group    singleflight.Group
	duration metric.Float64Histogram
}

// New creates a run statistics service. A nil aggregator uses stats.Default.
func New(source EntrySource, aggregator *stats.Aggregator, logger *slog.Logger) *Service {
	if aggregator == nil {
		aggregator = stats.Default
	}
	meter := telemetry.Meter("hakari/runstats")
	dur, _ := meter.Float64Histogram("hakari.runstats.duration",
		metric.WithDescription("Time to load and aggregate run metrics (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{
		source:     source,
		aggregator: aggregator,
		logger:     logger,
		duration:   dur,
	}
}

// Compute loads every scenario record of runID and aggregates their data.
// Concurrent calls for the same project and run share one computation.
func (s *Service) Compute(ctx context.Context, projectID, runID string) (*model.RunStatsResponse, error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("hakari.project_id", projectID),
		attribute.String("hakari.run_id", runID),
	)

	key := projectID + "\x00" + runID
	ch := s.group.DoChan(key, func() (any, error) {
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		return s.compute(computeCtx, projectID, runID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := res.Val.(*model.RunStatsResponse)
		if res.Shared {
			s.logger.Debug("runstats: shared computation", "project_id", projectID, "run_id", runID)
		}
		span.SetAttributes(attribute.StringSlice("hakari.metric_keys", metricKeys(out.Metrics)))
		return out, nil
	}
}

func (s *Service) compute(ctx context.Context, projectID, runID string) (*model.RunStatsResponse, error) {
	start := time.Now()
	entries, err := s.source.ScenarioEntries(ctx, projectID, runID)
	if err != nil {
		return nil, fmt.Errorf("runstats: load entries: %w", err)
	}

	result := &model.RunStatsResponse{
		RunID:         runID,
		ScenarioCount: len(entries),
		Metrics:       s.aggregator.ComputeRunMetrics(entries),
	}

	if s.duration != nil {
		s.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.Int("hakari.scenario_count", len(entries))),
		)
	}
	return result, nil
}

// Aggregate runs the engine over caller-supplied entries without touching
// storage.
func (s *Service) Aggregate(entries []model.MetricEntry) map[string]model.BasicStats {
	return s.aggregator.ComputeRunMetrics(entries)
}

func metricKeys(m map[string]model.BasicStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
