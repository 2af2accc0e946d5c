package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/hakari/internal/model"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

const metricColumns = `id, project_id, run_id, scenario_id, data, status, tags, meta, created_at, updated_at`

// runLevelScenario is the stored scenario_id of a run-level record.
const runLevelScenario = ""

func scanMetric(row pgx.Row) (model.Metric, error) {
	var (
		m        model.Metric
		scenario string
	)
	if err := row.Scan(
		&m.ID, &m.ProjectID, &m.RunID, &scenario, &m.Data,
		&m.Status, &m.Tags, &m.Meta, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return model.Metric{}, err
	}
	if scenario != runLevelScenario {
		m.ScenarioID = &scenario
	}
	if m.Data == nil {
		m.Data = model.MetricData{}
	}
	return m, nil
}

func scenarioColumn(id *string) string {
	if id == nil {
		return runLevelScenario
	}
	return *id
}

// CreateMetrics inserts every record in one transaction. A record whose
// (project, run, scenario) identity already exists is merged instead:
// incoming data keys overwrite stored ones, other stored keys survive, and
// status, tags and meta are replaced only when supplied.
func (db *DB) CreateMetrics(ctx context.Context, projectID string, inputs []model.CreateMetricInput) ([]model.Metric, error) {
	var out []model.Metric
	err := withRetry(ctx, func() error {
		out = make([]model.Metric, 0, len(inputs))
		return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			now := time.Now().UTC()
			for i, in := range inputs {
				data := in.Data
				if data == nil {
					data = model.MetricData{}
				}
				m, err := scanMetric(tx.QueryRow(ctx,
					`INSERT INTO evaluation_metrics (id, project_id, run_id, scenario_id, data, status, tags, meta, created_at, updated_at)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
					 ON CONFLICT (project_id, run_id, scenario_id) DO UPDATE SET
					   data = evaluation_metrics.data || EXCLUDED.data,
					   status = COALESCE(EXCLUDED.status, evaluation_metrics.status),
					   tags = COALESCE(EXCLUDED.tags, evaluation_metrics.tags),
					   meta = COALESCE(EXCLUDED.meta, evaluation_metrics.meta),
					   updated_at = EXCLUDED.updated_at
					 RETURNING `+metricColumns,
					uuid.New(), projectID, in.RunID, scenarioColumn(in.ScenarioID), data,
					in.Status, nullIfNil(in.Tags), nullIfNil(in.Meta), now,
				))
				if err != nil {
					return fmt.Errorf("insert metric %d: %w", i, err)
				}
				out = append(out, m)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create metrics: %w", err)
	}
	return out, nil
}

// GetMetric returns one record of a project.
func (db *DB) GetMetric(ctx context.Context, projectID string, id uuid.UUID) (model.Metric, error) {
	m, err := scanMetric(db.pool.QueryRow(ctx,
		`SELECT `+metricColumns+` FROM evaluation_metrics WHERE project_id = $1 AND id = $2`,
		projectID, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Metric{}, &NotFoundError{ID: id}
		}
		return model.Metric{}, fmt.Errorf("storage: get metric: %w", err)
	}
	return m, nil
}

// ListMetrics returns the project's records matching filter, ordered by
// (run_id, scenario_id) with the run-level record first.
func (db *DB) ListMetrics(ctx context.Context, projectID string, filter model.MetricFilter) ([]model.Metric, error) {
	where, args := buildMetricWhereClause(projectID, filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset := max(filter.Offset, 0)

	query := fmt.Sprintf(
		`SELECT %s FROM evaluation_metrics%s ORDER BY run_id, scenario_id LIMIT $%d OFFSET $%d`,
		metricColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list metrics: %w", err)
	}
	defer rows.Close()

	metrics := []model.Metric{}
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list metrics: %w", err)
	}
	return metrics, nil
}

func buildMetricWhereClause(projectID string, f model.MetricFilter) (string, []any) {
	conditions := []string{"project_id = $1"}
	args := []any{projectID}

	if len(f.RunIDs) > 0 {
		args = append(args, f.RunIDs)
		conditions = append(conditions, fmt.Sprintf("run_id = ANY($%d)", len(args)))
	}
	switch {
	case f.RunLevel:
		args = append(args, runLevelScenario)
		conditions = append(conditions, fmt.Sprintf("scenario_id = $%d", len(args)))
	case len(f.ScenarioIDs) > 0:
		args = append(args, f.ScenarioIDs)
		conditions = append(conditions, fmt.Sprintf("scenario_id = ANY($%d)", len(args)))
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// UpdateMetric replaces the supplied fields of one record. Data is replaced
// wholesale; merging is the caller's job.
func (db *DB) UpdateMetric(ctx context.Context, projectID string, in model.UpdateMetricInput) (model.Metric, error) {
	var m model.Metric
	err := withRetry(ctx, func() error {
		var err error
		m, err = updateMetric(ctx, db.pool, projectID, in)
		return err
	})
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return model.Metric{}, err
		}
		return model.Metric{}, fmt.Errorf("storage: update metric: %w", err)
	}
	return m, nil
}

// UpdateMetrics applies every update in one transaction. If any record is
// missing nothing is written and the returned error matches ErrNotFound.
// Results are in input order.
func (db *DB) UpdateMetrics(ctx context.Context, projectID string, inputs []model.UpdateMetricInput) ([]model.Metric, error) {
	// Lock rows in a stable order so concurrent batches cannot deadlock.
	order := make([]int, len(inputs))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return strings.Compare(inputs[a].ID.String(), inputs[b].ID.String())
	})

	out := make([]model.Metric, len(inputs))
	err := withRetry(ctx, func() error {
		return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			for _, i := range order {
				m, err := updateMetric(ctx, tx, projectID, inputs[i])
				if err != nil {
					return err
				}
				out[i] = m
			}
			return nil
		})
	})
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, fmt.Errorf("storage: update metrics: %w", err)
	}
	return out, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func updateMetric(ctx context.Context, q querier, projectID string, in model.UpdateMetricInput) (model.Metric, error) {
	m, err := scanMetric(q.QueryRow(ctx,
		`UPDATE evaluation_metrics SET
		   data = COALESCE($3, data),
		   status = COALESCE($4, status),
		   tags = COALESCE($5, tags),
		   meta = COALESCE($6, meta),
		   updated_at = now()
		 WHERE project_id = $1 AND id = $2
		 RETURNING `+metricColumns,
		projectID, in.ID, nullIfNil(in.Data), in.Status, nullIfNil(in.Tags), nullIfNil(in.Meta),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Metric{}, &NotFoundError{ID: in.ID}
	}
	return m, err
}

// ScenarioEntries returns the data of every scenario-level record of a run
// as aggregation input, ordered by scenario.
func (db *DB) ScenarioEntries(ctx context.Context, projectID, runID string) ([]model.MetricEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT scenario_id, data FROM evaluation_metrics
		 WHERE project_id = $1 AND run_id = $2 AND scenario_id <> ''
		 ORDER BY scenario_id`,
		projectID, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: scenario entries: %w", err)
	}
	defer rows.Close()

	var entries []model.MetricEntry
	for rows.Next() {
		var e model.MetricEntry
		if err := rows.Scan(&e.EntityID, &e.Data); err != nil {
			return nil, fmt.Errorf("storage: scan scenario entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// nullIfNil maps nil maps and slices to an untyped nil so they bind as SQL
// NULL rather than a JSON null.
func nullIfNil(v any) any {
	switch x := v.(type) {
	case model.MetricData:
		if x == nil {
			return nil
		}
	case map[string]any:
		if x == nil {
			return nil
		}
	case []string:
		if x == nil {
			return nil
		}
	}
	return v
}
