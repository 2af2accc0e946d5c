package hakari

import (
	"context"
	"fmt"
	"maps"

	"golang.org/x/sync/errgroup"
)

// MetricStore is the subset of the metrics API the upsert protocol needs.
// *Client satisfies it.
type MetricStore interface {
	LookupMetric(ctx context.Context, runID string, scenarioID *string) (*Metric, error)
	CreateMetrics(ctx context.Context, metrics []CreateMetric) ([]Metric, error)
	UpdateMetrics(ctx context.Context, updates []MetricUpdate) ([]Metric, error)
}

var _ MetricStore = (*Client)(nil)

// Upserter merges newly computed metric data into stored records: records
// that exist get {...existing, ...new} written back, records that do not
// are created. Keys written earlier by other evaluators survive.
//
// The lookup, merge and write steps are not atomic. Two callers upserting
// the same (run, scenario) at once can race: the later update wins, and
// simultaneous creates are merged by the server's create-on-conflict rule.
type Upserter struct {
	Store MetricStore
	// LookupConcurrency bounds parallel lookups. Values <= 1 look records
	// up one after another.
	LookupConcurrency int
}

// NewUpserter returns an Upserter with sequential lookups.
func NewUpserter(store MetricStore) *Upserter {
	return &Upserter{Store: store}
}

// UpsertResult reports what the protocol wrote.
type UpsertResult struct {
	Created []Metric
	Updated []Metric
}

// pendingWrite is one identity to upsert and its new data.
type pendingWrite struct {
	scenarioID *string
	data       map[string]any
	existing   *Metric
}

// UpsertScenarioMetrics upserts per-scenario data for runID. Entries with
// the same EntityID are combined first, later data winning per key.
// An invalid runID or EntityID fails the whole call before any request.
// Lookup failures are treated as "not found" so data is never dropped; a
// failed create or update call is returned and the other call is not
// rolled back.
func (u *Upserter) UpsertScenarioMetrics(ctx context.Context, runID string, entries []EntityData) (*UpsertResult, error) {
	if err := ValidateIdentifier("run_id", runID); err != nil {
		return nil, err
	}
	for i, e := range entries {
		if err := ValidateIdentifier("entity_id", e.EntityID); err != nil {
			return nil, fmt.Errorf("entries[%d]: %w", i, err)
		}
	}

	index := make(map[string]int, len(entries))
	var pending []*pendingWrite
	for _, e := range entries {
		if i, ok := index[e.EntityID]; ok {
			maps.Copy(pending[i].data, e.Data)
			continue
		}
		id := e.EntityID
		index[id] = len(pending)
		pending = append(pending, &pendingWrite{scenarioID: &id, data: cloneData(e.Data)})
	}
	return u.upsert(ctx, runID, pending)
}

// UpsertRunMetrics upserts data into the run-level record of runID.
func (u *Upserter) UpsertRunMetrics(ctx context.Context, runID string, data map[string]any) (*UpsertResult, error) {
	if err := ValidateIdentifier("run_id", runID); err != nil {
		return nil, err
	}
	return u.upsert(ctx, runID, []*pendingWrite{{data: cloneData(data)}})
}

func (u *Upserter) upsert(ctx context.Context, runID string, pending []*pendingWrite) (*UpsertResult, error) {
	if u.Store == nil {
		return nil, fmt.Errorf("hakari: upsert: Store is required")
	}
	result := &UpsertResult{}
	if len(pending) == 0 {
		return result, nil
	}

	u.lookupAll(ctx, runID, pending)

	var (
		creates []CreateMetric
		updates []MetricUpdate
	)
	for _, p := range pending {
		data := p.data
		if p.existing == nil {
			creates = append(creates, CreateMetric{RunID: runID, ScenarioID: p.scenarioID, Data: data})
			continue
		}
		merged := cloneData(p.existing.Data)
		maps.Copy(merged, data)
		updates = append(updates, MetricUpdate{
			ID:     p.existing.ID,
			Data:   merged,
			Status: p.existing.Status,
			Tags:   p.existing.Tags,
			Meta:   p.existing.Meta,
		})
	}

	// A plain group: one failing call must not cancel the other.
	var g errgroup.Group
	if len(creates) > 0 {
		g.Go(func() error {
			created, err := u.Store.CreateMetrics(ctx, creates)
			if err != nil {
				return fmt.Errorf("hakari: create %d metrics: %w", len(creates), err)
			}
			result.Created = created
			return nil
		})
	}
	if len(updates) > 0 {
		g.Go(func() error {
			updated, err := u.Store.UpdateMetrics(ctx, updates)
			if err != nil {
				return fmt.Errorf("hakari: update %d metrics: %w", len(updates), err)
			}
			result.Updated = updated
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// lookupAll fills p.existing for every pending write. Errors are swallowed:
// an unknown record is created rather than risking lost data.
func (u *Upserter) lookupAll(ctx context.Context, runID string, pending []*pendingWrite) {
	lookup := func(p *pendingWrite) {
		existing, err := u.Store.LookupMetric(ctx, runID, p.scenarioID)
		if err == nil {
			p.existing = existing
		}
	}

	if u.LookupConcurrency <= 1 {
		for _, p := range pending {
			lookup(p)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(u.LookupConcurrency)
	for _, p := range pending {
		g.Go(func() error {
			lookup(p)
			return nil
		})
	}
	_ = g.Wait()
}

// cloneData copies d, never returning nil.
func cloneData(d map[string]any) map[string]any {
	out := make(map[string]any, len(d))
	maps.Copy(out, d)
	return out
}
