package server_test

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/hakari/internal/model"
	"github.com/ashita-ai/hakari/internal/storage"
)

// memStore is an in-memory MetricStore with the same merge-on-create and
// atomic batch update rules as the Postgres store.
type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*model.Metric
	pingErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uuid.UUID]*model.Metric)}
}

func (s *memStore) find(projectID, runID string, scenarioID *string) *model.Metric {
	for _, m := range s.records {
		if m.ProjectID == projectID && m.RunID == runID && scenarioKey(m.ScenarioID) == scenarioKey(scenarioID) {
			return m
		}
	}
	return nil
}

func scenarioKey(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

func (s *memStore) CreateMetrics(_ context.Context, projectID string, inputs []model.CreateMetricInput) ([]model.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	out := make([]model.Metric, 0, len(inputs))
	for _, in := range inputs {
		if m := s.find(projectID, in.RunID, in.ScenarioID); m != nil {
			m.Data = m.Data.Merge(in.Data)
			if in.Status != nil {
				m.Status = in.Status
			}
			if in.Tags != nil {
				m.Tags = in.Tags
			}
			if in.Meta != nil {
				m.Meta = in.Meta
			}
			m.UpdatedAt = now
			out = append(out, *m)
			continue
		}
		data := in.Data
		if data == nil {
			data = model.MetricData{}
		}
		m := &model.Metric{
			ID:         uuid.New(),
			ProjectID:  projectID,
			RunID:      in.RunID,
			ScenarioID: in.ScenarioID,
			Data:       data,
			Status:     in.Status,
			Tags:       in.Tags,
			Meta:       in.Meta,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		s.records[m.ID] = m
		out = append(out, *m)
	}
	return out, nil
}

func (s *memStore) GetMetric(_ context.Context, projectID string, id uuid.UUID) (model.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[id]
	if !ok || m.ProjectID != projectID {
		return model.Metric{}, &storage.NotFoundError{ID: id}
	}
	return *m, nil
}

func (s *memStore) ListMetrics(_ context.Context, projectID string, f model.MetricFilter) ([]model.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.Metric{}
	for _, m := range s.records {
		if m.ProjectID != projectID {
			continue
		}
		if len(f.RunIDs) > 0 && !slices.Contains(f.RunIDs, m.RunID) {
			continue
		}
		if f.RunLevel && !m.IsRunLevel() {
			continue
		}
		if !f.RunLevel && len(f.ScenarioIDs) > 0 && (m.ScenarioID == nil || !slices.Contains(f.ScenarioIDs, *m.ScenarioID)) {
			continue
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b model.Metric) int {
		return cmp.Or(cmp.Compare(a.RunID, b.RunID), cmp.Compare(scenarioKey(a.ScenarioID), scenarioKey(b.ScenarioID)))
	})

	offset := min(max(f.Offset, 0), len(out))
	out = out[offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memStore) UpdateMetric(_ context.Context, projectID string, in model.UpdateMetricInput) (model.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(projectID, in)
}

func (s *memStore) UpdateMetrics(_ context.Context, projectID string, inputs []model.UpdateMetricInput) ([]model.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range inputs {
		if m, ok := s.records[in.ID]; !ok || m.ProjectID != projectID {
			return nil, &storage.NotFoundError{ID: in.ID}
		}
	}
	out := make([]model.Metric, 0, len(inputs))
	for _, in := range inputs {
		m, _ := s.update(projectID, in)
		out = append(out, m)
	}
	return out, nil
}

func (s *memStore) update(projectID string, in model.UpdateMetricInput) (model.Metric, error) {
	m, ok := s.records[in.ID]
	if !ok || m.ProjectID != projectID {
		return model.Metric{}, &storage.NotFoundError{ID: in.ID}
	}
	if in.Data != nil {
		m.Data = in.Data
	}
	if in.Status != nil {
		m.Status = in.Status
	}
	if in.Tags != nil {
		m.Tags = in.Tags
	}
	if in.Meta != nil {
		m.Meta = in.Meta
	}
	m.UpdatedAt = time.Now().UTC()
	return *m, nil
}

func (s *memStore) ScenarioEntries(_ context.Context, projectID, runID string) ([]model.MetricEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []model.MetricEntry
	for _, m := range s.records {
		if m.ProjectID == projectID && m.RunID == runID && !m.IsRunLevel() {
			entries = append(entries, model.MetricEntry{EntityID: *m.ScenarioID, Data: m.Data})
		}
	}
	slices.SortFunc(entries, func(a, b model.MetricEntry) int { return cmp.Compare(a.EntityID, b.EntityID) })
	return entries, nil
}

func (s *memStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

func (s *memStore) setPingErr(err error) {
	s.mu.Lock()
	s.pingErr = err
	s.mu.Unlock()
}
