package stats

import (
	"slices"

	"github.com/ashita-ai/hakari/internal/model"
)

// tally counts discrete values by identity, remembering first-seen order.
type tally struct {
	order  []model.Scalar
	counts map[model.Scalar]int
	total  int
}

func newTally() *tally {
	return &tally{counts: make(map[model.Scalar]int)}
}

func (t *tally) add(v model.Scalar) {
	key := v.Key()
	if _, seen := t.counts[key]; !seen {
		t.order = append(t.order, v)
	}
	t.counts[key]++
	t.total++
}

func (t *tally) count(v model.Scalar) int { return t.counts[v.Key()] }

// frequency lists observed values in first-seen order.
func (t *tally) frequency() []model.FrequencyItem {
	out := make([]model.FrequencyItem, len(t.order))
	for i, v := range t.order {
		out[i] = model.FrequencyItem{Value: v, Count: t.count(v)}
	}
	return out
}

func (t *tally) unique() []model.Scalar {
	return slices.Clone(t.order)
}

// rank sorts observed values by descending count, ties in first-seen
// order, and keeps the first limit.
func (t *tally) rank(limit int) []model.FrequencyItem {
	out := t.frequency()
	slices.SortStableFunc(out, func(a, b model.FrequencyItem) int {
		return b.Count - a.Count
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (a *Aggregator) discrete(kind model.StatsKind, t *tally, frequency []model.FrequencyItem) model.BasicStats {
	return model.BasicStats{
		Count: t.total,
		Kind:  kind,
		DiscreteStats: &model.DiscreteStats{
			Frequency: frequency,
			Unique:    t.unique(),
			Rank:      t.rank(a.cfg.RankLimit),
		},
	}
}

var binaryDomain = []model.Scalar{
	model.BoolScalar(true),
	model.BoolScalar(false),
	model.NullScalar(),
}

// ComputeBinary summarises boolean-or-null values. Frequency always lists
// true, false and null in that order; anything that is not a boolean counts
// as null.
func (a *Aggregator) ComputeBinary(values []model.Value) model.BasicStats {
	t := newTally()
	for _, v := range values {
		if b, ok := v.Scalar().AsBool(); ok && v.Kind() == model.KindBool {
			t.add(model.BoolScalar(b))
			continue
		}
		t.add(model.NullScalar())
	}
	frequency := make([]model.FrequencyItem, len(binaryDomain))
	for i, s := range binaryDomain {
		frequency[i] = model.FrequencyItem{Value: s, Count: t.count(s)}
	}
	return a.discrete(model.StatsBinary, t, frequency)
}

// ComputeCategorical summarises arbitrary discrete values by identity.
// Label arrays reaching this path are counted by their JSON text.
func (a *Aggregator) ComputeCategorical(values []model.Value) model.BasicStats {
	t := newTally()
	for _, v := range values {
		t.add(v.Scalar())
	}
	return a.discrete(model.StatsCategorical, t, t.frequency())
}

// ComputeLabels flattens label arrays from every entity into one pool and
// summarises it. An entity without an array contributes a single null.
// Count is the pool size, not the number of entities.
func (a *Aggregator) ComputeLabels(values []model.Value) model.BasicStats {
	t := newTally()
	for _, v := range values {
		labels, ok := v.LabelList()
		if !ok {
			t.add(model.NullScalar())
			continue
		}
		for _, l := range labels {
			t.add(l)
		}
	}
	return a.discrete(model.StatsLabels, t, t.frequency())
}
