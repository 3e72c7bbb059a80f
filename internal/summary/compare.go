package summary

import (
	"math"
	"time"
)

// ChangeKind classifies how a metric differs between two summaries.
type ChangeKind string

// Metric change kinds.
const (
	ChangeAdded     ChangeKind = "added"
	ChangeRemoved   ChangeKind = "removed"
	ChangeChanged   ChangeKind = "changed"
	ChangeUnchanged ChangeKind = "unchanged"
)

// Overall comparison directions.
const (
	DirectionChanged   = "changed"
	DirectionUnchanged = "unchanged"
)

// MetricChange describes one metric across two summaries.
type MetricChange struct {
	Name  string     `json:"name"`
	Label string     `json:"label"`
	Unit  string     `json:"unit,omitempty"`
	Kind  ChangeKind `json:"kind"`

	// Precision is the display precision of the newest side.
	Precision int `json:"precision"`

	// Previous and Current are nil when the metric is absent on that side.
	Previous *float64 `json:"previous,omitempty"`
	Current  *float64 `json:"current,omitempty"`

	// Delta is Current - Previous; zero unless Kind is changed.
	Delta float64 `json:"delta"`

	// PercentChange is Delta relative to |Previous|. Nil when Previous is 0
	// or the metric was added or removed.
	PercentChange *float64 `json:"percent_change,omitempty"`
}

// SummaryRef is the comparison view of one side.
type SummaryRef struct {
	GeneratedAt time.Time `json:"generated_at"`
	MetricCount int       `json:"metric_count"`
	SourceHash  string    `json:"source_hash,omitempty"`
}

// Comparison is the result of Compare.
type Comparison struct {
	ProjectID  string `json:"project_id"`
	NotebookID string `json:"notebook_id"`
	Title      string `json:"title"`

	Previous SummaryRef `json:"previous"`
	Current  SummaryRef `json:"current"`

	// Changes lists current metrics in display order, followed by removed ones.
	Changes []MetricChange `json:"changes"`

	AddedHighlights   []string `json:"added_highlights,omitempty"`
	RemovedHighlights []string `json:"removed_highlights,omitempty"`

	// SourceChanged is true when both fingerprints are known and differ.
	SourceChanged bool `json:"source_changed"`

	// Direction is DirectionChanged if any metric or highlight differs.
	Direction string `json:"direction"`
}

// Compare computes metric and highlight differences from previous to current.
// Both summaries must be non-nil.
func Compare(previous, current *NotebookSummary) (*Comparison, error) {
	if previous == nil || current == nil {
		return nil, ErrNilSummary
	}

	result := &Comparison{
		ProjectID:  current.ProjectID,
		NotebookID: current.NotebookID,
		Title:      current.Title,
		Previous:   refOf(previous),
		Current:    refOf(current),
		Changes:    make([]MetricChange, 0, len(current.Metrics)),
		Direction:  DirectionUnchanged,
	}

	prevByName := make(map[string]Metric, len(previous.Metrics))
	for _, m := range previous.Metrics {
		prevByName[m.Name] = m
	}

	seen := make(map[string]bool, len(current.Metrics))
	for _, cur := range current.Metrics {
		seen[cur.Name] = true
		change := MetricChange{
			Name:      cur.Name,
			Label:     cur.DisplayLabel(),
			Unit:      cur.Unit,
			Precision: cur.Precision,
			Current:   float64Ptr(cur.Value),
		}

		prev, ok := prevByName[cur.Name]
		switch {
		case !ok:
			change.Kind = ChangeAdded
		case prev.Value == cur.Value:
			change.Kind = ChangeUnchanged
			change.Previous = float64Ptr(prev.Value)
		default:
			change.Kind = ChangeChanged
			change.Previous = float64Ptr(prev.Value)
			change.Delta = cur.Value - prev.Value
			if prev.Value != 0 {
				change.PercentChange = float64Ptr(change.Delta / math.Abs(prev.Value) * 100)
			}
		}
		result.Changes = append(result.Changes, change)
	}

	for _, prev := range previous.Metrics {
		if seen[prev.Name] {
			continue
		}
		result.Changes = append(result.Changes, MetricChange{
			Name:      prev.Name,
			Label:     prev.DisplayLabel(),
			Unit:      prev.Unit,
			Precision: prev.Precision,
			Kind:      ChangeRemoved,
			Previous:  float64Ptr(prev.Value),
		})
	}

	result.AddedHighlights = difference(current.Highlights, previous.Highlights)
	result.RemovedHighlights = difference(previous.Highlights, current.Highlights)

	result.SourceChanged = previous.SourceHash != "" && current.SourceHash != "" &&
		previous.SourceHash != current.SourceHash

	if len(result.AddedHighlights) > 0 || len(result.RemovedHighlights) > 0 {
		result.Direction = DirectionChanged
	}
	for _, c := range result.Changes {
		if c.Kind != ChangeUnchanged {
			result.Direction = DirectionChanged
			break
		}
	}

	return result, nil
}

// Format renders v with the change's unit and precision.
func (c MetricChange) Format(v float64) string {
	return Metric{Value: v, Unit: c.Unit, Precision: c.Precision}.Formatted()
}

// CountByKind returns how many changes of the given kind the comparison holds.
func (c *Comparison) CountByKind(kind ChangeKind) int {
	n := 0
	for _, ch := range c.Changes {
		if ch.Kind == kind {
			n++
		}
	}
	return n
}

func refOf(s *NotebookSummary) SummaryRef {
	return SummaryRef{
		GeneratedAt: s.GeneratedAt,
		MetricCount: len(s.Metrics),
		SourceHash:  s.SourceHash,
	}
}

// difference returns the items of a that are not in b, keeping a's order.
func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, s := range b {
		in[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := in[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func float64Ptr(v float64) *float64 {
	return &v
}
