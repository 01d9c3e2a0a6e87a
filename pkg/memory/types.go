package memory

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dotsetgreg/healthtwin/pkg/health"
)

// Direction is the windowed trend movement for one metric.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionStable  Direction = "stable"
)

// TrendSummary is the aggregated state of one metric within one category
// over the retained window. It is the only shape in which observations
// survive into persisted memory.
type TrendSummary struct {
	Category       health.Category `json:"category"`
	Metric         string          `json:"metric"`
	Count          int             `json:"count"`
	Numeric        bool            `json:"numeric"`
	Mean           float64         `json:"mean,omitempty"`
	Min            float64         `json:"min,omitempty"`
	Max            float64         `json:"max,omitempty"`
	FirstHalfMean  float64         `json:"first_half_mean,omitempty"`
	SecondHalfMean float64         `json:"second_half_mean,omitempty"`
	Mode           string          `json:"mode,omitempty"`
	ModeCount      int             `json:"mode_count,omitempty"`
	Direction      Direction       `json:"direction"`
	LastSeen       time.Time       `json:"last_seen"`
}

// Key uniquely identifies a trend entry per metric+category.
func (t TrendSummary) Key() string {
	return string(t.Category) + "/" + t.Metric
}

// DecisionAction classifies one compression decision.
type DecisionAction string

const (
	// ActionRetain keeps the fresh trend entry in the new memory.
	ActionRetain DecisionAction = "retain"
	// ActionDiscard collapses the entry into the prior aggregate.
	ActionDiscard DecisionAction = "discard"
	// ActionDrop marks a forced removal while enforcing the size ceiling.
	ActionDrop DecisionAction = "drop"
)

// Decision is one line of the per-run explainability log.
type Decision struct {
	Field  string         `json:"field"`
	Action DecisionAction `json:"action"`
	Reason string         `json:"reason"`
}

// CompressedMemory is the single persisted artifact. It holds only
// aggregates, never raw per-timestamp records, and is fully replaced
// on every compression run.
type CompressedMemory struct {
	GeneratedAt         time.Time      `json:"generated_at"`
	WindowDays          int            `json:"window_days"`
	Trends              []TrendSummary `json:"trends"`
	DecisionLog         []Decision     `json:"decision_log"`
	RawWordCount        int            `json:"raw_word_count"`
	CompressedWordCount int            `json:"compressed_word_count"`
}

// Trend looks up the entry for a metric+category key.
func (m *CompressedMemory) Trend(category health.Category, metric string) (TrendSummary, bool) {
	if m == nil {
		return TrendSummary{}, false
	}
	key := string(category) + "/" + metric
	for _, t := range m.Trends {
		if t.Key() == key {
			return t, true
		}
	}
	return TrendSummary{}, false
}

// CompressionRatio reports 1 - compressed/raw. A ratio at or below zero
// means the summary did not shrink the input; it is reported as computed,
// never clamped.
func (m *CompressedMemory) CompressionRatio() float64 {
	if m == nil || m.RawWordCount == 0 {
		return 0
	}
	return 1 - float64(m.CompressedWordCount)/float64(m.RawWordCount)
}

// RenderText is the canonical textual rendering of the summary, used for
// the compressed word count. One line per trend plus one per decision.
func (m *CompressedMemory) RenderText() string {
	var b strings.Builder
	trends := make([]TrendSummary, len(m.Trends))
	copy(trends, m.Trends)
	sort.Slice(trends, func(i, j int) bool { return trends[i].Key() < trends[j].Key() })
	for _, t := range trends {
		b.WriteString(t.Key())
		b.WriteString(" ")
		b.WriteString(string(t.Direction))
		if t.Numeric {
			b.WriteString(" mean ")
			b.WriteString(formatNumber(t.Mean))
			b.WriteString(" min ")
			b.WriteString(formatNumber(t.Min))
			b.WriteString(" max ")
			b.WriteString(formatNumber(t.Max))
		} else if t.Mode != "" {
			b.WriteString(" mode ")
			b.WriteString(t.Mode)
		}
		b.WriteString(" n=")
		b.WriteString(strconv.Itoa(t.Count))
		b.WriteString("\n")
	}
	for _, d := range m.DecisionLog {
		b.WriteString(d.Field)
		b.WriteString(" ")
		b.WriteString(string(d.Action))
		b.WriteString(": ")
		b.WriteString(d.Reason)
		b.WriteString("\n")
	}
	return b.String()
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
