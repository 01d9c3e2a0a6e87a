package memory

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dotsetgreg/healthtwin/pkg/health"
)

const (
	// DefaultMaterialThreshold is the relative mean movement beyond which
	// a metric counts as materially changed since the prior compression.
	DefaultMaterialThreshold = 0.15
	// DefaultMaxBytes bounds the serialized size of persisted memory.
	DefaultMaxBytes = 4096
)

// CompressorOptions tune the retain/discard policy. Zero values take the
// documented defaults; medical-history is always-material unless overridden.
type CompressorOptions struct {
	MaterialThreshold float64
	AlwaysMaterial    []health.Category
	MaxBytes          int
}

func (o CompressorOptions) withDefaults() CompressorOptions {
	if o.MaterialThreshold <= 0 {
		o.MaterialThreshold = DefaultMaterialThreshold
	}
	if len(o.AlwaysMaterial) == 0 {
		o.AlwaysMaterial = []health.Category{health.CategoryMedicalHistory}
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	return o
}

// Compressor applies the retain/discard policy and produces the bounded
// persisted summary plus its decision log. It reads no clock of its own;
// the caller supplies Now, so identical requests yield identical output.
type Compressor struct {
	opts CompressorOptions
}

func NewCompressor(opts CompressorOptions) *Compressor {
	return &Compressor{opts: opts.withDefaults()}
}

// MaxBytes reports the effective size ceiling.
func (c *Compressor) MaxBytes() int { return c.opts.MaxBytes }

// WithMaxBytes returns a compressor with the same policy and a tighter
// ceiling, used when a save is rejected by the store's hard limit.
func (c *Compressor) WithMaxBytes(maxBytes int) *Compressor {
	opts := c.opts
	opts.MaxBytes = maxBytes
	return NewCompressor(opts)
}

// CompressRequest carries one compression run's inputs.
type CompressRequest struct {
	Trends       []TrendSummary
	Prior        *CompressedMemory
	Mode         BudgetMode
	WindowDays   int // 0 means the mode's profile window
	Now          time.Time
	RawWordCount int
}

// Compress evaluates every trend entry independently, merges unchanged
// entries into the prior aggregate, and enforces the size ceiling by
// dropping least-recent non-always-material entries.
func (c *Compressor) Compress(req CompressRequest) (CompressedMemory, error) {
	profile := req.Mode.Profile()
	window := req.WindowDays
	if window <= 0 {
		window = profile.WindowDays
	}

	out := CompressedMemory{
		GeneratedAt:  req.Now.UTC(),
		WindowDays:   window,
		RawWordCount: req.RawWordCount,
		Trends:       []TrendSummary{},
		DecisionLog:  []Decision{},
	}

	seen := map[string]bool{}
	for _, t := range req.Trends {
		seen[t.Key()] = true
		entry, decision := c.decide(t, req.Prior, profile, window)
		out.Trends = append(out.Trends, entry)
		out.DecisionLog = append(out.DecisionLog, decision)
	}

	// Prior entries with no fresh observations carry forward as-is; the
	// size ceiling is what eventually ages them out.
	if req.Prior != nil {
		for _, p := range req.Prior.Trends {
			if seen[p.Key()] {
				continue
			}
			out.Trends = append(out.Trends, p)
			out.DecisionLog = append(out.DecisionLog, Decision{
				Field:  p.Key(),
				Action: ActionDiscard,
				Reason: fmt.Sprintf("no new observations for %s: carrying prior aggregate (last seen %s)", p.Metric, p.LastSeen.Format("2006-01-02")),
			})
		}
	}

	out.CompressedWordCount = health.CountWords(out.RenderText())
	return c.enforceCeiling(out)
}

// decide applies the per-field policy to one fresh trend entry.
func (c *Compressor) decide(t TrendSummary, prior *CompressedMemory, profile BudgetProfile, window int) (TrendSummary, Decision) {
	p, hasPrior := prior.Trend(t.Category, t.Metric)

	retain := func(reason string) (TrendSummary, Decision) {
		return t, Decision{Field: t.Key(), Action: ActionRetain, Reason: c.annotate(reason, t, profile)}
	}

	if hasPrior {
		if t.Numeric && relChange(p.Mean, t.Mean) > c.opts.MaterialThreshold {
			return retain(fmt.Sprintf("%s %s trend: mean %s -> %s (%.0f%% change) over %dd",
				t.Metric, t.Direction, fmtStat(p.Mean), fmtStat(t.Mean), relChange(p.Mean, t.Mean)*100, window))
		}
		if t.Numeric && p.Direction != t.Direction {
			return retain(fmt.Sprintf("%s direction flipped %s -> %s: mean %s -> %s",
				t.Metric, p.Direction, t.Direction, fmtStat(p.Mean), fmtStat(t.Mean)))
		}
		if !t.Numeric && p.Mode != t.Mode {
			return retain(fmt.Sprintf("%s most frequent value changed %q -> %q (%d of %d observations)",
				t.Metric, p.Mode, t.Mode, t.ModeCount, t.Count))
		}
	}

	if c.alwaysMaterial(t.Category) {
		if t.Numeric {
			return retain(fmt.Sprintf("always-material category %s: %s mean %s", t.Category, t.Metric, fmtStat(t.Mean)))
		}
		return retain(fmt.Sprintf("always-material category %s: %s %q (%d of %d observations)",
			t.Category, t.Metric, t.Mode, t.ModeCount, t.Count))
	}

	if !hasPrior {
		switch {
		case t.Numeric && t.Direction != DirectionStable:
			return retain(fmt.Sprintf("first observation: %s %s %s -> %s over %dd",
				t.Metric, t.Direction, fmtStat(t.FirstHalfMean), fmtStat(t.SecondHalfMean), window))
		case t.Numeric:
			return retain(fmt.Sprintf("first observation: %s mean %s over %dd", t.Metric, fmtStat(t.Mean), window))
		default:
			return retain(fmt.Sprintf("first observation: %s most frequent %q (%d of %d observations)",
				t.Metric, t.Mode, t.ModeCount, t.Count))
		}
	}

	// Stable, already summarized: collapse into the prior aggregate
	// instead of duplicating it.
	var reason string
	if t.Numeric {
		reason = fmt.Sprintf("unchanged: %s stable at mean %s (within %.0f%% of prior %s)",
			t.Metric, fmtStat(t.Mean), c.opts.MaterialThreshold*100, fmtStat(p.Mean))
	} else {
		reason = fmt.Sprintf("unchanged: %s still most frequently %q", t.Metric, t.Mode)
	}
	return p, Decision{Field: t.Key(), Action: ActionDiscard, Reason: c.annotate(reason, t, profile)}
}

// enforceCeiling drops the least recently seen non-always-material entries
// until the serialized document fits. A dropped entry takes its policy
// decisions with it, and every forced drop collapses into one cumulative
// log entry, so each drop strictly shrinks the document.
func (c *Compressor) enforceCeiling(out CompressedMemory) (CompressedMemory, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return CompressedMemory{}, fmt.Errorf("serialize compressed memory: %w", err)
	}

	dropped := 0
	for len(data) > c.opts.MaxBytes {
		idx := c.dropCandidate(out.Trends)
		if idx < 0 {
			break
		}
		key := out.Trends[idx].Key()
		out.Trends = append(out.Trends[:idx], out.Trends[idx+1:]...)
		dropped++
		out.DecisionLog = recordDrop(withoutField(out.DecisionLog, key), key, dropped, c.opts.MaxBytes)
		out.CompressedWordCount = health.CountWords(out.RenderText())
		data, err = json.Marshal(out)
		if err != nil {
			return CompressedMemory{}, fmt.Errorf("serialize compressed memory: %w", err)
		}
	}

	// Only undroppable trends remain; the log itself may be crowding out
	// trend content, so shed its oldest entries before giving up.
	for len(data) > c.opts.MaxBytes && len(out.DecisionLog) > 0 {
		out.DecisionLog = out.DecisionLog[1:]
		out.CompressedWordCount = health.CountWords(out.RenderText())
		data, err = json.Marshal(out)
		if err != nil {
			return CompressedMemory{}, fmt.Errorf("serialize compressed memory: %w", err)
		}
	}

	if len(data) > c.opts.MaxBytes {
		return CompressedMemory{}, &OverflowError{Size: len(data), Ceiling: c.opts.MaxBytes}
	}
	return out, nil
}

// withoutField removes a dropped entry's policy decisions; the cumulative
// drop record is what survives for that field.
func withoutField(log []Decision, field string) []Decision {
	kept := log[:0]
	for _, d := range log {
		if d.Field == field && d.Action != ActionDrop {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// recordDrop updates the single cumulative forced-drop log entry.
func recordDrop(log []Decision, field string, dropped, maxBytes int) []Decision {
	reason := fmt.Sprintf("size ceiling: dropped %d least recently seen entries to fit %d bytes", dropped, maxBytes)
	for i, d := range log {
		if d.Action == ActionDrop {
			log[i].Field = field
			log[i].Reason = reason
			return log
		}
	}
	return append(log, Decision{Field: field, Action: ActionDrop, Reason: reason})
}

// dropCandidate picks the lowest-priority entry: always-material entries
// are never candidates, and among the rest the oldest LastSeen goes first.
func (c *Compressor) dropCandidate(trends []TrendSummary) int {
	idx := -1
	for i, t := range trends {
		if c.alwaysMaterial(t.Category) {
			continue
		}
		if idx < 0 || t.LastSeen.Before(trends[idx].LastSeen) {
			idx = i
		}
	}
	return idx
}

func (c *Compressor) alwaysMaterial(category health.Category) bool {
	for _, m := range c.opts.AlwaysMaterial {
		if m == category {
			return true
		}
	}
	return false
}

// annotate appends sample detail in verbose (HIGH budget) mode.
func (c *Compressor) annotate(reason string, t TrendSummary, profile BudgetProfile) string {
	if !profile.VerboseLog {
		return reason
	}
	if t.Numeric {
		return fmt.Sprintf("%s [n=%d, min %s, max %s]", reason, t.Count, fmtStat(t.Min), fmtStat(t.Max))
	}
	return fmt.Sprintf("%s [n=%d]", reason, t.Count)
}

func relChange(prior, current float64) float64 {
	base := math.Abs(prior)
	if base < 1e-9 {
		base = 1
	}
	return math.Abs(current-prior) / base
}

// fmtStat renders a statistic rounded to one decimal, without a trailing
// zero fraction (70 rather than 70.0).
func fmtStat(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
