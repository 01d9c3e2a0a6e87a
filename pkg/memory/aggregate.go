package memory

import (
	"math"
	"sort"
	"time"

	"github.com/dotsetgreg/healthtwin/pkg/health"
)

// slopeEpsilon is the relative half-to-half mean movement below which a
// numeric series counts as stable.
const slopeEpsilon = 0.02

// Aggregate converts a raw batch into per-metric trend summaries over a
// rolling window anchored at the latest record's timestamp, keeping the
// result deterministic regardless of wall clock. Pure function; an empty
// window yields an empty slice, not an error.
func Aggregate(records []health.Record, windowDays int) []TrendSummary {
	if len(records) == 0 {
		return nil
	}
	if windowDays <= 0 {
		windowDays = BudgetBalanced.Profile().WindowDays
	}

	latest := records[0].Timestamp
	for _, r := range records {
		if r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}
	cutoff := latest.AddDate(0, 0, -windowDays)

	type sample struct {
		at    time.Time
		value health.Value
	}
	series := map[string][]sample{}
	categories := map[string]health.Category{}
	metrics := map[string]string{}

	for _, r := range records {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		for name, value := range r.Fields {
			key := string(r.Category) + "/" + name
			series[key] = append(series[key], sample{at: r.Timestamp, value: value})
			categories[key] = r.Category
			metrics[key] = name
		}
	}

	keys := make([]string, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	trends := make([]TrendSummary, 0, len(keys))
	for _, key := range keys {
		samples := series[key]
		sort.SliceStable(samples, func(i, j int) bool { return samples[i].at.Before(samples[j].at) })

		t := TrendSummary{
			Category: categories[key],
			Metric:   metrics[key],
			Count:    len(samples),
			LastSeen: samples[len(samples)-1].at,
		}

		numeric := true
		for _, s := range samples {
			if !s.value.Numeric {
				numeric = false
				break
			}
		}

		if numeric {
			t.Numeric = true
			values := make([]float64, len(samples))
			for i, s := range samples {
				values[i] = s.value.Number
			}
			t.Mean = mean(values)
			t.Min, t.Max = values[0], values[0]
			for _, v := range values {
				t.Min = math.Min(t.Min, v)
				t.Max = math.Max(t.Max, v)
			}
			t.FirstHalfMean, t.SecondHalfMean, t.Direction = halfSlope(values)
		} else {
			labels := make([]string, len(samples))
			for i, s := range samples {
				labels[i] = s.value.String()
			}
			t.Mode, t.ModeCount = mostFrequent(labels)
			t.Direction = DirectionStable
		}

		trends = append(trends, t)
	}
	return trends
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// halfSlope compares the mean of the first half of the series against the
// second half and reports the sign of the movement.
func halfSlope(values []float64) (first, second float64, dir Direction) {
	if len(values) < 2 {
		v := 0.0
		if len(values) == 1 {
			v = values[0]
		}
		return v, v, DirectionStable
	}
	mid := len(values) / 2
	first = mean(values[:mid])
	second = mean(values[mid:])

	base := math.Abs(first)
	if base < 1e-9 {
		base = 1
	}
	switch {
	case (second-first)/base > slopeEpsilon:
		return first, second, DirectionRising
	case (first-second)/base > slopeEpsilon:
		return first, second, DirectionFalling
	default:
		return first, second, DirectionStable
	}
}

func mostFrequent(labels []string) (string, int) {
	counts := map[string]int{}
	for _, l := range labels {
		counts[l]++
	}
	best, bestCount := "", 0
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best, bestCount
}
