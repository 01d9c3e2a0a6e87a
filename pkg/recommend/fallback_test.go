package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/healthtwin/pkg/health"
	"github.com/dotsetgreg/healthtwin/pkg/memory"
)

func TestFallback_AlwaysNonEmpty(t *testing.T) {
	for _, mode := range []memory.BudgetMode{memory.BudgetLow, memory.BudgetBalanced, memory.BudgetHigh} {
		recs, _ := Fallback(nil, mode)
		require.NotEmpty(t, recs, "mode %s must always produce recommendations", mode)
		assert.GreaterOrEqual(t, len(recs), mode.Profile().MinRecommendations)
	}
}

func TestFallback_RisingHeartRateRule(t *testing.T) {
	recs, reasoning := Fallback([]memory.TrendSummary{trendRisingHeartRate()}, memory.BudgetHigh)

	require.NotEmpty(t, recs)
	assert.Contains(t, recs[0], "heart rate")
	require.NotEmpty(t, reasoning)
	assert.Contains(t, reasoning[0], "rising")
}

func TestFallback_ShortSleepRule(t *testing.T) {
	recs, _ := Fallback([]memory.TrendSummary{trendShortSleep()}, memory.BudgetLow)

	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "sleep")
}

func TestFallback_MedicalHistoryAlwaysCovered(t *testing.T) {
	recs, _ := Fallback([]memory.TrendSummary{trendMedicalNote()}, memory.BudgetHigh)

	require.NotEmpty(t, recs)
	assert.Contains(t, recs[0], "condition")
}

func TestFallback_StableMetricsGetMaintenanceAdvice(t *testing.T) {
	stable := memory.TrendSummary{
		Category: health.CategoryVitals, Metric: "weight_kg",
		Count: 10, Numeric: true, Mean: 70.2, Min: 69.8, Max: 70.6,
		Direction: memory.DirectionStable, LastSeen: lastSeen(),
	}

	recs, _ := Fallback([]memory.TrendSummary{stable}, memory.BudgetBalanced)
	require.GreaterOrEqual(t, len(recs), 2)
	assert.Contains(t, recs[0], "Maintain")
}

func TestFallback_LowBudgetCapsToOne(t *testing.T) {
	recs, reasoning := Fallback([]memory.TrendSummary{
		trendRisingHeartRate(), trendShortSleep(), trendMedicalNote(),
	}, memory.BudgetLow)

	assert.Len(t, recs, 1)
	assert.Nil(t, reasoning, "LOW never includes reasoning")
}

func TestBuildHealthTwin(t *testing.T) {
	assert.Equal(t, "Individual with limited health data available for analysis.", BuildHealthTwin(nil))

	twin := BuildHealthTwin([]memory.TrendSummary{trendRisingHeartRate(), trendShortSleep(), trendMedicalNote()})
	assert.Contains(t, twin, "3 tracked metrics")
	assert.Contains(t, twin, "Changing: resting_heart_rate rising")
	assert.Contains(t, twin, "Stable: sleep_hours steady")
	assert.Contains(t, twin, `condition mostly "asthma"`)
}

func TestBuildPrompt_BudgetSpecificRequirements(t *testing.T) {
	trends := []memory.TrendSummary{trendRisingHeartRate()}
	twin := BuildHealthTwin(trends)

	low := BuildPrompt(trends, memory.BudgetLow, twin)
	assert.Contains(t, low, "exactly 1 recommendation")

	balanced := BuildPrompt(trends, memory.BudgetBalanced, twin)
	assert.Contains(t, balanced, "2-3 recommendations")

	high := BuildPrompt(trends, memory.BudgetHigh, twin)
	assert.Contains(t, high, "reasoning")
	assert.Contains(t, high, "mean 82.0, range 70.0-88.0, rising over 6 observations")
}
