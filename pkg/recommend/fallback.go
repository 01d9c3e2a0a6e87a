package recommend

import (
	"fmt"
	"strings"

	"github.com/dotsetgreg/healthtwin/pkg/health"
	"github.com/dotsetgreg/healthtwin/pkg/memory"
)

// Fallback derives recommendations directly from trend entries with fixed
// rules, independent of any network call. The list is always non-empty
// and budget-appropriate: LOW keeps the single highest-priority item,
// BALANCED two to three, HIGH everything plus per-item reasoning.
func Fallback(trends []memory.TrendSummary, mode memory.BudgetMode) (recommendations, reasoning []string) {
	for _, t := range trends {
		if rec, why, ok := ruleFor(t); ok {
			recommendations = append(recommendations, rec)
			reasoning = append(reasoning, why)
		}
	}

	profile := mode.Profile()
	for len(recommendations) < profile.MinRecommendations {
		recommendations = append(recommendations, maintenanceAdvisories[len(recommendations)%len(maintenanceAdvisories)])
		reasoning = append(reasoning, "no further material trends; general guidance")
	}
	if profile.MaxRecommendations > 0 && len(recommendations) > profile.MaxRecommendations {
		recommendations = recommendations[:profile.MaxRecommendations]
		reasoning = reasoning[:profile.MaxRecommendations]
	}
	if !profile.IncludeReasoning {
		reasoning = nil
	}
	return recommendations, reasoning
}

var maintenanceAdvisories = []string{
	"Maintain your current routine; tracked metrics show no concerning movement.",
	"Keep logging daily so week-over-week trends stay reliable.",
	"Stay hydrated and keep meal timing consistent to support the stable metrics.",
}

// ruleFor maps one trend entry to a fixed advisory. Metric matching is
// substring-based over a normalized name so "resting_heart_rate" and
// "resting heart rate" both hit the heart-rate rule.
func ruleFor(t memory.TrendSummary) (rec, why string, ok bool) {
	name := strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(t.Metric))

	switch {
	case strings.Contains(name, "heart rate"):
		if t.Direction == memory.DirectionRising {
			return fmt.Sprintf("Resting heart rate is trending up (mean %.1f bpm); plan lighter training days and review stress and caffeine intake.", t.Mean),
				fmt.Sprintf("heart rate rising from %.1f to %.1f within the window", t.FirstHalfMean, t.SecondHalfMean), true
		}
		if t.Mean > 80 {
			return fmt.Sprintf("Average heart rate of %.1f bpm is elevated; consider stress management and regular cardio.", t.Mean),
				fmt.Sprintf("mean heart rate %.1f bpm above the 80 bpm watch level", t.Mean), true
		}
	case strings.Contains(name, "sleep"):
		if t.Numeric && t.Mean < 7 {
			return fmt.Sprintf("Increase sleep from the current %.1f hours toward 7-9 hours with a consistent bedtime.", t.Mean),
				fmt.Sprintf("sleep duration %.1f hours below the recommended 7-9 hour range", t.Mean), true
		}
		if t.Numeric && t.Mean > 9 {
			return fmt.Sprintf("Sleep averages %.1f hours; if consistently above 9 hours, discuss it with a healthcare provider.", t.Mean),
				fmt.Sprintf("sleep duration %.1f hours above the recommended range", t.Mean), true
		}
	case strings.Contains(name, "exercise") || strings.Contains(name, "activity") || strings.Contains(name, "steps"):
		if t.Direction == memory.DirectionFalling {
			return fmt.Sprintf("%s is declining (mean %.1f); schedule activity blocks to get back to your baseline.", t.Metric, t.Mean),
				fmt.Sprintf("%s falling from %.1f to %.1f within the window", t.Metric, t.FirstHalfMean, t.SecondHalfMean), true
		}
		if t.Numeric && t.Mean < 22 && strings.Contains(name, "minutes") {
			return fmt.Sprintf("Daily activity averages %.1f minutes; target at least 22 minutes for 150 weekly.", t.Mean),
				fmt.Sprintf("activity %.1f minutes per day below the 22 minute guideline", t.Mean), true
		}
	case strings.Contains(name, "calorie") || strings.Contains(name, "nutrition"):
		if t.Numeric && t.Mean < 1500 {
			return fmt.Sprintf("Calorie intake averages %.0f kcal; raise it toward 1500-1800 kcal to meet basic needs.", t.Mean),
				fmt.Sprintf("intake %.0f kcal below the 1500 kcal floor", t.Mean), true
		}
		if t.Numeric && t.Mean > 3000 {
			return fmt.Sprintf("Calorie intake averages %.0f kcal; shift toward the 2000-2500 kcal range with nutrient-dense whole foods.", t.Mean),
				fmt.Sprintf("intake %.0f kcal above typical requirements", t.Mean), true
		}
	}

	if t.Category == health.CategoryMedicalHistory {
		return fmt.Sprintf("Keep your care provider informed about %s; medical history entries always stay in scope.", t.Metric),
			fmt.Sprintf("%s is a medical-history entry retained regardless of stability", t.Metric), true
	}
	if t.Numeric && t.Direction != memory.DirectionStable {
		return fmt.Sprintf("%s is %s (mean %.1f); review recent %s habits before the trend settles in.", t.Metric, t.Direction, t.Mean, string(t.Category)),
			fmt.Sprintf("%s %s from %.1f to %.1f within the window", t.Metric, t.Direction, t.FirstHalfMean, t.SecondHalfMean), true
	}
	return "", "", false
}

func buildReasoning(trends []memory.TrendSummary) []string {
	reasoning := []string{fmt.Sprintf("Generated from %d compressed trend entries; raw history is out of scope.", len(trends))}
	for _, t := range trends {
		if t.Numeric && t.Direction != memory.DirectionStable {
			reasoning = append(reasoning, fmt.Sprintf("%s is %s (mean %.1f), which drove the recommendation focus.", t.Metric, t.Direction, t.Mean))
		}
	}
	return reasoning
}
