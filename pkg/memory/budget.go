package memory

import (
	"fmt"
	"strings"
)

// BudgetMode trades recommendation richness and retention window for cost.
type BudgetMode string

const (
	BudgetLow      BudgetMode = "LOW"
	BudgetBalanced BudgetMode = "BALANCED"
	BudgetHigh     BudgetMode = "HIGH"
)

// ParseBudgetMode accepts any casing of LOW/BALANCED/HIGH.
func ParseBudgetMode(s string) (BudgetMode, error) {
	switch BudgetMode(strings.ToUpper(strings.TrimSpace(s))) {
	case BudgetLow:
		return BudgetLow, nil
	case BudgetBalanced:
		return BudgetBalanced, nil
	case BudgetHigh:
		return BudgetHigh, nil
	}
	return "", fmt.Errorf("unknown budget mode %q (want LOW, BALANCED, or HIGH)", s)
}

// BudgetProfile is the fixed policy table for one budget mode.
type BudgetProfile struct {
	WindowDays         int
	MinRecommendations int
	MaxRecommendations int
	VerboseLog         bool
	IncludeReasoning   bool
	Description        string
}

// Profile returns the fixed mapping for the mode. Unknown modes fall back
// to the BALANCED profile.
func (m BudgetMode) Profile() BudgetProfile {
	switch m {
	case BudgetLow:
		return BudgetProfile{
			WindowDays:         7,
			MinRecommendations: 1,
			MaxRecommendations: 1,
			Description:        "Short summary + 1 recommendation, minimal data retention",
		}
	case BudgetHigh:
		return BudgetProfile{
			WindowDays:         30,
			MinRecommendations: 3,
			MaxRecommendations: 0, // unbounded
			VerboseLog:         true,
			IncludeReasoning:   true,
			Description:        "Detailed insights + reasoning, comprehensive data retention",
		}
	default:
		return BudgetProfile{
			WindowDays:         14,
			MinRecommendations: 2,
			MaxRecommendations: 3,
			Description:        "Moderate detail + 2-3 recommendations, balanced data retention",
		}
	}
}
