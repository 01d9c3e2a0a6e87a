package recommend

import (
	"fmt"
	"strings"

	"github.com/dotsetgreg/healthtwin/pkg/memory"
)

// BuildPrompt assembles the enrichment prompt from the budget mode and
// compressed trends only.
func BuildPrompt(trends []memory.TrendSummary, mode memory.BudgetMode, twin string) string {
	var b strings.Builder
	b.WriteString("Based on the following health twin analysis, provide personalized health recommendations.\n\n")
	b.WriteString("HEALTH TWIN SUMMARY:\n")
	b.WriteString(twin)
	b.WriteString("\n\nCOMPRESSED TRENDS:\n")
	for _, t := range trends {
		if t.Numeric {
			fmt.Fprintf(&b, "- %s (%s): mean %.1f, range %.1f-%.1f, %s over %d observations\n",
				t.Metric, t.Category, t.Mean, t.Min, t.Max, t.Direction, t.Count)
		} else {
			fmt.Fprintf(&b, "- %s (%s): most frequently %q (%d of %d observations)\n",
				t.Metric, t.Category, t.Mode, t.ModeCount, t.Count)
		}
	}

	fmt.Fprintf(&b, "\nBUDGET MODE: %s\n\nRECOMMENDATION REQUIREMENTS:\n", mode)
	switch mode {
	case memory.BudgetLow:
		b.WriteString("- Provide exactly 1 recommendation\n- Keep it concise and focused on the most critical trend\n")
	case memory.BudgetHigh:
		b.WriteString("- Provide detailed recommendations with reasoning\n- Explain the why behind each item\n")
	default:
		b.WriteString("- Provide 2-3 recommendations with moderate detail\n- Cover multiple health aspects if relevant\n")
	}
	b.WriteString("\nFormat the response as a list of recommendations, one per line.\n")
	return b.String()
}
