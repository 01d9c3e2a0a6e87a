package recommend

import (
	"fmt"
	"strings"

	"github.com/dotsetgreg/healthtwin/pkg/memory"
)

// BuildHealthTwin renders a single local paragraph summarizing the
// dominant changing and stable metrics. Never delegated to the external
// call.
func BuildHealthTwin(trends []memory.TrendSummary) string {
	if len(trends) == 0 {
		return "Individual with limited health data available for analysis."
	}

	changing := []string{}
	stable := []string{}
	for _, t := range trends {
		switch {
		case t.Numeric && t.Direction != memory.DirectionStable:
			changing = append(changing, fmt.Sprintf("%s %s (mean %.1f)", t.Metric, t.Direction, t.Mean))
		case t.Numeric:
			stable = append(stable, fmt.Sprintf("%s steady around %.1f", t.Metric, t.Mean))
		case t.Mode != "":
			stable = append(stable, fmt.Sprintf("%s mostly %q", t.Metric, t.Mode))
		}
	}

	parts := []string{fmt.Sprintf("Health twin across %d tracked metrics.", len(trends))}
	if len(changing) > 0 {
		parts = append(parts, "Changing: "+joinClauses(changing, 3)+".")
	}
	if len(stable) > 0 {
		parts = append(parts, "Stable: "+joinClauses(stable, 3)+".")
	}
	return strings.Join(parts, " ")
}

// joinClauses joins up to max clauses with commas, noting the overflow.
func joinClauses(clauses []string, max int) string {
	if len(clauses) <= max {
		return strings.Join(clauses, ", ")
	}
	return fmt.Sprintf("%s, and %d more", strings.Join(clauses[:max], ", "), len(clauses)-max)
}
