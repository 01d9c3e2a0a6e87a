package recommend

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dotsetgreg/healthtwin/pkg/memory"
)

// ErrEnrichmentUnavailable marks a failed external enrichment call. It is
// always recoverable: the selector absorbs it and falls back to the
// deterministic generator, so it never escapes Recommend.
var ErrEnrichmentUnavailable = errors.New("enrichment unavailable")

// Source values reported in Result.
const (
	SourceExternal = "external"
	SourceFallback = "fallback"
)

// Enricher generates free text from a prompt. Implemented by the
// ScaleDown client; any error is treated as recoverable.
type Enricher interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result is one recommendation run's output.
type Result struct {
	HealthTwin      string
	Recommendations []string
	Reasoning       []string
	DataSources     []string
	Source          string
	Status          string
}

// Selector produces budget-tiered recommendations from persisted memory.
// Its entry point accepts only *memory.CompressedMemory; raw records are
// structurally out of reach.
type Selector struct {
	enricher      Enricher
	forceFallback bool
	log           *logrus.Logger
}

// NewSelector builds a selector. A nil enricher or forceFallback=true pins
// the deterministic path.
func NewSelector(enricher Enricher, forceFallback bool, log *logrus.Logger) *Selector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Selector{enricher: enricher, forceFallback: forceFallback, log: log}
}

// Recommend derives the health twin paragraph and a budget-appropriate
// recommendation list from the compressed trends. The twin is always
// generated locally; only the recommendation list may come from the
// external call, and any failure there falls back deterministically.
func (s *Selector) Recommend(ctx context.Context, mem *memory.CompressedMemory, mode memory.BudgetMode) Result {
	var trends []memory.TrendSummary
	if mem != nil {
		trends = mem.Trends
	}

	result := Result{
		HealthTwin:  BuildHealthTwin(trends),
		DataSources: dataSources(trends),
		Source:      SourceFallback,
		Status:      "fallback mode, deterministic logic used",
	}

	if !s.forceFallback && s.enricher != nil {
		recs, err := s.enrich(ctx, trends, mode, result.HealthTwin)
		if err != nil {
			s.log.WithError(err).Warn("external enrichment failed, using deterministic fallback")
			result.Status = "external call failed, deterministic logic used"
		} else {
			result.Recommendations = recs
			result.Source = SourceExternal
			result.Status = "external call succeeded"
			if mode.Profile().IncludeReasoning {
				result.Reasoning = buildReasoning(trends)
			}
			return result
		}
	}

	result.Recommendations, result.Reasoning = Fallback(trends, mode)
	return result
}

func (s *Selector) enrich(ctx context.Context, trends []memory.TrendSummary, mode memory.BudgetMode, twin string) ([]string, error) {
	text, err := s.enricher.Generate(ctx, BuildPrompt(trends, mode, twin))
	if err != nil {
		return nil, errors.Join(ErrEnrichmentUnavailable, err)
	}
	recs := parseRecommendations(text, mode)
	if len(recs) == 0 {
		return nil, errors.Join(ErrEnrichmentUnavailable, errors.New("no recommendations in response"))
	}
	return topUpToBudget(recs, trends, mode), nil
}

// topUpToBudget pads a short external list from the deterministic rules so
// the budget's minimum count always holds.
func topUpToBudget(recs []string, trends []memory.TrendSummary, mode memory.BudgetMode) []string {
	profile := mode.Profile()
	if len(recs) >= profile.MinRecommendations {
		return recs
	}
	extra, _ := Fallback(trends, mode)
	for _, rec := range extra {
		if len(recs) >= profile.MinRecommendations {
			break
		}
		if !containsRec(recs, rec) {
			recs = append(recs, rec)
		}
	}
	return recs
}

func containsRec(recs []string, rec string) bool {
	for _, r := range recs {
		if r == rec {
			return true
		}
	}
	return false
}

var bulletPrefix = regexp.MustCompile(`^\s*(\d+[.)]|[-*•])\s*`)

// parseRecommendations extracts recommendation lines from free text and
// applies the budget cap.
func parseRecommendations(text string, mode memory.BudgetMode) []string {
	recs := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if len(line) <= 10 {
			continue
		}
		recs = append(recs, line)
	}
	return capToBudget(recs, mode)
}

func capToBudget(recs []string, mode memory.BudgetMode) []string {
	profile := mode.Profile()
	if profile.MaxRecommendations > 0 && len(recs) > profile.MaxRecommendations {
		recs = recs[:profile.MaxRecommendations]
	}
	return recs
}

func dataSources(trends []memory.TrendSummary) []string {
	seen := map[string]bool{}
	sources := []string{}
	for _, t := range trends {
		if !seen[string(t.Category)] {
			seen[string(t.Category)] = true
			sources = append(sources, string(t.Category))
		}
	}
	return sources
}
