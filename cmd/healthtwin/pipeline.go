package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dotsetgreg/healthtwin/pkg/config"
	"github.com/dotsetgreg/healthtwin/pkg/health"
	"github.com/dotsetgreg/healthtwin/pkg/memory"
	"github.com/dotsetgreg/healthtwin/pkg/providers"
	"github.com/dotsetgreg/healthtwin/pkg/recommend"
)

type runOptions struct {
	configPath string
	dataPath   string
	budget     string
	fallback   bool
	windowDays int
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	if strings.EqualFold(os.Getenv("HEALTHTWIN_DEBUG"), "1") || strings.EqualFold(os.Getenv("HEALTHTWIN_DEBUG"), "true") {
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func openStore(cfg *config.Config, log *logrus.Logger) (memory.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Memory.Backend)) {
	case config.BackendSQLite:
		return memory.NewSQLiteStore(cfg.MemoryPath(), cfg.Memory.MaxBytes, log)
	default:
		return memory.NewFileStore(cfg.MemoryPath(), cfg.Memory.MaxBytes, log), nil
	}
}

// runPipeline executes one synchronous compress-store-recommend cycle.
func runPipeline(ctx context.Context, opts runOptions, out io.Writer) error {
	log := newLogger()

	cfg, err := config.LoadConfig(getConfigPath(opts.configPath))
	if err != nil {
		return err
	}

	mode := cfg.BudgetMode()
	if strings.TrimSpace(opts.budget) != "" {
		mode, err = memory.ParseBudgetMode(opts.budget)
		if err != nil {
			return err
		}
	}
	windowDays := cfg.Budget.WindowDays
	if opts.windowDays > 0 {
		windowDays = opts.windowDays
	}
	if windowDays <= 0 {
		windowDays = mode.Profile().WindowDays
	}
	dataPath := cfg.Data.Path
	if strings.TrimSpace(opts.dataPath) != "" {
		dataPath = opts.dataPath
	}
	useFallback := cfg.Providers.UseFallback || opts.fallback

	runID := uuid.NewString()
	log.WithFields(logrus.Fields{
		"run_id": runID,
		"budget": mode,
		"window": windowDays,
		"data":   dataPath,
	}).Info("starting pipeline run")

	fmt.Fprintf(out, "=== %s run %s ===\n", appName, runID)

	records, err := health.LoadRecords(dataPath)
	if err != nil {
		return err
	}
	rawWords := health.CountWords(health.RenderRecords(records))

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	prior, err := store.Load(ctx)
	if err != nil {
		return err
	}

	trends := memory.Aggregate(records, windowDays)
	compressor := memory.NewCompressor(memory.CompressorOptions{
		MaterialThreshold: cfg.Memory.MaterialThreshold,
		MaxBytes:          cfg.Memory.MaxBytes,
	})

	req := memory.CompressRequest{
		Trends:       trends,
		Prior:        prior,
		Mode:         mode,
		WindowDays:   windowDays,
		Now:          time.Now(),
		RawWordCount: rawWords,
	}
	mem, err := compressor.Compress(req)
	if err != nil {
		return err
	}

	if err := saveWithRetry(ctx, store, compressor, mem, req, log); err != nil {
		return err
	}

	var enricher recommend.Enricher
	if !useFallback {
		enricher = providers.NewScaleDownClient(
			cfg.Providers.ScaleDown.APIKey,
			cfg.Providers.ScaleDown.APIBase,
			cfg.ScaleDownTimeout(),
		)
	}
	selector := recommend.NewSelector(enricher, useFallback, log)

	// The selector reads only what was persisted; raw records never
	// cross this boundary.
	stored, err := store.Load(ctx)
	if err != nil {
		return err
	}
	result := selector.Recommend(ctx, stored, mode)

	renderReport(out, stored, result, mode)
	return nil
}

// saveWithRetry re-invokes the engine once with a tighter ceiling when the
// store's hard limit rejects the document, then treats failure as fatal.
// The retry replays the original request so the decision log keeps the
// run's real retain/discard reasons.
func saveWithRetry(ctx context.Context, store memory.Store, compressor *memory.Compressor, mem memory.CompressedMemory, req memory.CompressRequest, log *logrus.Logger) error {
	err := store.Save(ctx, mem)
	if err == nil {
		return nil
	}

	var overflow *memory.OverflowError
	if !errors.As(err, &overflow) {
		return err
	}

	tighter := compressor.MaxBytes() * 3 / 4
	log.WithFields(logrus.Fields{
		"size":    overflow.Size,
		"ceiling": overflow.Ceiling,
		"retry":   tighter,
	}).Warn("save rejected by hard ceiling, re-compressing with tighter limit")

	retried, rerr := compressor.WithMaxBytes(tighter).Compress(req)
	if rerr != nil {
		return rerr
	}
	return store.Save(ctx, retried)
}

// renderReport prints the order-sensitive console report: sizes, decision
// log, budget mode, health twin, recommendations, API metadata.
func renderReport(out io.Writer, mem *memory.CompressedMemory, result recommend.Result, mode memory.BudgetMode) {
	fmt.Fprintf(out, "\n--- COMPRESSION ---\n")
	fmt.Fprintf(out, "Raw size: %d words\n", mem.RawWordCount)
	fmt.Fprintf(out, "Compressed size: %d words\n", mem.CompressedWordCount)
	fmt.Fprintf(out, "Compression ratio: %.1f%%\n", mem.CompressionRatio()*100)

	fmt.Fprintf(out, "\n--- DECISION LOG ---\n")
	for _, d := range mem.DecisionLog {
		fmt.Fprintf(out, "  [%s] %s: %s\n", d.Action, d.Field, d.Reason)
	}

	fmt.Fprintf(out, "\n--- BUDGET MODE ---\n")
	fmt.Fprintf(out, "Selected: %s\n", mode)
	fmt.Fprintf(out, "Behavior: %s\n", mode.Profile().Description)

	fmt.Fprintf(out, "\n--- HEALTH TWIN ---\n")
	fmt.Fprintln(out, result.HealthTwin)

	fmt.Fprintf(out, "\n--- RECOMMENDATIONS ---\n")
	for i, rec := range result.Recommendations {
		fmt.Fprintf(out, "  %d. %s\n", i+1, rec)
	}
	if len(result.Reasoning) > 0 {
		fmt.Fprintf(out, "\n--- REASONING ---\n")
		for _, r := range result.Reasoning {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	if len(result.DataSources) > 0 {
		fmt.Fprintf(out, "\nData sources: %s\n", strings.Join(result.DataSources, ", "))
	}

	fmt.Fprintf(out, "\n--- API USAGE ---\n")
	fmt.Fprintf(out, "Source: %s\n", result.Source)
	fmt.Fprintf(out, "Status: %s\n", result.Status)
}

func showMemory(ctx context.Context, configPath string, out io.Writer) error {
	log := newLogger()
	cfg, err := config.LoadConfig(getConfigPath(configPath))
	if err != nil {
		return err
	}
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	if !stats.Exists {
		fmt.Fprintln(out, "No compressed memory stored yet. Run `healthtwin run` first.")
		return nil
	}

	mem, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if mem == nil {
		fmt.Fprintln(out, "Memory slot is unreadable; the next run will start from an empty baseline.")
		return nil
	}

	fmt.Fprintf(out, "Generated at: %s\n", mem.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Window: %d days\n", mem.WindowDays)
	fmt.Fprintf(out, "Stored size: %d bytes (updated %s)\n", stats.SizeBytes, stats.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Trends: %d entries\n", len(mem.Trends))
	for _, t := range mem.Trends {
		if t.Numeric {
			fmt.Fprintf(out, "  %s: mean %.1f (%.1f-%.1f), %s, n=%d, last seen %s\n",
				t.Key(), t.Mean, t.Min, t.Max, t.Direction, t.Count, t.LastSeen.Format("2006-01-02"))
		} else {
			fmt.Fprintf(out, "  %s: mostly %q (%d/%d), last seen %s\n",
				t.Key(), t.Mode, t.ModeCount, t.Count, t.LastSeen.Format("2006-01-02"))
		}
	}
	fmt.Fprintf(out, "Decision log: %d entries\n", len(mem.DecisionLog))
	return nil
}

func clearMemory(ctx context.Context, configPath string, out io.Writer) error {
	log := newLogger()
	cfg, err := config.LoadConfig(getConfigPath(configPath))
	if err != nil {
		return err
	}
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Memory slot cleared.")
	return nil
}
