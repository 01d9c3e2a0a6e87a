package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dotsetgreg/healthtwin/pkg/health"
	"github.com/dotsetgreg/healthtwin/pkg/memory"
)

func TestSaveWithRetryKeepsPriorDecisions(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	trends := make([]memory.TrendSummary, 0, 6)
	for i := 0; i < 6; i++ {
		trends = append(trends, memory.TrendSummary{
			Category: health.CategoryVitals,
			Metric:   fmt.Sprintf("metric_%d", i),
			Count:    4, Numeric: true,
			Mean: 70 + float64(i), Min: 60, Max: 80,
			Direction: memory.DirectionStable,
			LastSeen:  now.AddDate(0, 0, -i),
		})
	}
	prior := &memory.CompressedMemory{
		GeneratedAt: now.AddDate(0, 0, -1),
		WindowDays:  14,
		Trends:      trends,
	}
	req := memory.CompressRequest{
		Trends:       trends,
		Prior:        prior,
		Mode:         memory.BudgetBalanced,
		WindowDays:   14,
		Now:          now,
		RawWordCount: 200,
	}

	sizing, err := memory.NewCompressor(memory.CompressorOptions{MaxBytes: 1 << 20}).Compress(req)
	if err != nil {
		t.Fatalf("sizing compress: %v", err)
	}
	data, err := json.Marshal(sizing)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	compressor := memory.NewCompressor(memory.CompressorOptions{MaxBytes: len(data)})
	mem, err := compressor.Compress(req)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	log := newLogger()
	// Store ceiling one byte under the document forces the retry path.
	store := memory.NewFileStore(filepath.Join(t.TempDir(), "memory.json"), len(data)-1, log)
	defer store.Close()

	if err := saveWithRetry(context.Background(), store, compressor, mem, req, log); err != nil {
		t.Fatalf("retry with a tighter ceiling should succeed: %v", err)
	}

	stored, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored == nil {
		t.Fatalf("nothing persisted after retry")
	}

	sawUnchanged := false
	for _, d := range stored.DecisionLog {
		if strings.Contains(d.Reason, "first observation") {
			t.Fatalf("retry must keep the prior, not relabel entries: %+v", d)
		}
		if strings.Contains(d.Reason, "unchanged") {
			sawUnchanged = true
		}
	}
	if !sawUnchanged {
		t.Fatalf("expected unchanged discard reasons to survive the retry, log: %+v", stored.DecisionLog)
	}
}
