package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/adhocore/gronx"
)

// runSchedule runs one pipeline cycle whenever the cron expression is due,
// checking once per minute, until the context is cancelled.
func runSchedule(ctx context.Context, opts runOptions, cronExpr string, out io.Writer) error {
	gron := gronx.New()
	if !gron.IsValid(cronExpr) {
		return fmt.Errorf("invalid cron expression %q", cronExpr)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "Scheduling pipeline runs on %q. Press Ctrl+C to stop.\n", cronExpr)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Scheduler stopped.")
			return nil
		case now := <-ticker.C:
			due, err := gron.IsDue(cronExpr, now)
			if err != nil {
				return fmt.Errorf("evaluate cron expression: %w", err)
			}
			if !due {
				continue
			}
			if err := runPipeline(ctx, opts, out); err != nil {
				// A failed scheduled run is reported but does not stop
				// the scheduler; the next due tick retries.
				fmt.Fprintf(out, "Scheduled run failed: %v\n", err)
			}
		}
	}
}
