package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

// runShell is an interactive console over the same operations the
// subcommands expose, with a per-session budget override.
func runShell(ctx context.Context, configPath string, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s> ", appName),
		HistoryFile:     filepath.Join(os.TempDir(), ".healthtwin_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	shellHelp(out)
	opts := runOptions{configPath: configPath}

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "help":
			shellHelp(out)
		case "run":
			if len(fields) > 1 {
				opts.dataPath = fields[1]
			}
			if err := runPipeline(ctx, opts, out); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		case "show":
			if err := showMemory(ctx, configPath, out); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		case "clear":
			if err := clearMemory(ctx, configPath, out); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		case "budget":
			if len(fields) < 2 {
				fmt.Fprintf(out, "Current budget override: %q (empty uses config)\n", opts.budget)
				continue
			}
			opts.budget = fields[1]
			fmt.Fprintf(out, "Budget override set to %s for this session.\n", strings.ToUpper(fields[1]))
		case "fallback":
			opts.fallback = !opts.fallback
			fmt.Fprintf(out, "Deterministic fallback forced: %v\n", opts.fallback)
		default:
			fmt.Fprintf(out, "Unknown command %q. Type help for commands.\n", fields[0])
		}
	}
}

func shellHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  run [data.json]   Run one compress-store-recommend cycle")
	fmt.Fprintln(out, "  show              Print the persisted compressed memory")
	fmt.Fprintln(out, "  clear             Reset the memory slot")
	fmt.Fprintln(out, "  budget <MODE>     Override budget mode for this session")
	fmt.Fprintln(out, "  fallback          Toggle forced deterministic mode")
	fmt.Fprintln(out, "  exit              Leave the shell")
}
