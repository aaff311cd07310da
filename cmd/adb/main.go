package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/availdb/adb/command"
	"github.com/availdb/adb/engine"
	"github.com/availdb/adb/internal/logx"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "adb [script]",
	Short: "adb simulates a replicated, available-copies distributed database",
	Long: `adb drives the transaction manager tick by tick against commands read
either from a script file or, with no argument, from standard input.

Each line of input is one logical tick: the line's begin/beginRO/R/W/end
commands are registered, the manager ticks once (advancing the clock by
one), and any fail/recover/dump commands on that line run against the
resulting state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLog, _ := cmd.Flags().GetBool("log-json")
		logx.Init(logx.Config{Level: verbosityLevel(verbosity), JSON: jsonLog})

		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()
			in = f
		}

		return run(in, os.Stdout)
	},
}

func init() {
	rootCmd.Flags().CountP("verbose", "v", "increase log verbosity (-v info, -vv debug)")
	rootCmd.Flags().Bool("log-json", false, "emit diagnostic logs as JSON instead of console text")
}

func verbosityLevel(count int) zerolog.Level {
	switch {
	case count >= 2:
		return zerolog.DebugLevel
	case count == 1:
		return zerolog.InfoLevel
	default:
		return zerolog.Disabled
	}
}

// run drives the tick loop to completion: parse and register the line's
// immediate operations, tick (which advances the clock by one before
// dispatching), then run the line's deferred fail/recover/dump actions.
func run(in io.Reader, out io.Writer) error {
	m := engine.New()
	m.SetLogger(logx.WithComponent("engine"))

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()

		prog, diags := command.ParseLine(line)
		for _, d := range diags {
			fmt.Fprintln(out, d.Message)
		}
		if prog == nil {
			continue
		}

		batch, diags := command.Execute(prog, m)
		for _, d := range diags {
			fmt.Fprintln(out, d.Message)
		}

		reports := m.Tick()
		printReports(out, reports)

		for _, deferred := range batch.Deferred {
			deferred(m, out)
		}

		if batch.Quit {
			return nil
		}
	}
	return scanner.Err()
}

func printReports(out io.Writer, reports []engine.Report) {
	for _, r := range reports {
		if r.Aborted {
			fmt.Fprintf(out, "%s aborts\n", r.Name)
			continue
		}
		fmt.Fprintf(out, "%s commits", r.Name)
		for _, v := range r.Observed {
			fmt.Fprintf(out, " %d", v)
		}
		fmt.Fprintln(out)
	}
}
