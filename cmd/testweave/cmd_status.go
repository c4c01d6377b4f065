package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/testweave/internal/export"
	"github.com/dusk-indust/testweave/internal/status"
)

var statusFlags struct {
	runID   string
	limit   int
	json    bool
	mermaid bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded generation runs",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusFlags.runID, "run", "", "show one run with its phase history")
	f.IntVar(&statusFlags.limit, "limit", 20, "number of runs listed, newest first (0 lists all)")
	f.BoolVar(&statusFlags.json, "json", false, "print a JSON report")
	f.BoolVar(&statusFlags.mermaid, "mermaid", false, "with --run, print the phase history as a Mermaid state diagram")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	ledger, err := a.openLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	out := cmd.OutOrStdout()
	if statusFlags.runID != "" {
		rec, err := ledger.Get(ctx, statusFlags.runID)
		if err != nil {
			return err
		}
		switch {
		case statusFlags.mermaid:
			fmt.Fprint(out, export.PhaseDiagram(rec.Transitions))
		case statusFlags.json:
			return export.WriteJSON(out, export.FromRecord(rec))
		default:
			printRun(cmd, rec)
		}
		return nil
	}

	if statusFlags.json {
		report, err := export.ExportRuns(ctx, ledger, statusFlags.limit, time.Now())
		if err != nil {
			return err
		}
		return export.WriteJSON(out, report)
	}

	recs, err := ledger.List(ctx, statusFlags.limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		fmt.Fprintln(out, "Run 'testweave generate <file.go>' to generate a suite.")
		return nil
	}
	for _, r := range recs {
		fmt.Fprintf(out, "  %s  %-22s %-32s %-40s attempts=%d\n",
			r.Started.Local().Format("2006-01-02 15:04"), r.Outcome, r.Source, r.Suite, r.Attempts)
	}

	sum, err := ledger.Summary(ctx)
	if err != nil {
		return err
	}
	outcomes := make([]string, 0, len(sum))
	for o := range sum {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	fmt.Fprintln(out)
	for _, o := range outcomes {
		fmt.Fprintf(out, "  %-22s %d\n", o, sum[o])
	}
	return nil
}

func printRun(cmd *cobra.Command, r status.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:       %s\n", r.RunID)
	fmt.Fprintf(out, "Source:    %s\n", r.Source)
	if r.Suite != "" {
		fmt.Fprintf(out, "Suite:     %s\n", r.Suite)
	}
	fmt.Fprintf(out, "Outcome:   %s\n", r.Outcome)
	fmt.Fprintf(out, "Attempts:  %d\n", r.Attempts)
	fmt.Fprintf(out, "Members:   %d scenarios, %d fragments, %d skipped, %d arbitrated\n",
		r.Scenarios, r.Fragments, r.Skipped, r.Arbitrations)
	if r.Location != "" {
		fmt.Fprintf(out, "Location:  %s\n", r.Location)
	}
	fmt.Fprintf(out, "Duration:  %s\n", r.Finished.Sub(r.Started).Round(time.Millisecond))
	if r.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", r.Error)
	}
	if len(r.Transitions) > 0 {
		fmt.Fprintf(out, "History: (%d transitions)\n", len(r.Transitions))
		for _, t := range r.Transitions {
			fmt.Fprintf(out, "  %s -> %s [attempt %d] %s\n", t.From, t.To, t.Attempt, t.At.Local().Format(time.TimeOnly))
		}
	}
	if r.Diagnostic != "" {
		fmt.Fprintf(out, "Last diagnostic:\n%s\n", r.Diagnostic)
	}
}
