package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clarkflip/pf-verify/internal/api"
	"github.com/clarkflip/pf-verify/internal/runs"
	"github.com/clarkflip/pf-verify/internal/scan"
)

type scanFlags struct {
	difficulty string
	squares    int
	start      int
	end        int
	op         string
	value      float64
	value2     float64
	tolerance  float64
	limit      int
	timeout    time.Duration
	filterFile string
	save       bool
}

func newScanCmd(a *app) *cobra.Command {
	f := scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan <server-seed> <stain>",
		Short: "Scan a range of squares tile indexes for floats matching a target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDifficulty(f.difficulty)
			if err != nil {
				return err
			}
			req := scan.ScanRequest{
				ServerSeed: args[0],
				Stain:      args[1],
				Difficulty: d,
				Squares:    f.squares,
				Convention: a.conv,
				IndexStart: f.start,
				IndexEnd:   f.end,
				TargetOp:   scan.TargetOp(f.op),
				TargetVal:  f.value,
				TargetVal2: f.value2,
				Tolerance:  f.tolerance,
				Limit:      f.limit,
				TimeoutMs:  int(f.timeout / time.Millisecond),
			}
			if f.filterFile != "" {
				src, err := os.ReadFile(f.filterFile)
				if err != nil {
					return fmt.Errorf("read filter: %w", err)
				}
				req.Filter = string(src)
			}
			if err := req.Validate(); err != nil {
				return err
			}

			res, err := scan.NewScanner(a.cfg.Engine.ScanWorkers).Scan(cmd.Context(), req)
			if err != nil {
				return err
			}

			var runID string
			if f.save {
				db, err := a.requireStore()
				if err != nil {
					return err
				}
				defer db.Close()
				if runID, err = runs.NewRecorder(db, nil, api.EngineVersion).RecordScan(req, res); err != nil {
					return err
				}
			}

			return a.emit(cmd.OutOrStdout(), struct {
				RunID  string           `json:"run_id,omitempty"`
				Result *scan.ScanResult `json:"result"`
			}{runID, res}, func(w io.Writer) error {
				printScan(w, res)
				if runID != "" {
					fmt.Fprintf(w, "Run: %s\n", runID)
				}
				return nil
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.difficulty, "difficulty", "easy", "preset or overall success probability")
	fl.IntVar(&f.squares, "squares", 5, "number of tiles on the board")
	fl.IntVar(&f.start, "start", 0, "first tile index")
	fl.IntVar(&f.end, "end", 999, "last tile index, inclusive")
	fl.StringVar(&f.op, "op", string(scan.OpLess), "comparison: eq, gt, ge, lt, le, between, outside")
	fl.Float64Var(&f.value, "value", 0.5, "target value")
	fl.Float64Var(&f.value2, "value2", 0, "upper bound for between and outside")
	fl.Float64Var(&f.tolerance, "tolerance", 0, "equality tolerance")
	fl.IntVar(&f.limit, "limit", 0, "maximum hits kept")
	fl.DurationVar(&f.timeout, "timeout", 0, "stop after this long and report a partial result")
	fl.StringVar(&f.filterFile, "filter", "", "JavaScript file defining match(tile)")
	fl.BoolVar(&f.save, "save", false, "store the run in the configured sqlite database")
	return cmd
}

func printScan(w io.Writer, res *scan.ScanResult) {
	for _, h := range res.Hits {
		fmt.Fprintf(w, "%8d  %.16f  %s\n", h.Index, h.Metric, yesNo(h.Success))
	}
	s := res.Summary
	fmt.Fprintf(w, "\nEvaluated %d, %d hits", s.TotalEvaluated, s.HitsFound)
	if s.HitsFound > 0 {
		fmt.Fprintf(w, " (min %.6f, max %.6f, mean %.6f)", s.MinMetric, s.MaxMetric, s.MeanMetric)
	}
	fmt.Fprintln(w)
	if s.Truncated {
		fmt.Fprintf(w, "Showing the first %d hits\n", len(res.Hits))
	}
	if s.FilterErrors > 0 {
		fmt.Fprintf(w, "Filter errors: %d\n", s.FilterErrors)
	}
	if s.TimedOut {
		fmt.Fprintln(w, "Timed out: partial result")
	}
	if len(res.Logs) > 0 {
		fmt.Fprintln(w, "\nFilter log:")
		for _, l := range res.Logs {
			fmt.Fprintf(w, "  %s  %s\n", l.Time.Format("15:04:05.000"), l.Message)
		}
	}
}
