package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/clarkflip/pf-verify/internal/api"
	"github.com/clarkflip/pf-verify/internal/events"
	"github.com/clarkflip/pf-verify/internal/runs"
	"github.com/clarkflip/pf-verify/internal/store"
	"github.com/clarkflip/pf-verify/internal/verify"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		save    bool
		publish bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "verify <rounds-file>",
		Short: "Verify recorded rounds from a JSON or YAML file",
		Long: "Verify recorded rounds from a JSON or YAML file. Exits non-zero when any\n" +
			"round does not match its claim or cannot be verified.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rounds, err := verify.LoadRounds(args[0])
			if err != nil {
				return err
			}
			if len(rounds) == 0 {
				return fmt.Errorf("%s contains no rounds", args[0])
			}
			if !cmd.Flags().Changed("workers") {
				workers = a.cfg.Engine.BatchWorkers
			}

			res, err := verify.Batch(cmd.Context(), rounds, verify.Options{Workers: workers, DefaultConvention: a.conv})
			if err != nil {
				return err
			}

			var runID string
			if save || publish {
				var db store.DB
				if save {
					if db, err = a.requireStore(); err != nil {
						return err
					}
					defer db.Close()
				}
				pub := events.Publisher(events.NopPublisher{})
				if publish {
					if pub, err = a.openPublisher(); err != nil {
						return err
					}
				}
				defer pub.Close()

				runID, err = runs.NewRecorder(db, pub, api.EngineVersion).RecordBatch(cmd.Context(), rounds, res, a.conv)
				if err != nil {
					return err
				}
			}

			err = a.emit(cmd.OutOrStdout(), struct {
				RunID  string             `json:"run_id,omitempty"`
				Result verify.BatchResult `json:"result"`
			}{runID, res}, func(w io.Writer) error {
				printReports(w, res)
				if runID != "" {
					fmt.Fprintf(w, "Run: %s\n", runID)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if res.Mismatched > 0 || res.Failed > 0 {
				return fmt.Errorf("%d of %d rounds did not verify", res.Mismatched+res.Failed, len(res.Reports))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store the run in the configured sqlite database")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish every report to NATS")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent verifications (default from config)")
	return cmd
}

func printReports(w io.Writer, res verify.BatchResult) {
	for i, rep := range res.Reports {
		label := rep.RoundID
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		switch {
		case rep.Error != "":
			fmt.Fprintf(w, "FAIL  %s %s: %s\n", label, rep.Game, rep.Error)
		case rep.Match:
			fmt.Fprintf(w, "OK    %s %s\n", label, rep.Game)
		default:
			fmt.Fprintf(w, "DIFF  %s %s\n", label, rep.Game)
			for _, m := range rep.Mismatches {
				fmt.Fprintf(w, "      %s: claimed %s, actual %s\n", m.Field, m.Claimed, m.Actual)
			}
		}
	}
	fmt.Fprintf(w, "\n%d matched, %d mismatched, %d failed\n", res.Matched, res.Mismatched, res.Failed)
}
