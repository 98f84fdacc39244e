package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/clarkflip/pf-verify/internal/store"
)

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored scan and verify runs",
	}
	cmd.AddCommand(newRunsListCmd(a), newRunsShowCmd(a))
	return cmd
}

func newRunsListCmd(a *app) *cobra.Command {
	q := store.RunsQuery{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.requireStore()
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := db.ListRuns(q)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), list, func(w io.Writer) error {
				for _, r := range list.Runs {
					fmt.Fprintf(w, "%s  %-6s  %-9s  %s  hits=%d\n",
						r.ID, r.Kind, r.Game, r.CreatedAt.Format("2006-01-02 15:04:05"), r.HitCount)
				}
				fmt.Fprintf(w, "page %d of %d (%d runs)\n", list.Page, list.TotalPages, list.TotalCount)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&q.Game, "game", "", "only runs of this game")
	cmd.Flags().StringVar(&q.Kind, "kind", "", "only runs of this kind (scan or verify)")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.PerPage, "per-page", 20, "runs per page")
	return cmd
}

func newRunsShowCmd(a *app) *cobra.Command {
	var page, perPage int
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its hits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.requireStore()
			if err != nil {
				return err
			}
			defer db.Close()

			run, err := db.GetRun(args[0])
			if err != nil {
				return err
			}
			hits, err := db.GetRunHits(run.ID, page, perPage)
			if err != nil {
				return err
			}

			return a.emit(cmd.OutOrStdout(), struct {
				Run  *store.Run      `json:"run"`
				Hits *store.HitsPage `json:"hits"`
			}{run, hits}, func(w io.Writer) error {
				fmt.Fprintf(w, "Run:        %s\n", run.ID)
				fmt.Fprintf(w, "Kind:       %s\n", run.Kind)
				fmt.Fprintf(w, "Game:       %s\n", run.Game)
				fmt.Fprintf(w, "Seed hash:  %s\n", run.ServerSeedHash)
				fmt.Fprintf(w, "Convention: %s\n", run.FloatConvention)
				fmt.Fprintf(w, "Created:    %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
				if run.Kind == store.KindVerify {
					fmt.Fprintf(w, "Result:     %d matched, %d mismatched, %d failed\n", run.Matched, run.Mismatched, run.Failed)
				} else {
					fmt.Fprintf(w, "Range:      %d..%d %s %g\n", run.IndexStart, run.IndexEnd, run.TargetOp, run.TargetVal)
					fmt.Fprintf(w, "Evaluated:  %d\n", run.TotalEvaluated)
				}
				fmt.Fprintf(w, "Hits:       %d\n", hits.TotalCount)
				for _, h := range hits.Hits {
					delta := "-"
					if h.DeltaIndex != nil {
						delta = fmt.Sprint(*h.DeltaIndex)
					}
					fmt.Fprintf(w, "  %8d  %-8s  %g  %s\n", h.Index, delta, h.Metric, h.Details)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "hits page")
	cmd.Flags().IntVar(&perPage, "per-page", 50, "hits per page")
	return cmd
}
