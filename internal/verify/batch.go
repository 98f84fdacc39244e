package verify

import (
	"context"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clarkflip/pf-verify/internal/engine"
)

// Options tunes a batch run.
type Options struct {
	Workers           int
	DefaultConvention engine.FloatConvention
}

// BatchResult holds one report per input round, in input order.
type BatchResult struct {
	Reports    []Report `json:"reports"`
	Matched    int      `json:"matched"`
	Mismatched int      `json:"mismatched"`
	Failed     int      `json:"failed"`
}

// Batch verifies rounds concurrently. A round that cannot be verified is
// reported with its error instead of aborting the batch; only context
// cancellation stops the run early.
func Batch(ctx context.Context, rounds []Round, opts Options) (BatchResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	reports := make([]Report, len(rounds))
	var g errgroup.Group
	g.SetLimit(workers)

	for i := range rounds {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := rounds[i]
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			rep, err := Verify(r, opts.DefaultConvention)
			if err != nil {
				rep = Report{RoundID: r.ID, Game: r.Game, Error: err.Error()}
			}
			reports[i] = rep
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	res := BatchResult{Reports: reports}
	for _, rep := range reports {
		switch {
		case rep.Error != "":
			res.Failed++
		case rep.Match:
			res.Matched++
		default:
			res.Mismatched++
		}
	}
	return res, nil
}
