// Package runs persists scan and verification runs and announces
// verification reports. It is shared by the HTTP API and the CLI.
package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/events"
	"github.com/clarkflip/pf-verify/internal/logger"
	"github.com/clarkflip/pf-verify/internal/scan"
	"github.com/clarkflip/pf-verify/internal/store"
	"github.com/clarkflip/pf-verify/internal/verify"
)

// Recorder writes runs to the store and reports to the publisher. A nil
// store disables persistence; run ids are still assigned.
type Recorder struct {
	db            store.DB
	pub           events.Publisher
	engineVersion string
}

// NewRecorder wires a store and a publisher. pub may be nil.
func NewRecorder(db store.DB, pub events.Publisher, engineVersion string) *Recorder {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Recorder{db: db, pub: pub, engineVersion: engineVersion}
}

// Persistent reports whether runs are written anywhere.
func (r *Recorder) Persistent() bool { return r.db != nil }

type scanParams struct {
	Difficulty float64 `json:"difficulty"`
	Squares    int     `json:"squares"`
	TargetVal2 float64 `json:"target_val2,omitempty"`
	Filter     bool    `json:"filter,omitempty"`
}

// RecordScan stores a scan run, its kept hits, then the run's summary.
// The request must be the one the scanner validated so defaults are
// recorded.
func (r *Recorder) RecordScan(req scan.ScanRequest, res *scan.ScanResult) (string, error) {
	if r.db == nil {
		return uuid.NewString(), nil
	}
	conv := req.Convention
	if conv == "" {
		conv = engine.DefaultFloatConvention
	}
	params, err := json.Marshal(scanParams{
		Difficulty: req.Difficulty,
		Squares:    req.Squares,
		TargetVal2: req.TargetVal2,
		Filter:     req.Filter != "",
	})
	if err != nil {
		return "", err
	}

	run := &store.Run{
		Kind:            store.KindScan,
		Game:            "squares",
		ServerSeedHash:  engine.ServerHash(req.ServerSeed),
		Stain:           req.Stain,
		IndexStart:      int64(req.IndexStart),
		IndexEnd:        int64(req.IndexEnd),
		ParamsJSON:      string(params),
		TargetOp:        string(req.TargetOp),
		TargetVal:       req.TargetVal,
		Tolerance:       req.Tolerance,
		HitLimit:        req.Limit,
		FloatConvention: string(conv),
		EngineVersion:   r.engineVersion,
	}
	if err := r.db.SaveRun(run); err != nil {
		return "", fmt.Errorf("save scan run: %w", err)
	}

	hits := make([]store.Hit, len(res.Hits))
	for i, h := range res.Hits {
		details, err := json.Marshal(map[string]bool{"success": h.Success})
		if err != nil {
			return "", err
		}
		hits[i] = store.Hit{Index: int64(h.Index), Metric: h.Metric, Details: string(details)}
	}
	if err := r.db.SaveHits(run.ID, hits); err != nil {
		return "", fmt.Errorf("save scan hits: %w", err)
	}

	// the summary is written once the hits are stored
	run.TimedOut = res.Summary.TimedOut
	run.HitCount = len(res.Hits)
	run.TotalEvaluated = res.Summary.TotalEvaluated
	run.SummaryCount = res.Summary.HitsFound
	if res.Summary.HitsFound > 0 {
		run.SummaryMin = &res.Summary.MinMetric
		run.SummaryMax = &res.Summary.MaxMetric
		run.SummarySum = &res.Summary.SumMetric
	}
	if err := r.db.UpdateRun(run); err != nil {
		return "", fmt.Errorf("update scan run: %w", err)
	}

	logger.Info("scan run recorded",
		"run_id", run.ID,
		"server_hash", logger.SeedHash(run.ServerSeedHash),
		"hits", run.HitCount,
		"evaluated", run.TotalEvaluated,
	)
	return run.ID, nil
}

// RecordBatch stores a verification batch, keeping every report that did
// not match as a hit indexed by its position in the batch, then publishes
// all reports. Publishing failures are logged, not returned.
func (r *Recorder) RecordBatch(ctx context.Context, rounds []verify.Round, res verify.BatchResult, conv engine.FloatConvention) (string, error) {
	runID := uuid.NewString()
	if conv == "" {
		conv = engine.DefaultFloatConvention
	}

	if r.db != nil {
		run := &store.Run{
			ID:              runID,
			Kind:            store.KindVerify,
			Game:            batchGame(rounds),
			ServerSeedHash:  batchServerHash(rounds),
			IndexEnd:        int64(len(rounds)),
			HitCount:        res.Mismatched + res.Failed,
			TotalEvaluated:  uint64(len(res.Reports)),
			Matched:         res.Matched,
			Mismatched:      res.Mismatched,
			Failed:          res.Failed,
			FloatConvention: string(conv),
			EngineVersion:   r.engineVersion,
		}
		if err := r.db.SaveRun(run); err != nil {
			return "", fmt.Errorf("save verify run: %w", err)
		}

		var hits []store.Hit
		for i, rep := range res.Reports {
			if rep.Match && rep.Error == "" {
				continue
			}
			details, err := json.Marshal(rep)
			if err != nil {
				return "", err
			}
			hits = append(hits, store.Hit{Index: int64(i), Metric: float64(len(rep.Mismatches)), Details: string(details)})
		}
		if err := r.db.SaveHits(run.ID, hits); err != nil {
			return "", fmt.Errorf("save verify hits: %w", err)
		}
	}

	if err := events.PublishBatch(ctx, r.pub, runID, res.Reports); err != nil {
		logger.Warn("publishing reports failed", "run_id", runID, "error", err)
	}

	logger.Info("verify run recorded",
		"run_id", runID,
		"rounds", len(res.Reports),
		"matched", res.Matched,
		"mismatched", res.Mismatched,
		"failed", res.Failed,
	)
	return runID, nil
}

// batchGame is the shared game of every round, or "mixed".
func batchGame(rounds []verify.Round) string {
	game := ""
	for _, rd := range rounds {
		g := strings.ToLower(rd.Game)
		if game == "" {
			game = g
		} else if g != game {
			return "mixed"
		}
	}
	return game
}

// batchServerHash is the commitment when every round shares one server
// seed, otherwise empty.
func batchServerHash(rounds []verify.Round) string {
	if len(rounds) == 0 {
		return ""
	}
	seed := rounds[0].ServerSeed
	for _, rd := range rounds[1:] {
		if rd.ServerSeed != seed {
			return ""
		}
	}
	return engine.ServerHash(seed)
}
