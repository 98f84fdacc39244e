package scan

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/games"
	"github.com/clarkflip/pf-verify/internal/scripting"
)

const (
	MaxRange     = 10_000_000
	MaxLimit     = 100_000
	DefaultLimit = 1000

	// MaxFilterLogs caps the filter log lines returned with a result.
	MaxFilterLogs = 200

	batchSize = 8192
)

// ScanRequest scans squares tile indexes [IndexStart, IndexEnd] of one
// seed pair. The metric of an index is its extracted float.
type ScanRequest struct {
	ServerSeed string                 `json:"server_seed"`
	Stain      string                 `json:"stain"`
	Difficulty float64                `json:"difficulty"`
	Squares    int                    `json:"squares"`
	Convention engine.FloatConvention `json:"convention,omitempty"`
	IndexStart int                    `json:"index_start"`
	IndexEnd   int                    `json:"index_end"`
	TargetOp   TargetOp               `json:"target_op"`
	TargetVal  float64                `json:"target_val"`
	TargetVal2 float64                `json:"target_val2,omitempty"` // for "between" and "outside"
	Tolerance  float64                `json:"tolerance,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
	TimeoutMs  int                    `json:"timeout_ms,omitempty"`
	Filter     string                 `json:"filter,omitempty"` // JS source defining match(tile)
}

// Hit represents a single matching tile
type Hit struct {
	Index   int     `json:"index"`
	Metric  float64 `json:"metric"`
	Success bool    `json:"success"`
}

// Summary contains aggregate statistics over every hit found, including
// hits dropped by the limit.
type Summary struct {
	TotalEvaluated uint64  `json:"total_evaluated"`
	HitsFound      int     `json:"hits_found"`
	MinMetric      float64 `json:"min_metric"`
	MaxMetric      float64 `json:"max_metric"`
	MeanMetric     float64 `json:"mean_metric"`
	SumMetric      float64 `json:"sum_metric"`
	FilterErrors   uint64  `json:"filter_errors,omitempty"`
	Truncated      bool    `json:"truncated,omitempty"`
	TimedOut       bool    `json:"timed_out,omitempty"`
}

// ScanResult holds the lowest-index hits up to the limit. Logs carries
// the messages the filter script logged, oldest first.
type ScanResult struct {
	Hits               []Hit                `json:"hits"`
	Summary            Summary              `json:"summary"`
	PerTileProbability float64              `json:"per_tile_probability"`
	Echo               ScanRequest          `json:"echo"`
	Logs               []scripting.LogEntry `json:"logs,omitempty"`
}

// Scanner fans index batches out to a fixed worker pool.
type Scanner struct {
	workerCount int
}

// NewScanner creates a scanner; workers <= 0 uses GOMAXPROCS.
func NewScanner(workers int) *Scanner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scanner{workerCount: workers}
}

// Validate normalises defaults and rejects unusable requests.
func (req *ScanRequest) Validate() error {
	if req.IndexStart < 0 || req.IndexEnd < req.IndexStart {
		return fmt.Errorf("%w: start %d, end %d", ErrInvalidRange, req.IndexStart, req.IndexEnd)
	}
	if req.IndexEnd-req.IndexStart+1 > MaxRange {
		return fmt.Errorf("%w: at most %d indexes per scan", ErrInvalidRange, MaxRange)
	}
	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit < 0 || req.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidParams, MaxLimit)
	}
	if req.TimeoutMs < 0 {
		return fmt.Errorf("%w: timeout_ms must not be negative", ErrInvalidParams)
	}
	if req.Tolerance == 0 {
		req.Tolerance = DefaultTolerance
	}
	return req.TargetOp.Validate(req.TargetVal, req.TargetVal2)
}

// Scan performs a parallel scan across the index range. A timeout is not
// an error: the partial result is returned with Summary.TimedOut set.
func (s *Scanner) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sq, err := games.NewSquares(
		engine.Seeds{Server: req.ServerSeed, Stain: req.Stain},
		games.SquaresConfig{Difficulty: req.Difficulty, Squares: req.Squares},
		req.Convention,
	)
	if err != nil {
		return nil, err
	}

	// compile once up front so script errors surface before any work;
	// the first worker reuses this filter
	var filters []*scripting.Filter
	if req.Filter != "" {
		f, err := scripting.NewFilter(req.Filter)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		filters = append(filters, f)
	}

	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	evaluator := NewTargetEvaluator(req.TargetOp, req.TargetVal, req.TargetVal2, req.Tolerance)
	jobs := make(chan scanJob, s.workerCount*2)
	hits := make(chan Hit, 1024)

	var evaluated, filterErrors uint64
	var wg sync.WaitGroup
	for i := 0; i < s.workerCount; i++ {
		w := &scanWorker{
			jobs:         jobs,
			hits:         hits,
			squares:      sq,
			evaluator:    evaluator,
			evaluated:    &evaluated,
			filterErrors: &filterErrors,
		}
		switch {
		case req.Filter == "":
		case i == 0:
			w.filter = filters[0]
		default:
			if w.filter, err = scripting.NewFilter(req.Filter); err != nil {
				close(jobs)
				wg.Wait()
				return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
			}
			// top-level log calls are kept once, from the first filter
			w.filter.ResetLogs()
			filters = append(filters, w.filter)
		}
		wg.Add(1)
		go w.run(ctx, &wg)
	}

	go generateJobs(ctx, jobs, req.IndexStart, req.IndexEnd)
	go func() {
		wg.Wait()
		close(hits)
	}()

	collected := collect(hits)
	sort.Slice(collected, func(i, j int) bool { return collected[i].Index < collected[j].Index })
	summary := summarize(collected, atomic.LoadUint64(&evaluated), ctx.Err() != nil)
	summary.FilterErrors = atomic.LoadUint64(&filterErrors)

	if len(collected) > req.Limit {
		collected = collected[:req.Limit]
		summary.Truncated = true
	}

	return &ScanResult{
		Hits:               collected,
		Summary:            summary,
		PerTileProbability: sq.PerTileProbability(),
		Echo:               redact(req),
		Logs:               mergeLogs(filters),
	}, nil
}

// mergeLogs interleaves the workers' filter logs by time and keeps the
// newest MaxFilterLogs. Call only after every worker has exited.
func mergeLogs(filters []*scripting.Filter) []scripting.LogEntry {
	var logs []scripting.LogEntry
	for _, f := range filters {
		logs = append(logs, f.Logs()...)
	}
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].Time.Before(logs[j].Time) })
	if len(logs) > MaxFilterLogs {
		logs = logs[len(logs)-MaxFilterLogs:]
	}
	return logs
}

// redact drops the raw seed from the echoed request.
func redact(req ScanRequest) ScanRequest {
	req.ServerSeed = engine.ServerHash(req.ServerSeed)
	return req
}

type scanJob struct {
	start, end int
}

type scanWorker struct {
	jobs         <-chan scanJob
	hits         chan<- Hit
	squares      *games.Squares
	evaluator    *TargetEvaluator
	filter       *scripting.Filter
	evaluated    *uint64
	filterErrors *uint64
}

func (w *scanWorker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			if !w.process(ctx, job) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// process evaluates one batch; it returns false once ctx is done.
func (w *scanWorker) process(ctx context.Context, job scanJob) bool {
	var n uint64
	defer func() { atomic.AddUint64(w.evaluated, n) }()

	for idx := job.start; idx <= job.end; idx++ {
		if n&255 == 0 && ctx.Err() != nil {
			return false
		}
		tile, err := w.squares.DetermineOutcome(idx)
		if err != nil {
			continue
		}
		n++
		if !w.evaluator.Matches(tile.Float) {
			continue
		}
		if w.filter != nil {
			keep, err := w.filter.Match(map[string]any{
				"index":   tile.Index,
				"float":   tile.Float,
				"success": tile.Success,
				"digest":  tile.Digest,
			})
			if err != nil {
				atomic.AddUint64(w.filterErrors, 1)
				continue
			}
			if !keep {
				continue
			}
		}
		select {
		case w.hits <- Hit{Index: tile.Index, Metric: tile.Float, Success: tile.Success}:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// generateJobs creates index batches for the workers.
func generateJobs(ctx context.Context, jobs chan<- scanJob, start, end int) {
	defer close(jobs)
	for current := start; current <= end; {
		batchEnd := current + batchSize - 1
		if batchEnd > end {
			batchEnd = end
		}
		select {
		case jobs <- scanJob{start: current, end: batchEnd}:
			current = batchEnd + 1
		case <-ctx.Done():
			return
		}
	}
}

// collect drains hits until every worker has exited.
func collect(hits <-chan Hit) []Hit {
	out := make([]Hit, 0, 64)
	for h := range hits {
		out = append(out, h)
	}
	return out
}

func summarize(hits []Hit, totalEvaluated uint64, timedOut bool) Summary {
	summary := Summary{
		TotalEvaluated: totalEvaluated,
		HitsFound:      len(hits),
		TimedOut:       timedOut,
	}
	if len(hits) == 0 {
		return summary
	}

	min, max, sum := hits[0].Metric, hits[0].Metric, 0.0
	for _, h := range hits {
		if h.Metric < min {
			min = h.Metric
		}
		if h.Metric > max {
			max = h.Metric
		}
		sum += h.Metric
	}
	summary.MinMetric = min
	summary.MaxMetric = max
	summary.SumMetric = sum
	summary.MeanMetric = sum / float64(len(hits))
	return summary
}
