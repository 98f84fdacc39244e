package store

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// Run kinds.
const (
	KindScan   = "scan"
	KindVerify = "verify"
)

// DB represents the run database. It stores reports produced by this tool,
// never bets or balances, and never raw server seeds.
type DB interface {
	Close() error
	Migrate() error
	SaveRun(run *Run) error
	UpdateRun(run *Run) error
	SaveHits(runID string, hits []Hit) error
	GetRun(id string) (*Run, error)
	ListRuns(query RunsQuery) (*RunsList, error)
	GetRunHits(runID string, page, perPage int) (*HitsPage, error)
}

// RunsQuery represents query parameters for listing runs
type RunsQuery struct {
	Game    string `json:"game,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// RunsList represents paginated runs response
type RunsList struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"totalCount"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// HitsPage represents paginated hits with the index distance to the
// previous hit.
type HitsPage struct {
	Hits       []HitWithDelta `json:"hits"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PerPage    int            `json:"perPage"`
	TotalPages int            `json:"totalPages"`
}

// Run is one scan over a tile index range or one batch of round
// verifications.
type Run struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Game            string    `json:"game"`
	ServerSeedHash  string    `json:"server_seed_hash"` // SHA256 hash only
	Stain           string    `json:"stain"`
	IndexStart      int64     `json:"index_start"`
	IndexEnd        int64     `json:"index_end"`
	ParamsJSON      string    `json:"params_json"`
	TargetOp        string    `json:"target_op"`
	TargetVal       float64   `json:"target_val"`
	Tolerance       float64   `json:"tolerance"`
	HitLimit        int       `json:"hit_limit"`
	TimedOut        bool      `json:"timed_out"`
	HitCount        int       `json:"hit_count"`
	TotalEvaluated  uint64    `json:"total_evaluated"`
	Matched         int       `json:"matched"`
	Mismatched      int       `json:"mismatched"`
	Failed          int       `json:"failed"`
	SummaryMin      *float64  `json:"summary_min"`
	SummaryMax      *float64  `json:"summary_max"`
	SummarySum      *float64  `json:"summary_sum"`
	SummaryCount    int       `json:"summary_count"`
	FloatConvention string    `json:"float_convention"`
	EngineVersion   string    `json:"engine_version"`
	CreatedAt       time.Time `json:"created_at"`
}

// Hit is a scan hit (Index is the tile index) or a verify mismatch (Index
// is the round's position in the batch).
type Hit struct {
	ID      int64   `json:"id"`
	RunID   string  `json:"run_id"`
	Index   int64   `json:"index"`
	Metric  float64 `json:"metric"`
	Details string  `json:"details"` // JSON string
}

// HitWithDelta represents a hit with the distance from the previous hit
type HitWithDelta struct {
	Hit
	DeltaIndex *int64 `json:"delta_index,omitempty"`
}
