package api

import (
	"github.com/clarkflip/pf-verify/internal/games"
	"github.com/clarkflip/pf-verify/internal/scan"
	"github.com/clarkflip/pf-verify/internal/store"
	"github.com/clarkflip/pf-verify/internal/verify"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input errors
	ErrTypeInvalidInput  = "invalid_input"
	ErrTypeConfiguration = "configuration_error"
	ErrTypeValidation    = "validation_error"
	ErrTypeInvalidParams = "invalid_params"

	// Lookup errors
	ErrTypeGameNotFound = "game_not_found"
	ErrTypeRunNotFound  = "run_not_found"

	// System errors
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeInvalidInput, ErrTypeConfiguration, ErrTypeValidation, ErrTypeInvalidParams:
		return CategoryValidation
	case ErrTypeGameNotFound, ErrTypeRunNotFound:
		return CategoryNotFound
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// GamesResponse lists the verifiable games.
type GamesResponse struct {
	Games         []games.GameSpec `json:"games"`
	Difficulties  []string         `json:"difficulties"`
	Conventions   []string         `json:"conventions"`
	EngineVersion string           `json:"engine_version"`
}

// SeedHashRequest asks for the commitment of a server seed.
type SeedHashRequest struct {
	ServerSeed string `json:"server_seed"`
}

// SeedHashResponse carries the SHA-256 commitment.
type SeedHashResponse struct {
	Hash          string `json:"hash"`
	EngineVersion string `json:"engine_version"`
}

// EvaluateRequest is shared by the per-game endpoints.
type EvaluateRequest struct {
	ServerSeed string `json:"server_seed"`
	Stain      string `json:"stain"`
	Convention string `json:"convention,omitempty"`
	Insight    bool   `json:"insight,omitempty"`
}

// CoinflipResponse is a recomputed flip.
type CoinflipResponse struct {
	ServerHash    string                `json:"server_hash"`
	Convention    string                `json:"convention"`
	Outcome       games.CoinflipOutcome `json:"outcome"`
	Insight       string                `json:"insight,omitempty"`
	Cached        bool                  `json:"cached"`
	EngineVersion string                `json:"engine_version"`
}

// SquaresRequest describes a board. Difficulty wins over DifficultyName.
// Index asks for one tile, which may lie past the board.
type SquaresRequest struct {
	EvaluateRequest
	Difficulty     float64 `json:"difficulty,omitempty"`
	DifficultyName string  `json:"difficulty_name,omitempty"`
	Squares        int     `json:"squares"`
	Uncovered      *int    `json:"uncovered,omitempty"`
	Index          *int    `json:"index,omitempty"`
}

// SquaresResponse holds either a board or a single tile.
type SquaresResponse struct {
	ServerHash    string             `json:"server_hash"`
	Convention    string             `json:"convention"`
	Board         *games.BoardResult `json:"board,omitempty"`
	Tile          *games.TileOutcome `json:"tile,omitempty"`
	Insight       string             `json:"insight,omitempty"`
	Cached        bool               `json:"cached"`
	EngineVersion string             `json:"engine_version"`
}

// BlackjackRequest deals a shoe. Symbols renders insight cards with suit
// glyphs.
type BlackjackRequest struct {
	EvaluateRequest
	Symbols bool `json:"symbols,omitempty"`
}

// BlackjackResponse is a recomputed deal.
type BlackjackResponse struct {
	Deal          games.BlackjackDeal `json:"deal"`
	Insight       string              `json:"insight,omitempty"`
	Cached        bool                `json:"cached"`
	EngineVersion string              `json:"engine_version"`
}

// VerifyResponse wraps one round's report.
type VerifyResponse struct {
	Report        verify.Report `json:"report"`
	EngineVersion string        `json:"engine_version"`
}

// VerifyBatchRequest is a list of rounds checked under one convention.
type VerifyBatchRequest struct {
	Rounds     []verify.Round `json:"rounds"`
	Convention string         `json:"convention,omitempty"`
}

// VerifyBatchResponse carries the run id the batch was stored under.
type VerifyBatchResponse struct {
	RunID         string             `json:"run_id"`
	Result        verify.BatchResult `json:"result"`
	EngineVersion string             `json:"engine_version"`
}

// ScanResponse is a scan result plus the run it was stored under.
type ScanResponse struct {
	RunID         string           `json:"run_id"`
	Result        *scan.ScanResult `json:"result"`
	EngineVersion string           `json:"engine_version"`
}

// RunResponse is a stored run.
type RunResponse struct {
	Run           *store.Run `json:"run"`
	EngineVersion string     `json:"engine_version"`
}

// AutofillResponse answers the browser verifier's query-string contract.
// Exactly one of the outcome fields is set, chosen by Game.
type AutofillResponse struct {
	Game          string                 `json:"game"`
	ServerHash    string                 `json:"server_hash"`
	Convention    string                 `json:"convention,omitempty"`
	Coinflip      *games.CoinflipOutcome `json:"coinflip,omitempty"`
	Board         *games.BoardResult     `json:"board,omitempty"`
	Deal          *games.BlackjackDeal   `json:"deal,omitempty"`
	Insight       string                 `json:"insight"`
	EngineVersion string                 `json:"engine_version"`
}
