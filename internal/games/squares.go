package games

import (
	"math"
	"strconv"
	"strings"

	"github.com/clarkflip/pf-verify/internal/engine"
)

// BrowserBoardSquares is the fixed board size of the web verifier.
const BrowserBoardSquares = 5

// Named difficulties: the probability of clearing the whole board.
var squaresDifficulties = []struct {
	name  string
	value float64
}{
	{"easy", 0.5},
	{"medium", 1 / 3.6},
	{"hard", 1 / 7.0},
	{"expert", 1 / 11.5},
}

// ParseDifficulty resolves a preset name, case-insensitively.
func ParseDifficulty(name string) (float64, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, d := range squaresDifficulties {
		if d.name == key {
			return d.value, nil
		}
	}
	return 0, engine.InvalidConfig("difficulty", "unknown preset "+strconv.Quote(name))
}

// DifficultyNames lists the presets from easiest to hardest.
func DifficultyNames() []string {
	names := make([]string, len(squaresDifficulties))
	for i, d := range squaresDifficulties {
		names[i] = d.name
	}
	return names
}

// SquaresConfig is the board definition: the chance of clearing every
// tile and the number of tiles.
type SquaresConfig struct {
	Difficulty float64 `json:"difficulty" yaml:"difficulty"`
	Squares    int     `json:"squares" yaml:"squares"`
}

// Validate rejects boards that cannot be played.
func (c SquaresConfig) Validate() error {
	if c.Squares < 1 {
		return engine.InvalidConfig("squares", "must be at least 1, got "+strconv.Itoa(c.Squares))
	}
	if !(c.Difficulty > 0 && c.Difficulty < 1) {
		return engine.InvalidConfig("difficulty", "must be in (0, 1), got "+strconv.FormatFloat(c.Difficulty, 'g', -1, 64))
	}
	return nil
}

// PerTileProbability is difficulty^(1/squares): the product over all tiles
// equals the configured difficulty.
func (c SquaresConfig) PerTileProbability() float64 {
	return math.Pow(c.Difficulty, 1/float64(c.Squares))
}

// TileOutcome is the recomputed result for one tile index.
type TileOutcome struct {
	Index   int     `json:"index"`
	Success bool    `json:"success"`
	Float   float64 `json:"float"`
	Digest  string  `json:"digest"`
}

// BoardStatus summarises a board given how far the player got.
type BoardStatus string

const (
	BoardFailed     BoardStatus = "failed"
	BoardCleared    BoardStatus = "cleared"
	BoardInProgress BoardStatus = "in_progress"
)

// BoardResult is the evaluation of a whole board. FailedAt is the 1-based
// position of the first failing tile, or 0 when every tile succeeds.
type BoardResult struct {
	Squares            int           `json:"squares"`
	Difficulty         float64       `json:"difficulty"`
	PerTileProbability float64       `json:"per_tile_probability"`
	Uncovered          int           `json:"uncovered"`
	Tiles              []TileOutcome `json:"tiles"`
	FailedAt           int           `json:"failed_at"`
	Status             BoardStatus   `json:"status"`
}

// Squares recomputes per-tile outcomes. Each tile is independent of the
// others and of any previous call.
type Squares struct {
	seeds      engine.Seeds
	cfg        SquaresConfig
	conv       engine.FloatConvention
	perTile    float64
	serverHash string
}

// NewSquares validates seeds, board and convention before any hashing.
func NewSquares(seeds engine.Seeds, cfg SquaresConfig, conv engine.FloatConvention) (*Squares, error) {
	if err := seeds.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conv = conventionOrDefault(conv)
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	return &Squares{
		seeds:      seeds,
		cfg:        cfg,
		conv:       conv,
		perTile:    cfg.PerTileProbability(),
		serverHash: engine.ServerHash(seeds.Server),
	}, nil
}

// ServerHash is the commitment for the configured server seed.
func (s *Squares) ServerHash() string { return s.serverHash }

// Config returns the validated board definition.
func (s *Squares) Config() SquaresConfig { return s.cfg }

// Convention is the float convention chosen at construction.
func (s *Squares) Convention() engine.FloatConvention { return s.conv }

// PerTileProbability is the success threshold applied to every tile.
func (s *Squares) PerTileProbability() float64 { return s.perTile }

// DetermineOutcome evaluates tile index. Indexes past the board size are
// allowed so ranges can be scanned.
func (s *Squares) DetermineOutcome(index int) (TileOutcome, error) {
	if index < 0 {
		return TileOutcome{}, engine.InvalidInput("index", "must be non-negative, got "+strconv.Itoa(index))
	}
	digest := engine.IndexedDigestHex(s.seeds.Server, s.seeds.Stain, index)
	f, _ := s.conv.Extract(digest)
	return TileOutcome{Index: index, Success: f < s.perTile, Float: f, Digest: digest}, nil
}

// Board evaluates every tile and classifies the board for a player who
// uncovered the given number of tiles.
func (s *Squares) Board(uncovered int) (BoardResult, error) {
	if uncovered < 0 || uncovered > s.cfg.Squares {
		return BoardResult{}, engine.InvalidInput("uncovered",
			"must be between 0 and "+strconv.Itoa(s.cfg.Squares)+", got "+strconv.Itoa(uncovered))
	}

	res := s.newBoard(uncovered)
	for i := 0; i < s.cfg.Squares; i++ {
		tile, _ := s.DetermineOutcome(i)
		res.Tiles = append(res.Tiles, tile)
		if !tile.Success && res.FailedAt == 0 {
			res.FailedAt = i + 1
		}
	}

	switch {
	case res.FailedAt > 0 && uncovered >= res.FailedAt:
		res.Status = BoardFailed
	case res.FailedAt == 0 && uncovered == s.cfg.Squares:
		res.Status = BoardCleared
	default:
		res.Status = BoardInProgress
	}
	return res, nil
}

// Play uncovers tiles in order and stops at the first failure. Uncovered
// counts the successful tiles.
func (s *Squares) Play() BoardResult {
	res := s.newBoard(0)
	for i := 0; i < s.cfg.Squares; i++ {
		tile, _ := s.DetermineOutcome(i)
		res.Tiles = append(res.Tiles, tile)
		if !tile.Success {
			res.FailedAt = i + 1
			res.Status = BoardFailed
			return res
		}
		res.Uncovered++
	}
	res.Status = BoardCleared
	return res
}

func (s *Squares) newBoard(uncovered int) BoardResult {
	return BoardResult{
		Squares:            s.cfg.Squares,
		Difficulty:         s.cfg.Difficulty,
		PerTileProbability: s.perTile,
		Uncovered:          uncovered,
		Tiles:              make([]TileOutcome, 0, s.cfg.Squares),
	}
}

// SquaresGame adapts Squares to the registry.
type SquaresGame struct{}

// Spec returns metadata about the squares game.
func (g *SquaresGame) Spec() GameSpec {
	return GameSpec{ID: "squares", Name: "Squares", MetricLabel: "failed_at"}
}

// Evaluate classifies the board for params.Uncovered. The metric is the
// 1-based failing tile, 0 for a clean board.
func (g *SquaresGame) Evaluate(seeds engine.Seeds, params Params) (GameResult, error) {
	s, err := NewSquares(seeds, SquaresConfig{Difficulty: params.Difficulty, Squares: params.Squares}, params.Convention)
	if err != nil {
		return GameResult{}, err
	}
	board, err := s.Board(params.Uncovered)
	if err != nil {
		return GameResult{}, err
	}
	return GameResult{Metric: float64(board.FailedAt), MetricLabel: "failed_at", Details: board}, nil
}
