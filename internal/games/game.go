package games

import (
	"sort"

	"github.com/clarkflip/pf-verify/internal/engine"
)

// GameSpec describes a registered game.
type GameSpec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MetricLabel string `json:"metric_label"`
}

// Params carries the optional per-game inputs. Games ignore what they do
// not use.
type Params struct {
	Convention engine.FloatConvention `json:"convention,omitempty"`
	Difficulty float64                `json:"difficulty,omitempty"`
	Squares    int                    `json:"squares,omitempty"`
	Uncovered  int                    `json:"uncovered,omitempty"`
}

// GameResult is the outcome of a single evaluation: one headline metric
// plus the game-specific detail record.
type GameResult struct {
	Metric      float64 `json:"metric"`
	MetricLabel string  `json:"metric_label"`
	Details     any     `json:"details,omitempty"`
}

// Game represents a provably fair game that can be recomputed from seeds.
type Game interface {
	Spec() GameSpec
	Evaluate(seeds engine.Seeds, params Params) (GameResult, error)
}

// GameRegistry holds all available games keyed by id.
var GameRegistry = make(map[string]Game)

// RegisterGame adds a game to the registry.
func RegisterGame(game Game) {
	GameRegistry[game.Spec().ID] = game
}

// GetGame retrieves a game by id.
func GetGame(id string) (Game, bool) {
	game, exists := GameRegistry[id]
	return game, exists
}

// ListGames returns the specs of all registered games sorted by id.
func ListGames() []GameSpec {
	specs := make([]GameSpec, 0, len(GameRegistry))
	for _, g := range GameRegistry {
		specs = append(specs, g.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

func conventionOrDefault(c engine.FloatConvention) engine.FloatConvention {
	if c == "" {
		return engine.DefaultFloatConvention
	}
	return c
}

func init() {
	RegisterGame(&CoinflipGame{})
	RegisterGame(&SquaresGame{})
	RegisterGame(&BlackjackGame{})
}
