package games

import "github.com/clarkflip/pf-verify/internal/engine"

// CoinSide is the face a coinflip lands on.
type CoinSide string

const (
	Heads CoinSide = "Heads"
	Tails CoinSide = "Tails"
)

// CoinflipOutcome is the recomputed result of one flip.
type CoinflipOutcome struct {
	Side   CoinSide `json:"side"`
	Float  float64  `json:"float"`
	Digest string   `json:"digest"`
}

// Coinflip recomputes a single flip from a seed pair.
type Coinflip struct {
	seeds      engine.Seeds
	conv       engine.FloatConvention
	serverHash string
}

// NewCoinflip validates the inputs up front so DetermineOutcome cannot fail.
func NewCoinflip(seeds engine.Seeds, conv engine.FloatConvention) (*Coinflip, error) {
	if err := seeds.Validate(); err != nil {
		return nil, err
	}
	conv = conventionOrDefault(conv)
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	return &Coinflip{seeds: seeds, conv: conv, serverHash: engine.ServerHash(seeds.Server)}, nil
}

// ServerHash is the commitment for the configured server seed.
func (c *Coinflip) ServerHash() string { return c.serverHash }

// Convention is the float convention chosen at construction.
func (c *Coinflip) Convention() engine.FloatConvention { return c.conv }

// DetermineOutcome computes one digest and maps it to a side:
// Heads when the float is below 0.5.
func (c *Coinflip) DetermineOutcome() CoinflipOutcome {
	digest := engine.DigestHex(c.seeds.Server, c.seeds.Stain)
	// digest is always 64 hex chars and the convention was validated
	f, _ := c.conv.Extract(digest)
	side := Tails
	if f < 0.5 {
		side = Heads
	}
	return CoinflipOutcome{Side: side, Float: f, Digest: digest}
}

// CoinflipGame adapts Coinflip to the registry.
type CoinflipGame struct{}

// Spec returns metadata about the coinflip game.
func (g *CoinflipGame) Spec() GameSpec {
	return GameSpec{ID: "coinflip", Name: "Coinflip", MetricLabel: "float"}
}

// Evaluate flips the coin for seeds.
func (g *CoinflipGame) Evaluate(seeds engine.Seeds, params Params) (GameResult, error) {
	c, err := NewCoinflip(seeds, params.Convention)
	if err != nil {
		return GameResult{}, err
	}
	out := c.DetermineOutcome()
	return GameResult{Metric: out.Float, MetricLabel: "float", Details: out}, nil
}
