// Package insight renders the step-by-step breakdown shown next to a
// verified outcome: the digest, the hex prefix, the integer it encodes and
// the division that produces the float.
package insight

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/games"
)

// ExactPlaces is the number of decimal places used for the exact quotient.
const ExactPlaces int32 = 20

// Options controls card rendering.
type Options struct {
	// Symbols renders cards with suit glyphs ("10♥") instead of letters.
	Symbols bool
}

// Quotient returns integer / denominator as an exact decimal rounded to
// places, independent of float64 rounding.
func Quotient(b engine.FloatBreakdown, places int32) decimal.Decimal {
	num := decimal.RequireFromString(strconv.FormatUint(b.Integer, 10))
	den := decimal.RequireFromString(b.Denominator)
	return num.DivRound(den, places)
}

// Fraction renders "integer / denominator = value" with the float the engine
// actually compared.
func Fraction(b engine.FloatBreakdown) string {
	return fmt.Sprintf("%d / %s = %s", b.Integer, b.Denominator, formatFloat(b.Value))
}

// Percent renders a probability in [0, 1] as a percentage.
func Percent(p float64, places int32) string {
	return decimal.NewFromFloat(p).Shift(2).StringFixed(places) + "%"
}

// Coinflip explains a single flip.
func Coinflip(out games.CoinflipOutcome, conv engine.FloatConvention) (string, error) {
	var sb strings.Builder
	if err := writeDigest(&sb, "HMAC (SHA256)", out.Digest, conv, ""); err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "Outcome: %s\n", out.Side)
	return sb.String(), nil
}

// Tile explains one squares tile against the per-tile threshold.
func Tile(t games.TileOutcome, perTile float64, conv engine.FloatConvention) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tile #%d:\n", t.Index+1)
	if err := writeDigest(&sb, "HMAC (SHA256)", t.Digest, conv, "  "); err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "  Threshold: %s (%s)\n", formatFloat(perTile), Percent(perTile, 2))
	fmt.Fprintf(&sb, "  Success: %s\n", yesNo(t.Success))
	return sb.String(), nil
}

// Squares explains every tile of a board followed by its status.
func Squares(board games.BoardResult, conv engine.FloatConvention) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Board: %d squares, difficulty %s, per tile %s\n\n",
		board.Squares, Percent(board.Difficulty, 2), Percent(board.PerTileProbability, 2))
	for _, t := range board.Tiles {
		s, err := Tile(t, board.PerTileProbability, conv)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "Status: %s", board.Status)
	if board.FailedAt > 0 {
		fmt.Fprintf(&sb, " (first failure at tile #%d)", board.FailedAt)
	}
	sb.WriteByte('\n')
	return sb.String(), nil
}

// Blackjack explains a deal: the stain digest that seeds the byte stream,
// the shuffled deck and both hands.
func Blackjack(seeds engine.Seeds, deal games.BlackjackDeal, opts Options) (string, error) {
	if err := seeds.Validate(); err != nil {
		return "", err
	}
	var sb strings.Builder
	digest := engine.DigestHex(seeds.Server, seeds.Stain)
	if err := writeDigest(&sb, "HMAC_SHA256(serverSeed, stain)", digest, engine.Float64Bit, ""); err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "Stream extensions at: %s\n", joinInts(deal.Trace.Extensions))
	fmt.Fprintf(&sb, "Shuffled deck: [%s]\n", cards(deal.Deck, opts))
	fmt.Fprintf(&sb, "Player hand: [%s] = %d\n", cards(deal.Player, opts), deal.PlayerValue)
	fmt.Fprintf(&sb, "Dealer hand: [%s] = %d\n", cards(deal.Dealer, opts), deal.DealerValue)
	return sb.String(), nil
}

// Cards renders tokens comma separated, optionally with suit glyphs.
func Cards(tokens []string, opts Options) string {
	return cards(tokens, opts)
}

func writeDigest(sb *strings.Builder, label, digest string, conv engine.FloatConvention, indent string) error {
	b, err := conv.Breakdown(digest)
	if err != nil {
		return err
	}
	bits := "2^64"
	if b.Convention == engine.Float52Bit {
		bits = "2^52"
	}
	fmt.Fprintf(sb, "%s%s: %s\n", indent, label, digest)
	fmt.Fprintf(sb, "%sFirst %d hex chars: %s\n", indent, len(b.Prefix), b.Prefix)
	fmt.Fprintf(sb, "%sInteger: %d\n", indent, b.Integer)
	fmt.Fprintf(sb, "%sInteger / %s: %s\n", indent, bits, Fraction(b))
	fmt.Fprintf(sb, "%sExact: %s\n", indent, Quotient(b, ExactPlaces).StringFixed(ExactPlaces))
	return nil
}

func cards(tokens []string, opts Options) string {
	if !opts.Symbols {
		return strings.Join(tokens, ", ")
	}
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		c, err := games.ParseCard(tok)
		if err != nil {
			out[i] = tok
			continue
		}
		out[i] = c.Symbol()
	}
	return strings.Join(out, ", ")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func joinInts(xs []int) string {
	if len(xs) == 0 {
		return "none"
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
