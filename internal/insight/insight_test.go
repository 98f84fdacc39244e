package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/games"
)

const abcDigest = "c03d0898b76731130f3e2134b39b824c53c4e62a55b3c020a4be6d5ada606102"

func TestQuotientIsExact(t *testing.T) {
	tests := []struct {
		conv engine.FloatConvention
		want string
	}{
		{engine.Float64Bit, "0.75093129852703267953"},
		{engine.Float52Bit, "0.75093129852703266458"},
	}
	for _, tt := range tests {
		t.Run(string(tt.conv), func(t *testing.T) {
			b, err := tt.conv.Breakdown(abcDigest)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Quotient(b, ExactPlaces).StringFixed(ExactPlaces))
		})
	}
}

func TestFraction(t *testing.T) {
	b, err := engine.Float64Bit.Breakdown(abcDigest)
	require.NoError(t, err)
	assert.Equal(t, "13852237480866558227 / 18446744073709551615 = 0.7509312985270327", Fraction(b))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "50.00%", Percent(0.5, 2))
	assert.Equal(t, "87.06%", Percent(0.8705505632961241, 2))
	assert.Equal(t, "100%", Percent(1, 0))
}

func TestCoinflipInsight(t *testing.T) {
	c, err := games.NewCoinflip(engine.Seeds{Server: "abc", Stain: "xyz"}, engine.Float64Bit)
	require.NoError(t, err)

	text, err := Coinflip(c.DetermineOutcome(), engine.Float64Bit)
	require.NoError(t, err)
	assert.Contains(t, text, "HMAC (SHA256): "+abcDigest+"\n")
	assert.Contains(t, text, "First 16 hex chars: c03d0898b7673113\n")
	assert.Contains(t, text, "Integer: 13852237480866558227\n")
	assert.Contains(t, text, "Integer / 2^64: 13852237480866558227 / 18446744073709551615")
	assert.Contains(t, text, "Outcome: Tails\n")
}

func TestCoinflipInsight52(t *testing.T) {
	c, err := games.NewCoinflip(engine.Seeds{Server: "abc", Stain: "xyz"}, engine.Float52Bit)
	require.NoError(t, err)

	text, err := Coinflip(c.DetermineOutcome(), engine.Float52Bit)
	require.NoError(t, err)
	assert.Contains(t, text, "First 13 hex chars: c03d0898b7673\n")
	assert.Contains(t, text, "Integer / 2^52: 3381893916227187 / 4503599627370496")
}

func TestCoinflipInsightRejectsShortDigest(t *testing.T) {
	_, err := Coinflip(games.CoinflipOutcome{Digest: "abc"}, engine.Float64Bit)
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
}

func TestSquaresInsight(t *testing.T) {
	s, err := games.NewSquares(engine.Seeds{Server: "abc", Stain: "xyz"},
		games.SquaresConfig{Difficulty: 0.5, Squares: 5}, engine.Float64Bit)
	require.NoError(t, err)
	board, err := s.Board(5)
	require.NoError(t, err)

	text, err := Squares(board, engine.Float64Bit)
	require.NoError(t, err)
	assert.Contains(t, text, "Board: 5 squares, difficulty 50.00%, per tile 87.06%")
	assert.Contains(t, text, "Tile #1:\n  HMAC (SHA256): dc552633ec03b7c3")
	assert.Contains(t, text, "Tile #5:\n")
	assert.NotContains(t, text, "Tile #6:")
	assert.Contains(t, text, "  Success: Yes\n")
	assert.Contains(t, text, "Status: cleared\n")
}

func TestSquaresInsightReportsFailure(t *testing.T) {
	s, err := games.NewSquares(engine.Seeds{Server: "abc", Stain: "xyz"},
		games.SquaresConfig{Difficulty: 1 / 11.5, Squares: 5}, engine.Float64Bit)
	require.NoError(t, err)

	text, err := Squares(s.Play(), engine.Float64Bit)
	require.NoError(t, err)
	assert.Contains(t, text, "Success: No\n")
	assert.Contains(t, text, "Status: failed (first failure at tile #1)\n")
}

func TestBlackjackInsight(t *testing.T) {
	seeds := engine.Seeds{Server: "abc", Stain: "xyz"}
	deal, err := games.DealBlackjack(seeds)
	require.NoError(t, err)

	text, err := Blackjack(seeds, deal, Options{})
	require.NoError(t, err)
	assert.Contains(t, text, "HMAC_SHA256(serverSeed, stain): "+abcDigest+"\n")
	assert.Contains(t, text, "Stream extensions at: 47, 43, ")
	assert.Contains(t, text, "Player hand: [7S, 3C] = 10\n")
	assert.Contains(t, text, "Dealer hand: [7H, 5S] = 12\n")

	text, err = Blackjack(seeds, deal, Options{Symbols: true})
	require.NoError(t, err)
	assert.Contains(t, text, "Player hand: [7♠, 3♣] = 10\n")
	assert.Contains(t, text, "Dealer hand: [7♥, 5♠] = 12\n")
}

func TestBlackjackInsightRejectsEmptySeeds(t *testing.T) {
	_, err := Blackjack(engine.Seeds{}, games.BlackjackDeal{}, Options{})
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
}

func TestCardsKeepsUnknownTokens(t *testing.T) {
	assert.Equal(t, "A♠, ??", Cards([]string{"AS", "??"}, Options{Symbols: true}))
	assert.Equal(t, "AS, ??", Cards([]string{"AS", "??"}, Options{}))
}
