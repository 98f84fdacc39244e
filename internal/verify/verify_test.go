package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/games"
)

func intPtr(v int) *int { return &v }

func TestVerifyCoinflip(t *testing.T) {
	round := Round{
		Game:       "coinflip",
		ServerSeed: "abc",
		ServerHash: engine.ServerHash("abc"),
		Stain:      "xyz",
		Claim:      Claim{Side: "tails", Digest: "C03D0898B76731130F3E2134B39B824C53C4E62A55B3C020A4BE6D5ADA606102"},
	}
	rep, err := Verify(round, engine.Float64Bit)
	require.NoError(t, err)
	assert.True(t, rep.Match)
	require.NotNil(t, rep.CommitmentOK)
	assert.True(t, *rep.CommitmentOK)
	assert.Equal(t, "64bit", rep.Convention)

	round.Claim.Side = "Heads"
	rep, err = Verify(round, engine.Float64Bit)
	require.NoError(t, err)
	assert.False(t, rep.Match)
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, Mismatch{Field: "side", Claimed: "Heads", Actual: "Tails"}, rep.Mismatches[0])
}

func TestVerifyDetectsBrokenCommitment(t *testing.T) {
	rep, err := Verify(Round{
		Game:       "coinflip",
		ServerSeed: "abc",
		ServerHash: engine.ServerHash("abd"),
		Stain:      "xyz",
	}, "")
	require.NoError(t, err)
	assert.False(t, rep.Match)
	require.NotNil(t, rep.CommitmentOK)
	assert.False(t, *rep.CommitmentOK)
	assert.Equal(t, "server_hash", rep.Mismatches[0].Field)
}

func TestVerifySquares(t *testing.T) {
	round := Round{
		Game:           "squares",
		ServerSeed:     "server-seed-1",
		Stain:          "stain-1",
		DifficultyName: "easy",
		Squares:        5,
		Uncovered:      intPtr(4),
		Claim:          Claim{FailedAt: intPtr(4), Tiles: []bool{true, true, true, false}},
	}
	rep, err := Verify(round, engine.Float64Bit)
	require.NoError(t, err)
	assert.True(t, rep.Match, "%+v", rep.Mismatches)
	board := rep.Outcome.(games.BoardResult)
	assert.Equal(t, games.BoardFailed, board.Status)

	round.Claim = Claim{FailedAt: intPtr(0), Tiles: []bool{true, true, true, true}}
	rep, err = Verify(round, engine.Float64Bit)
	require.NoError(t, err)
	assert.False(t, rep.Match)
	assert.Len(t, rep.Mismatches, 2)
}

func TestVerifySquaresConfigurationErrors(t *testing.T) {
	base := Round{Game: "squares", ServerSeed: "a", Stain: "b", Difficulty: 0.5}

	_, err := Verify(base, "")
	assert.ErrorIs(t, err, engine.ErrConfiguration)

	base.Squares = 5
	base.DifficultyName = "impossible"
	_, err = Verify(base, "")
	assert.ErrorIs(t, err, engine.ErrConfiguration)

	base.DifficultyName = ""
	base.Uncovered = intPtr(9)
	_, err = Verify(base, "")
	assert.ErrorIs(t, err, engine.ErrInvalidInput)

	base.Uncovered = nil
	base.Convention = "128bit"
	_, err = Verify(base, "")
	assert.ErrorIs(t, err, engine.ErrConfiguration)
}

func TestVerifyBlackjack(t *testing.T) {
	round := Round{
		Game:       "blackjack",
		ServerSeed: "abc",
		Stain:      "xyz",
		Claim:      Claim{Player: []string{"7s", "3C"}, Dealer: []string{"7H", "5S"}},
	}
	rep, err := Verify(round, "")
	require.NoError(t, err)
	assert.True(t, rep.Match, "%+v", rep.Mismatches)
	assert.Empty(t, rep.Convention)

	round.Claim.Dealer = []string{"AS", "KS"}
	rep, err = Verify(round, "")
	require.NoError(t, err)
	assert.False(t, rep.Match)
	assert.Equal(t, "dealer", rep.Mismatches[0].Field)
	assert.Equal(t, "7H 5S", rep.Mismatches[0].Actual)
}

func TestVerifyRejectsBadInput(t *testing.T) {
	_, err := Verify(Round{Game: "coinflip", Stain: "x"}, "")
	assert.ErrorIs(t, err, engine.ErrInvalidInput)

	_, err = Verify(Round{Game: "roulette", ServerSeed: "a", Stain: "b"}, "")
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
}

func TestBatchPreservesOrder(t *testing.T) {
	rounds := []Round{
		{ID: "r1", Game: "coinflip", ServerSeed: "abc", Stain: "xyz", Claim: Claim{Side: "Tails"}},
		{ID: "r2", Game: "coinflip", ServerSeed: "abc", Stain: "xyz", Claim: Claim{Side: "Heads"}},
		{ID: "r3", Game: "squares", ServerSeed: "abc", Stain: "xyz"},
		{Game: "blackjack", ServerSeed: "s", Stain: "1", Claim: Claim{Player: []string{"AS", "3S"}}},
	}
	res, err := Batch(context.Background(), rounds, Options{Workers: 2})
	require.NoError(t, err)
	require.Len(t, res.Reports, 4)

	assert.Equal(t, "r1", res.Reports[0].RoundID)
	assert.True(t, res.Reports[0].Match)
	assert.Equal(t, "r2", res.Reports[1].RoundID)
	assert.False(t, res.Reports[1].Match)
	assert.Equal(t, "r3", res.Reports[2].RoundID)
	assert.NotEmpty(t, res.Reports[2].Error)
	assert.NotEmpty(t, res.Reports[3].RoundID)
	assert.True(t, res.Reports[3].Match)

	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 1, res.Mismatched)
	assert.Equal(t, 1, res.Failed)
}

func TestBatchHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Batch(ctx, []Round{{Game: "coinflip", ServerSeed: "a", Stain: "b"}}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadRounds(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "rounds.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- id: flip-1
  game: coinflip
  server_seed: abc
  stain: xyz
  claim:
    side: Tails
- game: squares
  server_seed: abc
  stain: xyz
  difficulty_name: expert
  squares: 5
  uncovered: 1
  claim:
    failed_at: 1
`), 0o644))

	rounds, err := LoadRounds(yamlPath)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, "flip-1", rounds[0].ID)
	require.NotNil(t, rounds[1].Uncovered)
	assert.Equal(t, 1, *rounds[1].Uncovered)
	require.NotNil(t, rounds[1].Claim.FailedAt)

	jsonPath := filepath.Join(dir, "rounds.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"game":"blackjack","server_seed":"abc","stain":"xyz"}]`), 0o644))
	rounds, err = LoadRounds(jsonPath)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, "blackjack", rounds[0].Game)

	_, err = LoadRounds(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
