package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarkflip/pf-verify/internal/games"
	"github.com/clarkflip/pf-verify/internal/scan"
	"github.com/clarkflip/pf-verify/internal/store"
	"github.com/clarkflip/pf-verify/internal/verify"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommitCmd(t *testing.T) {
	out, err := execute(t, "commit", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")

	out, err = execute(t, "commit", "abc", "--hash", "BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD")
	require.NoError(t, err)
	assert.Contains(t, out, "Match:       Yes")

	_, err = execute(t, "commit", "abc", "--hash", "deadbeef")
	assert.Error(t, err)
}

func TestCoinflipCmd(t *testing.T) {
	out, err := execute(t, "coinflip", "abc", "xyz")
	require.NoError(t, err)
	assert.Contains(t, out, "Integer: 13852237480866558227")
	assert.Contains(t, out, "Outcome: Tails")

	out, err = execute(t, "coinflip", "abc", "xyz", "--float", "browser")
	require.NoError(t, err)
	assert.Contains(t, out, "Integer: 3381893916227187")
	assert.Contains(t, out, "2^52")

	out, err = execute(t, "coinflip", "abc", "xyz", "--json")
	require.NoError(t, err)
	var res struct {
		Convention string                `json:"convention"`
		Outcome    games.CoinflipOutcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "64bit", res.Convention)
	assert.Equal(t, games.Tails, res.Outcome.Side)

	_, err = execute(t, "coinflip", "abc", "")
	assert.Error(t, err)
	_, err = execute(t, "coinflip", "abc", "xyz", "--float", "32bit")
	assert.Error(t, err)
}

func squaresBoard(t *testing.T, args ...string) games.BoardResult {
	t.Helper()
	out, err := execute(t, append([]string{"squares", "abc", "xyz", "--json"}, args...)...)
	require.NoError(t, err)
	var res struct {
		Board games.BoardResult `json:"board"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return res.Board
}

func TestSquaresCmd(t *testing.T) {
	t.Run("play stops at first failure", func(t *testing.T) {
		board := squaresBoard(t, "--difficulty", "expert")
		assert.Equal(t, games.BoardFailed, board.Status)
		assert.Equal(t, 1, board.FailedAt)
		assert.Len(t, board.Tiles, 1)
	})

	t.Run("all evaluates every tile", func(t *testing.T) {
		board := squaresBoard(t, "--difficulty", "expert", "--all")
		assert.Equal(t, games.BoardFailed, board.Status)
		assert.Len(t, board.Tiles, 5)
	})

	t.Run("uncovered classifies a stopped board", func(t *testing.T) {
		board := squaresBoard(t, "--uncovered", "2")
		assert.Equal(t, games.BoardInProgress, board.Status)
		assert.Equal(t, 2, board.Uncovered)
	})

	t.Run("numeric difficulty", func(t *testing.T) {
		board := squaresBoard(t, "--difficulty", "0.5", "--squares", "3")
		assert.Equal(t, 3, board.Squares)
		assert.InDelta(t, 0.5, board.Difficulty, 1e-12)
	})

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "squares", "abc", "xyz")
		require.NoError(t, err)
		assert.Contains(t, out, "Tile #1:")
		assert.Contains(t, out, "per tile 87.06%")
		assert.Contains(t, out, "Status: cleared")
	})

	t.Run("errors", func(t *testing.T) {
		_, err := execute(t, "squares", "abc", "xyz", "--difficulty", "nightmare")
		assert.Error(t, err)
		_, err = execute(t, "squares", "abc", "xyz", "--uncovered", "6")
		assert.Error(t, err)
		_, err = execute(t, "squares", "abc", "xyz", "--squares", "0")
		assert.Error(t, err)
	})
}

func TestBlackjackCmd(t *testing.T) {
	out, err := execute(t, "blackjack", "abc", "xyz")
	require.NoError(t, err)
	assert.Contains(t, out, "Player hand: [7S, 3C] = 10")
	assert.Contains(t, out, "Dealer hand: [7H, 5S] = 12")
	assert.Contains(t, out, "Remaining shoe: [")

	out, err = execute(t, "blackjack", "abc", "xyz", "--symbols")
	require.NoError(t, err)
	assert.Contains(t, out, "7♠, 3♣")
}

func writeRounds(t *testing.T, rounds []verify.Round) string {
	t.Helper()
	data, err := json.Marshal(rounds)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "rounds.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestVerifyCmd(t *testing.T) {
	good := writeRounds(t, []verify.Round{
		{ID: "flip", Game: "coinflip", ServerSeed: "abc", Stain: "xyz", Claim: verify.Claim{Side: "Tails"}},
		{ID: "deal", Game: "blackjack", ServerSeed: "abc", Stain: "xyz", Claim: verify.Claim{Player: []string{"7S", "3C"}}},
	})
	out, err := execute(t, "verify", good)
	require.NoError(t, err)
	assert.Contains(t, out, "OK    flip coinflip")
	assert.Contains(t, out, "2 matched, 0 mismatched, 0 failed")

	bad := writeRounds(t, []verify.Round{
		{ID: "flip", Game: "coinflip", ServerSeed: "abc", Stain: "xyz", Claim: verify.Claim{Side: "Heads"}},
	})
	out, err = execute(t, "verify", bad)
	assert.Error(t, err)
	assert.Contains(t, out, "side: claimed Heads, actual Tails")

	_, err = execute(t, "verify", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestVerifySaveRequiresStore(t *testing.T) {
	t.Setenv("PFV_STORE_PATH", "")
	path := writeRounds(t, []verify.Round{{Game: "coinflip", ServerSeed: "abc", Stain: "xyz"}})
	_, err := execute(t, "verify", path, "--save")
	assert.ErrorContains(t, err, "no run store configured")
}

func TestVerifySaveAndRuns(t *testing.T) {
	t.Setenv("PFV_STORE_PATH", filepath.Join(t.TempDir(), "runs.db"))

	path := writeRounds(t, []verify.Round{
		{ID: "a", Game: "coinflip", ServerSeed: "abc", Stain: "xyz", Claim: verify.Claim{Side: "Tails"}},
		{ID: "b", Game: "coinflip", ServerSeed: "abc", Stain: "xyz", Claim: verify.Claim{Side: "Heads"}},
	})
	out, err := execute(t, "verify", path, "--save", "--json")
	require.Error(t, err)
	var saved struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	require.NotEmpty(t, saved.RunID)

	out, err = execute(t, "runs", "list", "--json", "--kind", store.KindVerify)
	require.NoError(t, err)
	var list store.RunsList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, saved.RunID, list.Runs[0].ID)
	assert.Equal(t, 1, list.Runs[0].Mismatched)

	out, err = execute(t, "runs", "show", saved.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "1 matched, 1 mismatched, 0 failed")
	assert.Contains(t, out, "Hits:       1")

	_, err = execute(t, "runs", "show", "missing")
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestScanCmd(t *testing.T) {
	t.Setenv("PFV_STORE_PATH", filepath.Join(t.TempDir(), "runs.db"))

	out, err := execute(t, "scan", "abc", "xyz", "--end", "199", "--op", "lt", "--value", "0.05", "--save", "--json")
	require.NoError(t, err)
	var res struct {
		RunID  string          `json:"run_id"`
		Result scan.ScanResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, uint64(200), res.Result.Summary.TotalEvaluated)
	assert.Equal(t, 16, res.Result.Summary.HitsFound)
	for _, h := range res.Result.Hits {
		assert.Less(t, h.Metric, 0.05)
	}

	_, err = execute(t, "scan", "abc", "xyz", "--start", "10", "--end", "5")
	assert.ErrorIs(t, err, scan.ErrInvalidRange)
	_, err = execute(t, "scan", "abc", "xyz", "--op", "approx")
	assert.Error(t, err)
}

func TestScanCmdFilter(t *testing.T) {
	filter := filepath.Join(t.TempDir(), "filter.js")
	require.NoError(t, os.WriteFile(filter, []byte(`function match(tile) { return tile.index % 2 === 0; }`), 0o644))

	out, err := execute(t, "scan", "abc", "xyz", "--end", "19", "--op", "ge", "--value", "0", "--filter", filter, "--json")
	require.NoError(t, err)
	var res struct {
		Result scan.ScanResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 10, res.Result.Summary.HitsFound)
	for _, h := range res.Result.Hits {
		assert.Zero(t, h.Index%2)
	}

	logged := filepath.Join(t.TempDir(), "logged.js")
	require.NoError(t, os.WriteFile(logged, []byte(`function match(tile) { if (tile.index === 7) log("seven", tile.float < 1); return true; }`), 0o644))
	out, err = execute(t, "scan", "abc", "xyz", "--end", "19", "--op", "ge", "--value", "0", "--filter", logged)
	require.NoError(t, err)
	assert.Contains(t, out, "Filter log:")
	assert.Contains(t, out, "seven true")
}
