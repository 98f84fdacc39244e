package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/games"
)

func baseRequest() ScanRequest {
	return ScanRequest{
		ServerSeed: "abc",
		Stain:      "xyz",
		Difficulty: 0.5,
		Squares:    5,
		Convention: engine.Float64Bit,
		IndexStart: 0,
		IndexEnd:   1999,
		TargetOp:   OpLess,
		TargetVal:  0.05,
	}
}

// bruteForce evaluates the same range sequentially.
func bruteForce(t *testing.T, req ScanRequest, keep func(games.TileOutcome) bool) []Hit {
	t.Helper()
	sq, err := games.NewSquares(engine.Seeds{Server: req.ServerSeed, Stain: req.Stain},
		games.SquaresConfig{Difficulty: req.Difficulty, Squares: req.Squares}, req.Convention)
	require.NoError(t, err)
	var out []Hit
	for i := req.IndexStart; i <= req.IndexEnd; i++ {
		tile, err := sq.DetermineOutcome(i)
		require.NoError(t, err)
		if keep(tile) {
			out = append(out, Hit{Index: i, Metric: tile.Float, Success: tile.Success})
		}
	}
	return out
}

func TestTargetEvaluator(t *testing.T) {
	tests := []struct {
		op     TargetOp
		v1, v2 float64
		metric float64
		want   bool
	}{
		{OpEqual, 0.5, 0, 0.5, true},
		{OpEqual, 0.5, 0, 0.5000001, false},
		{OpGreater, 0.5, 0, 0.5, false},
		{OpGreater, 0.5, 0, 0.6, true},
		{OpGreaterEqual, 0.5, 0, 0.5, true},
		{OpLess, 0.5, 0, 0.4, true},
		{OpLess, 0.5, 0, 0.5, false},
		{OpLessEqual, 0.5, 0, 0.5, true},
		{OpBetween, 0.2, 0.4, 0.3, true},
		{OpBetween, 0.2, 0.4, 0.5, false},
		{OpOutside, 0.2, 0.4, 0.5, true},
		{OpOutside, 0.2, 0.4, 0.3, false},
		{TargetOp("nope"), 0, 0, 0, false},
	}
	for _, tt := range tests {
		e := NewTargetEvaluator(tt.op, tt.v1, tt.v2, DefaultTolerance)
		assert.Equal(t, tt.want, e.Matches(tt.metric), "%s %v %v on %v", tt.op, tt.v1, tt.v2, tt.metric)
	}
}

func TestScanMatchesSequentialEvaluation(t *testing.T) {
	req := baseRequest()
	want := bruteForce(t, req, func(tile games.TileOutcome) bool { return tile.Float < 0.05-DefaultTolerance })
	require.NotEmpty(t, want)

	res, err := NewScanner(4).Scan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, want, res.Hits)
	assert.Equal(t, uint64(2000), res.Summary.TotalEvaluated)
	assert.Equal(t, len(want), res.Summary.HitsFound)
	assert.False(t, res.Summary.Truncated)
	assert.LessOrEqual(t, res.Summary.MaxMetric, 0.05)
	assert.Equal(t, engine.ServerHash("abc"), res.Echo.ServerSeed)
}

func TestScanLimitKeepsLowestIndexes(t *testing.T) {
	req := baseRequest()
	req.TargetOp = OpGreaterEqual
	req.TargetVal = 0
	req.Limit = 10

	res, err := NewScanner(3).Scan(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Hits, 10)
	for i, h := range res.Hits {
		assert.Equal(t, i, h.Index)
	}
	assert.True(t, res.Summary.Truncated)
	assert.Equal(t, 2000, res.Summary.HitsFound)
}

func TestScanWithFilter(t *testing.T) {
	req := baseRequest()
	req.TargetOp = OpLess
	req.TargetVal = 0.5
	req.Filter = `function match(tile) { return tile.index % 3 === 0 }`

	want := bruteForce(t, req, func(tile games.TileOutcome) bool {
		return tile.Float < 0.5-DefaultTolerance && tile.Index%3 == 0
	})

	res, err := NewScanner(2).Scan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, want, res.Hits)
	assert.Zero(t, res.Summary.FilterErrors)
}

func TestScanReturnsFilterLogs(t *testing.T) {
	req := baseRequest()
	req.TargetOp = OpGreaterEqual
	req.TargetVal = 0
	req.Filter = `
		log("ready");
		function match(tile) {
			if (tile.index < 3) log("tile", tile.index);
			return true;
		}
	`

	res, err := NewScanner(4).Scan(context.Background(), req)
	require.NoError(t, err)

	var messages []string
	for _, l := range res.Logs {
		messages = append(messages, l.Message)
	}
	assert.ElementsMatch(t, []string{"ready", "tile 0", "tile 1", "tile 2"}, messages)
	assert.Equal(t, "ready", messages[0])
}

func TestScanCapsFilterLogs(t *testing.T) {
	req := baseRequest()
	req.TargetOp = OpGreaterEqual
	req.TargetVal = 0
	req.Filter = `function match(tile) { log("tile", tile.index); return false }`

	res, err := NewScanner(4).Scan(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, res.Logs, MaxFilterLogs)
	assert.Empty(t, res.Hits)
	for i := 1; i < len(res.Logs); i++ {
		assert.False(t, res.Logs[i].Time.Before(res.Logs[i-1].Time))
	}
}

func TestScanRejectsBadRequests(t *testing.T) {
	s := NewScanner(1)
	ctx := context.Background()

	req := baseRequest()
	req.IndexEnd = -1
	_, err := s.Scan(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidRange)

	req = baseRequest()
	req.IndexEnd = MaxRange
	_, err = s.Scan(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidRange)

	req = baseRequest()
	req.Limit = MaxLimit + 1
	_, err = s.Scan(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidParams)

	req = baseRequest()
	req.TargetOp = OpBetween
	req.TargetVal, req.TargetVal2 = 0.5, 0.1
	_, err = s.Scan(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidParams)

	req = baseRequest()
	req.TargetOp = "approx"
	_, err = s.Scan(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidParams)

	req = baseRequest()
	req.Filter = "function nope() {}"
	_, err = s.Scan(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidParams)

	req = baseRequest()
	req.Squares = 0
	_, err = s.Scan(ctx, req)
	assert.ErrorIs(t, err, engine.ErrConfiguration)

	req = baseRequest()
	req.Stain = ""
	_, err = s.Scan(ctx, req)
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := baseRequest()
	req.IndexEnd = 1_000_000
	res, err := NewScanner(2).Scan(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Summary.TimedOut)
	assert.Less(t, res.Summary.TotalEvaluated, uint64(1_000_001))
}

func BenchmarkScan(b *testing.B) {
	req := baseRequest()
	req.IndexEnd = 99_999
	s := NewScanner(0)
	for i := 0; i < b.N; i++ {
		if _, err := s.Scan(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}
