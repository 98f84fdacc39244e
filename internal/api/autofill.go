package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/games"
	"github.com/clarkflip/pf-verify/internal/insight"
)

// handleVerifyQuery evaluates the query-string contract of the browser
// verifier: gamemode, serverSeed, stain, uncovered and difficulty. Squares
// always uses the browser's five-tile board and uncovered is capped at 5.
func (s *Server) handleVerifyQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := strings.ToLower(strings.TrimSpace(q.Get("gamemode")))
	if mode == "" {
		mode = "squares"
	}
	if _, ok := games.GetGame(mode); !ok {
		s.errorHandler.HandleError(w, r, engine.InvalidInput("gamemode", "unknown game "+strconv.Quote(mode)))
		return
	}
	seeds := engine.Seeds{Server: q.Get("serverSeed"), Stain: q.Get("stain")}
	if err := seeds.Validate(); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	conv, err := s.convention(q.Get("convention"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	resp := AutofillResponse{
		Game:          mode,
		ServerHash:    engine.ServerHash(seeds.Server),
		EngineVersion: EngineVersion,
	}

	switch mode {
	case "coinflip":
		c, err := games.NewCoinflip(seeds, conv)
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
		out := c.DetermineOutcome()
		resp.Convention = string(conv)
		resp.Coinflip = &out
		resp.Insight, err = insight.Coinflip(out, conv)
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}

	case "squares":
		board, err := s.autofillBoard(seeds, conv, q.Get("difficulty"), q.Get("uncovered"))
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
		resp.Convention = string(conv)
		resp.Board = &board
		resp.Insight, err = insight.Squares(board, conv)
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}

	case "blackjack":
		deal, err := games.DealBlackjack(seeds)
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
		resp.Deal = &deal
		resp.Insight, err = insight.Blackjack(seeds, deal, insight.Options{})
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
	}

	s.securityLogger.LogEvaluateOperation(middleware.GetReqID(r.Context()), mode, seeds.Server, resp.Convention,
		map[string]any{"source": "autofill"}, false)
	s.writeJSON(w, http.StatusOK, resp)
}

// autofillBoard applies the browser's squares rules: a named difficulty,
// five tiles and 1 <= uncovered, with larger values capped at 5.
// uncovered is read like the browser's parseInt, so "3abc" means 3.
func (s *Server) autofillBoard(seeds engine.Seeds, conv engine.FloatConvention, difficulty, uncovered string) (games.BoardResult, error) {
	if difficulty == "" {
		difficulty = "easy"
	}
	d, err := games.ParseDifficulty(difficulty)
	if err != nil {
		return games.BoardResult{}, err
	}

	n := games.BrowserBoardSquares
	if uncovered != "" {
		var ok bool
		if n, ok = leadingInt(uncovered); !ok {
			return games.BoardResult{}, engine.InvalidInput("uncovered", "is not a number")
		}
	}
	if n < 1 {
		return games.BoardResult{}, engine.InvalidInput("uncovered", "must be at least 1")
	}
	n = min(n, games.BrowserBoardSquares)

	sq, err := games.NewSquares(seeds, games.SquaresConfig{Difficulty: d, Squares: games.BrowserBoardSquares}, conv)
	if err != nil {
		return games.BoardResult{}, err
	}
	return sq.Board(n)
}

// leadingInt parses an optional sign and the leading decimal digits of s
// after surrounding whitespace, ignoring whatever follows. It reports false
// when no digit is found. Values past the int range saturate.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		n = math.MaxInt
	}
	if neg {
		n = -n
	}
	return n, true
}
