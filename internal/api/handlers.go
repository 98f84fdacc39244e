package api

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/games"
	"github.com/clarkflip/pf-verify/internal/insight"
	"github.com/clarkflip/pf-verify/internal/kvstore"
	"github.com/clarkflip/pf-verify/internal/scan"
	"github.com/clarkflip/pf-verify/internal/verify"
)

// handleListGames returns the registered games and the accepted presets
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GamesResponse{
		Games:         games.ListGames(),
		Difficulties:  games.DifficultyNames(),
		Conventions:   []string{string(engine.Float64Bit), string(engine.Float52Bit)},
		EngineVersion: EngineVersion,
	})
}

// handleSeedHash returns the SHA-256 commitment of a server seed
func (s *Server) handleSeedHash(w http.ResponseWriter, r *http.Request) {
	var req SeedHashRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ServerSeed == "" {
		s.errorHandler.HandleError(w, r, engine.InvalidInput("server_seed", "must not be empty"))
		return
	}

	hash := engine.ServerHash(req.ServerSeed)
	s.securityLogger.LogSeedHashOperation(middleware.GetReqID(r.Context()), hash)
	s.writeJSON(w, http.StatusOK, SeedHashResponse{Hash: hash, EngineVersion: EngineVersion})
}

// handleCoinflip recomputes one flip
func (s *Server) handleCoinflip(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	conv, err := s.convention(req.Convention)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	seeds := engine.Seeds{Server: req.ServerSeed, Stain: req.Stain}
	c, err := games.NewCoinflip(seeds, conv)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	out, cached := cachedEval(s, "coinflip", conv, seeds, nil, func() (games.CoinflipOutcome, error) {
		return c.DetermineOutcome(), nil
	})

	resp := CoinflipResponse{
		ServerHash:    c.ServerHash(),
		Convention:    string(conv),
		Outcome:       out,
		Cached:        cached,
		EngineVersion: EngineVersion,
	}
	if req.Insight {
		if resp.Insight, err = insight.Coinflip(out, conv); err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
	}

	s.securityLogger.LogEvaluateOperation(middleware.GetReqID(r.Context()), "coinflip", req.ServerSeed, string(conv), nil, cached)
	s.writeJSON(w, http.StatusOK, resp)
}

// handleSquares evaluates a board, or one tile when index is given
func (s *Server) handleSquares(w http.ResponseWriter, r *http.Request) {
	var req SquaresRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	conv, err := s.convention(req.Convention)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	cfg := games.SquaresConfig{Difficulty: req.Difficulty, Squares: req.Squares}
	if cfg.Difficulty == 0 && req.DifficultyName != "" {
		if cfg.Difficulty, err = games.ParseDifficulty(req.DifficultyName); err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
	}
	seeds := engine.Seeds{Server: req.ServerSeed, Stain: req.Stain}
	sq, err := games.NewSquares(seeds, cfg, conv)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	resp := SquaresResponse{
		ServerHash:    sq.ServerHash(),
		Convention:    string(conv),
		EngineVersion: EngineVersion,
	}
	params := map[string]any{"difficulty": cfg.Difficulty, "squares": cfg.Squares}

	if req.Index != nil {
		params["index"] = *req.Index
		tile, cached, err := cachedEvalErr(s, "squares", conv, seeds, params, func() (games.TileOutcome, error) {
			return sq.DetermineOutcome(*req.Index)
		})
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
		resp.Tile, resp.Cached = &tile, cached
		if req.Insight {
			if resp.Insight, err = insight.Tile(tile, sq.PerTileProbability(), conv); err != nil {
				s.errorHandler.HandleError(w, r, err)
				return
			}
		}
	} else {
		uncovered := cfg.Squares
		if req.Uncovered != nil {
			uncovered = *req.Uncovered
		}
		params["uncovered"] = uncovered
		board, cached, err := cachedEvalErr(s, "squares", conv, seeds, params, func() (games.BoardResult, error) {
			return sq.Board(uncovered)
		})
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
		resp.Board, resp.Cached = &board, cached
		if req.Insight {
			if resp.Insight, err = insight.Squares(board, conv); err != nil {
				s.errorHandler.HandleError(w, r, err)
				return
			}
		}
	}

	s.securityLogger.LogEvaluateOperation(middleware.GetReqID(r.Context()), "squares", req.ServerSeed, string(conv), params, resp.Cached)
	s.writeJSON(w, http.StatusOK, resp)
}

// handleBlackjack deals the shoe and both opening hands
func (s *Server) handleBlackjack(w http.ResponseWriter, r *http.Request) {
	var req BlackjackRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	seeds := engine.Seeds{Server: req.ServerSeed, Stain: req.Stain}
	if err := seeds.Validate(); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	// blackjack consumes raw bytes, so the convention is not part of the key
	deal, cached, err := cachedEvalErr(s, "blackjack", "", seeds, nil, func() (games.BlackjackDeal, error) {
		return games.DealBlackjack(seeds)
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	resp := BlackjackResponse{Deal: deal, Cached: cached, EngineVersion: EngineVersion}
	if req.Insight {
		if resp.Insight, err = insight.Blackjack(seeds, deal, insight.Options{Symbols: req.Symbols}); err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
	}

	s.securityLogger.LogEvaluateOperation(middleware.GetReqID(r.Context()), "blackjack", req.ServerSeed, "", nil, cached)
	s.writeJSON(w, http.StatusOK, resp)
}

// handleVerify checks one round against its claim
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var round verify.Round
	if !s.decodeJSON(w, r, &round) {
		return
	}
	rep, err := verify.Verify(round, s.conv)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogEvaluateOperation(middleware.GetReqID(r.Context()), rep.Game, round.ServerSeed, rep.Convention,
		map[string]any{"match": rep.Match, "mismatches": len(rep.Mismatches)}, false)
	s.writeJSON(w, http.StatusOK, VerifyResponse{Report: rep, EngineVersion: EngineVersion})
}

// handleVerifyBatch checks many rounds, stores the run and publishes the
// reports
func (s *Server) handleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	var req VerifyBatchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Rounds) == 0 {
		s.errorHandler.HandleValidationError(w, r, "rounds", "at least one round is required")
		return
	}
	conv, err := s.convention(req.Convention)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := verify.Batch(r.Context(), req.Rounds, verify.Options{Workers: s.batchWorkers, DefaultConvention: conv})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	runID, err := s.recorder.RecordBatch(r.Context(), req.Rounds, res, conv)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogVerifyOperation(middleware.GetReqID(r.Context()), runID, len(res.Reports), res.Matched, res.Mismatched, res.Failed)
	s.writeJSON(w, http.StatusOK, VerifyBatchResponse{RunID: runID, Result: res, EngineVersion: EngineVersion})
}

// handleScan scans a tile index range and stores the run
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scan.ScanRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	conv, err := s.convention(string(req.Convention))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	req.Convention = conv
	if err := req.Validate(); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	requestID := middleware.GetReqID(r.Context())
	s.securityLogger.LogScanOperation(requestID, req.ServerSeed, req.IndexStart, req.IndexEnd,
		string(req.TargetOp), req.TargetVal, req.Limit, req.Filter != "")

	res, err := s.scanner.Scan(r.Context(), req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	runID, err := s.recorder.RecordScan(req, res)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.logger.Info("scan_completed",
		"request_id", requestID,
		"run_id", runID,
		"hits_found", res.Summary.HitsFound,
		"total_evaluated", res.Summary.TotalEvaluated,
		"timed_out", res.Summary.TimedOut,
	)
	s.writeJSON(w, http.StatusOK, ScanResponse{RunID: runID, Result: res, EngineVersion: EngineVersion})
}

// convention resolves a request's convention, falling back to the
// server default.
func (s *Server) convention(name string) (engine.FloatConvention, error) {
	if name == "" {
		return s.conv, nil
	}
	return engine.ParseFloatConvention(name)
}

// cachedEval memoises an evaluation that cannot fail.
func cachedEval[T any](s *Server, game string, conv engine.FloatConvention, seeds engine.Seeds, params any, compute func() (T, error)) (T, bool) {
	v, cached, _ := cachedEvalErr(s, game, conv, seeds, params, compute)
	return v, cached
}

// cachedEvalErr looks the evaluation up in the outcome cache and stores
// fresh results. Cache failures are logged and never fail the request.
func cachedEvalErr[T any](s *Server, game string, conv engine.FloatConvention, seeds engine.Seeds, params any, compute func() (T, error)) (T, bool, error) {
	var zero T
	if s.cache == nil {
		v, err := compute()
		return v, false, err
	}

	key, err := kvstore.OutcomeKey(game, string(conv), seeds.Server, seeds.Stain, params)
	if err != nil {
		s.logger.Warn("outcome key failed", "game", game, "error", err)
		v, err := compute()
		return v, false, err
	}

	var hit T
	ok, err := s.cache.Get(key, &hit)
	if err != nil {
		s.logger.Warn("outcome cache read failed", "game", game, "error", err)
	}
	if ok && err == nil {
		return hit, true, nil
	}

	v, err := compute()
	if err != nil {
		return zero, false, err
	}
	if err := s.cache.Put(key, v); err != nil {
		s.logger.Warn("outcome cache write failed", "game", game, "error", err)
	}
	return v, false, nil
}
