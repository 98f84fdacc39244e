package verify

import (
	"slices"
	"strconv"
	"strings"

	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/games"
)

// Mismatch is one field where the recomputed outcome disagrees with the
// claim.
type Mismatch struct {
	Field   string `json:"field"`
	Claimed string `json:"claimed"`
	Actual  string `json:"actual"`
}

// Report is the verdict for one round.
type Report struct {
	RoundID      string     `json:"round_id,omitempty"`
	Game         string     `json:"game"`
	ServerHash   string     `json:"server_hash"`
	Convention   string     `json:"convention,omitempty"`
	CommitmentOK *bool      `json:"commitment_ok,omitempty"`
	Match        bool       `json:"match"`
	Mismatches   []Mismatch `json:"mismatches,omitempty"`
	Outcome      any        `json:"outcome,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Verify recomputes the round and compares it with the claim. Input and
// configuration problems are returned as errors wrapping
// engine.ErrInvalidInput or engine.ErrConfiguration.
func Verify(r Round, defaultConv engine.FloatConvention) (Report, error) {
	seeds := engine.Seeds{Server: r.ServerSeed, Stain: r.Stain}
	if err := seeds.Validate(); err != nil {
		return Report{}, err
	}

	conv := defaultConv
	if r.Convention != "" {
		c, err := engine.ParseFloatConvention(r.Convention)
		if err != nil {
			return Report{}, err
		}
		conv = c
	}
	if conv == "" {
		conv = engine.DefaultFloatConvention
	}

	rep := Report{
		RoundID:    r.ID,
		Game:       strings.ToLower(strings.TrimSpace(r.Game)),
		ServerHash: engine.ServerHash(r.ServerSeed),
	}
	if _, ok := games.GetGame(rep.Game); !ok {
		return Report{}, engine.InvalidInput("game", "unknown game "+strconv.Quote(r.Game))
	}

	if r.ServerHash != "" {
		ok := engine.VerifyCommitment(r.ServerSeed, r.ServerHash)
		rep.CommitmentOK = &ok
		if !ok {
			rep.Mismatches = append(rep.Mismatches, Mismatch{Field: "server_hash", Claimed: r.ServerHash, Actual: rep.ServerHash})
		}
	}

	var err error
	switch rep.Game {
	case "coinflip":
		rep.Convention = string(conv)
		err = verifyCoinflip(&rep, seeds, conv, r.Claim)
	case "squares":
		rep.Convention = string(conv)
		err = verifySquares(&rep, seeds, conv, r)
	case "blackjack":
		err = verifyBlackjack(&rep, seeds, r.Claim)
	default:
		return Report{}, engine.InvalidInput("game", "unknown game "+strconv.Quote(r.Game))
	}
	if err != nil {
		return Report{}, err
	}

	rep.Match = len(rep.Mismatches) == 0
	return rep, nil
}

func verifyCoinflip(rep *Report, seeds engine.Seeds, conv engine.FloatConvention, claim Claim) error {
	c, err := games.NewCoinflip(seeds, conv)
	if err != nil {
		return err
	}
	out := c.DetermineOutcome()
	rep.Outcome = out

	if claim.Side != "" && !strings.EqualFold(claim.Side, string(out.Side)) {
		rep.Mismatches = append(rep.Mismatches, Mismatch{Field: "side", Claimed: claim.Side, Actual: string(out.Side)})
	}
	checkDigest(rep, claim.Digest, out.Digest)
	return nil
}

func verifySquares(rep *Report, seeds engine.Seeds, conv engine.FloatConvention, r Round) error {
	difficulty := r.Difficulty
	if r.DifficultyName != "" {
		d, err := games.ParseDifficulty(r.DifficultyName)
		if err != nil {
			return err
		}
		difficulty = d
	}

	s, err := games.NewSquares(seeds, games.SquaresConfig{Difficulty: difficulty, Squares: r.Squares}, conv)
	if err != nil {
		return err
	}

	uncovered := r.Squares
	if r.Uncovered != nil {
		uncovered = *r.Uncovered
	}
	board, err := s.Board(uncovered)
	if err != nil {
		return err
	}
	rep.Outcome = board

	if r.Claim.FailedAt != nil && *r.Claim.FailedAt != board.FailedAt {
		rep.Mismatches = append(rep.Mismatches, Mismatch{
			Field:   "failed_at",
			Claimed: strconv.Itoa(*r.Claim.FailedAt),
			Actual:  strconv.Itoa(board.FailedAt),
		})
	}
	if len(r.Claim.Tiles) > len(board.Tiles) {
		return engine.InvalidInput("claim.tiles", "lists more tiles than the board has")
	}
	for i, claimed := range r.Claim.Tiles {
		if claimed != board.Tiles[i].Success {
			rep.Mismatches = append(rep.Mismatches, Mismatch{
				Field:   "tiles[" + strconv.Itoa(i) + "]",
				Claimed: strconv.FormatBool(claimed),
				Actual:  strconv.FormatBool(board.Tiles[i].Success),
			})
		}
	}
	if len(board.Tiles) > 0 {
		checkDigest(rep, r.Claim.Digest, board.Tiles[0].Digest)
	}
	return nil
}

func verifyBlackjack(rep *Report, seeds engine.Seeds, claim Claim) error {
	deal, err := games.DealBlackjack(seeds)
	if err != nil {
		return err
	}
	rep.Outcome = deal

	checkCards(rep, "player", claim.Player, deal.Player)
	checkCards(rep, "dealer", claim.Dealer, deal.Dealer)
	checkCards(rep, "deck", claim.Deck, deal.Deck)
	return nil
}

func checkDigest(rep *Report, claimed, actual string) {
	if claimed != "" && !strings.EqualFold(strings.TrimSpace(claimed), actual) {
		rep.Mismatches = append(rep.Mismatches, Mismatch{Field: "digest", Claimed: claimed, Actual: actual})
	}
}

func checkCards(rep *Report, field string, claimed, actual []string) {
	if len(claimed) == 0 {
		return
	}
	norm := make([]string, len(claimed))
	for i, c := range claimed {
		card, err := games.ParseCard(c)
		if err != nil {
			norm[i] = c
			continue
		}
		norm[i] = card.String()
	}
	if !slices.Equal(norm, actual) {
		rep.Mismatches = append(rep.Mismatches, Mismatch{
			Field:   field,
			Claimed: strings.Join(claimed, " "),
			Actual:  strings.Join(actual, " "),
		})
	}
}
