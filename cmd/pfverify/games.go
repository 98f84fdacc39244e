package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/games"
	"github.com/clarkflip/pf-verify/internal/insight"
)

func newCommitCmd(a *app) *cobra.Command {
	var published string
	cmd := &cobra.Command{
		Use:   "commit <server-seed>",
		Short: "Print the SHA-256 commitment of a server seed, or check it against --hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := args[0]
			if seed == "" {
				return engine.InvalidInput("server_seed", "must not be empty")
			}
			hash := engine.ServerHash(seed)
			out := struct {
				ServerHash string `json:"server_hash"`
				Published  string `json:"published,omitempty"`
				Match      *bool  `json:"match,omitempty"`
			}{ServerHash: hash, Published: published}
			if published != "" {
				ok := engine.VerifyCommitment(seed, published)
				out.Match = &ok
			}

			err := a.emit(cmd.OutOrStdout(), out, func(w io.Writer) error {
				fmt.Fprintf(w, "Server hash: %s\n", hash)
				if out.Match != nil {
					fmt.Fprintf(w, "Published:   %s\n", published)
					fmt.Fprintf(w, "Match:       %s\n", yesNo(*out.Match))
				}
				return nil
			})
			if err != nil {
				return err
			}
			if out.Match != nil && !*out.Match {
				return fmt.Errorf("server seed does not match the published hash")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&published, "hash", "", "published hash to check the seed against")
	return cmd
}

func newCoinflipCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "coinflip <server-seed> <stain>",
		Short: "Recompute a coinflip",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := games.NewCoinflip(engine.Seeds{Server: args[0], Stain: args[1]}, a.conv)
			if err != nil {
				return err
			}
			out := c.DetermineOutcome()
			return a.emit(cmd.OutOrStdout(), struct {
				ServerHash string                `json:"server_hash"`
				Convention string                `json:"convention"`
				Outcome    games.CoinflipOutcome `json:"outcome"`
			}{c.ServerHash(), string(a.conv), out}, func(w io.Writer) error {
				text, err := insight.Coinflip(out, a.conv)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Server hash: %s\n%s", c.ServerHash(), text)
				return nil
			})
		},
	}
}

type squaresFlags struct {
	difficulty string
	squares    int
	uncovered  int
	all        bool
}

func newSquaresCmd(a *app) *cobra.Command {
	f := squaresFlags{}
	cmd := &cobra.Command{
		Use:   "squares <server-seed> <stain>",
		Short: "Recompute a squares board",
		Long: "Recompute a squares board. By default tiles are uncovered in order until the\n" +
			"first failure. --uncovered classifies a board the player stopped on and\n" +
			"--all evaluates every tile.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDifficulty(f.difficulty)
			if err != nil {
				return err
			}
			sq, err := games.NewSquares(
				engine.Seeds{Server: args[0], Stain: args[1]},
				games.SquaresConfig{Difficulty: d, Squares: f.squares},
				a.conv,
			)
			if err != nil {
				return err
			}

			var board games.BoardResult
			switch {
			case cmd.Flags().Changed("uncovered"):
				board, err = sq.Board(f.uncovered)
			case f.all:
				board, err = sq.Board(f.squares)
			default:
				board = sq.Play()
			}
			if err != nil {
				return err
			}

			return a.emit(cmd.OutOrStdout(), struct {
				ServerHash string            `json:"server_hash"`
				Convention string            `json:"convention"`
				Board      games.BoardResult `json:"board"`
			}{sq.ServerHash(), string(a.conv), board}, func(w io.Writer) error {
				text, err := insight.Squares(board, a.conv)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Server hash: %s\n%s", sq.ServerHash(), text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.difficulty, "difficulty", "easy", "preset (easy, medium, hard, expert) or overall success probability in (0, 1)")
	cmd.Flags().IntVar(&f.squares, "squares", games.BrowserBoardSquares, "number of tiles on the board")
	cmd.Flags().IntVar(&f.uncovered, "uncovered", 0, "tiles the player uncovered")
	cmd.Flags().BoolVar(&f.all, "all", false, "evaluate every tile instead of stopping at the first failure")
	return cmd
}

// parseDifficulty accepts a preset name or a probability.
func parseDifficulty(s string) (float64, error) {
	d, err := games.ParseDifficulty(s)
	if err == nil {
		return d, nil
	}
	if v, perr := strconv.ParseFloat(s, 64); perr == nil {
		return v, nil
	}
	return 0, err
}

func newBlackjackCmd(a *app) *cobra.Command {
	var symbols bool
	cmd := &cobra.Command{
		Use:   "blackjack <server-seed> <stain>",
		Short: "Recompute a blackjack shuffle and the opening hands",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds := engine.Seeds{Server: args[0], Stain: args[1]}
			deal, err := games.DealBlackjack(seeds)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), deal, func(w io.Writer) error {
				opts := insight.Options{Symbols: symbols}
				text, err := insight.Blackjack(seeds, deal, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Server hash: %s\n%sRemaining shoe: [%s]\n", deal.ServerHash, text, insight.Cards(deal.Shoe, opts))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&symbols, "symbols", false, "print suits as symbols")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
