package games

import (
	"fmt"
	"strings"
)

// Card represents a playing card with rank and suit letter.
type Card struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

// String returns the token form used by the verifiers, like "10H" or "AS".
func (c Card) String() string {
	return c.Rank + c.Suit
}

// Symbol renders the card with its suit glyph, like "10♥".
func (c Card) Symbol() string {
	if g, ok := suitSymbols[c.Suit]; ok {
		return c.Rank + g
	}
	return c.String()
}

// IsRed reports hearts and diamonds.
func (c Card) IsRed() bool {
	return c.Suit == "H" || c.Suit == "D"
}

// Suits in base-deck order.
var cardSuits = []string{"S", "H", "D", "C"}

// Ranks in base-deck order.
var cardRanks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

var suitSymbols = map[string]string{
	"S": "♠", "H": "♥", "D": "♦", "C": "♣",
}

// The unshuffled deck, suit-major: AS, 2S, ..., KS, AH, ..., KC.
var baseDeck [52]Card

func init() {
	i := 0
	for _, suit := range cardSuits {
		for _, rank := range cardRanks {
			baseDeck[i] = Card{Rank: rank, Suit: suit}
			i++
		}
	}
}

// BaseDeck returns a fresh copy of the unshuffled deck.
func BaseDeck() Deck {
	d := make(Deck, len(baseDeck))
	copy(d, baseDeck[:])
	return d
}

// ParseCard parses a token such as "QD" or "10c".
func ParseCard(token string) (Card, error) {
	t := strings.ToUpper(strings.TrimSpace(token))
	if len(t) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", token)
	}
	c := Card{Rank: t[:len(t)-1], Suit: t[len(t)-1:]}
	if _, ok := suitSymbols[c.Suit]; !ok || blackjackCardValue(c.Rank) == 0 {
		return Card{}, fmt.Errorf("invalid card %q", token)
	}
	return c, nil
}

// blackjackCardValue returns the blackjack point value of a rank.
// 2-10: face value, J/Q/K: 10, A: 11
func blackjackCardValue(rank string) int {
	switch rank {
	case "A":
		return 11
	case "J", "Q", "K", "10":
		return 10
	case "2", "3", "4", "5", "6", "7", "8", "9":
		return int(rank[0] - '0')
	default:
		return 0
	}
}

// HandValue totals a hand with aces as 11. When the total busts and the
// hand holds an ace, 10 is subtracted once; a second ace is not reduced,
// so AS+AH counts 12 and AS+AH+KD counts 22.
func HandValue(cards []Card) int {
	total := 0
	hasAce := false
	for _, c := range cards {
		total += blackjackCardValue(c.Rank)
		if c.Rank == "A" {
			hasAce = true
		}
	}
	if total > 21 && hasAce {
		total -= 10
	}
	return total
}

// Deck is an ordered sequence of cards.
type Deck []Card

// Tokens returns the deck as card tokens.
func (d Deck) Tokens() []string {
	out := make([]string, len(d))
	for i, c := range d {
		out[i] = c.String()
	}
	return out
}

// IsPermutation reports whether d holds every base card exactly once.
func (d Deck) IsPermutation() bool {
	if len(d) != len(baseDeck) {
		return false
	}
	seen := make(map[Card]bool, len(d))
	for _, c := range d {
		if seen[c] || blackjackCardValue(c.Rank) == 0 {
			return false
		}
		if _, ok := suitSymbols[c.Suit]; !ok {
			return false
		}
		seen[c] = true
	}
	return true
}
