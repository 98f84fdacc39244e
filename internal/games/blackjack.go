package games

import (
	"fmt"

	"github.com/clarkflip/pf-verify/internal/engine"
)

// BlackjackState tracks how far a Blackjack verifier has progressed.
type BlackjackState int

const (
	StateUninitialized BlackjackState = iota
	StateSeedSet
	StateStainSet
	StateDeckGenerated
	StateHandsDealt
)

func (s BlackjackState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSeedSet:
		return "seed_set"
	case StateStainSet:
		return "stain_set"
	case StateDeckGenerated:
		return "deck_generated"
	case StateHandsDealt:
		return "hands_dealt"
	default:
		return fmt.Sprintf("BlackjackState(%d)", int(s))
	}
}

// ShuffleTrace records the random choices behind a shuffle. Swaps[k] is
// the swap target for loop index 51-k.
type ShuffleTrace struct {
	Swaps         []int `json:"swaps"`
	Extensions    []int `json:"extensions"`
	BytesConsumed int   `json:"bytes_consumed"`
}

// ShuffleDeck runs a Fisher-Yates pass from the last position down to 1.
// Each swap target is v mod (i+1) for the next big-endian word v of the
// seed's byte stream, computed on the full 64-bit value.
func ShuffleDeck(seeds engine.Seeds) (Deck, ShuffleTrace) {
	deck := BaseDeck()
	stream := engine.NewByteStream(seeds)
	trace := ShuffleTrace{Swaps: make([]int, 0, len(deck)-1)}

	for i := len(deck) - 1; i > 0; i-- {
		v := stream.Uint64At(i)
		j := int(v % uint64(i+1))
		deck[i], deck[j] = deck[j], deck[i]
		trace.Swaps = append(trace.Swaps, j)
	}

	trace.Extensions = stream.Extensions()
	trace.BytesConsumed = stream.Cursor()
	return deck, trace
}

// Hands are the two opening hands, dealt alternately from the top.
type Hands struct {
	Player [2]Card `json:"player"`
	Dealer [2]Card `json:"dealer"`
}

// PlayerValue is the blackjack total of the player's hand.
func (h Hands) PlayerValue() int { return HandValue(h.Player[:]) }

// DealerValue is the blackjack total of the dealer's hand.
func (h Hands) DealerValue() int { return HandValue(h.Dealer[:]) }

// Blackjack recomputes a deal. The zero value is uninitialized; set the
// server seed and then the stain, or use NewBlackjack.
type Blackjack struct {
	serverSeed string
	serverHash string
	stain      string
	state      BlackjackState
	deck       Deck
	trace      ShuffleTrace
	hands      Hands
}

// NewBlackjack returns a verifier with both seeds set.
func NewBlackjack(seeds engine.Seeds) (*Blackjack, error) {
	if err := seeds.Validate(); err != nil {
		return nil, err
	}
	b := &Blackjack{}
	b.SetServerSeed(seeds.Server)
	if err := b.SetStain(seeds.Stain); err != nil {
		return nil, err
	}
	return b, nil
}

// State reports the current lifecycle state.
func (b *Blackjack) State() BlackjackState { return b.state }

// SetServerSeed stores the seed and returns its commitment. Any deck or
// hands derived from a previous seed are discarded.
func (b *Blackjack) SetServerSeed(seed string) string {
	b.serverSeed = seed
	b.serverHash = engine.ServerHash(seed)
	b.stain = ""
	b.deck, b.trace, b.hands = nil, ShuffleTrace{}, Hands{}
	b.state = StateSeedSet
	return b.serverHash
}

// SetStain stores the stain. The server seed must be set first.
func (b *Blackjack) SetStain(stain string) error {
	if b.state < StateSeedSet {
		return engine.InvalidInput("stain", "set before the server seed")
	}
	b.stain = stain
	b.deck, b.trace, b.hands = nil, ShuffleTrace{}, Hands{}
	b.state = StateStainSet
	return nil
}

// ServerHash is the commitment for the current server seed.
func (b *Blackjack) ServerHash() string { return b.serverHash }

func (b *Blackjack) seeds() engine.Seeds {
	return engine.Seeds{Server: b.serverSeed, Stain: b.stain}
}

// GenerateDeck shuffles the deck. Repeated calls return the same order.
func (b *Blackjack) GenerateDeck() (Deck, error) {
	if b.state < StateStainSet {
		return nil, engine.InvalidInput("deck", "requires server seed and stain, state is "+b.state.String())
	}
	if err := b.seeds().Validate(); err != nil {
		return nil, err
	}
	if b.state < StateDeckGenerated {
		b.deck, b.trace = ShuffleDeck(b.seeds())
		b.state = StateDeckGenerated
	}
	return b.Deck(), nil
}

// DealHands deals player [D0, D2] and dealer [D1, D3], generating the
// deck first when needed.
func (b *Blackjack) DealHands() (Hands, error) {
	if b.state < StateDeckGenerated {
		if _, err := b.GenerateDeck(); err != nil {
			return Hands{}, err
		}
	}
	b.hands = Hands{
		Player: [2]Card{b.deck[0], b.deck[2]},
		Dealer: [2]Card{b.deck[1], b.deck[3]},
	}
	b.state = StateHandsDealt
	return b.hands, nil
}

// Deck returns a copy of the shuffled deck, nil before generation.
func (b *Blackjack) Deck() Deck {
	if b.deck == nil {
		return nil
	}
	d := make(Deck, len(b.deck))
	copy(d, b.deck)
	return d
}

// Trace returns the shuffle record of the generated deck.
func (b *Blackjack) Trace() ShuffleTrace { return b.trace }

// RemainingShoe is the deck after the four dealt cards.
func (b *Blackjack) RemainingShoe() (Deck, error) {
	if b.state < StateHandsDealt {
		return nil, engine.InvalidInput("shoe", "hands have not been dealt")
	}
	d := make(Deck, len(b.deck)-4)
	copy(d, b.deck[4:])
	return d, nil
}

// BlackjackDeal is the full recomputed deal as reported to users.
type BlackjackDeal struct {
	ServerHash  string       `json:"server_hash"`
	Deck        []string     `json:"deck"`
	Player      []string     `json:"player"`
	Dealer      []string     `json:"dealer"`
	PlayerValue int          `json:"player_value"`
	DealerValue int          `json:"dealer_value"`
	Shoe        []string     `json:"shoe"`
	Trace       ShuffleTrace `json:"trace"`
}

// DealBlackjack runs the whole lifecycle for seeds.
func DealBlackjack(seeds engine.Seeds) (BlackjackDeal, error) {
	b, err := NewBlackjack(seeds)
	if err != nil {
		return BlackjackDeal{}, err
	}
	hands, err := b.DealHands()
	if err != nil {
		return BlackjackDeal{}, err
	}
	shoe, _ := b.RemainingShoe()
	return BlackjackDeal{
		ServerHash:  b.ServerHash(),
		Deck:        b.Deck().Tokens(),
		Player:      Deck(hands.Player[:]).Tokens(),
		Dealer:      Deck(hands.Dealer[:]).Tokens(),
		PlayerValue: hands.PlayerValue(),
		DealerValue: hands.DealerValue(),
		Shoe:        shoe.Tokens(),
		Trace:       b.Trace(),
	}, nil
}

// BlackjackGame adapts Blackjack to the registry.
type BlackjackGame struct{}

// Spec returns metadata about the blackjack deal.
func (g *BlackjackGame) Spec() GameSpec {
	return GameSpec{ID: "blackjack", Name: "Blackjack", MetricLabel: "player_value"}
}

// Evaluate deals the opening hands. Blackjack consumes no floats, so the
// convention is ignored.
func (g *BlackjackGame) Evaluate(seeds engine.Seeds, _ Params) (GameResult, error) {
	deal, err := DealBlackjack(seeds)
	if err != nil {
		return GameResult{}, err
	}
	return GameResult{Metric: float64(deal.PlayerValue), MetricLabel: "player_value", Details: deal}, nil
}
