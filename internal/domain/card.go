package domain

// CardType discriminates the two card variants
type CardType string

const (
	CardTypePoints CardType = "POINTS"
	CardTypeAction CardType = "ACTION"
)

// ActionType represents the effect of an action card
type ActionType string

const (
	ActionBlock      ActionType = "BLOCK"
	ActionSteal      ActionType = "STEAL"
	ActionDoubleDown ActionType = "DOUBLE_DOWN"
)

// Card represents a single card in a session's deck. A card is immutable
// once built except for the IsUsed flag, which is set when the card is drawn.
type Card struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       CardType   `json:"type"`
	Value      int        `json:"value"`
	ActionType ActionType `json:"action_type,omitempty"`
	IsUsed     bool       `json:"is_used"`
}

// Deck is the ordered draw pile of a session. The order is fixed at build
// time and is the draw order; the deck is never reshuffled.
type Deck []Card

// DeckSize is the number of cards in the fixed catalog.
const DeckSize = 17

// Shuffler supplies the random permutation for deck building. *rand.Rand
// satisfies it, which lets tests inject a seeded source.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// ShuffleFunc adapts a plain shuffle function to the Shuffler interface.
type ShuffleFunc func(n int, swap func(i, j int))

// Shuffle implements Shuffler.
func (f ShuffleFunc) Shuffle(n int, swap func(i, j int)) { f(n, swap) }

type catalogEntry struct {
	count      int
	name       string
	cardType   CardType
	value      int
	actionType ActionType
}

// The fixed card catalog: 17 cards total.
var catalog = []catalogEntry{
	{count: 5, name: "Small Points", cardType: CardTypePoints, value: 2},
	{count: 3, name: "Medium Points", cardType: CardTypePoints, value: 5},
	{count: 2, name: "Large Points", cardType: CardTypePoints, value: 8},
	{count: 3, name: "Block", cardType: CardTypeAction, value: 1, actionType: ActionBlock},
	{count: 2, name: "Steal", cardType: CardTypeAction, value: 3, actionType: ActionSteal},
	{count: 2, name: "Double Down", cardType: CardTypeAction, value: 2, actionType: ActionDoubleDown},
}

// NewDeck builds the fixed 17-card multiset and applies one uniform shuffle
// using the provided source. newID assigns an identifier to every card.
func NewDeck(rng Shuffler, newID func() string) Deck {
	deck := make(Deck, 0, DeckSize)
	for _, entry := range catalog {
		for i := 0; i < entry.count; i++ {
			deck = append(deck, Card{
				ID:         newID(),
				Name:       entry.name,
				Type:       entry.cardType,
				Value:      entry.value,
				ActionType: entry.actionType,
			})
		}
	}

	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	return deck
}

// NextUnused returns the index of the first card in draw order that has not
// been played yet. The second return is false when the deck is exhausted.
func (d Deck) NextUnused() (int, bool) {
	for i := range d {
		if !d[i].IsUsed {
			return i, true
		}
	}
	return 0, false
}

// Remaining counts the cards that have not been drawn.
func (d Deck) Remaining() int {
	n := 0
	for i := range d {
		if !d[i].IsUsed {
			n++
		}
	}
	return n
}
