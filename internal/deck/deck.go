// Package deck tracks a drafted deck: offered sets, picks and per-game draws.
//
// A Deck is not safe for concurrent use; the stream manager owns it and
// mutates it under its state mutex.
package deck

import (
	"fmt"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// Size is the number of picks in a complete deck
const Size = 30

// NoHero marks a deck whose class is not known yet
const NoHero = -1

// Set is one offer of three cards
type Set [3]types.Card

// IDs returns the card ids of the offer
func (s Set) IDs() [3]int {
	return [3]int{s[0].ID, s[1].ID, s[2].ID}
}

// Deck is the drafted deck and the draw bookkeeping of the current game
type Deck struct {
	HeroClass int

	sets  []Set
	picks []types.Card
	draws map[int]int
}

// New returns an empty deck
func New() *Deck {
	d := &Deck{}
	d.Clear()
	return d
}

// Clear empties all histories and draw counts and forgets the hero class
func (d *Deck) Clear() {
	d.HeroClass = NoHero
	d.sets = nil
	d.picks = nil
	d.draws = make(map[int]int)
}

// AddSet appends an offer to the set history
func (d *Deck) AddSet(a, b, c types.Card) {
	d.sets = append(d.sets, Set{a, b, c})
}

// AddPickedCard appends card to the pick history. Each pick must follow its
// own offer.
func (d *Deck) AddPickedCard(card types.Card) error {
	if d.IsComplete() {
		return fmt.Errorf("deck already has %d picks", Size)
	}
	if len(d.picks) >= len(d.sets) {
		return fmt.Errorf("pick %d has no matching offer (%d offers)", len(d.picks)+1, len(d.sets))
	}
	d.picks = append(d.picks, card)
	return nil
}

// AddUnknownPick records a pick that happened without being observed
func (d *Deck) AddUnknownPick() error {
	return d.AddPickedCard(types.UnknownCard)
}

// IsComplete reports whether all picks have been made
func (d *Deck) IsComplete() bool {
	return len(d.picks) == Size
}

// CardCount is the number of picks made so far, missed ones included
func (d *Deck) CardCount() int {
	return len(d.picks)
}

// MissedPicks counts picks recorded as unknown
func (d *Deck) MissedPicks() int {
	n := 0
	for _, p := range d.picks {
		if p.IsUnknown() {
			n++
		}
	}
	return n
}

// Sets returns a copy of the set history
func (d *Deck) Sets() []Set {
	return append([]Set(nil), d.sets...)
}

// Picks returns a copy of the pick history
func (d *Deck) Picks() []types.Card {
	return append([]types.Card(nil), d.picks...)
}

// LastSet returns the most recent offer
func (d *Deck) LastSet() (Set, bool) {
	if len(d.sets) == 0 {
		return Set{}, false
	}
	return d.sets[len(d.sets)-1], true
}

// SetPick replaces the pick at index i (0-based)
func (d *Deck) SetPick(i int, card types.Card) error {
	if i < 0 || i >= len(d.picks) {
		return fmt.Errorf("pick %d out of range (deck has %d picks)", i+1, len(d.picks))
	}
	d.picks[i] = card
	return nil
}

// ResetDraws zeroes every draw count
func (d *Deck) ResetDraws() {
	d.draws = make(map[int]int)
}

// DrawCount returns how often id was drawn in the current game
func (d *Deck) DrawCount(id int) int {
	return d.draws[id]
}

// Draw records that card was drawn. With buildFromDraws a card drawn more
// often than the deck holds it is added to the deck, filling a missed pick
// when there is one. Reports whether the deck composition changed.
func (d *Deck) Draw(card types.Card, buildFromDraws bool) bool {
	if card.IsUnknown() {
		return false
	}
	d.draws[card.ID]++

	if !buildFromDraws || d.draws[card.ID] <= d.count(card.ID) || d.IsComplete() {
		return false
	}

	for i, p := range d.picks {
		if p.IsUnknown() {
			d.picks[i] = card
			return true
		}
	}

	// an offer awaiting its pick keeps its slot
	if len(d.sets) > len(d.picks) {
		return false
	}

	// keep |picks| <= |sets| with a synthetic offer
	d.sets = append(d.sets, Set{card, types.UnknownCard, types.UnknownCard})
	d.picks = append(d.picks, card)
	return true
}

func (d *Deck) count(id int) int {
	n := 0
	for _, p := range d.picks {
		if p.ID == id {
			n++
		}
	}
	return n
}
