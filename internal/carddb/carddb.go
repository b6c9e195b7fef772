// Package carddb provides read-only lookup of cards and heroes by id.
package carddb

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// DB is an immutable card and hero index. Safe for concurrent use.
type DB struct {
	cards  map[int]types.Card
	heroes map[int]types.Hero
}

type document struct {
	Heroes []types.Hero `yaml:"heroes"`
	Cards  []types.Card `yaml:"cards"`
}

// Load reads a YAML card database from path
func Load(path string) (*DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card database: %w", err)
	}

	db, err := Parse(data)
	if err != nil {
		return nil, err
	}

	slog.Info("card database loaded",
		"path", path,
		"cards", len(db.cards),
		"heroes", len(db.heroes),
	)
	return db, nil
}

// Parse decodes a YAML card database
func Parse(data []byte) (*DB, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse card database: %w", err)
	}
	return New(doc.Heroes, doc.Cards)
}

// New builds a database from explicit slices, rejecting duplicate ids
func New(heroes []types.Hero, cards []types.Card) (*DB, error) {
	db := &DB{
		cards:  make(map[int]types.Card, len(cards)),
		heroes: make(map[int]types.Hero, len(heroes)),
	}
	for _, h := range heroes {
		if _, dup := db.heroes[h.ID]; dup {
			return nil, fmt.Errorf("duplicate hero id %d", h.ID)
		}
		db.heroes[h.ID] = h
	}
	for _, c := range cards {
		if c.ID < 0 {
			return nil, fmt.Errorf("card %q has negative id %d", c.Name, c.ID)
		}
		if _, dup := db.cards[c.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %d", c.ID)
		}
		db.cards[c.ID] = c
	}
	return db, nil
}

// Card returns the card with id. Unknown ids resolve to a placeholder
// carrying the id so that the deck never loses track of a recognition.
func (db *DB) Card(id int) types.Card {
	if id == types.NoCard {
		return types.UnknownCard
	}
	if c, ok := db.cards[id]; ok {
		return c
	}
	return types.Card{ID: id, Name: fmt.Sprintf("#%03d", id)}
}

// Hero returns the hero with id, or a placeholder
func (db *DB) Hero(id int) types.Hero {
	if h, ok := db.heroes[id]; ok {
		return h
	}
	return types.Hero{ID: id, Name: fmt.Sprintf("hero#%d", id)}
}

// HeroByName finds a hero by case-insensitive name
func (db *DB) HeroByName(name string) (types.Hero, bool) {
	for _, h := range db.heroes {
		if strings.EqualFold(h.Name, name) {
			return h, true
		}
	}
	return types.Hero{}, false
}

// HasCard reports whether id is a known card
func (db *DB) HasCard(id int) bool {
	_, ok := db.cards[id]
	return ok
}
