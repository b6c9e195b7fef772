package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/deck"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/store"
)

// LoadState restores the persisted state of the streamer. A missing record
// keeps the defaults; absent fields keep their current values and a deck
// that cannot be decoded is replaced by an empty one.
func (m *Manager) LoadState(ctx context.Context) error {
	if m.deps.Store == nil {
		return fmt.Errorf("no state store configured")
	}

	st, err := m.deps.Store.Load(ctx, m.opts.Streamer)
	if errors.Is(err, store.ErrNotFound) {
		slog.Info("no state to load, using default values", "streamer", m.opts.Streamer)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if st.DeckMsg != nil {
		m.deckMsg = *st.DeckMsg
	}
	if st.InternalState != nil {
		m.internal = *st.InternalState
		m.syncDrawArming()
	}
	if st.Wins != nil {
		m.wins = *st.Wins
	}
	if st.Losses != nil {
		m.losses = *st.Losses
	}
	if st.EncodedDeck != nil && *st.EncodedDeck != "" {
		d, err := deck.Decode(m.deps.DB, *st.EncodedDeck)
		if err != nil {
			slog.Warn("failed to decode saved deck, starting with an empty deck", "error", err)
			d = deck.New()
		}
		m.deck = d
		m.deckGen++
		m.shouldUpdateDeck = true
	}

	slog.Info("state loaded",
		"streamer", m.opts.Streamer,
		"features", uint32(m.internal),
		"wins", m.wins,
		"losses", m.losses,
		"deck_cards", m.deck.CardCount(),
	)
	return nil
}

// SaveState persists the durable state of the streamer
func (m *Manager) SaveState(ctx context.Context) error {
	if m.deps.Store == nil {
		return fmt.Errorf("no state store configured")
	}

	m.stateMu.Lock()
	encoded := ""
	if len(m.deck.Sets()) > 0 || m.deck.HeroClass != deck.NoHero {
		encoded = m.deck.Encode()
	}
	st := store.Snapshot(m.deckMsg, m.internal, m.wins, m.losses, encoded)
	m.stateMu.Unlock()

	slog.Info("attempting to save state", "streamer", m.opts.Streamer)
	if err := m.deps.Store.Save(ctx, m.opts.Streamer, st); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	slog.Info("state saved", "streamer", m.opts.Streamer)
	return nil
}
