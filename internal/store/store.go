// Package store persists the per-streamer durable state: the announced deck
// message, feature flags, score and the encoded deck.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/config"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// ErrNotFound is returned by Load when no state was saved for a streamer
var ErrNotFound = errors.New("state not found")

// Persistent key names, shared by every backend
const (
	KeyDeckMsg       = "state.deck_msg"
	KeyInternalState = "state.internal_state"
	KeyWins          = "state.current_wins"
	KeyLosses        = "state.current_losses"
	KeyDeck          = "state.data.deck"
)

// State is one persisted record. A nil field was absent or unreadable and
// leaves the caller's current value untouched.
type State struct {
	DeckMsg       *string
	InternalState *types.Feature
	Wins          *int
	Losses        *int
	EncodedDeck   *string
}

// Snapshot builds a fully populated State for saving
func Snapshot(deckMsg string, internal types.Feature, wins, losses int, encodedDeck string) State {
	return State{
		DeckMsg:       &deckMsg,
		InternalState: &internal,
		Wins:          &wins,
		Losses:        &losses,
		EncodedDeck:   &encodedDeck,
	}
}

// Store loads and saves State keyed by streamer identity
type Store interface {
	Load(ctx context.Context, streamer string) (State, error)
	Save(ctx context.Context, streamer string, state State) error
	Close() error
}

// Open creates the backend selected by cfg
func Open(cfg config.StoreConfig, statePathFormat string) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(statePathFormat), nil
	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

func ptr[T any](v T) *T {
	return &v
}

func validCount(n int) bool {
	return n >= 0
}

// stateFromFields parses hash fields, dropping malformed numbers
func stateFromFields(fields map[string]string) State {
	var st State
	if v, ok := fields[KeyDeckMsg]; ok {
		st.DeckMsg = ptr(v)
	}
	if v, ok := fields[KeyInternalState]; ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			st.InternalState = ptr(types.Feature(n))
		} else {
			slog.Warn("malformed state field", "field", KeyInternalState, "value", v)
		}
	}
	st.Wins = parseCount(fields, KeyWins)
	st.Losses = parseCount(fields, KeyLosses)
	if v, ok := fields[KeyDeck]; ok {
		st.EncodedDeck = ptr(v)
	}
	return st
}

func parseCount(fields map[string]string, key string) *int {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || !validCount(n) {
		slog.Warn("malformed state field", "field", key, "value", v)
		return nil
	}
	return &n
}
