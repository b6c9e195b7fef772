package core

import (
	"time"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// GameStatus describes the game in progress
type GameStatus struct {
	Player        string `json:"player"`
	Opponent      string `json:"opponent"`
	FirstOrSecond string `json:"first_or_second"`
	End           string `json:"end"`
	LatestDraw    int    `json:"latest_draw"`
}

// Status is a snapshot of the manager for the status endpoint
type Status struct {
	Status           string                         `json:"status"` // "running", "paused", "stopped"
	Streamer         string                         `json:"streamer"`
	UptimeSeconds    int64                          `json:"uptime_seconds"`
	Features         []string                       `json:"features"`
	DeckArmed        string                         `json:"deck_armed"`
	GameArmed        string                         `json:"game_armed"`
	DrawArmed        string                         `json:"draw_armed"`
	Wins             int                            `json:"wins"`
	Losses           int                            `json:"losses"`
	DeckCards        int                            `json:"deck_cards"`
	DeckComplete     bool                           `json:"deck_complete"`
	DeckMessage      string                         `json:"deck_message,omitempty"`
	ShouldUpdateDeck bool                           `json:"should_update_deck"`
	PassedFrames     int64                          `json:"passed_frames"`
	Game             GameStatus                     `json:"game"`
	Workers          map[string]types.WorkerMetrics `json:"workers,omitempty"`
}

// Running reports whether the pipeline is running
func (m *Manager) Running() bool {
	return m.running.Load()
}

// Status returns the current state of the manager
func (m *Manager) Status() Status {
	m.stateMu.Lock()
	st := Status{
		Streamer:         m.opts.Streamer,
		DeckArmed:        m.deckState.String(),
		GameArmed:        m.gameState.String(),
		DrawArmed:        m.drawState.String(),
		Wins:             m.wins,
		Losses:           m.losses,
		DeckCards:        m.deck.CardCount(),
		DeckComplete:     m.deck.IsComplete(),
		DeckMessage:      m.deckMsg,
		ShouldUpdateDeck: m.shouldUpdateDeck,
		Game: GameStatus{
			Player:        m.game.player,
			Opponent:      m.game.opponent,
			FirstOrSecond: m.game.firstOrSecond,
			End:           m.game.end,
			LatestDraw:    m.draws.latestDraw,
		},
	}
	for _, f := range types.Features() {
		if m.internal&f != 0 {
			st.Features = append(st.Features, f.String())
		}
	}
	paused := m.internal&types.FeatureEnableAll == 0
	m.stateMu.Unlock()

	st.PassedFrames = m.passedFrames.Load()
	st.Workers = m.WorkerMetrics()

	m.metricsMu.Lock()
	started := m.started
	m.metricsMu.Unlock()

	switch {
	case !m.Running():
		st.Status = "stopped"
	case paused:
		st.Status = "paused"
	default:
		st.Status = "running"
	}
	if !started.IsZero() {
		st.UptimeSeconds = int64(time.Since(started).Seconds())
	}
	return st
}
