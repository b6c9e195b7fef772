// Package core turns recognition results into draft, game and draw
// bookkeeping and the chat/API side effects that go with them.
package core

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/config"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/deck"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/store"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// Debug level bits
const (
	DebugTiming    = 1
	DebugDisplay   = 2
	DebugSnapshots = 4
)

// APIFormats are the external API patterns with positional placeholders
type APIFormats struct {
	SubmitDeck string // {0} hero class, {1} encoded deck
	DrawCard   string // {0} zero padded card id
	ResetDraws string
}

// Options holds the tunables of a Manager
type Options struct {
	Streamer     string
	StreamerName string

	Threads                int
	PassedFramesThreshold  int64
	PassedCardRecognitions int
	PollRetryCount         int

	DebugLevel  int
	SeekStart   bool
	StreamIndex int
	StreamPos   int64

	API APIFormats
}

// OptionsFromConfig extracts Manager options from a validated config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Streamer:               cfg.Stream.Streamer,
		StreamerName:           cfg.Stream.StreamerName,
		Threads:                cfg.Recognition.Threads,
		PassedFramesThreshold:  cfg.Recognition.PassedFramesThreshold,
		PassedCardRecognitions: cfg.Recognition.PassedCardRecognitions,
		PollRetryCount:         cfg.Recognition.PollRetryCount,
		DebugLevel:             cfg.Debugging.DebugLevel,
		SeekStart:              cfg.Debugging.Enabled,
		StreamIndex:            cfg.Debugging.StreamIndex,
		StreamPos:              cfg.Debugging.StreamPos,
		API: APIFormats{
			SubmitDeck: cfg.Site.SubmitDeck,
			DrawCard:   cfg.Site.DrawCard,
			ResetDraws: cfg.Site.ResetDraws,
		},
	}
}

// Deps are the collaborators of a Manager. Images may be nil.
type Deps struct {
	DB      CardDB
	Bot     Bot
	Site    Site
	Store   store.Store
	Effects Effects
	Images  ImageSaver
}

type gameInfo struct {
	player        string
	opponent      string
	firstOrSecond string
	end           string
}

type drawInfo struct {
	initialDraw []int
	latestDraw  int
}

type debounce struct {
	id    int
	count int
}

// Manager owns the deck, the armed recognizer sets, the score and the
// feature flags. Everything below stateMu is guarded by it.
type Manager struct {
	opts Options
	deps Deps

	processor CommandProcessor

	stateMu          sync.Mutex
	deck             *deck.Deck
	deckState        types.KindSet
	gameState        types.KindSet
	drawState        types.KindSet
	internal         types.Feature
	deckMsg          string
	deckGen          uint64 // bumped whenever the deck is replaced
	game             gameInfo
	draws            drawInfo
	wins             int
	losses           int
	currentCard      debounce
	shouldUpdateDeck bool

	// frames seen since the last accepted draw
	passedFrames atomic.Int64

	started   time.Time
	running   atomic.Bool
	metricsMu sync.Mutex
	workers   map[string]*types.WorkerMetrics
}

// New creates a Manager in its initial state: draft class and card picks
// armed, game class show and end armed, only ENABLE_ALL set.
func New(opts Options, deps Deps) (*Manager, error) {
	if deps.DB == nil || deps.Bot == nil || deps.Site == nil || deps.Effects == nil {
		return nil, fmt.Errorf("card database, bot, site and effects are required")
	}
	if opts.PassedFramesThreshold <= 0 {
		opts.PassedFramesThreshold = config.DefaultPassedFramesThreshold
	}
	if opts.PassedCardRecognitions <= 0 {
		opts.PassedCardRecognitions = config.DefaultPassedCardRecognitions
	}
	if opts.PollRetryCount < 0 {
		opts.PollRetryCount = 0
	}
	if opts.StreamerName == "" {
		opts.StreamerName = opts.Streamer
	}

	m := &Manager{
		opts:        opts,
		deps:        deps,
		deck:        deck.New(),
		deckState:   types.NewKindSet(types.DraftClassPick, types.DraftCardPick),
		gameState:   types.NewKindSet(types.GameClassShow, types.GameEnd),
		internal:    types.FeatureEnableAll,
		game:        gameInfo{end: "-"},
		draws:       drawInfo{latestDraw: types.NoCard},
		currentCard: debounce{id: types.NoCard},
		workers:     make(map[string]*types.WorkerMetrics),
	}
	m.passedFrames.Store(opts.PassedFramesThreshold)
	m.syncDrawArming()
	return m, nil
}

// SetCommandProcessor installs the processor behind ProcessCommand
func (m *Manager) SetCommandProcessor(p CommandProcessor) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.processor = p
}

// Armed returns the union of all armed recognizers
func (m *Manager) Armed() types.KindSet {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.deckState.Union(m.gameState, m.drawState)
}

// ArmedSets returns the deck, game and draw sets separately
func (m *Manager) ArmedSets() (deckState, gameState, drawState types.KindSet) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.deckState, m.gameState, m.drawState
}

// Features returns the feature flag mask
func (m *Manager) Features() types.Feature {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.internal
}

// Feature reports whether f is enabled
func (m *Manager) Feature(f types.Feature) bool {
	return m.Features()&f != 0
}

// SetFeature enables or disables f. Toggling draw handling arms or
// disarms draw recognition.
func (m *Manager) SetFeature(f types.Feature, on bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if on {
		m.internal |= f
	} else {
		m.internal &^= f
	}
	if f&types.FeatureDrawHandling != 0 {
		m.syncDrawArming()
	}
	slog.Info("feature flag changed", "feature", f.String(), "enabled", on)
}

// syncDrawArming makes the draw set follow the draw handling flag.
// Caller holds stateMu.
func (m *Manager) syncDrawArming() {
	if m.internal&types.FeatureDrawHandling != 0 {
		m.drawState.Arm(types.GameDraw)
		return
	}
	m.drawState = 0
}

func (m *Manager) ShouldUpdateDeck() bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.shouldUpdateDeck
}

func (m *Manager) SetShouldUpdateDeck(v bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.shouldUpdateDeck = v
}

// Score returns wins and losses since the last draft
func (m *Manager) Score() (wins, losses int) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.wins, m.losses
}

// SetScore overrides the current score
func (m *Manager) SetScore(wins, losses int) error {
	if wins < 0 || losses < 0 {
		return fmt.Errorf("score must be non-negative, got %d-%d", wins, losses)
	}
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.wins, m.losses = wins, losses
	return nil
}

// DeckMessage returns the last announced deck links
func (m *Manager) DeckMessage() string {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.deckMsg
}

// DeckSummary returns the hero name, pick count and missed picks
func (m *Manager) DeckSummary() (hero string, picks, missed int) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.heroName(), m.deck.CardCount(), m.deck.MissedPicks()
}

// EncodedDeck returns the deck in its persisted form
func (m *Manager) EncodedDeck() string {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.deck.Encode()
}

// SetDeckClass sets the hero class of the current deck by hero name
func (m *Manager) SetDeckClass(name string) error {
	hero, ok := m.deps.DB.HeroByName(name)
	if !ok {
		return fmt.Errorf("unknown hero %q", name)
	}
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.deck.HeroClass = hero.ID
	m.shouldUpdateDeck = true
	return nil
}

// SetPick replaces pick n (1-based) with the card cardID
func (m *Manager) SetPick(n, cardID int) error {
	card := m.deps.DB.Card(cardID)
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if err := m.deck.SetPick(n-1, card); err != nil {
		return fmt.Errorf("failed to set pick %d: %w", n, err)
	}
	m.shouldUpdateDeck = true
	return nil
}

// ClearDeck forgets the current deck
func (m *Manager) ClearDeck() {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.deck.Clear()
	m.deckGen++
	m.deckMsg = ""
	m.shouldUpdateDeck = false
}

// AnnounceDeck uploads the current deck and announces the links
func (m *Manager) AnnounceDeck() {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.announceDeck()
}

// heroName returns the deck's hero name or "" when unset. Caller holds
// stateMu.
func (m *Manager) heroName() string {
	if m.deck.HeroClass == deck.NoHero {
		return ""
	}
	return m.deps.DB.Hero(m.deck.HeroClass).Name
}
