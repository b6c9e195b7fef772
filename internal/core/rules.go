package core

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/deck"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// Chat messages
const (
	msgArenaScore       = "!score -arena"
	msgConstructedScore = "!score -constructed"
	msgSubOn            = "!subon"
	msgSubOff           = "!suboff"
	msgGameStart        = "!score -game %s %s %s"
	msgGameEnd          = "!score -end %s"
	msgDeck             = "%s's deck: %s | %s"
	msgClassPoll        = "Which class should %s draft?"
	msgClassPollVote    = "Vote for %s's next class: %s"
	msgClassPollRepeat  = "Vote for the next class: %s"
	msgClassPollError   = "Could not create the class poll, %d attempt(s) left"
	msgClassPollGiveup  = "Could not create the class poll, giving up"
)

// Class poll announcement schedule, in bot time units
const (
	pollRepeatCount  = 5
	pollRepeatSpan   = 25
	pollRepeatOffset = 7
	pollSubOffDelay  = 120
)

// ProcessFrame counts one frame towards the draw gate and applies its
// results in order. It returns the number of results that changed state.
func (m *Manager) ProcessFrame(frame types.Frame, results []types.Result) int {
	m.passedFrames.Add(1)
	if len(results) == 0 {
		return 0
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if m.internal&types.FeatureEnableAll == 0 {
		return 0
	}

	applied := 0
	for _, r := range results {
		if m.applySafe(frame, r) {
			applied++
		}
	}
	return applied
}

// applySafe applies one result, recovering from panics so that a bad
// result never takes the worker down. Caller holds stateMu.
func (m *Manager) applySafe(frame types.Frame, r types.Result) (applied bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("result application panicked",
				"result", r.String(),
				"frame_seq", frame.Seq,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			applied = false
		}
	}()
	return m.apply(frame, r)
}

// apply dispatches r to its state machine. Results of unarmed recognizers
// or with a malformed payload are ignored. Caller holds stateMu.
func (m *Manager) apply(frame types.Frame, r types.Result) bool {
	switch r.Source {
	case types.DraftClassPick:
		if !m.deckState.Has(r.Source) || !needs(r, 3) {
			return false
		}
		m.onClassPick(r)
	case types.DraftCardPick:
		if !m.deckState.Has(r.Source) || !needs(r, 3) {
			return false
		}
		return m.onCardPick(r)
	case types.DraftCardChosen:
		if !m.deckState.Has(r.Source) || !needs(r, 1) {
			return false
		}
		return m.onCardChosen(r)
	case types.GameClassShow:
		if !m.gameState.Has(r.Source) || !needs(r, 2) {
			return false
		}
		m.onClassShow(r)
	case types.GameCoin:
		if !m.gameState.Has(r.Source) || !needs(r, 1) {
			return false
		}
		m.onCoin(frame, r)
	case types.GameEnd:
		if !m.gameState.Has(r.Source) || !needs(r, 1) {
			return false
		}
		m.onEnd(frame, r)
	case types.GameDrawInit1, types.GameDrawInit2:
		if !m.drawState.Has(r.Source) {
			return false
		}
		m.draws.initialDraw = append([]int(nil), r.Results...)
	case types.GameDraw:
		if !m.drawState.Has(r.Source) || !needs(r, 1) {
			return false
		}
		if m.passedFrames.Load() < m.opts.PassedFramesThreshold {
			return false
		}
		return m.onDraw(r)
	default:
		slog.Debug("ignoring result of unknown recognizer", "result", r.String())
		return false
	}
	return true
}

func needs(r types.Result, n int) bool {
	if len(r.Results) < n {
		slog.Warn("ignoring malformed recognition result",
			"result", r.String(),
			"expected_values", n,
		)
		return false
	}
	return true
}

func (m *Manager) onClassPick(r types.Result) {
	m.deck.Clear()
	m.deckGen++
	m.deckMsg = ""
	m.deckState.Disarm(types.DraftClassPick)
	m.deckState.Arm(types.DraftCardPick)
	m.wins, m.losses = 0, 0

	names := make([]string, 3)
	for i := range names {
		names[i] = m.deps.DB.Hero(r.Results[i]).Name
	}
	slog.Info("new draft", "heroes", names)

	m.say(msgArenaScore)
	if m.internal&types.FeatureStrawpolling != 0 {
		m.deps.Effects.Enqueue("class poll", func(ctx context.Context) {
			m.runClassPoll(ctx, names)
		})
	}
}

// runClassPoll runs on the effect queue
func (m *Manager) runClassPoll(ctx context.Context, classNames []string) {
	bot := m.deps.Bot
	bot.Message(msgSubOn)

	question := fmt.Sprintf(msgClassPoll, m.opts.StreamerName)
	retries := m.opts.PollRetryCount
	for i := 0; i <= retries; i++ {
		poll := m.deps.Site.CreateStrawpoll(ctx, question, classNames)
		if poll != "" {
			bot.Message(fmt.Sprintf(msgClassPollVote, m.opts.StreamerName, poll))
			bot.RepeatMessage(fmt.Sprintf(msgClassPollRepeat, poll), pollRepeatCount, pollRepeatSpan, pollRepeatOffset)
			bot.MessageAfter(msgSubOff, pollSubOffDelay)
			return
		}
		slog.Warn("class poll creation failed", "attempts_left", retries-i)
		bot.Message(fmt.Sprintf(msgClassPollError, retries-i))
	}
	bot.Message(msgClassPollGiveup)
}

func (m *Manager) onCardPick(r types.Result) bool {
	if m.deck.IsComplete() {
		return false
	}
	isNew := true
	if last, ok := m.deck.LastSet(); ok {
		isNew = false
		ids := last.IDs()
		for i := range ids {
			if r.Results[i] != ids[i] {
				isNew = true
				break
			}
		}
	}
	if !isNew {
		return false
	}

	db := m.deps.DB
	m.deck.AddSet(db.Card(r.Results[0]), db.Card(r.Results[1]), db.Card(r.Results[2]))
	if m.deckState.Has(types.DraftCardChosen) && len(m.deck.Sets()) == len(m.deck.Picks())+2 {
		if err := m.deck.AddUnknownPick(); err != nil {
			slog.Error("failed to record missed pick", "error", err)
		} else {
			slog.Warn("missed pick", "pick", m.deck.CardCount())
		}
	}
	m.deckState.Arm(types.DraftClassPick)
	m.deckState.Arm(types.DraftCardChosen)

	// the missed pick was the last one
	if m.deck.IsComplete() {
		m.deckState.Disarm(types.DraftCardPick)
		m.deckState.Disarm(types.DraftCardChosen)
		m.shouldUpdateDeck = true
		m.announceDeck()
		return true
	}

	slog.Info("card offer",
		"pick", m.deck.CardCount()+1,
		"cards", []string{db.Card(r.Results[0]).Name, db.Card(r.Results[1]).Name, db.Card(r.Results[2]).Name},
	)
	return true
}

func (m *Manager) onCardChosen(r types.Result) bool {
	index := r.Results[0]
	last, ok := m.deck.LastSet()
	if index < 0 || index >= len(last) || !ok || len(m.deck.Picks()) >= len(m.deck.Sets()) {
		slog.Warn("ignoring card choice without a pending offer", "index", index)
		return false
	}

	m.deckState.Arm(types.DraftClassPick)
	m.deckState.Arm(types.DraftCardPick)
	m.deckState.Disarm(types.DraftCardChosen)

	card := last[index]
	if err := m.deck.AddPickedCard(card); err != nil {
		slog.Error("failed to record pick", "error", err)
		return false
	}
	m.shouldUpdateDeck = true
	slog.Info("card picked", "card", card.Name, "pick", m.deck.CardCount())

	if m.deck.IsComplete() {
		m.deckState.Disarm(types.DraftCardPick)
		m.announceDeck()
	}
	return true
}

func (m *Manager) onClassShow(r types.Result) {
	m.gameState.Arm(types.GameCoin)
	m.gameState.Disarm(types.GameClassShow)

	player := m.deps.DB.Hero(r.Results[0])
	opponent := m.deps.DB.Hero(r.Results[1])
	m.game = gameInfo{player: player.Name, opponent: opponent.Name, end: "-"}
	slog.Info("new game", "player", player.Name, "opponent", opponent.Name)

	if m.deck.HeroClass == deck.NoHero && len(m.deck.Sets()) > 0 {
		m.deck.HeroClass = player.ID
		slog.Info("deck class learned", "hero", player.Name)
	}

	if m.shouldUpdateDeck && m.internal&types.FeatureAPICalling != 0 {
		m.callAPI("submit deck", m.opts.API.SubmitDeck, strconv.Itoa(m.deck.HeroClass), m.deck.Encode())
		m.shouldUpdateDeck = false
	}
}

func (m *Manager) onCoin(frame types.Frame, r types.Result) {
	m.gameState.Arm(types.GameEnd)
	m.gameState.Arm(types.GameClassShow)
	m.gameState.Disarm(types.GameCoin)

	m.game.firstOrSecond = "2"
	if r.Results[0] == types.CoinFirst {
		m.game.firstOrSecond = "1"
	}
	if m.internal&types.FeatureScoring != 0 {
		m.say(fmt.Sprintf(msgGameStart, m.game.player, m.game.opponent, m.game.firstOrSecond))
	}
	m.snapshot(frame, "coin"+m.game.firstOrSecond)

	if m.internal&types.FeatureDrawHandling != 0 {
		if m.game.firstOrSecond == "1" {
			m.drawState.Arm(types.GameDrawInit1)
		} else {
			m.drawState.Arm(types.GameDrawInit2)
		}
	}
	m.draws.latestDraw = types.NoCard
	if m.internal&types.FeatureAPICalling != 0 {
		m.callAPI("reset draws", m.opts.API.ResetDraws)
	}
	m.deck.ResetDraws()
}

func (m *Manager) onEnd(frame types.Frame, r types.Result) {
	m.gameState.Arm(types.GameClassShow)
	m.gameState.Disarm(types.GameEnd)

	m.game.end = "l"
	if r.Results[0] == types.EndVictory {
		m.game.end = "w"
		m.wins++
	} else {
		m.losses++
	}
	slog.Info("game ended", "result", m.game.end, "wins", m.wins, "losses", m.losses)

	if m.internal&types.FeatureScoring != 0 {
		m.say(fmt.Sprintf(msgGameEnd, m.game.end))
	}
	if m.wins == 12 || m.losses == 3 {
		m.say(msgConstructedScore)
	}
	m.snapshot(frame, m.game.end)
}

// onDraw debounces draw recognitions and records an accepted draw, first
// flushing the mulligan hand on the first draw of a game
func (m *Manager) onDraw(r types.Result) bool {
	id := r.Results[0]
	pass := false
	if id == m.currentCard.id {
		m.currentCard.count++
		pass = m.currentCard.count >= m.opts.PassedCardRecognitions
	} else {
		m.currentCard = debounce{id: id}
	}
	if !pass {
		return false
	}

	m.passedFrames.Store(0)
	m.currentCard = debounce{id: types.NoCard}

	build := m.internal&types.FeatureBuildFromDraws != 0
	apiCalling := m.internal&types.FeatureAPICalling != 0
	newCards := false

	if m.draws.latestDraw == types.NoCard {
		for _, initID := range m.draws.initialDraw {
			if m.deck.Draw(m.deps.DB.Card(initID), build) {
				newCards = true
			}
			if apiCalling {
				m.callAPI("draw card", m.opts.API.DrawCard, fmt.Sprintf("%03d", initID))
			}
		}
		slog.Info("initial draw recorded", "cards", len(m.draws.initialDraw))
		m.draws.initialDraw = nil
		m.drawState.Disarm(types.GameDrawInit1)
		m.drawState.Disarm(types.GameDrawInit2)
	}

	if m.deck.Draw(m.deps.DB.Card(id), build) {
		newCards = true
	}
	m.shouldUpdateDeck = m.shouldUpdateDeck || newCards
	if apiCalling {
		m.callAPI("draw card", m.opts.API.DrawCard, fmt.Sprintf("%03d", id))
	}
	m.draws.latestDraw = id
	slog.Info("card drawn", "card", m.deps.DB.Card(id).Name, "new_cards", newCards)

	if newCards && m.deck.IsComplete() {
		m.announceDeck()
	}
	return true
}

// announceDeck renders the deck under the lock and queues the upload and
// announcement. Caller holds stateMu.
func (m *Manager) announceDeck() {
	hero := m.heroName()
	text := m.deck.CreateTextRepresentation(hero)
	img, err := m.deck.CreateImageRepresentation(hero)
	if err != nil {
		slog.Error("failed to render deck image", "error", err)
	}

	gen := m.deckGen
	m.deps.Effects.Enqueue("announce deck", func(ctx context.Context) {
		msg := m.createDeckURLs(ctx, img, text)
		m.stateMu.Lock()
		current := m.deckGen == gen
		if current {
			m.deckMsg = msg
		}
		m.stateMu.Unlock()
		if !current {
			slog.Info("deck replaced before its announcement, keeping the new deck message")
		}
		m.deps.Bot.Message(msg)
	})
}

// createDeckURLs uploads the rendered deck and formats the announcement.
// Failed uploads leave their link empty.
func (m *Manager) createDeckURLs(ctx context.Context, img, text []byte) string {
	var imageURL, pasteURL string
	if len(img) > 0 {
		link, err := m.deps.Site.CreateImage(ctx, img)
		if err != nil {
			slog.Warn("deck image upload failed", "error", err)
		}
		imageURL = link
	}
	link, err := m.deps.Site.CreatePaste(ctx, text)
	if err != nil {
		slog.Warn("deck paste upload failed", "error", err)
	}
	pasteURL = link
	return fmt.Sprintf(msgDeck, m.opts.StreamerName, imageURL, pasteURL)
}

func (m *Manager) say(text string) {
	m.deps.Effects.Enqueue("bot message", func(context.Context) {
		m.deps.Bot.Message(text)
	})
}

func (m *Manager) callAPI(name, pattern string, args ...string) {
	m.deps.Effects.Enqueue(name, func(ctx context.Context) {
		if err := m.deps.Site.CallAPI(ctx, pattern, args...); err != nil {
			slog.Warn("api call failed", "call", name, "error", err)
		}
	})
}

// snapshot queues a debug image of frame when snapshots are enabled. The
// pixel buffer is copied since the source may reuse it.
func (m *Manager) snapshot(frame types.Frame, label string) {
	if m.opts.DebugLevel&DebugSnapshots == 0 || m.deps.Images == nil {
		return
	}
	frame.Data = bytes.Clone(frame.Data)
	m.deps.Effects.Enqueue("snapshot", func(context.Context) {
		if _, err := m.deps.Images.Snapshot(frame, label); err != nil {
			slog.Warn("failed to save debug image", "label", label, "error", err)
		}
	})
}
