package core

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/carddb"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/deck"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/dispatch"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

type mockBot struct{ mock.Mock }

func (b *mockBot) Message(text string) { b.Called(text) }

func (b *mockBot) MessageAfter(text string, delay int) { b.Called(text, delay) }

func (b *mockBot) RepeatMessage(text string, count, span, offset int) {
	b.Called(text, count, span, offset)
}

// messages returns the immediate messages in send order
func (b *mockBot) messages() []string {
	var out []string
	for _, c := range b.Calls {
		if c.Method == "Message" {
			out = append(out, c.Arguments.String(0))
		}
	}
	return out
}

type mockSite struct{ mock.Mock }

func (s *mockSite) CallAPI(_ context.Context, pattern string, args ...string) error {
	return s.Called(pattern, args).Error(0)
}

func (s *mockSite) CreateStrawpoll(_ context.Context, question string, options []string) string {
	return s.Called(question, options).String(0)
}

func (s *mockSite) CreateImage(_ context.Context, png []byte) (string, error) {
	args := s.Called(png)
	return args.String(0), args.Error(1)
}

func (s *mockSite) CreatePaste(_ context.Context, text []byte) (string, error) {
	args := s.Called(text)
	return args.String(0), args.Error(1)
}

// apiArgs returns the argument lists of CallAPI calls made with pattern
func (s *mockSite) apiArgs(pattern string) [][]string {
	var out [][]string
	for _, c := range s.Calls {
		if c.Method == "CallAPI" && c.Arguments.String(0) == pattern {
			out = append(out, c.Arguments.Get(1).([]string))
		}
	}
	return out
}

const (
	submitPattern = "http://api/deck?class={0}&deck={1}"
	drawPattern   = "http://api/draw/{0}"
	resetPattern  = "http://api/reset"
)

type harness struct {
	m       *Manager
	bot     *mockBot
	site    *mockSite
	effects *dispatch.Dispatcher
	db      *carddb.DB
	seq     uint64
}

func testDB(t *testing.T) *carddb.DB {
	t.Helper()
	heroes := make([]types.Hero, 10)
	for i := range heroes {
		heroes[i] = types.Hero{ID: i, Name: fmt.Sprintf("Hero%d", i)}
	}
	cards := make([]types.Card, 0, 200)
	for id := 1; id <= 200; id++ {
		cards = append(cards, types.Card{ID: id, Name: fmt.Sprintf("Card %d", id)})
	}
	db, err := carddb.New(heroes, cards)
	require.NoError(t, err)
	return db
}

func testOptions() Options {
	return Options{
		Streamer:               "streamer",
		StreamerName:           "Streamer",
		Threads:                1,
		PassedFramesThreshold:  3,
		PassedCardRecognitions: 2,
		PollRetryCount:         3,
		API: APIFormats{
			SubmitDeck: submitPattern,
			DrawCard:   drawPattern,
			ResetDraws: resetPattern,
		},
	}
}

func newHarness(t *testing.T, opts Options, features types.Feature) *harness {
	t.Helper()

	h := &harness{
		bot:     &mockBot{},
		site:    &mockSite{},
		effects: dispatch.New(),
		db:      testDB(t),
	}
	h.bot.On("Message", mock.Anything).Return()
	h.bot.On("MessageAfter", mock.Anything, mock.Anything).Return()
	h.bot.On("RepeatMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	h.site.On("CallAPI", mock.Anything, mock.Anything).Return(nil)
	h.site.On("CreateImage", mock.Anything).Return("https://img.example/deck.png", nil)
	h.site.On("CreatePaste", mock.Anything).Return("https://paste.example/abc", nil)

	m, err := New(opts, Deps{DB: h.db, Bot: h.bot, Site: h.site, Effects: h.effects})
	require.NoError(t, err)
	for _, f := range types.Features() {
		if features&f != 0 {
			m.SetFeature(f, true)
		}
	}
	h.m = m

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.effects.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// feed processes one frame carrying results
func (h *harness) feed(results ...types.Result) int {
	h.seq++
	frame := types.Frame{Seq: h.seq, Width: 1, Height: 1, Data: []byte{0, 0, 0}}
	return h.m.ProcessFrame(frame, results)
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, h.effects.Flush(context.Background()))
}

func res(kind types.Kind, values ...int) types.Result {
	return types.Result{Source: kind, Results: values}
}

func TestInitialState(t *testing.T) {
	h := newHarness(t, testOptions(), 0)

	deckState, gameState, drawState := h.m.ArmedSets()
	assert.Equal(t, types.NewKindSet(types.DraftClassPick, types.DraftCardPick), deckState)
	assert.Equal(t, types.NewKindSet(types.GameClassShow, types.GameEnd), gameState)
	assert.Zero(t, drawState)
	assert.Equal(t, types.FeatureEnableAll, h.m.Features())
	assert.Equal(t, types.NoCard, h.m.currentCard.id)
	assert.Zero(t, h.m.currentCard.count)
	assert.Equal(t, int64(3), h.m.passedFrames.Load())
}

func TestNewDraft(t *testing.T) {
	h := newHarness(t, testOptions(), 0)
	require.NoError(t, h.m.SetScore(5, 2))
	h.feed(res(types.DraftCardPick, 1, 2, 3))

	assert.Equal(t, 1, h.feed(res(types.DraftClassPick, 4, 5, 6)))
	h.flush(t)

	wins, losses := h.m.Score()
	assert.Zero(t, wins)
	assert.Zero(t, losses)
	assert.Empty(t, h.m.deck.Sets())
	assert.Equal(t, []string{"!score -arena"}, h.bot.messages())

	deckState, _, _ := h.m.ArmedSets()
	assert.False(t, deckState.Has(types.DraftClassPick))
	assert.True(t, deckState.Has(types.DraftCardPick))

	// disarmed: a second class pick is a no-op
	assert.Zero(t, h.feed(res(types.DraftClassPick, 4, 5, 6)))
}

func TestMissedPickRecovery(t *testing.T) {
	h := newHarness(t, testOptions(), 0)

	h.feed(res(types.DraftCardPick, 1, 2, 3))
	h.feed(res(types.DraftCardPick, 7, 8, 9))

	sets := h.m.deck.Sets()
	require.Len(t, sets, 2)
	assert.Equal(t, [3]int{1, 2, 3}, sets[0].IDs())
	assert.Equal(t, [3]int{7, 8, 9}, sets[1].IDs())
	assert.Equal(t, []types.Card{types.UnknownCard}, h.m.deck.Picks())
}

func TestRepeatedOfferIsIgnored(t *testing.T) {
	h := newHarness(t, testOptions(), 0)

	assert.Equal(t, 1, h.feed(res(types.DraftCardPick, 1, 2, 3)))
	assert.Zero(t, h.feed(res(types.DraftCardPick, 1, 2, 3)))
	assert.Len(t, h.m.deck.Sets(), 1)
	assert.Empty(t, h.m.deck.Picks())
}

func TestCardChosen(t *testing.T) {
	h := newHarness(t, testOptions(), 0)

	// no offer yet: CARD_CHOSEN is not armed
	assert.Zero(t, h.feed(res(types.DraftCardChosen, 0)))

	h.feed(res(types.DraftCardPick, 1, 2, 3))
	assert.Zero(t, h.feed(res(types.DraftCardChosen, 3)), "index out of range")
	assert.Equal(t, 1, h.feed(res(types.DraftCardChosen, 2)))

	picks := h.m.deck.Picks()
	require.Len(t, picks, 1)
	assert.Equal(t, 3, picks[0].ID)
	assert.True(t, h.m.ShouldUpdateDeck())

	deckState, _, _ := h.m.ArmedSets()
	assert.False(t, deckState.Has(types.DraftCardChosen))
	assert.True(t, deckState.Has(types.DraftCardPick))
	assert.Zero(t, h.feed(res(types.DraftCardChosen, 0)), "second choice for the same offer")
}

func draftFull(h *harness) {
	h.feed(res(types.DraftClassPick, 1, 2, 3))
	for i := 0; i < deck.Size; i++ {
		h.feed(res(types.DraftCardPick, 3*i+1, 3*i+2, 3*i+3))
		h.feed(res(types.DraftCardChosen, i%3))
	}
}

func TestFullDraftCompletion(t *testing.T) {
	h := newHarness(t, testOptions(), 0)

	draftFull(h)
	h.flush(t)

	assert.True(t, h.m.deck.IsComplete())
	msgs := h.bot.messages()
	require.NotEmpty(t, msgs)
	want := "Streamer's deck: https://img.example/deck.png | https://paste.example/abc"
	assert.Equal(t, want, msgs[len(msgs)-1])
	assert.Equal(t, want, h.m.DeckMessage())

	deckState, _, _ := h.m.ArmedSets()
	assert.False(t, deckState.Has(types.DraftCardPick))
	assert.True(t, deckState.Has(types.DraftClassPick))

	h.site.AssertNumberOfCalls(t, "CreateImage", 1)
	h.site.AssertNumberOfCalls(t, "CreatePaste", 1)
}

func TestDeckAnnouncementWithFailedUpload(t *testing.T) {
	h := newHarness(t, testOptions(), 0)
	h.site.ExpectedCalls = nil
	h.site.On("CreateImage", mock.Anything).Return("", fmt.Errorf("upload failed"))
	h.site.On("CreatePaste", mock.Anything).Return("https://paste.example/abc", nil)

	draftFull(h)
	h.flush(t)

	assert.Equal(t, "Streamer's deck:  | https://paste.example/abc", h.m.DeckMessage())
}

func TestLateAnnouncementKeepsNewDeckMessage(t *testing.T) {
	tests := []struct {
		name    string
		replace func(h *harness)
	}{
		{name: "new draft", replace: func(h *harness) { h.feed(res(types.DraftClassPick, 4, 5, 6)) }},
		{name: "deck cleared", replace: func(h *harness) { h.m.ClearDeck() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testOptions(), 0)
			release := make(chan time.Time)
			h.site.ExpectedCalls = nil
			h.site.On("CreateImage", mock.Anything).WaitUntil(release).Return("https://img.example/deck.png", nil)
			h.site.On("CreatePaste", mock.Anything).Return("https://paste.example/abc", nil)

			draftFull(h)
			tt.replace(h)
			close(release)
			h.flush(t)

			assert.Empty(t, h.m.DeckMessage())
			assert.Contains(t, h.bot.messages(), "Streamer's deck: https://img.example/deck.png | https://paste.example/abc")
		})
	}
}

func TestGameLifecycle(t *testing.T) {
	tests := []struct {
		name       string
		features   types.Feature
		updateDeck bool
		wantSubmit bool
		wantScore  bool
	}{
		{name: "no features", features: 0, updateDeck: true},
		{name: "api without deck update", features: types.FeatureAPICalling},
		{name: "api with deck update", features: types.FeatureAPICalling, updateDeck: true, wantSubmit: true},
		{name: "scoring", features: types.FeatureScoring, wantScore: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testOptions(), tt.features)
			h.m.SetShouldUpdateDeck(tt.updateDeck)

			assert.Equal(t, 1, h.feed(res(types.GameClassShow, 1, 2)))
			assert.Equal(t, 1, h.feed(res(types.GameCoin, types.CoinFirst)))
			assert.Equal(t, 1, h.feed(res(types.GameEnd, types.EndVictory)))
			h.flush(t)

			wins, losses := h.m.Score()
			assert.Equal(t, 1, wins)
			assert.Zero(t, losses)

			submits := h.site.apiArgs(submitPattern)
			if tt.wantSubmit {
				require.Len(t, submits, 1)
				assert.Equal(t, h.m.EncodedDeck(), submits[0][1])
				assert.False(t, h.m.ShouldUpdateDeck())
			} else {
				assert.Empty(t, submits)
				assert.Equal(t, tt.updateDeck, h.m.ShouldUpdateDeck())
			}

			msgs := h.bot.messages()
			if tt.wantScore {
				assert.Equal(t, []string{"!score -game Hero1 Hero2 1", "!score -end w"}, msgs)
			} else {
				assert.Empty(t, msgs)
			}

			_, gameState, _ := h.m.ArmedSets()
			assert.Equal(t, types.NewKindSet(types.GameClassShow), gameState)
			assert.Zero(t, h.feed(res(types.GameEnd, types.EndVictory)), "end is disarmed")
		})
	}
}

func TestGameCoinResetsDraws(t *testing.T) {
	h := newHarness(t, testOptions(), types.FeatureAPICalling|types.FeatureDrawHandling)

	h.m.deck.Draw(h.db.Card(5), false)
	h.feed(res(types.GameClassShow, 1, 2))
	h.feed(res(types.GameCoin, types.CoinSecond))
	h.flush(t)

	assert.Zero(t, h.m.deck.DrawCount(5))
	assert.Len(t, h.site.apiArgs(resetPattern), 1)
	assert.Equal(t, types.NoCard, h.m.draws.latestDraw)

	_, _, drawState := h.m.ArmedSets()
	assert.True(t, drawState.Has(types.GameDrawInit2))
	assert.False(t, drawState.Has(types.GameDrawInit1))
	assert.Equal(t, "2", h.m.Status().Game.FirstOrSecond)
}

func TestConstructedScoreAnnouncement(t *testing.T) {
	tests := []struct {
		name         string
		wins, losses int
		result       int
		want         bool
	}{
		{name: "twelfth win", wins: 11, result: types.EndVictory, want: true},
		{name: "third loss", losses: 2, result: types.EndDefeat, want: true},
		{name: "mid run", wins: 4, losses: 1, result: types.EndVictory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testOptions(), 0)
			require.NoError(t, h.m.SetScore(tt.wins, tt.losses))

			h.feed(res(types.GameEnd, tt.result))
			h.flush(t)

			if tt.want {
				assert.Equal(t, []string{"!score -constructed"}, h.bot.messages())
			} else {
				assert.Empty(t, h.bot.messages())
			}
		})
	}
}

func TestGameEndBeforeDraftRearmsClassShow(t *testing.T) {
	h := newHarness(t, testOptions(), 0)

	h.feed(res(types.GameEnd, types.EndDefeat))
	_, gameState, _ := h.m.ArmedSets()
	assert.True(t, gameState.Has(types.GameClassShow))
	_, losses := h.m.Score()
	assert.Equal(t, 1, losses)
}

func TestDebouncedDraw(t *testing.T) {
	h := newHarness(t, testOptions(), types.FeatureDrawHandling|types.FeatureAPICalling)

	for i := 0; i < 3; i++ {
		h.feed(res(types.GameDraw, 42))
	}
	h.flush(t)

	assert.Equal(t, 1, h.m.deck.DrawCount(42))
	assert.Equal(t, [][]string{{"042"}}, h.site.apiArgs(drawPattern))
	assert.Equal(t, 42, h.m.draws.latestDraw)
	assert.Zero(t, h.m.passedFrames.Load())

	// within the frame gap nothing fires, even with agreeing recognitions
	for i := 0; i < 3; i++ {
		h.feed(res(types.GameDraw, 42))
	}
	h.flush(t)
	assert.Equal(t, 1, h.m.deck.DrawCount(42))
}

func TestDebounceResetsOnDisagreement(t *testing.T) {
	h := newHarness(t, testOptions(), types.FeatureDrawHandling)

	h.feed(res(types.GameDraw, 42))
	h.feed(res(types.GameDraw, 42))
	h.feed(res(types.GameDraw, 43))
	h.feed(res(types.GameDraw, 42))
	assert.Zero(t, h.m.deck.DrawCount(42))
	assert.Equal(t, debounce{id: 42, count: 0}, h.m.currentCard)

	h.feed(res(types.GameDraw, 42))
	h.feed(res(types.GameDraw, 42))
	assert.Equal(t, 1, h.m.deck.DrawCount(42))
	assert.Equal(t, debounce{id: types.NoCard}, h.m.currentCard)
}

func TestMulligan(t *testing.T) {
	opts := testOptions()
	opts.PassedFramesThreshold = 1
	h := newHarness(t, opts, types.FeatureDrawHandling|types.FeatureAPICalling)

	h.feed(res(types.GameClassShow, 1, 2))
	h.feed(res(types.GameCoin, types.CoinSecond))
	assert.Equal(t, 1, h.feed(res(types.GameDrawInit2, 10, 11, 12, 13)))
	for i := 0; i < 3; i++ {
		h.feed(res(types.GameDraw, 50))
	}
	h.flush(t)

	assert.Equal(t, [][]string{{"010"}, {"011"}, {"012"}, {"013"}, {"050"}}, h.site.apiArgs(drawPattern))
	for _, id := range []int{10, 11, 12, 13, 50} {
		assert.Equal(t, 1, h.m.deck.DrawCount(id), "card %d", id)
	}

	_, _, drawState := h.m.ArmedSets()
	assert.False(t, drawState.Has(types.GameDrawInit1))
	assert.False(t, drawState.Has(types.GameDrawInit2))
	assert.True(t, drawState.Has(types.GameDraw))
	assert.Empty(t, h.m.draws.initialDraw)
}

func TestBuildFromDrawsCompletesDeck(t *testing.T) {
	opts := testOptions()
	opts.PassedFramesThreshold = 1
	opts.PassedCardRecognitions = 1
	h := newHarness(t, opts, types.FeatureDrawHandling|types.FeatureBuildFromDraws)

	for id := 1; id <= deck.Size; id++ {
		h.feed(res(types.GameDraw, id))
		h.feed(res(types.GameDraw, id))
	}
	h.flush(t)

	assert.True(t, h.m.deck.IsComplete())
	assert.True(t, h.m.ShouldUpdateDeck())
	msgs := h.bot.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "https://paste.example/abc")
}

func TestClassPoll(t *testing.T) {
	h := newHarness(t, testOptions(), types.FeatureStrawpolling)
	h.site.On("CreateStrawpoll", mock.Anything, mock.Anything).Return("").Twice()
	h.site.On("CreateStrawpoll", mock.Anything, mock.Anything).Return("https://poll.example/1")

	h.feed(res(types.DraftClassPick, 4, 5, 6))
	h.flush(t)

	assert.Equal(t, []string{
		"!score -arena",
		"!subon",
		"Could not create the class poll, 3 attempt(s) left",
		"Could not create the class poll, 2 attempt(s) left",
		"Vote for Streamer's next class: https://poll.example/1",
	}, h.bot.messages())
	h.bot.AssertCalled(t, "RepeatMessage", "Vote for the next class: https://poll.example/1", 5, 25, 7)
	h.bot.AssertCalled(t, "MessageAfter", "!suboff", 120)
	h.site.AssertCalled(t, "CreateStrawpoll", "Which class should Streamer draft?", []string{"Hero4", "Hero5", "Hero6"})
}

func TestClassPollGivesUp(t *testing.T) {
	opts := testOptions()
	opts.PollRetryCount = 1
	h := newHarness(t, opts, types.FeatureStrawpolling)
	h.site.On("CreateStrawpoll", mock.Anything, mock.Anything).Return("")

	h.feed(res(types.DraftClassPick, 4, 5, 6))
	h.flush(t)

	assert.Equal(t, []string{
		"!score -arena",
		"!subon",
		"Could not create the class poll, 1 attempt(s) left",
		"Could not create the class poll, 0 attempt(s) left",
		"Could not create the class poll, giving up",
	}, h.bot.messages())
	h.site.AssertNumberOfCalls(t, "CreateStrawpoll", 2)
	h.bot.AssertNotCalled(t, "MessageAfter", "!suboff", 120)
}

func TestPauseSwitch(t *testing.T) {
	h := newHarness(t, testOptions(), 0)

	h.m.SetFeature(types.FeatureEnableAll, false)
	assert.Zero(t, h.feed(res(types.DraftClassPick, 1, 2, 3)))

	h.m.SetFeature(types.FeatureEnableAll, true)
	assert.Equal(t, 1, h.feed(res(types.DraftClassPick, 1, 2, 3)))
}

func TestDrawHandlingToggle(t *testing.T) {
	h := newHarness(t, testOptions(), 0)

	assert.Zero(t, h.feed(res(types.GameDraw, 1)))

	h.m.SetFeature(types.FeatureDrawHandling, true)
	_, _, drawState := h.m.ArmedSets()
	assert.Equal(t, types.NewKindSet(types.GameDraw), drawState)

	h.m.SetFeature(types.FeatureDrawHandling, false)
	_, _, drawState = h.m.ArmedSets()
	assert.Zero(t, drawState)
}

func TestMalformedResultIsIgnored(t *testing.T) {
	h := newHarness(t, testOptions(), 0)

	assert.Zero(t, h.feed(res(types.DraftClassPick, 1)))
	assert.Zero(t, h.feed(res(types.GameClassShow)))
	assert.Zero(t, h.feed(res(types.Kind(42), 1)))

	deckState, _, _ := h.m.ArmedSets()
	assert.True(t, deckState.Has(types.DraftClassPick))
}

type panickyDB struct{ *carddb.DB }

func (panickyDB) Hero(int) types.Hero { panic("hero table corrupted") }

func TestPanicInRuleDoesNotEscape(t *testing.T) {
	h := newHarness(t, testOptions(), 0)
	h.m.deps.DB = panickyDB{h.db}

	assert.NotPanics(t, func() {
		assert.Zero(t, h.feed(res(types.GameClassShow, 1, 2)))
	})
	// the lock was released
	assert.Equal(t, 1, h.feed(res(types.DraftCardPick, 1, 2, 3)))
}

func TestDraftInvariantsUnderRandomInput(t *testing.T) {
	h := newHarness(t, testOptions(), 0)
	rng := rand.New(rand.NewSource(1))

	gameEnds := 0
	for i := 0; i < 5000; i++ {
		var r types.Result
		switch rng.Intn(5) {
		case 0:
			if rng.Intn(50) == 0 {
				r = res(types.DraftClassPick, 1, 2, 3)
			} else {
				r = res(types.DraftCardChosen, rng.Intn(4))
			}
		case 1, 2:
			base := rng.Intn(60)
			r = res(types.DraftCardPick, base+1, base+2, base+3)
		case 3:
			r = res(types.DraftCardChosen, rng.Intn(3))
		case 4:
			r = res(types.GameEnd, rng.Intn(2))
		}

		applied := h.feed(r)
		if r.Source == types.DraftClassPick && applied == 1 {
			gameEnds = 0
		}
		if r.Source == types.GameEnd && applied == 1 {
			gameEnds++
		}

		require.LessOrEqual(t, len(h.m.deck.Picks()), len(h.m.deck.Sets()))
		require.LessOrEqual(t, len(h.m.deck.Picks()), deck.Size)
		wins, losses := h.m.Score()
		require.Equal(t, gameEnds, wins+losses)
		if h.m.deck.IsComplete() {
			require.Len(t, h.m.deck.Picks(), deck.Size)
		}
	}
}

type recordingProcessor struct {
	calls []string
}

func (p *recordingProcessor) Process(user, cmd string, isMod, isSuperUser bool) string {
	p.calls = append(p.calls, fmt.Sprintf("%s %s %t %t", user, cmd, isMod, isSuperUser))
	return "ok"
}

func TestProcessCommand(t *testing.T) {
	h := newHarness(t, testOptions(), 0)

	assert.Empty(t, h.m.ProcessCommand("alice", "!score", false, false), "no processor installed")

	p := &recordingProcessor{}
	h.m.SetCommandProcessor(p)
	assert.Empty(t, h.m.ProcessCommand("alice", "hello", true, false))
	assert.Empty(t, h.m.ProcessCommand("alice", "", true, false))
	assert.Equal(t, "ok", h.m.ProcessCommand("alice", "!score", true, false))
	assert.Equal(t, []string{"alice !score true false"}, p.calls)
}

func TestSettersAndGetters(t *testing.T) {
	h := newHarness(t, testOptions(), 0)

	assert.Error(t, h.m.SetScore(-1, 0))
	require.NoError(t, h.m.SetDeckClass("hero3"))
	hero, _, _ := h.m.DeckSummary()
	assert.Equal(t, "Hero3", hero)
	assert.Error(t, h.m.SetDeckClass("nobody"))

	assert.Error(t, h.m.SetPick(1, 5), "no pick yet")
	h.feed(res(types.DraftCardPick, 1, 2, 3))
	h.feed(res(types.DraftCardChosen, 0))
	require.NoError(t, h.m.SetPick(1, 5))
	assert.Equal(t, 5, h.m.deck.Picks()[0].ID)

	h.m.ClearDeck()
	_, picks, _ := h.m.DeckSummary()
	assert.Zero(t, picks)
	assert.False(t, h.m.ShouldUpdateDeck())
}
