package core

import (
	"context"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// Bot sends chat messages. Delays, spans and offsets are in bot time units.
type Bot interface {
	Message(text string)
	MessageAfter(text string, delay int)
	RepeatMessage(text string, count, span, offset int)
}

// Site reaches the external web services
type Site interface {
	// CallAPI substitutes args into pattern ({0}, {1}, ...) and calls it
	CallAPI(ctx context.Context, pattern string, args ...string) error
	// CreateStrawpoll returns the poll URL, or "" on failure
	CreateStrawpoll(ctx context.Context, question string, options []string) string
	CreateImage(ctx context.Context, png []byte) (string, error)
	CreatePaste(ctx context.Context, text []byte) (string, error)
}

// CardDB resolves card and hero ids
type CardDB interface {
	Card(id int) types.Card
	Hero(id int) types.Hero
	HeroByName(name string) (types.Hero, bool)
}

// CommandProcessor interprets chat commands. The returned text is the
// reply; "" means silence.
type CommandProcessor interface {
	Process(user, cmd string, isMod, isSuperUser bool) string
}

// ImageSaver persists frames for debugging
type ImageSaver interface {
	Snapshot(frame types.Frame, label string) (string, error)
	Display(ctx context.Context, frame types.Frame) error
}

// Effects runs side effects in order, outside the state lock
type Effects interface {
	Enqueue(name string, run func(ctx context.Context))
}
