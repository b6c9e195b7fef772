// Package command implements the chat command grammar on top of the
// manager's setters and getters.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// Target is the part of the manager commands drive
type Target interface {
	Features() types.Feature
	SetFeature(f types.Feature, on bool)
	Score() (wins, losses int)
	SetScore(wins, losses int) error
	DeckMessage() string
	DeckSummary() (hero string, picks, missed int)
	AnnounceDeck()
	SetShouldUpdateDeck(v bool)
	SetDeckClass(name string) error
	SetPick(n, cardID int) error
	ClearDeck()
	SaveState(ctx context.Context) error
	LoadState(ctx context.Context) error
	ArmedSets() (deckState, gameState, drawState types.KindSet)
}

// Level is the privilege a command requires
type Level int

const (
	Anyone Level = iota
	Moderator
	SuperUser
)

type command struct {
	level Level
	usage string
	run   func(p *Processor, args []string) string
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"!help":       {Anyone, "!help", (*Processor).help},
		"!score":      {Anyone, "!score", (*Processor).score},
		"!deck":       {Anyone, "!deck", (*Processor).deck},
		"!flags":      {Anyone, "!flags", (*Processor).flags},
		"!enable":     {Moderator, "!enable <flag>", (*Processor).enable},
		"!disable":    {Moderator, "!disable <flag>", (*Processor).disable},
		"!setscore":   {Moderator, "!setscore <wins> <losses>", (*Processor).setScore},
		"!deckupdate": {Moderator, "!deckupdate", (*Processor).deckUpdate},
		"!deckclass":  {Moderator, "!deckclass <hero>", (*Processor).deckClass},
		"!setpick":    {Moderator, "!setpick <pick> <card id>", (*Processor).setPick},
		"!armed":      {Moderator, "!armed", (*Processor).armed},
		"!deckclear":  {SuperUser, "!deckclear", (*Processor).deckClear},
		"!save":       {SuperUser, "!save", (*Processor).save},
		"!load":       {SuperUser, "!load", (*Processor).load},
	}
}

// Processor parses chat commands and applies them to a Target
type Processor struct {
	target  Target
	timeout time.Duration

	// caller of the command being processed
	level Level
}

// NewProcessor creates a processor. timeout bounds state save and load.
func NewProcessor(target Target, timeout time.Duration) *Processor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Processor{target: target, timeout: timeout}
}

// Process runs cmd for user and returns the reply. Unknown commands and
// commands the user may not run yield "" so that commands meant for other
// bots pass silently.
func (p *Processor) Process(user, cmd string, isMod, isSuperUser bool) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	name := strings.ToLower(fields[0])
	c, ok := commands[name]
	if !ok {
		return ""
	}

	level := Anyone
	switch {
	case isSuperUser:
		level = SuperUser
	case isMod:
		level = Moderator
	}
	if level < c.level {
		slog.Debug("command denied", "user", user, "command", name)
		return ""
	}

	// "!score -arena" and friends belong to the score bot
	if name == "!score" && len(fields) > 1 {
		return ""
	}

	slog.Info("command received", "user", user, "command", name, "args", fields[1:])
	q := *p
	q.level = level
	return c.run(&q, fields[1:])
}

func (p *Processor) help(_ []string) string {
	var usages []string
	for _, c := range commands {
		if c.level <= p.level {
			usages = append(usages, c.usage)
		}
	}
	sort.Strings(usages)
	return "commands: " + strings.Join(usages, ", ")
}

func (p *Processor) score(_ []string) string {
	wins, losses := p.target.Score()
	return fmt.Sprintf("current score: %d-%d", wins, losses)
}

func (p *Processor) deck(_ []string) string {
	if msg := p.target.DeckMessage(); msg != "" {
		return msg
	}
	hero, picks, missed := p.target.DeckSummary()
	if picks == 0 {
		return "no deck drafted yet"
	}
	if hero == "" {
		hero = "unknown class"
	}
	return fmt.Sprintf("drafting %s: %d picks, %d missed", hero, picks, missed)
}

func (p *Processor) flags(_ []string) string {
	current := p.target.Features()
	parts := make([]string, 0, len(types.Features()))
	for _, f := range types.Features() {
		state := "off"
		if current&f != 0 {
			state = "on"
		}
		parts = append(parts, f.String()+"="+state)
	}
	return strings.Join(parts, " ")
}

func (p *Processor) enable(args []string) string {
	return p.toggle(args, true)
}

func (p *Processor) disable(args []string) string {
	return p.toggle(args, false)
}

func (p *Processor) toggle(args []string, on bool) string {
	if len(args) != 1 {
		if on {
			return "usage: " + commands["!enable"].usage
		}
		return "usage: " + commands["!disable"].usage
	}
	f, ok := types.ParseFeature(strings.ToLower(args[0]))
	if !ok {
		return fmt.Sprintf("unknown flag %q", args[0])
	}
	p.target.SetFeature(f, on)
	state := "disabled"
	if on {
		state = "enabled"
	}
	return fmt.Sprintf("%s %s", f, state)
}

func (p *Processor) setScore(args []string) string {
	if len(args) != 2 {
		return "usage: " + commands["!setscore"].usage
	}
	wins, err1 := strconv.Atoi(args[0])
	losses, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return "usage: " + commands["!setscore"].usage
	}
	if err := p.target.SetScore(wins, losses); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("score set to %d-%d", wins, losses)
}

func (p *Processor) deckUpdate(_ []string) string {
	p.target.SetShouldUpdateDeck(true)
	p.target.AnnounceDeck()
	return "deck update queued"
}

func (p *Processor) deckClass(args []string) string {
	if len(args) == 0 {
		return "usage: " + commands["!deckclass"].usage
	}
	hero := strings.Join(args, " ")
	if err := p.target.SetDeckClass(hero); err != nil {
		return err.Error()
	}
	return "deck class set to " + hero
}

func (p *Processor) setPick(args []string) string {
	if len(args) != 2 {
		return "usage: " + commands["!setpick"].usage
	}
	n, err1 := strconv.Atoi(args[0])
	id, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return "usage: " + commands["!setpick"].usage
	}
	if err := p.target.SetPick(n, id); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("pick %d updated", n)
}

func (p *Processor) armed(_ []string) string {
	deckState, gameState, drawState := p.target.ArmedSets()
	return fmt.Sprintf("deck=%s game=%s draw=%s", deckState, gameState, drawState)
}

func (p *Processor) deckClear(_ []string) string {
	p.target.ClearDeck()
	return "deck cleared"
}

func (p *Processor) save(_ []string) string {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.target.SaveState(ctx); err != nil {
		slog.Error("failed to save state", "error", err)
		return "failed to save state"
	}
	return "state saved"
}

func (p *Processor) load(_ []string) string {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.target.LoadState(ctx); err != nil {
		slog.Error("failed to load state", "error", err)
		return "failed to load state"
	}
	return "state loaded"
}
