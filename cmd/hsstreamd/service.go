package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/bot"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/carddb"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/command"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/config"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/control"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/core"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/debugimg"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/dispatch"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/recognizer"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/server"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/site"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/store"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/stream"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/transport"
)

// service owns every component of the daemon
type service struct {
	cfg *config.Config

	store   store.Store
	conn    transport.Conn
	bot     *bot.Client
	effects *dispatch.Dispatcher
	mgr     *core.Manager
	chat    *control.Handler
	http    *server.Server

	pipeMu sync.Mutex
	src    stream.Source
	rec    recognizer.Recognizer

	effectsCtx    context.Context
	effectsCancel context.CancelFunc
	effectsDone   chan struct{}
	pipelineDone  chan struct{}
}

// newService loads configuration and builds the components. Nothing is
// connected or started yet.
func newService(configPath string) (*service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("configuration loaded",
		"streamer", cfg.Stream.Streamer,
		"sources", len(cfg.Stream.Sources),
		"transport", cfg.Bot.Transport,
		"store", cfg.Store.Backend,
		"debug_level", cfg.Debugging.DebugLevel,
	)

	db, err := carddb.Load(cfg.Paths.CardDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to load card database: %w", err)
	}

	st, err := store.Open(cfg.Store, cfg.Paths.StatePathFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	conn, err := transport.New(cfg.Bot)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	botClient := bot.NewClient(conn, bot.Config{
		Topic:      cfg.Bot.Topics.Outgoing,
		RatePerSec: cfg.Bot.RatePerSec,
		Burst:      cfg.Bot.Burst,
		TimeUnit:   time.Duration(cfg.Bot.TimeUnitMS) * time.Millisecond,
	})

	effects := dispatch.New()
	deps := core.Deps{
		DB:      db,
		Bot:     botClient,
		Site:    site.NewClient(cfg.Site),
		Store:   st,
		Effects: effects,
	}
	if cfg.Debugging.Enabled {
		saver, err := debugimg.NewSaver(cfg.Debugging.ImageDir, cfg.Debugging.WaitKeyTime, os.Stdin)
		if err != nil {
			st.Close()
			return nil, err
		}
		deps.Images = saver
	}

	mgr, err := core.New(core.OptionsFromConfig(cfg), deps)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}
	mgr.SetCommandProcessor(command.NewProcessor(mgr, cfg.ShutdownTimeout()))

	chat := control.NewHandler(conn, cfg.Bot.Topics.Incoming, mgr, botClient)

	effectsCtx, effectsCancel := context.WithCancel(context.Background())
	s := &service{
		cfg:           cfg,
		store:         st,
		conn:          conn,
		bot:           botClient,
		effects:       effects,
		mgr:           mgr,
		chat:          chat,
		http:          server.New(cfg.HTTP, mgr, conn, chat),
		effectsCtx:    effectsCtx,
		effectsCancel: effectsCancel,
		effectsDone:   make(chan struct{}),
		pipelineDone:  make(chan struct{}),
	}

	go func() {
		defer close(s.effectsDone)
		s.effects.Run(s.effectsCtx)
	}()

	return s, nil
}

// Run connects the transport, restores state and runs the pipeline until
// the stream ends or ctx is cancelled
func (s *service) Run(ctx context.Context) error {
	defer close(s.pipelineDone)

	if err := s.conn.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect chat transport: %w", err)
	}

	if err := s.mgr.LoadState(ctx); err != nil {
		slog.Warn("failed to load state, starting fresh", "error", err)
	}

	if err := s.chat.Start(ctx); err != nil {
		return err
	}

	go func() {
		if err := s.http.Start(); err != nil {
			slog.Error("http server error", "error", err)
		}
	}()

	src, err := s.openSource()
	if err != nil {
		return err
	}
	rec, err := s.openRecognizer(ctx)
	if err != nil {
		src.Close()
		return err
	}

	s.pipeMu.Lock()
	s.src, s.rec = src, rec
	s.pipeMu.Unlock()

	return s.mgr.Run(ctx, src, rec)
}

func (s *service) openSource() (stream.Source, error) {
	if len(s.cfg.Stream.Sources) == 0 {
		slog.Warn("no stream sources configured, using synthetic frames")
		return stream.NewSyntheticSource(s.cfg.Stream.Width, s.cfg.Stream.Height, 0, nil), nil
	}
	src, err := stream.NewGstSource(stream.GstConfig{
		Sources:    s.cfg.Stream.Sources,
		Width:      s.cfg.Stream.Width,
		Height:     s.cfg.Stream.Height,
		Livestream: s.cfg.Stream.Livestream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	return src, nil
}

func (s *service) openRecognizer(ctx context.Context) (recognizer.Recognizer, error) {
	if len(s.cfg.Recognition.RecognizerCommand) == 0 {
		if len(s.cfg.Stream.Sources) > 0 {
			return nil, fmt.Errorf("image_recognition.recognizer_command is required")
		}
		slog.Warn("no recognizer configured, frames are not recognized")
		return recognizer.Script(nil), nil
	}
	rec, err := recognizer.NewProcessRecognizer(ctx, s.cfg.Recognition.RecognizerCommand, s.mgr.Workers())
	if err != nil {
		return nil, fmt.Errorf("failed to start recognizer: %w", err)
	}
	return rec, nil
}

// ShutdownTimeout returns the configured graceful shutdown timeout
func (s *service) ShutdownTimeout() time.Duration {
	return s.cfg.ShutdownTimeout()
}

// Shutdown stops the pipeline, persists state and releases every component
func (s *service) Shutdown(ctx context.Context) error {
	var errs []error

	s.pipeMu.Lock()
	src, rec := s.src, s.rec
	s.pipeMu.Unlock()

	if src != nil {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close source: %w", err))
		}
	}
	select {
	case <-s.pipelineDone:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("pipeline did not stop: %w", ctx.Err()))
	}
	if closer, ok := rec.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close recognizer: %w", err))
		}
	}

	s.chat.Stop()
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := s.mgr.SaveState(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to save state: %w", err))
	}

	// pending uploads and messages get the rest of the shutdown budget
	if err := s.effects.Flush(ctx); err != nil {
		slog.Warn("pending effects dropped", "error", err)
	}
	s.effects.Close()
	s.effectsCancel()
	<-s.effectsDone

	s.bot.Close()
	if err := s.conn.Disconnect(); err != nil {
		errs = append(errs, fmt.Errorf("failed to disconnect transport: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}

	return errors.Join(errs...)
}
