package config

import (
	"fmt"
	"regexp"
	"strings"
)

var streamerPattern = regexp.MustCompile(`^[a-z0-9_\-]+$`)

// Defaults for tunables that are stable within a release
const (
	DefaultPassedFramesThreshold  = 30
	DefaultPassedCardRecognitions = 2
	DefaultPollRetryCount         = 3
)

// Validate checks if the configuration is valid and fills defaults
func Validate(cfg *Config) error {
	// Validate streamer identity
	if cfg.Stream.Streamer == "" {
		return fmt.Errorf("stream.streamer is required")
	}
	if !streamerPattern.MatchString(cfg.Stream.Streamer) {
		return fmt.Errorf("stream.streamer must match pattern [a-z0-9_-]+")
	}
	if cfg.Stream.StreamerName == "" {
		cfg.Stream.StreamerName = cfg.Stream.Streamer
	}
	if cfg.Stream.Width <= 0 || cfg.Stream.Height <= 0 {
		cfg.Stream.Width, cfg.Stream.Height = 1280, 720
	}

	if cfg.Paths.CardDatabase == "" {
		return fmt.Errorf("paths.card_database is required")
	}
	if cfg.Paths.StatePathFormat == "" {
		cfg.Paths.StatePathFormat = "state/%s.yaml"
	}
	if !strings.Contains(cfg.Paths.StatePathFormat, "%s") {
		return fmt.Errorf("paths.state_path_format must contain %%s")
	}

	// Recognition tunables
	if cfg.Recognition.PassedFramesThreshold <= 0 {
		cfg.Recognition.PassedFramesThreshold = DefaultPassedFramesThreshold
	}
	if cfg.Recognition.PassedCardRecognitions <= 0 {
		cfg.Recognition.PassedCardRecognitions = DefaultPassedCardRecognitions
	}
	if cfg.Recognition.PollRetryCount < 0 {
		return fmt.Errorf("image_recognition.poll_retry_count must be >= 0")
	}
	if cfg.Recognition.PollRetryCount == 0 {
		cfg.Recognition.PollRetryCount = DefaultPollRetryCount
	}

	if !cfg.Debugging.Enabled {
		cfg.Debugging = DebuggingConfig{}
	}
	if cfg.Debugging.ImageDir == "" {
		cfg.Debugging.ImageDir = "debug"
	}

	// Site endpoints
	if cfg.Site.TimeoutS <= 0 {
		cfg.Site.TimeoutS = 10
	}
	if cfg.Site.ImageHostURL == "" {
		cfg.Site.ImageHostURL = "https://api.imgur.com/3/image"
	}
	if cfg.Site.PasteHostURL == "" {
		cfg.Site.PasteHostURL = "https://hastebin.com"
	}
	if cfg.Site.StrawpollURL == "" {
		cfg.Site.StrawpollURL = "https://strawpoll.me/api/v2/polls"
	}

	if err := validateBot(&cfg.Bot, cfg.Stream.Streamer); err != nil {
		return fmt.Errorf("bot validation failed: %w", err)
	}
	if err := validateStore(&cfg.Store); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}

	return nil
}

func validateBot(bot *BotConfig, streamer string) error {
	switch bot.Transport {
	case "", "mqtt":
		bot.Transport = "mqtt"
		if bot.Broker == "" {
			bot.Broker = "tcp://localhost:1883"
		}
	case "nats":
		if bot.Broker == "" {
			bot.Broker = "nats://localhost:4222"
		}
	default:
		return fmt.Errorf("unknown transport %q (must be 'mqtt' or 'nats')", bot.Transport)
	}

	if bot.ClientID == "" {
		bot.ClientID = "hsstream-" + streamer
	}

	// Set default topics if not provided
	sep := "/"
	if bot.Transport == "nats" {
		sep = "."
	}
	if bot.Topics.Outgoing == "" {
		bot.Topics.Outgoing = strings.Join([]string{"hs", "chat", streamer, "out"}, sep)
	}
	if bot.Topics.Incoming == "" {
		bot.Topics.Incoming = strings.Join([]string{"hs", "chat", streamer, "in"}, sep)
	}

	if bot.RatePerSec <= 0 {
		bot.RatePerSec = 1
	}
	if bot.Burst <= 0 {
		bot.Burst = 3
	}
	if bot.TimeUnitMS <= 0 {
		bot.TimeUnitMS = 1000
	}
	return nil
}

func validateStore(st *StoreConfig) error {
	switch st.Backend {
	case "", "file":
		st.Backend = "file"
	case "redis":
		if st.RedisAddr == "" {
			st.RedisAddr = "localhost:6379"
		}
		if st.RedisPrefix == "" {
			st.RedisPrefix = "hsstream:state:"
		}
	case "sqlite":
		if st.SQLitePath == "" {
			st.SQLitePath = "state/hsstream.db"
		}
	default:
		return fmt.Errorf("unknown backend %q (must be 'file', 'redis' or 'sqlite')", st.Backend)
	}
	return nil
}
