package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	ShutdownTimeoutS int               `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Stream           StreamConfig      `yaml:"stream"`
	Paths            PathsConfig       `yaml:"paths"`
	Recognition      RecognitionConfig `yaml:"image_recognition"`
	Debugging        DebuggingConfig   `yaml:"debugging"`
	Site             SiteConfig        `yaml:"site_interfacing"`
	Bot              BotConfig         `yaml:"bot"`
	Store            StoreConfig       `yaml:"store"`
	HTTP             HTTPConfig        `yaml:"http"`
}

// StreamConfig describes the watched stream
type StreamConfig struct {
	Streamer     string   `yaml:"streamer"`      // identity used to key persisted state
	StreamerName string   `yaml:"streamer_name"` // display name used in announcements
	Sources      []string `yaml:"sources"`       // URIs decoded in order
	Livestream   bool     `yaml:"livestream"`
	Width        int      `yaml:"width"`
	Height       int      `yaml:"height"`
}

// PathsConfig contains filesystem locations
type PathsConfig struct {
	CardDatabase    string `yaml:"card_database"`
	StatePathFormat string `yaml:"state_path_format"` // %s is replaced by the streamer
}

// RecognitionConfig contains worker pool and debounce settings
type RecognitionConfig struct {
	Threads                int      `yaml:"threads"` // <= 0 means hardware parallelism
	RecognizerCommand      []string `yaml:"recognizer_command"`
	PassedFramesThreshold  int64    `yaml:"passed_frames_threshold"`
	PassedCardRecognitions int      `yaml:"passed_card_recognitions"`
	PollRetryCount         int      `yaml:"poll_retry_count"`
}

// DebuggingConfig mirrors the debug switches of the pipeline
type DebuggingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	DebugLevel  int    `yaml:"debug_level"` // bit 1: timing, bit 2: display, bit 4: snapshots
	StreamIndex int    `yaml:"stream_index"`
	StreamPos   int64  `yaml:"stream_pos"`
	WaitKeyTime int    `yaml:"wait_key_time"` // ms, 0 waits for Enter
	ImageDir    string `yaml:"image_dir"`
}

// SiteConfig contains the external service endpoints
type SiteConfig struct {
	SubmitDeck    string `yaml:"submit_deck"` // {0} hero class, {1} encoded deck
	DrawCard      string `yaml:"draw_card"`   // {0} zero padded card id
	ResetDraws    string `yaml:"reset_draws"`
	ImageHostURL  string `yaml:"image_host_url"`
	ImgurClientID string `yaml:"imgur_client_id"`
	PasteHostURL  string `yaml:"paste_host_url"`
	StrawpollURL  string `yaml:"strawpoll_url"`
	TimeoutS      int    `yaml:"timeout_s"`
}

// BotConfig contains chat bot transport settings
type BotConfig struct {
	Transport  string    `yaml:"transport"` // mqtt or nats
	Broker     string    `yaml:"broker"`
	ClientID   string    `yaml:"client_id"`
	Topics     BotTopics `yaml:"topics"`
	QoS        byte      `yaml:"qos"`
	RatePerSec float64   `yaml:"rate_per_sec"`
	Burst      int       `yaml:"burst"`
	TimeUnitMS int       `yaml:"time_unit_ms"` // unit for delays, repeat spans and offsets
}

// BotTopics contains topic (or subject) names
type BotTopics struct {
	Outgoing string `yaml:"outgoing"`
	Incoming string `yaml:"incoming"`
}

// StoreConfig selects the persistent state backend
type StoreConfig struct {
	Backend       string `yaml:"backend"` // file, redis or sqlite
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
	SQLitePath    string `yaml:"sqlite_path"`
}

// HTTPConfig contains status server settings
type HTTPConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// Load reads and parses a YAML configuration file, applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration bytes, applies environment overrides and
// validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HS_IMGUR_CLIENT_ID"); v != "" {
		cfg.Site.ImgurClientID = v
	}
	if v := os.Getenv("HS_REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPassword = v
	}
	if v := os.Getenv("HS_BROKER_URL"); v != "" {
		cfg.Bot.Broker = v
	}
}

// ShutdownTimeout returns the configured graceful shutdown timeout
// Returns default of 5 seconds if not configured
func (c *Config) ShutdownTimeout() time.Duration {
	timeout := time.Duration(c.ShutdownTimeoutS) * time.Second
	if timeout == 0 {
		return 5 * time.Second
	}
	return timeout
}
