package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
stream:
  streamer: forsen
  sources: ["file:///tmp/vod.mp4"]
paths:
  card_database: data/cards.yaml
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "forsen", cfg.Stream.StreamerName)
	assert.Equal(t, 1280, cfg.Stream.Width)
	assert.Equal(t, "state/%s.yaml", cfg.Paths.StatePathFormat)
	assert.EqualValues(t, DefaultPassedFramesThreshold, cfg.Recognition.PassedFramesThreshold)
	assert.Equal(t, DefaultPassedCardRecognitions, cfg.Recognition.PassedCardRecognitions)
	assert.Equal(t, DefaultPollRetryCount, cfg.Recognition.PollRetryCount)
	assert.Equal(t, "mqtt", cfg.Bot.Transport)
	assert.Equal(t, "hs/chat/forsen/out", cfg.Bot.Topics.Outgoing)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestParseNATSTopicsUseDots(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig + "bot:\n  transport: nats\n"))
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", cfg.Bot.Broker)
	assert.Equal(t, "hs.chat.forsen.in", cfg.Bot.Topics.Incoming)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing streamer", "paths:\n  card_database: x\n"},
		{"bad streamer", "stream:\n  streamer: \"Bad Name\"\npaths:\n  card_database: x\n"},
		{"missing card db", "stream:\n  streamer: a\n"},
		{"bad state format", minimalConfig + "  state_path_format: state.yaml\n"},
		{"bad transport", minimalConfig + "bot:\n  transport: irc\n"},
		{"bad backend", minimalConfig + "store:\n  backend: etcd\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDebuggingDisabledIsZeroed(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig + "debugging:\n  enabled: false\n  debug_level: 7\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Debugging.DebugLevel)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HS_IMGUR_CLIENT_ID", "abc123")
	t.Setenv("HS_BROKER_URL", "tcp://broker:1883")

	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.Site.ImgurClientID)
	assert.Equal(t, "tcp://broker:1883", cfg.Bot.Broker)
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	_, err = Load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}
