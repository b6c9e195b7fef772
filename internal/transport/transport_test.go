package transport

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/config"
)

func TestNewSelectsImplementation(t *testing.T) {
	c, err := New(config.BotConfig{Transport: "mqtt", Broker: "tcp://localhost:1883", ClientID: "x"})
	require.NoError(t, err)
	assert.IsType(t, &MQTTConn{}, c)

	c, err = New(config.BotConfig{Transport: "nats", Broker: "nats://localhost:4222", ClientID: "x"})
	require.NoError(t, err)
	assert.IsType(t, &NATSConn{}, c)

	_, err = New(config.BotConfig{Transport: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestPublishBeforeConnect(t *testing.T) {
	for _, c := range []Conn{
		NewMQTTConn("tcp://localhost:1883", "x", 0),
		NewNATSConn("nats://localhost:4222", "x"),
		NewLoopback(),
	} {
		assert.ErrorIs(t, c.Publish("t", []byte("x")), ErrNotConnected)
		assert.False(t, c.IsConnected())
	}
}

func TestLoopbackDelivers(t *testing.T) {
	l := NewLoopback()
	require.NoError(t, l.Connect(context.Background()))

	var got []string
	require.NoError(t, l.Subscribe("in", func(p []byte) { got = append(got, string(p)) }))

	require.NoError(t, l.Publish("in", []byte("hello")))
	require.NoError(t, l.Publish("out", []byte("ignored")))

	assert.Equal(t, []string{"hello"}, got)
	assert.Len(t, l.Messages("out"), 1)

	stats := l.Stats()
	assert.Equal(t, uint64(1), stats.Published["in"])
	assert.Equal(t, uint64(1), stats.Received)
}

// exerciseBroker checks a real broker round trip
func exerciseBroker(t *testing.T, c Conn, topic string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	got := make(chan string, 1)
	require.NoError(t, c.Subscribe(topic, func(p []byte) { got <- string(p) }))
	require.NoError(t, c.Publish(topic, []byte("ping")))

	select {
	case msg := <-got:
		assert.Equal(t, "ping", msg)
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestMQTTBroker(t *testing.T) {
	broker := os.Getenv("HS_TEST_MQTT_BROKER")
	if broker == "" {
		t.Skip("HS_TEST_MQTT_BROKER not set")
	}
	exerciseBroker(t, NewMQTTConn(broker, "hsstream-test", 1), "hs/test/transport")
}

func TestNATSBroker(t *testing.T) {
	url := os.Getenv("HS_TEST_NATS_URL")
	if url == "" {
		t.Skip("HS_TEST_NATS_URL not set")
	}
	exerciseBroker(t, NewNATSConn(url, "hsstream-test"), "hs.test.transport")
}
