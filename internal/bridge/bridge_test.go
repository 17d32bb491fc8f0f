package bridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/pidloop/internal/pid"
)

func newTestHandler(clock *pid.ManualClock) *Handler {
	ctrl := pid.New(1, 0, 0, 0, 100, -100, 0, 0, pid.WithClock(clock))
	return NewHandler(ctrl, 10, Config{Prefix: "plant"}.Topics(), nil)
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(func(string) string { return "" })
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.BrokerURL())
	assert.Equal(t, DefaultClient, cfg.ClientID)
	assert.Equal(t, "pidloop/feedback", cfg.Topics().Feedback)
	assert.Equal(t, byte(0), cfg.QoS)
}

func TestFromEnvOverrides(t *testing.T) {
	env := map[string]string{
		"PIDLOOP_MQTT_BROKER":   "broker.local",
		"PIDLOOP_MQTT_PORT":     "8883",
		"PIDLOOP_MQTT_USERNAME": "ops",
		"PIDLOOP_MQTT_PREFIX":   "line/3/",
		"PIDLOOP_MQTT_QOS":      "1",
	}
	cfg, err := FromEnv(func(k string) string { return env[k] })
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker.local:8883", cfg.BrokerURL())
	assert.Equal(t, "ops", cfg.Username)
	assert.Equal(t, "line/3/output", cfg.Topics().Output)
	assert.Equal(t, byte(1), cfg.QoS)

	cfg.Broker = "ssl://secure.example:8883"
	assert.Equal(t, "ssl://secure.example:8883", cfg.BrokerURL())
}

func TestFromEnvInvalid(t *testing.T) {
	for _, env := range []map[string]string{
		{"PIDLOOP_MQTT_PORT": "abc"},
		{"PIDLOOP_MQTT_PORT": "70000"},
		{"PIDLOOP_MQTT_QOS": "3"},
	} {
		_, err := FromEnv(func(k string) string { return env[k] })
		assert.Error(t, err, "%v", env)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PIDLOOP_MQTT_CLIENT_ID=from-file\nPIDLOOP_MQTT_PREFIX=cell\n"), 0644))
	t.Setenv("PIDLOOP_MQTT_PREFIX", "from-env")

	cfg, err := LoadEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.ClientID)
	assert.Equal(t, "from-env", cfg.Prefix)
}

func TestHandlerFeedbackSteps(t *testing.T) {
	clock := &pid.ManualClock{T: 1}
	h := newTestHandler(clock)

	msg, ok, err := h.Dispatch("plant/feedback", []byte("0"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "plant/output", msg.Topic)
	assert.Equal(t, "0", string(msg.Payload))

	clock.T = 2
	msg, ok, err = h.Dispatch("plant/feedback", []byte(" 0\n"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10", string(msg.Payload))
}

func TestHandlerSetpoint(t *testing.T) {
	clock := &pid.ManualClock{T: 1}
	h := newTestHandler(clock)

	_, ok, err := h.Dispatch("plant/setpoint", []byte("4.5"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4.5, h.Setpoint())

	_, err = h.HandleFeedback([]byte("0"))
	require.NoError(t, err)
	clock.T = 2
	out, err := h.HandleFeedback([]byte("0.5"))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, out, 1e-12)
}

func TestHandlerReset(t *testing.T) {
	clock := &pid.ManualClock{T: 1}
	h := newTestHandler(clock)

	_, _ = h.HandleFeedback([]byte("0"))
	clock.T = 2
	_, _ = h.HandleFeedback([]byte("0"))

	_, ok, err := h.Dispatch("plant/reset", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, h.ctrl.Running())
	assert.Zero(t, h.ctrl.State().Out)
}

func TestHandlerTuneKeepsOmittedFields(t *testing.T) {
	h := newTestHandler(&pid.ManualClock{T: 1})

	_, _, err := h.Dispatch("plant/tune", []byte(`{"ki": 0.5, "windup": 3}`))
	require.NoError(t, err)

	tuning := h.ctrl.Tuning()
	assert.Equal(t, 1.0, tuning.Kp)
	assert.Equal(t, 0.5, tuning.Ki)
	assert.Equal(t, 3.0, tuning.Windup)
	assert.Equal(t, pid.Limits{Hi: 100, Lo: -100}, h.ctrl.Limits())
}

func TestHandlerRejectsBadPayloads(t *testing.T) {
	h := newTestHandler(&pid.ManualClock{T: 1})

	for _, tc := range []struct {
		topic   string
		payload string
	}{
		{"plant/setpoint", "fast"},
		{"plant/setpoint", "NaN"},
		{"plant/feedback", "+Inf"},
		{"plant/feedback", ""},
		{"plant/tune", `{"kp": "high"}`},
		{"plant/tune", `{"gain": 1}`},
	} {
		_, _, err := h.Dispatch(tc.topic, []byte(tc.payload))
		assert.ErrorIs(t, err, ErrBadPayload, "%s %q", tc.topic, tc.payload)
	}

	assert.Equal(t, 10.0, h.Setpoint())
	assert.False(t, h.ctrl.Running())
	assert.Equal(t, 1.0, h.ctrl.Tuning().Kp)
}

func TestHandlerUnknownTopic(t *testing.T) {
	h := newTestHandler(&pid.ManualClock{T: 1})
	_, _, err := h.Dispatch("plant/other", []byte("1"))
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestClientOptions(t *testing.T) {
	cfg := Config{Broker: "broker.local", Port: 1883, ClientID: "cell-7", Username: "ops", Prefix: "cell"}
	b := New(cfg, newTestHandler(&pid.ManualClock{T: 1}), nil)

	opts := b.clientOptions()
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://broker.local:1883", opts.Servers[0].String())
	assert.Equal(t, "cell-7", opts.ClientID)
	assert.Equal(t, "ops", opts.Username)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "cell/status", opts.WillTopic)
}

func TestRunStopsWhileBrokerUnreachable(t *testing.T) {
	cfg := Config{Broker: "127.0.0.1", Port: 1, ClientID: "unreachable", Prefix: "cell"}
	b := New(cfg, newTestHandler(&pid.ManualClock{T: 1}), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the context was cancelled")
	}
}
