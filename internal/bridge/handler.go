package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/san-kum/pidloop/internal/pid"
)

var (
	ErrBadPayload   = errors.New("bridge: bad payload")
	ErrUnknownTopic = errors.New("bridge: unknown topic")
)

// Message is an outgoing publish.
type Message struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// Handler holds the controller shared by the broker callbacks. All access
// to the controller goes through mu.
type Handler struct {
	mu       sync.Mutex
	ctrl     *pid.Controller
	setpoint float64
	topics   Topics
	log      *zap.Logger
}

func NewHandler(ctrl *pid.Controller, setpoint float64, topics Topics, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{ctrl: ctrl, setpoint: setpoint, topics: topics, log: log}
}

func parseValue(payload []byte) (float64, error) {
	s := strings.TrimSpace(string(payload))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a finite number", ErrBadPayload, s)
	}
	return v, nil
}

func (h *Handler) Setpoint() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.setpoint
}

func (h *Handler) HandleSetpoint(payload []byte) error {
	v, err := parseValue(payload)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.setpoint = v
	h.mu.Unlock()
	h.log.Debug("setpoint updated", zap.Float64("setpoint", v))
	return nil
}

// HandleFeedback steps the controller with the sample, timed by the
// controller's own clock, and returns the correction.
func (h *Handler) HandleFeedback(payload []byte) (float64, error) {
	fb, err := parseValue(payload)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	out := h.ctrl.Step(h.setpoint, fb, 0)
	h.mu.Unlock()

	return out, nil
}

func (h *Handler) HandleReset() {
	h.mu.Lock()
	h.ctrl.Reset()
	h.mu.Unlock()
	h.log.Info("controller reset")
}

// HandleTune decodes a JSON tuning onto the current one; omitted fields keep
// their values.
func (h *Handler) HandleTune(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.ctrl.Tuning()
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return fmt.Errorf("%w: tuning: %v", ErrBadPayload, err)
	}

	h.ctrl.SetTuning(t)
	h.log.Info("controller retuned", zap.Any("tuning", t))
	return nil
}

// Dispatch routes one inbound message. The returned message, when ok, is
// the correction to publish.
func (h *Handler) Dispatch(topic string, payload []byte) (msg Message, ok bool, err error) {
	switch topic {
	case h.topics.Setpoint:
		return Message{}, false, h.HandleSetpoint(payload)
	case h.topics.Feedback:
		out, err := h.HandleFeedback(payload)
		if err != nil {
			return Message{}, false, err
		}
		return Message{
			Topic:   h.topics.Output,
			Payload: []byte(strconv.FormatFloat(out, 'g', -1, 64)),
		}, true, nil
	case h.topics.Reset:
		h.HandleReset()
		return Message{}, false, nil
	case h.topics.Tune:
		return Message{}, false, h.HandleTune(payload)
	}
	return Message{}, false, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
}
