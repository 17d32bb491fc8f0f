package bridge

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Bridge connects a Handler to an MQTT broker. Feedback samples arriving on
// <prefix>/feedback are stepped through the controller and the correction
// is published on <prefix>/output.
type Bridge struct {
	cfg     Config
	topics  Topics
	handler *Handler
	log     *zap.Logger
}

func New(cfg Config, h *Handler, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{cfg: cfg, topics: cfg.Topics(), handler: h, log: log}
}

func (b *Bridge) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.BrokerURL())
	opts.SetClientID(b.cfg.ClientID)
	opts.SetUsername(b.cfg.Username)
	opts.SetPassword(b.cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(b.topics.Status, "offline", b.cfg.QoS, true)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		b.log.Warn("mqtt connection lost", zap.Error(err))
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		b.log.Info("mqtt connected", zap.String("broker", b.cfg.BrokerURL()))

		for _, topic := range b.topics.Subscriptions() {
			token := client.Subscribe(topic, b.cfg.QoS, b.onMessage)
			if token.Wait() && token.Error() != nil {
				b.log.Error("mqtt subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
				continue
			}
			b.log.Debug("subscribed", zap.String("topic", topic))
		}

		client.Publish(b.topics.Status, b.cfg.QoS, true, "online")
	})

	return opts
}

func (b *Bridge) onMessage(client mqtt.Client, msg mqtt.Message) {
	out, ok, err := b.handler.Dispatch(msg.Topic(), msg.Payload())
	if err != nil {
		b.log.Warn("message rejected", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	if !ok {
		return
	}

	// Handlers run on the client's router goroutine; waiting here would
	// stall delivery for QoS > 0.
	token := client.Publish(out.Topic, b.cfg.QoS, out.Retain, out.Payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			b.log.Warn("publish failed", zap.String("topic", out.Topic), zap.Error(token.Error()))
		}
	}()
}

// Run connects and serves until ctx is cancelled. Cancelling while the
// broker is still unreachable returns ctx.Err().
func (b *Bridge) Run(ctx context.Context) error {
	client := mqtt.NewClient(b.clientOptions())

	// With connect retry the token only completes once a broker answers.
	token := client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("mqtt connect %s: %w", b.cfg.BrokerURL(), token.Error())
		}
	case <-ctx.Done():
		client.Disconnect(250)
		b.log.Info("bridge stopped before connecting")
		return ctx.Err()
	}

	b.log.Info("bridge running",
		zap.String("feedback", b.topics.Feedback),
		zap.String("output", b.topics.Output),
	)

	<-ctx.Done()

	pub := client.Publish(b.topics.Status, b.cfg.QoS, true, "offline")
	pub.WaitTimeout(time.Second)
	client.Disconnect(250)
	b.log.Info("bridge stopped")
	return nil
}
