// Package publish delivers finished acquisition outcomes to downstream
// consumers. Publishing is fail-soft: a broker hiccup must never abort the
// poll loop, so errors surface to the caller only for logging.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/chaz8081/bpcuff/internal/bpm"
	"github.com/chaz8081/bpcuff/internal/config"
)

// document is the wire shape published per poll.
type document struct {
	Address  string        `json:"address"`
	Name     string        `json:"name"`
	PolledAt time.Time     `json:"polled_at"`
	Complete bool          `json:"complete"`
	Readings []bpm.Reading `json:"readings"`
}

// MQTTPublisher publishes one JSON document per acquisition outcome, QoS 1.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	log    *slog.Logger
}

// NewMQTTPublisher builds a publisher from config. Connect must be called
// before the first Publish.
func NewMQTTPublisher(cfg config.MQTTConfig, log *slog.Logger) *MQTTPublisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})

	return &MQTTPublisher{
		client: mqtt.NewClient(opts),
		topic:  cfg.Topic,
		log:    log,
	}
}

// Connect establishes the broker connection.
func (p *MQTTPublisher) Connect(timeout time.Duration) error {
	token := p.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connect timeout after %s", timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// encodeOutcome renders the published JSON document.
func encodeOutcome(outcome *bpm.Outcome) ([]byte, error) {
	return json.Marshal(document{
		Address:  outcome.Device.Address,
		Name:     outcome.Device.Name,
		PolledAt: outcome.PolledAt,
		Complete: outcome.Measurement != nil,
		Readings: outcome.Readings,
	})
}

// Publish sends one outcome to the configured topic.
func (p *MQTTPublisher) Publish(outcome *bpm.Outcome) error {
	payload, err := encodeOutcome(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	p.log.Debug("published outcome", "topic", p.topic, "bytes", len(payload))
	return nil
}

// Close disconnects from the broker, allowing in-flight messages to drain.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
