// Package publisher republishes daily summaries over MQTT so Home
// Assistant can track the same statistics Grafana shows.
package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/domdfcoding/statsbackend/internal/config"
)

// Publisher publishes domain summaries to an MQTT broker.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	logger      *logrus.Logger
}

// New connects to the broker configured in cfg.
func New(cfg config.MQTTConfig, logger *logrus.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
		logger:      logger,
	}, nil
}

// PublishDaily publishes a domain's latest daily record, retained, to
// <prefix>/<domain>/daily.
func (p *Publisher) PublishDaily(domain string, payload any) error {
	if payload == nil {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/daily", p.topicPrefix, domain)
	token := p.client.Publish(topic, 0, true, body)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	p.logger.WithFields(logrus.Fields{
		"topic": topic,
	}).Debug("Published daily summary")
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
