// Package mqtt publishes fleet snapshots to an MQTT broker so observers
// outside the process can follow the live fleet state.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/urbanpulse/fleetops/core/model"
	"github.com/urbanpulse/fleetops/infra/logger"
)

// Config defines the connection parameters for the fleet feed.
type Config struct {
	Enabled   bool   `json:"enabled"`
	Broker    string `json:"broker"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Topic     string `json:"topic"`
	QoS       byte   `json:"qos"`
	Retained  bool   `json:"retained"`
	TimeoutMS int    `json:"timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "fleetops-feed"
	}
	if c.Topic == "" {
		c.Topic = "fleetops/fleet/snapshot"
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 2000
	}
}

// pahoClient is the narrow slice of the Paho API the feed uses.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// FleetFeed implements broadcast.Sink over an MQTT connection. Publishing is
// best-effort: a failed delivery is reported to the caller, who logs and
// moves on since the next snapshot supersedes it.
type FleetFeed struct {
	cli     pahoClient
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
	log     logger.Logger
}

// NewFleetFeed connects to the broker and returns the feed.
func NewFleetFeed(cfg Config) (*FleetFeed, error) {
	cfg.SetDefaults()
	log := logger.New("fleet_feed")

	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &FleetFeed{
		cli:     c,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		retain:  cfg.Retained,
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		log:     log,
	}, nil
}

// PublishSnapshot encodes the snapshot as JSON and publishes it to the
// configured topic.
func (f *FleetFeed) PublishSnapshot(_ context.Context, snap model.FleetSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	token := f.cli.Publish(f.topic, f.qos, f.retain, payload)
	if !token.WaitTimeout(f.timeout) {
		return fmt.Errorf("publish snapshot: timeout after %s", f.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (f *FleetFeed) Close() {
	f.cli.Disconnect(250)
}
