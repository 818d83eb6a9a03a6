// Package publish fans accepted readings out to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

// Options configures the broker connection.
type Options struct {
	Broker      string
	Port        int
	ClientID    string
	TopicPrefix string
}

// message is the payload published for every accepted reading.
type message struct {
	Identity airquality.Identity `json:"identity"`
	airquality.Reading
	Category string `json:"category"`
}

// MQTTSink publishes readings to {prefix}/{identity}/reading.
type MQTTSink struct {
	client mqtt.Client
	opts   Options
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

var _ airquality.ReadingSink = (*MQTTSink)(nil)

func NewMQTTSink(opts Options, logger *slog.Logger) *MQTTSink {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "airvita"
	}
	s := &MQTTSink{
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port))
	co.SetClientID(opts.ClientID)
	co.SetCleanSession(true)

	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(5 * time.Second)
	co.SetMaxReconnectInterval(60 * time.Second)

	co.SetKeepAlive(30 * time.Second)
	co.SetPingTimeout(10 * time.Second)

	co.SetOnConnectHandler(func(_ mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", opts.Broker, "port", opts.Port)
	})
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(co)
	return s
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Connect waits for the initial connection, honoring ctx and Disconnect.
func (s *MQTTSink) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("mqtt sink stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return fmt.Errorf("mqtt sink stopped")
		default:
		}
	}
}

// topicLevel replaces the characters MQTT reserves inside a topic level.
var topicLevel = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// Topic returns the topic readings for id are published on. id always maps
// to a single topic level.
func (s *MQTTSink) Topic(id airquality.Identity) string {
	return fmt.Sprintf("%s/%s/reading", s.opts.TopicPrefix, topicLevel.Replace(string(id)))
}

// Publish sends r with QoS 1. It fails fast while disconnected.
func (s *MQTTSink) Publish(ctx context.Context, id airquality.Identity, r airquality.Reading) error {
	if !s.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := encode(id, r)
	if err != nil {
		return err
	}

	topic := s.Topic(id)
	token := s.client.Publish(topic, 1, false, data)

	wait := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}

	s.logger.Debug("published reading", "topic", topic, "index", r.Index)
	return nil
}

func encode(id airquality.Identity, r airquality.Reading) ([]byte, error) {
	data, err := json.Marshal(message{
		Identity: id,
		Reading:  r,
		Category: airquality.Categorize(r.Index).Label,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal reading: %w", err)
	}
	return data, nil
}

func (s *MQTTSink) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect is idempotent. After it, Connect returns an error.
func (s *MQTTSink) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil {
		s.client.Disconnect(250)
	}
	s.setConnected(false)
	s.logger.Info("mqtt disconnected")
}

func (s *MQTTSink) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
