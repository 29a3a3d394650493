package publisher

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/soypat/sensor-mqtt"
)

const (
	defaultBroker     = "127.0.0.1:1883"
	defaultClientID   = "sensorpub"
	defaultTopic      = "sensor/adc"
	defaultInterval   = 3 * time.Second
	defaultBufferSize = mqtt.MaxPacketSize
	defaultTimeout    = 10 * time.Second
	defaultRetryDelay = time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Config holds the publisher settings.
type Config struct {
	// Broker is the host:port of the MQTT broker.
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	// Interval between published readings.
	Interval time.Duration `mapstructure:"interval"`
	// BufferSize is the length of each of the session's write and receive buffers.
	// It must fit mqtt.MaxPacketSize, the largest packet the broker may send.
	BufferSize int `mapstructure:"buffer_size"`
	// Timeout bounds dialing, the CONNECT handshake and every publish.
	Timeout time.Duration `mapstructure:"timeout"`
	// RetryDelay is the first delay before reconnecting. Delays grow
	// exponentially up to MaxBackoff and are reset after a successful CONNECT.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Broker:     defaultBroker,
		ClientID:   defaultClientID,
		Topic:      defaultTopic,
		Interval:   defaultInterval,
		BufferSize: defaultBufferSize,
		Timeout:    defaultTimeout,
		RetryDelay: defaultRetryDelay,
		MaxBackoff: defaultMaxBackoff,
	}
}

// Validate returns an error describing the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Broker == "":
		return errors.New("empty broker address")
	case c.ClientID == "":
		return errors.New("empty client id")
	case c.Topic == "":
		return errors.New("empty topic")
	case mqtt.ValidateTopicName(c.Topic) != nil:
		return fmt.Errorf("topic %q: %w", c.Topic, mqtt.ValidateTopicName(c.Topic))
	case c.Interval <= 0:
		return errors.New("interval must be positive")
	case c.BufferSize < mqtt.MaxPacketSize:
		return fmt.Errorf("buffer size must be at least %d", mqtt.MaxPacketSize)
	case c.BufferSize < mqtt.PublishSize(c.Topic, mqtt.MaxContentLen):
		return fmt.Errorf("buffer size must fit a %d byte publish on topic %q", mqtt.PublishSize(c.Topic, mqtt.MaxContentLen), c.Topic)
	case c.Timeout <= 0:
		return errors.New("timeout must be positive")
	case c.RetryDelay <= 0 || c.MaxBackoff < c.RetryDelay:
		return errors.New("retry delay must be positive and not exceed max backoff")
	}
	return nil
}
