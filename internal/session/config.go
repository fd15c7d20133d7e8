package session

import (
	"time"

	"github.com/catdetector/companion/pkg/core"
)

// Config holds everything needed to build a session.
type Config struct {
	Broker         core.BrokerConfig
	Scheme         string
	Path           string
	ClientIDPrefix string
	ReconnectDelay time.Duration
	ConnectTimeout time.Duration
	PublishQoS     byte
}

// DefaultConfig returns a config with transport defaults and the given broker.
func DefaultConfig(broker core.BrokerConfig) Config {
	return Config{
		Broker:         broker,
		Scheme:         "ws",
		Path:           "/mqtt",
		ClientIDPrefix: "cat-detector-gui",
		ReconnectDelay: 5 * time.Second,
		ConnectTimeout: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.Broker)
	if c.Scheme == "" {
		c.Scheme = d.Scheme
	}
	if c.ClientIDPrefix == "" {
		c.ClientIDPrefix = d.ClientIDPrefix
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	return c
}
