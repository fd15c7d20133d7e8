// pkg/core/broker.go
package core

import "strings"

// BrokerConfig is the persisted broker connection descriptor.
type BrokerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DefaultBrokerConfig is offered on first run.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{Host: "localhost", Port: 9001}
}

// Validate requires a host and a TCP port.
func (b BrokerConfig) Validate() error {
	if strings.TrimSpace(b.Host) == "" {
		return &ValidationError{Field: "host", Reason: "must not be empty"}
	}
	if b.Port < 1 || b.Port > 65535 {
		return &ValidationError{Field: "port", Reason: "must be between 1 and 65535"}
	}
	return nil
}
