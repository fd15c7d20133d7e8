package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Publish when the session is not connected.
	ErrNotConnected = errors.New("not connected")
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("session closed")
)

// ConfigurationError means the broker descriptor is absent or invalid. No
// connection attempt is made.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "broker configuration: " + e.Reason
	}
	return fmt.Sprintf("broker configuration: %s %s", e.Field, e.Reason)
}

// ConnectionErrorKind tells a failed attempt apart from a dropped connection.
type ConnectionErrorKind int

const (
	Failure ConnectionErrorKind = iota
	Lost
)

func (k ConnectionErrorKind) String() string {
	if k == Lost {
		return "lost"
	}
	return "failure"
}

// ConnectionError is surfaced when a connect attempt fails or an established
// connection drops.
type ConnectionError struct {
	Kind   ConnectionErrorKind
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %s", e.Kind, e.Reason)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
