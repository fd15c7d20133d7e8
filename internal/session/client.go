package session

import "time"

// Client is the narrow publish/subscribe capability a Session drives. Connect,
// Subscribe and Disconnect may block; the Session never calls them from its
// event loop.
type Client interface {
	Connect() error
	Subscribe(topic string, qos byte) error
	Publish(topic string, qos byte, payload []byte) error
	Disconnect() error
	IsConnected() bool
}

// ClientOptions describe one client instance. The callbacks may be invoked
// from any goroutine.
type ClientOptions struct {
	Host           string
	Port           int
	Scheme         string
	Path           string
	ClientID       string
	ConnectTimeout time.Duration

	OnMessage        func(topic string, payload []byte)
	OnConnectionLost func(err error)
}

// ClientFactory builds a new, unconnected client.
type ClientFactory func(opts ClientOptions) (Client, error)
