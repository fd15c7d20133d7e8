package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const disconnectQuiesceMs = 250

// ErrConnectTimeout is returned when the broker does not answer within the
// configured connect timeout.
var ErrConnectTimeout = errors.New("timed out waiting for broker")

// BrokerURL builds the broker address for the given options.
func BrokerURL(opts ClientOptions) string {
	scheme := opts.Scheme
	if scheme == "" {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, opts.Host, opts.Port, opts.Path)
}

type pahoClient struct {
	client  mqtt.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewPahoFactory returns a ClientFactory backed by the Eclipse Paho client.
// Paho's own reconnect logic is disabled; the Session decides when to retry.
func NewPahoFactory(logger *slog.Logger) ClientFactory {
	if logger == nil {
		logger = slog.Default()
	}
	mqtt.ERROR = slog.NewLogLogger(logger.Handler(), slog.LevelError)
	mqtt.CRITICAL = slog.NewLogLogger(logger.Handler(), slog.LevelError)
	mqtt.WARN = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)

	return func(o ClientOptions) (Client, error) {
		if o.Host == "" || o.Port <= 0 {
			return nil, fmt.Errorf("invalid broker address %s:%d", o.Host, o.Port)
		}

		opts := mqtt.NewClientOptions()
		opts.AddBroker(BrokerURL(o))
		opts.SetClientID(o.ClientID)
		opts.SetCleanSession(true)
		opts.SetAutoReconnect(false)
		opts.SetConnectRetry(false)
		opts.SetConnectTimeout(o.ConnectTimeout)
		opts.SetDefaultPublishHandler(func(_ mqtt.Client, m mqtt.Message) {
			if o.OnMessage != nil {
				o.OnMessage(m.Topic(), m.Payload())
			}
		})
		opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			if o.OnConnectionLost != nil {
				o.OnConnectionLost(err)
			}
		})

		return &pahoClient{
			client:  mqtt.NewClient(opts),
			timeout: o.ConnectTimeout,
			logger:  logger.With("clientId", o.ClientID),
		}, nil
	}
}

func (p *pahoClient) Connect() error {
	return p.wait(p.client.Connect())
}

func (p *pahoClient) Subscribe(topic string, qos byte) error {
	// nil callback routes messages to the default publish handler
	return p.wait(p.client.Subscribe(topic, qos, nil))
}

// Publish hands the payload to Paho and returns without waiting for delivery.
func (p *pahoClient) Publish(topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			p.logger.Error("publish failed", "topic", topic, "error", err)
		}
	}()
	return nil
}

func (p *pahoClient) Disconnect() error {
	p.client.Disconnect(disconnectQuiesceMs)
	return nil
}

func (p *pahoClient) IsConnected() bool {
	return p.client.IsConnected()
}

func (p *pahoClient) wait(token mqtt.Token) error {
	timeout := p.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if !token.WaitTimeout(timeout + time.Second) {
		return ErrConnectTimeout
	}
	return token.Error()
}
