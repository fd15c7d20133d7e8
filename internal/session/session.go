// Package session owns the connection to the message broker: its lifecycle,
// the inbound subscriptions and outbound publishes. All transport callbacks
// are funnelled through one event loop so state changes happen in order.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/catdetector/companion/internal/channel"
	"github.com/catdetector/companion/internal/dispatcher"
	"github.com/catdetector/companion/pkg/core"
	"github.com/catdetector/companion/pkg/wire"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/catdetector/companion/internal/session"

const (
	eventQueueSize = 256

	ReasonAwaiting        = "Awaiting connection..."
	ReasonNotConfigured   = "Broker not configured."
	ReasonConnected       = "Connected and monitoring..."
	ReasonNotConnected    = "Cannot publish: Not connected."
	ReasonClientInitError = "Failed to initialize MQTT client. Check host/port."
)

// StatusListener is called whenever the status or its reason text changes.
type StatusListener func(prev, next core.ChannelStatus, reason string)

// ErrorListener receives connection errors raised by the event loop.
type ErrorListener func(err error)

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	Status   core.ChannelStatus
	Reason   string
	ClientID string
	Broker   core.BrokerConfig
}

type eventKind int

const (
	evConnectResult eventKind = iota
	evConnectionLost
	evMessage
	evReconnect
)

type event struct {
	kind    eventKind
	gen     uint64
	client  Client
	err     error
	topic   string
	payload []byte
}

// Session manages one broker connection and its reconnect policy.
type Session struct {
	cfg        Config
	newClient  ClientFactory
	dispatcher *dispatcher.Dispatcher
	logger     *slog.Logger

	events    *channel.Queue[event]
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	mu               sync.Mutex
	status           core.ChannelStatus
	reason           string
	clientID         string
	client           Client
	gen              uint64
	closed           bool
	reconnectPending bool
	reconnectTimer   *time.Timer
	statusListeners  []StatusListener
	errorListeners   []ErrorListener

	received  metric.Int64Counter
	dropped   metric.Int64Counter
	reconnect metric.Int64Counter
}

// New creates a disconnected session and starts its event loop. Inbound
// messages are routed through d.
func New(cfg Config, newClient ClientFactory, d *dispatcher.Dispatcher, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		cfg:        cfg.withDefaults(),
		newClient:  newClient,
		dispatcher: d,
		logger:     logger,
		events:     channel.New[event](eventQueueSize),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
		status:     core.StatusDisconnected,
		reason:     ReasonAwaiting,
	}

	m := otel.Meter(instrumentationName)
	var err error
	s.received, err = m.Int64Counter(
		"session.messages.received",
		metric.WithDescription("Inbound messages received from the broker"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating received counter: %w", err)
	}
	s.dropped, err = m.Int64Counter(
		"session.publishes.dropped",
		metric.WithDescription("Outbound payloads dropped because the session was not connected"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	s.reconnect, err = m.Int64Counter(
		"session.reconnects.scheduled",
		metric.WithDescription("Reconnect attempts scheduled after a lost connection"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating reconnect counter: %w", err)
	}

	go s.loop()
	return s, nil
}

// OnStatus registers a status listener.
func (s *Session) OnStatus(l StatusListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusListeners = append(s.statusListeners, l)
}

// OnError registers a listener for connection failures and losses.
func (s *Session) OnError(l ErrorListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorListeners = append(s.errorListeners, l)
}

// Snapshot returns the current status.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Status: s.status, Reason: s.reason, ClientID: s.clientID, Broker: s.cfg.Broker}
}

// Connect starts an asynchronous connection attempt. It is a no-op while an
// attempt is in flight or the session is connected.
func (s *Session) Connect() error {
	if err := s.cfg.Broker.Validate(); err != nil {
		var verr *core.ValidationError
		cerr := &ConfigurationError{Reason: err.Error()}
		if errors.As(err, &verr) {
			cerr = &ConfigurationError{Field: verr.Field, Reason: verr.Reason}
		}
		s.mu.Lock()
		n := s.setStatusLocked(core.StatusDisconnected, ReasonNotConfigured)
		s.mu.Unlock()
		s.emit(n)
		return cerr
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status == core.StatusConnecting || s.status == core.StatusConnected {
		s.mu.Unlock()
		return nil
	}

	s.cancelReconnectLocked()
	s.gen++
	gen := s.gen
	old := s.client
	s.clientID = s.cfg.ClientIDPrefix + "-" + uuid.NewString()[:8]

	client, err := s.newClient(ClientOptions{
		Host:           s.cfg.Broker.Host,
		Port:           s.cfg.Broker.Port,
		Scheme:         s.cfg.Scheme,
		Path:           s.cfg.Path,
		ClientID:       s.clientID,
		ConnectTimeout: s.cfg.ConnectTimeout,
		OnMessage: func(topic string, payload []byte) {
			s.offer(event{kind: evMessage, gen: gen, topic: topic, payload: payload})
		},
		OnConnectionLost: func(err error) {
			s.post(event{kind: evConnectionLost, gen: gen, err: err})
		},
	})
	if err != nil {
		s.client = nil
		n := s.setStatusLocked(core.StatusError, ReasonClientInitError)
		s.mu.Unlock()
		s.logger.Error("MQTT client initialization failed", "error", err)
		s.emit(n)
		s.raise(&ConnectionError{Kind: Failure, Reason: ReasonClientInitError, Err: err})
		return nil
	}
	s.client = client
	n := s.setStatusLocked(core.StatusConnecting, s.reason)
	clientID := s.clientID
	s.mu.Unlock()

	s.emit(n)
	if old != nil {
		go s.disconnect(old)
	}
	s.logger.Info("connecting to broker", "host", s.cfg.Broker.Host, "port", s.cfg.Broker.Port, "clientId", clientID)
	go s.attempt(gen, client)
	return nil
}

// Publish sends payload on topic. When the session is not connected the
// payload is dropped, the status reason is updated and ErrNotConnected is
// returned; the client is never touched.
func (s *Session) Publish(topic string, payload []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status != core.StatusConnected || s.client == nil {
		n := s.setStatusLocked(s.status, ReasonNotConnected)
		s.mu.Unlock()
		s.emit(n)
		s.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("topic", topic)))
		s.logger.Warn("cannot publish, client not connected", "topic", topic)
		return fmt.Errorf("publish %s: %w", topic, ErrNotConnected)
	}
	client := s.client
	s.mu.Unlock()

	if err := client.Publish(topic, s.cfg.PublishQoS, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	s.logger.Debug("published", "topic", topic, "bytes", len(payload))
	return nil
}

// Close tears the session down. A connected client is disconnected; errors
// doing so are logged. Pending reconnects and late transport callbacks are
// ignored afterwards.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.gen++
		s.cancelReconnectLocked()
		client := s.client
		s.client = nil
		n := s.setStatusLocked(core.StatusDisconnected, s.reason)
		s.mu.Unlock()

		close(s.done)
		<-s.loopDone

		if client != nil {
			s.disconnect(client)
		}
		s.emit(n)
	})
}

func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events.C():
			s.handle(ev)
		}
	}
}

func (s *Session) post(ev event) {
	if !s.events.Post(ev, s.done) {
		s.logger.Debug("session closed, event dropped", "kind", ev.kind)
	}
}

// offer queues an inbound message without blocking the transport's delivery
// goroutine. Under a burst the newest message is dropped.
func (s *Session) offer(ev event) {
	if !s.events.Offer(ev) {
		s.logger.Debug("event queue full, message dropped", "topic", ev.topic, "dropped", s.events.Dropped())
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case evConnectResult:
		s.handleConnectResult(ev)
	case evConnectionLost:
		s.handleConnectionLost(ev)
	case evMessage:
		s.handleMessage(ev)
	case evReconnect:
		s.handleReconnect(ev)
	}
}

// attempt runs the blocking connect and subscriptions off the event loop.
func (s *Session) attempt(gen uint64, client Client) {
	err := client.Connect()
	if err == nil {
		for _, topic := range wire.InboundTopics {
			if serr := client.Subscribe(topic, 0); serr != nil {
				s.logger.Warn("subscribe failed", "topic", topic, "error", serr)
			}
		}
	}
	ev := event{kind: evConnectResult, gen: gen, client: client, err: err}
	if !s.events.Post(ev, s.done) && err == nil {
		s.disconnect(client)
	}
}

func (s *Session) handleConnectResult(ev event) {
	s.mu.Lock()
	if ev.gen != s.gen {
		s.mu.Unlock()
		if ev.err == nil {
			s.logger.Debug("discarding stale connection")
			go s.disconnect(ev.client)
		}
		return
	}

	if ev.err != nil {
		reason := fmt.Sprintf("Connection failed: %s. Check broker settings.", ev.err)
		n := s.setStatusLocked(core.StatusError, reason)
		s.mu.Unlock()
		s.logger.Error("MQTT connection failed", "error", ev.err)
		s.emit(n)
		s.raise(&ConnectionError{Kind: Failure, Reason: reason, Err: ev.err})
		return
	}

	n := s.setStatusLocked(core.StatusConnected, ReasonConnected)
	s.mu.Unlock()
	s.logger.Info("MQTT connected", "host", s.cfg.Broker.Host, "port", s.cfg.Broker.Port)
	s.emit(n)
}

func (s *Session) handleConnectionLost(ev event) {
	s.mu.Lock()
	if ev.gen != s.gen || s.status != core.StatusConnected {
		s.mu.Unlock()
		return
	}

	msg := "unknown error"
	if ev.err != nil {
		msg = ev.err.Error()
	}
	reason := "Connection lost: " + msg
	n := s.setStatusLocked(core.StatusError, reason)
	scheduled := s.scheduleReconnectLocked()
	s.mu.Unlock()

	s.logger.Error("MQTT connection lost", "error", ev.err, "reconnectIn", s.cfg.ReconnectDelay)
	if scheduled {
		s.reconnect.Add(context.Background(), 1)
	}
	s.emit(n)
	s.raise(&ConnectionError{Kind: Lost, Reason: reason, Err: ev.err})
}

func (s *Session) handleReconnect(ev event) {
	s.mu.Lock()
	s.reconnectPending = false
	s.reconnectTimer = nil
	stale := ev.gen != s.gen || s.closed
	busy := s.status == core.StatusConnecting || s.status == core.StatusConnected
	s.mu.Unlock()

	if stale || busy {
		s.logger.Debug("reconnect skipped", "stale", stale, "busy", busy)
		return
	}
	if err := s.Connect(); err != nil {
		s.logger.Error("reconnect failed", "error", err)
	}
}

func (s *Session) handleMessage(ev event) {
	s.mu.Lock()
	stale := ev.gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}

	s.received.Add(context.Background(), 1, metric.WithAttributes(attribute.String("topic", ev.topic)))
	if s.dispatcher == nil {
		return
	}
	err := s.dispatcher.Dispatch(dispatcher.Message{Topic: ev.topic, Payload: ev.payload, Received: time.Now()})
	switch {
	case err == nil:
	case errors.Is(err, dispatcher.ErrUnknownTopic):
		s.logger.Debug("ignoring message on unrouted topic", "topic", ev.topic)
	default:
		s.logger.Error("inbound message handler failed", "topic", ev.topic, "error", err)
	}
}

// scheduleReconnectLocked arms a single reconnect timer for the current
// generation. It reports false when one is already pending.
func (s *Session) scheduleReconnectLocked() bool {
	if s.reconnectPending || s.closed {
		return false
	}
	s.reconnectPending = true
	gen := s.gen
	s.reconnectTimer = time.AfterFunc(s.cfg.ReconnectDelay, func() {
		s.post(event{kind: evReconnect, gen: gen})
	})
	return true
}

func (s *Session) cancelReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.reconnectPending = false
}

func (s *Session) disconnect(c Client) {
	if !c.IsConnected() {
		return
	}
	if err := c.Disconnect(); err != nil {
		s.logger.Error("error during MQTT disconnect", "error", err)
		return
	}
	s.logger.Info("MQTT disconnected")
}

type notification struct {
	changed   bool
	prev      core.ChannelStatus
	next      core.ChannelStatus
	reason    string
	listeners []StatusListener
}

func (s *Session) setStatusLocked(next core.ChannelStatus, reason string) notification {
	n := notification{prev: s.status, next: next, reason: reason}
	n.changed = s.status != next || s.reason != reason
	s.status = next
	s.reason = reason
	if n.changed {
		n.listeners = append([]StatusListener(nil), s.statusListeners...)
	}
	return n
}

func (s *Session) emit(n notification) {
	for _, l := range n.listeners {
		l(n.prev, n.next, n.reason)
	}
}

func (s *Session) raise(err error) {
	s.mu.Lock()
	listeners := append([]ErrorListener(nil), s.errorListeners...)
	s.mu.Unlock()
	for _, l := range listeners {
		l(err)
	}
}
