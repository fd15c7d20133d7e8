// Package dispatcher routes inbound broker messages to handlers by topic.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/catdetector/companion/internal/dispatcher"

var (
	// ErrUnknownTopic is returned by Dispatch when no handler is registered for the topic.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Message is an inbound payload received on a subscribed topic.
type Message struct {
	Topic    string
	Payload  []byte
	Received time.Time
}

// HandlerFunc processes a message.
type HandlerFunc func(Message) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	latest bool
	logged bool
}

// Latest hands messages to a worker goroutine through a one-message mailbox.
// A message still waiting when the next one arrives is replaced, so a slow
// handler only ever sees the newest payload.
func Latest() Option {
	return func(o *options) {
		o.latest = true
	}
}

// Logged adds debug logging around the handler.
func Logged() Option {
	return func(o *options) {
		o.logged = true
	}
}

// mailbox holds at most one pending message.
type mailbox struct {
	mu      sync.Mutex
	pending *Message
	wake    chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

// put stores msg and reports whether it replaced one that was never handled.
func (b *mailbox) put(msg Message) bool {
	b.mu.Lock()
	replaced := b.pending != nil
	b.pending = &msg
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return replaced
}

func (b *mailbox) take() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return Message{}, false
	}
	msg := *b.pending
	b.pending = nil
	return msg, true
}

func (b *mailbox) waiting() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return 0
	}
	return 1
}

// Dispatcher routes messages to handlers by topic.
type Dispatcher struct {
	mu        sync.RWMutex
	handlers  map[string]HandlerFunc
	mailboxes map[string]*mailbox
	logger    Logger
	closed    bool
	done      chan struct{}
	workers   sync.WaitGroup

	pending    metric.Int64ObservableGauge
	processed  metric.Int64Counter
	superseded metric.Int64Counter
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers:  make(map[string]HandlerFunc),
		mailboxes: make(map[string]*mailbox),
		logger:    logger,
		done:      make(chan struct{}),
	}

	m := otel.Meter(instrumentationName)

	var err error

	d.pending, err = m.Int64ObservableGauge(
		"dispatcher.mailbox.pending",
		metric.WithDescription("Messages waiting in a latest-only mailbox"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pending gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for topic, mb := range d.mailboxes {
				o.ObserveInt64(d.pending, mb.waiting(),
					metric.WithAttributes(attribute.String("topic", topic)))
			}
			return nil
		},
		d.pending,
	)
	if err != nil {
		return nil, fmt.Errorf("registering pending callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.messages.processed",
		metric.WithDescription("Messages handed to a handler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.superseded, err = m.Int64Counter(
		"dispatcher.messages.superseded",
		metric.WithDescription("Messages replaced by a newer one before they were handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating superseded counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given topic. Registering a topic twice is
// not supported for Latest handlers.
func (d *Dispatcher) Register(topic string, h HandlerFunc, opts ...Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	handler := d.counted(topic, h)
	if o.logged {
		handler = d.withLogging(topic, handler)
	}
	if o.latest {
		handler = d.withMailbox(topic, handler)
	}

	d.mu.Lock()
	d.handlers[topic] = handler
	d.mu.Unlock()
}

// Dispatch routes a message to its registered handler. For Latest topics it
// returns once the message is in the mailbox.
func (d *Dispatcher) Dispatch(msg Message) error {
	d.mu.RLock()
	h, ok := d.handlers[msg.Topic]
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, msg.Topic)
	}
	return h(msg)
}

// HasHandler returns true if a handler is registered for the topic.
func (d *Dispatcher) HasHandler(topic string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[topic]
	return ok
}

// Close stops the mailbox workers and waits for a running handler to
// return. Messages still waiting are discarded.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) counted(topic string, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("topic", topic))
	return func(msg Message) error {
		err := h(msg)
		d.processed.Add(context.Background(), 1, attrs)
		return err
	}
}

func (d *Dispatcher) withMailbox(topic string, h HandlerFunc) HandlerFunc {
	mb := newMailbox()

	d.mu.Lock()
	d.mailboxes[topic] = mb
	d.mu.Unlock()

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for {
			select {
			case <-d.done:
				return
			case <-mb.wake:
			}
			msg, ok := mb.take()
			if !ok {
				continue
			}
			if err := h(msg); err != nil {
				d.logger.Error("mailbox handler failed", "topic", topic, "error", err)
			}
		}
	}()

	attrs := metric.WithAttributes(attribute.String("topic", topic))
	return func(msg Message) error {
		if mb.put(msg) {
			d.superseded.Add(context.Background(), 1, attrs)
		}
		return nil
	}
}

func (d *Dispatcher) withLogging(topic string, h HandlerFunc) HandlerFunc {
	return func(msg Message) error {
		start := time.Now()
		d.logger.Debug("handling message", "topic", topic, "bytes", len(msg.Payload))

		err := h(msg)

		if err != nil {
			d.logger.Error("message failed", "topic", topic, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("message complete", "topic", topic, "duration", time.Since(start))
		}

		return err
	}
}
