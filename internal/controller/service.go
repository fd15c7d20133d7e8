// Package controller composes the session, the zone editor, the codec and the
// local settings into the operations the operator shell invokes. Failures are
// turned into notices; nothing here terminates the process.
package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/catdetector/companion/internal/cache"
	"github.com/catdetector/companion/internal/codec"
	"github.com/catdetector/companion/internal/dispatcher"
	"github.com/catdetector/companion/internal/editor"
	"github.com/catdetector/companion/internal/geo"
	"github.com/catdetector/companion/internal/handlers"
	"github.com/catdetector/companion/internal/session"
	"github.com/catdetector/companion/internal/settings"
	"github.com/catdetector/companion/pkg/core"
	"github.com/catdetector/companion/pkg/wire"
)

var (
	// ErrBrokerNotConfigured is returned by Start when there is no usable
	// broker descriptor: on first run, or when the stored one is unreadable.
	ErrBrokerNotConfigured = errors.New("broker not configured")
	// ErrNotPersisted wraps a failure to store a zone configuration that was
	// nevertheless applied and sent.
	ErrNotPersisted = errors.New("zones not persisted")
)

// Telemetry receives channel and detector events.
type Telemetry interface {
	handlers.Recorder
	RecordChannelStatus(prev, next core.ChannelStatus, reason string)
	RecordPublish(topic string, size int, err error)
}

type nopTelemetry struct{}

func (nopTelemetry) RecordDetectionStatus(string) {}
func (nopTelemetry) RecordImage(int, int, int) {}
func (nopTelemetry) RecordChannelStatus(core.ChannelStatus, core.ChannelStatus, string) {}
func (nopTelemetry) RecordPublish(string, int, error) {}

// Dependencies holds everything the service needs
type Dependencies struct {
	Store     settings.Store
	NewClient session.ClientFactory
	// Session is the transport template; its Broker field is replaced by the
	// stored descriptor.
	Session   session.Config
	Script    core.ScriptConfig
	Telemetry Telemetry
	Logger    *slog.Logger

	// DispatchLogger logs inbound routing; Logger is used when nil.
	DispatchLogger dispatcher.Logger
}

// NoticeLevel grades a notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeInfo:
		return "info"
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is the last message shown to the operator.
type Notice struct {
	Level NoticeLevel
	Text  string
	At    time.Time
}

// Snapshot is what the shell renders.
type Snapshot struct {
	Status          core.ChannelStatus
	Reason          string
	ClientID        string
	Broker          core.BrokerConfig
	DetectionStatus string
	HasImage        bool
	ImageSize       geo.Size
	Frames          uint64
	Zones           core.ZoneConfig
	Script          core.ScriptConfig
	Editor          editor.View
	Notice          Notice
}

// Service is the operator-facing facade. It is safe for concurrent use.
type Service struct {
	deps       Dependencies
	logger     *slog.Logger
	dispatcher *dispatcher.Dispatcher
	slots      *cache.Slots
	frames     *handlers.FrameContext
	editor     *editor.Editor
	ctx        *ZoneContext

	mu      sync.Mutex
	session *session.Session
	notice  Notice
	closed  bool

	// mirrored for log attributes, readable without taking any lock
	channel  atomic.Int32
	clientID atomic.Value
}

// NewService wires the inbound handlers and restores the last saved zone
// configuration. No connection is made until Start or ConfigureBroker.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("settings store is required")
	}
	if deps.NewClient == nil {
		return nil, errors.New("client factory is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Telemetry == nil {
		deps.Telemetry = nopTelemetry{}
	}
	if deps.Script == (core.ScriptConfig{}) {
		deps.Script = core.DefaultScriptConfig()
	}

	if deps.DispatchLogger == nil {
		deps.DispatchLogger = deps.Logger
	}

	d, err := dispatcher.New(deps.DispatchLogger)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	s := &Service{
		deps:       deps,
		logger:     deps.Logger,
		dispatcher: d,
		slots:      cache.NewSlots(),
		frames:     handlers.NewFrameContext(),
		editor:     editor.New(deps.Logger),
		ctx:        NewZoneContext(deps.Script),
	}

	inbound := handlers.NewService(handlers.Dependencies{
		Slots:    s.slots,
		Recorder: deps.Telemetry,
		Logger:   deps.Logger,
	}, s.frames)
	inbound.Register(d)
	for _, topic := range wire.InboundTopics {
		if !d.HasHandler(topic) {
			d.Close()
			return nil, fmt.Errorf("no handler for inbound topic %s", topic)
		}
	}

	s.slots.Set(wire.TopicDetectionStatus, session.ReasonAwaiting)
	s.editor.OnTransition(func(prev, next editor.State) {
		s.logger.Debug("zone editor transition", "from", prev.String(), "to", next.String())
	})

	zones, ok, err := settings.LoadZoneConfig(deps.Store)
	switch {
	case err != nil:
		s.warn(fmt.Sprintf("Saved zones could not be loaded: %v", err))
	case ok:
		s.ctx.SetZones(zones)
		s.logger.Info("restored zone configuration", "zones", len(zones.ActivationAreas))
	}

	return s, nil
}

// Start connects with the stored broker descriptor. On first run, or when the
// stored descriptor cannot be used, it returns ErrBrokerNotConfigured and the
// shell must ask for one.
func (s *Service) Start() error {
	b, ok, err := settings.LoadBroker(s.deps.Store)
	if err != nil {
		s.slots.Set(wire.TopicDetectionStatus, session.ReasonNotConfigured)
		s.warn(fmt.Sprintf("Saved broker settings could not be loaded (%v). Enter host and port to connect.", err))
		return ErrBrokerNotConfigured
	}
	if !ok {
		s.slots.Set(wire.TopicDetectionStatus, session.ReasonNotConfigured)
		s.warn("Broker not configured. Enter host and port to connect.")
		return ErrBrokerNotConfigured
	}
	return s.connect(b)
}

// ConfigureBroker validates and stores b, then replaces the session with one
// connected to it.
func (s *Service) ConfigureBroker(b core.BrokerConfig) error {
	if err := settings.SaveBroker(s.deps.Store, b); err != nil {
		s.fail(err)
		return err
	}
	s.logger.Info("broker settings saved", "host", b.Host, "port", b.Port)
	return s.connect(b)
}

func (s *Service) connect(b core.BrokerConfig) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return session.ErrClosed
	}
	old := s.session
	s.session = nil
	s.mu.Unlock()

	if old != nil {
		old.Close()
		if prev := old.Snapshot().Broker; prev != b {
			s.clearInbound(prev)
		}
	}

	cfg := s.deps.Session
	cfg.Broker = b
	sess, err := session.New(cfg, s.deps.NewClient, s.dispatcher, s.logger)
	if err != nil {
		s.fail(err)
		return err
	}
	sess.OnStatus(func(prev, next core.ChannelStatus, reason string) {
		s.onStatus(sess, prev, next, reason)
	})
	sess.OnError(func(err error) { s.fail(err) })

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sess.Close()
		return session.ErrClosed
	}
	s.session = sess
	s.mu.Unlock()

	if err := sess.Connect(); err != nil {
		s.slots.Set(wire.TopicDetectionStatus, sess.Snapshot().Reason)
		s.fail(err)
		return err
	}
	s.info(fmt.Sprintf("Connecting to %s:%d...", b.Host, b.Port))
	return nil
}

// clearInbound forgets the frame and detector status received from a broker
// that is no longer used.
func (s *Service) clearInbound(prev core.BrokerConfig) {
	s.slots.Reset()
	s.frames.Reset()
	s.slots.Set(wire.TopicDetectionStatus, session.ReasonAwaiting)
	s.logger.Info("cleared inbound state of previous broker", "host", prev.Host, "port", prev.Port)
}

func (s *Service) onStatus(sess *session.Session, prev, next core.ChannelStatus, reason string) {
	s.channel.Store(int32(next))
	s.clientID.Store(sess.Snapshot().ClientID)
	s.slots.Set(wire.TopicDetectionStatus, reason)
	s.deps.Telemetry.RecordChannelStatus(prev, next, reason)
	if prev != next {
		s.logger.Info("channel status", "from", prev.String(), "to", next.String(), "reason", reason)
	}
}

// EnterEditing opens the editor on the current zones.
func (s *Service) EnterEditing() error {
	if err := s.editor.EnterEditing(s.ctx.Zones()); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

// AddPoint converts a click on the displayed frame into a native vertex.
func (s *Service) AddPoint(click geo.DisplayPoint) (core.Point, error) {
	t, err := s.transform()
	if err != nil {
		s.fail(err)
		return core.Point{}, err
	}
	p, err := s.editor.AddPoint(click, t)
	if err != nil {
		s.fail(err)
		return core.Point{}, err
	}
	return p, nil
}

func (s *Service) FinishZone() (core.Zone, error) {
	z, err := s.editor.FinishZone()
	if err != nil {
		s.fail(err)
		return nil, err
	}
	if !geo.ZoneIsSimple(z) {
		s.warn("Zone boundary crosses itself.")
	}
	return z, nil
}

func (s *Service) UndoPoint() bool {
	return s.editor.UndoPoint()
}

func (s *Service) ClearAll() {
	s.editor.ClearAll()
}

func (s *Service) Cancel() error {
	if err := s.editor.Cancel(); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

// SaveZones commits the editing session. The result becomes the current
// configuration and is persisted before it is published, so a publish
// failure does not lose it.
func (s *Service) SaveZones() (editor.SaveResult, error) {
	res, err := s.editor.Save()
	if err != nil {
		s.fail(err)
		return res, err
	}
	if err := s.commitZones(res.Config); err != nil {
		return res, err
	}
	if res.DroppedPoints > 0 {
		s.warn(fmt.Sprintf("Unfinished zone with %d points was not saved.", res.DroppedPoints))
	} else {
		s.info(fmt.Sprintf("Saved %d zones.", len(res.Config.ActivationAreas)))
	}
	return res, nil
}

// ImportZones replaces the configuration with a decoded document and opens
// the editor on it. A malformed document changes nothing. A zone under
// construction in an open editor is kept.
func (s *Service) ImportZones(data []byte) (core.ZoneConfig, error) {
	cfg, err := codec.DecodeZoneConfig(data)
	if err != nil {
		s.fail(err)
		return core.ZoneConfig{}, err
	}
	commitErr := s.commitZones(cfg)
	kept := s.editor.Load(cfg)
	if commitErr != nil {
		return cfg, commitErr
	}
	if kept > 0 {
		s.warn(fmt.Sprintf("Imported %d zones. The unfinished zone with %d points was kept.", len(cfg.ActivationAreas), kept))
	} else {
		s.info(fmt.Sprintf("Imported %d zones.", len(cfg.ActivationAreas)))
	}
	return cfg, nil
}

// commitZones makes cfg the current configuration, stores it and sends it.
// It is sent even when storing fails.
func (s *Service) commitZones(cfg core.ZoneConfig) error {
	payload, err := codec.EncodeZoneConfig(cfg)
	if err != nil {
		s.fail(err)
		return err
	}
	s.ctx.SetZones(cfg)

	var persistErr error
	if err := settings.SaveZoneConfig(s.deps.Store, cfg); err != nil {
		persistErr = fmt.Errorf("%w: %v", ErrNotPersisted, err)
		s.fail(persistErr)
	}
	return errors.Join(persistErr, s.publish(wire.TopicZonesConfigSet, payload))
}

// UpdateScript sends new detector thresholds. Only present fields are sent.
func (s *Service) UpdateScript(u core.ScriptUpdate) error {
	payload, err := codec.EncodeScriptUpdate(u)
	if err != nil {
		s.fail(err)
		return err
	}
	if err := s.publish(wire.TopicScriptConfigSet, payload); err != nil {
		return err
	}
	s.ctx.ApplyScript(u)
	return nil
}

func (s *Service) Servo(cmd core.ServoCommand) error {
	payload, err := codec.EncodeServo(cmd)
	if err != nil {
		s.fail(err)
		return err
	}
	return s.publish(wire.TopicServoControl, payload)
}

func (s *Service) publish(topic string, payload []byte) error {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	var err error
	if sess == nil {
		s.slots.Set(wire.TopicDetectionStatus, session.ReasonNotConnected)
		err = fmt.Errorf("publish %s: %w", topic, session.ErrNotConnected)
	} else {
		err = sess.Publish(topic, payload)
	}
	s.deps.Telemetry.RecordPublish(topic, len(payload), err)
	if err != nil {
		s.fail(err)
	}
	return err
}

// SetDisplaySize records the size the frame is currently drawn at.
func (s *Service) SetDisplaySize(size geo.Size) {
	s.ctx.SetDisplay(size)
}

// Overlay lays out the shapes to draw over the frame. While editing it shows
// the session's zones, otherwise the saved ones.
func (s *Service) Overlay() ([]geo.Shape, error) {
	t, err := s.transform()
	if err != nil {
		return nil, err
	}
	view := s.editor.View()
	if view.State == editor.Editing {
		return geo.BuildOverlay(t, view.Zones, view.Current, view.Crop), nil
	}
	cfg := s.ctx.Zones()
	return geo.BuildOverlay(t, cfg.ActivationAreas, nil, cfg.CropRegion), nil
}

func (s *Service) transform() (geo.Transform, error) {
	return geo.NewTransform(s.frames.Size(), s.ctx.Display())
}

// Snapshot returns the current state for rendering.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	sess := s.session
	notice := s.notice
	s.mu.Unlock()

	snap := Snapshot{
		Status:          core.StatusDisconnected,
		Reason:          session.ReasonAwaiting,
		DetectionStatus: s.slots.Payload(wire.TopicDetectionStatus),
		ImageSize:       s.frames.Size(),
		Frames:          s.frames.Frames(),
		Zones:           s.ctx.Zones(),
		Script:          s.ctx.Script(),
		Editor:          s.editor.View(),
		Notice:          notice,
	}
	_, snap.HasImage = s.slots.Get(wire.TopicImageLatest)
	if sess != nil {
		ss := sess.Snapshot()
		snap.Status, snap.Reason, snap.ClientID, snap.Broker = ss.Status, ss.Reason, ss.ClientID, ss.Broker
	}
	return snap
}

// LogAttrs returns the attributes every log record should carry.
func (s *Service) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("channel", core.ChannelStatus(s.channel.Load()).String())}
	if id, _ := s.clientID.Load().(string); id != "" {
		attrs = append(attrs, slog.String("clientId", id))
	}
	return attrs
}

// LatestImage returns the most recent base64 frame.
func (s *Service) LatestImage() (cache.Entry, bool) {
	return s.slots.Get(wire.TopicImageLatest)
}

// Close tears the session down and stops inbound handling.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	s.dispatcher.Close()
}

func (s *Service) info(text string) {
	s.setNotice(NoticeInfo, text)
}

func (s *Service) warn(text string) {
	s.logger.Warn(text)
	s.setNotice(NoticeWarning, text)
}

func (s *Service) fail(err error) {
	s.logger.Error("operation failed", "error", err)
	s.setNotice(NoticeError, err.Error())
}

func (s *Service) setNotice(level NoticeLevel, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = Notice{Level: level, Text: text, At: time.Now()}
}
