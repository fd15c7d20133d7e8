// Package handlers processes inbound detector messages: camera frames and
// detection status text.
package handlers

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"log/slog"
	"strings"

	"github.com/catdetector/companion/internal/cache"
	"github.com/catdetector/companion/internal/dispatcher"
	"github.com/catdetector/companion/internal/geo"
	"github.com/catdetector/companion/pkg/wire"
)

// Recorder receives telemetry about inbound messages.
type Recorder interface {
	RecordDetectionStatus(text string)
	RecordImage(width, height, size int)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Slots    *cache.Slots
	Recorder Recorder
	Logger   *slog.Logger
}

// Service provides handler methods for inbound topics
type Service struct {
	deps Dependencies
	ctx  *FrameContext
}

// NewService creates a new handler service
func NewService(deps Dependencies, ctx *FrameContext) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if ctx == nil {
		ctx = NewFrameContext()
	}
	return &Service{deps: deps, ctx: ctx}
}

// GetFrameContext returns the frame context
func (s *Service) GetFrameContext() *FrameContext {
	return s.ctx
}

// Register routes the inbound topics on d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(wire.TopicImageLatest, s.HandleImage, dispatcher.Latest(), dispatcher.Logged())
	d.Register(wire.TopicDetectionStatus, s.HandleStatus, dispatcher.Logged())
}

// HandleImage stores the frame in its slot and reads the JPEG header to learn
// the native size. The slot is updated even when the header is unreadable.
func (s *Service) HandleImage(msg dispatcher.Message) error {
	payload := string(msg.Payload)
	s.deps.Slots.Set(wire.TopicImageLatest, payload)

	size, n, err := DecodeFrameSize(payload)
	if err != nil {
		return err
	}
	s.ctx.SetFrame(size, msg.Received)
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordImage(int(size.Width), int(size.Height), n)
	}
	return nil
}

// HandleStatus stores the detector's status text.
func (s *Service) HandleStatus(msg dispatcher.Message) error {
	text := string(msg.Payload)
	s.deps.Slots.Set(wire.TopicDetectionStatus, text)
	s.deps.Logger.Debug("detection status", "text", text)
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordDetectionStatus(text)
	}
	return nil
}

// DecodeFrameSize decodes a base64 JPEG frame far enough to read its
// dimensions. A data URL prefix is accepted. It also returns the decoded size
// in bytes.
func DecodeFrameSize(payload string) (geo.Size, int, error) {
	if i := strings.Index(payload, ";base64,"); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return geo.Size{}, 0, fmt.Errorf("decoding frame: %w", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return geo.Size{}, len(raw), fmt.Errorf("reading jpeg header: %w", err)
	}
	return geo.Size{Width: float64(cfg.Width), Height: float64(cfg.Height)}, len(raw), nil
}
