// Package monitor periodically samples the companion's state, writes it to a
// status file and, when a database is available, stores it as a health row.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/catdetector/companion/internal/controller"
	"github.com/catdetector/companion/internal/editor"
	"github.com/catdetector/companion/internal/model"

	"gorm.io/gorm"
)

// StatusFileName is written in Dependencies.StatusDir on every sample.
const StatusFileName = "status.json"

// Source provides the state to sample.
type Source interface {
	Snapshot() controller.Snapshot
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	DB        *gorm.DB
	Source    Source
	Logger    *slog.Logger
	StatusDir string
	Interval  time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 30 * time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample reads the current state into a health row.
func (s *Service) Sample() model.HealthSample {
	snap := s.deps.Source.Snapshot()
	return model.HealthSample{
		Time:            time.Now(),
		Status:          snap.Status.String(),
		Reason:          snap.Reason,
		ClientID:        snap.ClientID,
		BrokerHost:      snap.Broker.Host,
		BrokerPort:      snap.Broker.Port,
		DetectionStatus: snap.DetectionStatus,
		Frames:          snap.Frames,
		ImageWidth:      int(snap.ImageSize.Width),
		ImageHeight:     int(snap.ImageSize.Height),
		Zones:           len(snap.Zones.ActivationAreas),
		Editing:         snap.Editor.State == editor.Editing,
	}
}

// WriteSample stores one sample in the status file and the database.
func (s *Service) WriteSample(sample model.HealthSample) error {
	var errs []error

	if s.deps.StatusDir != "" {
		data, err := json.MarshalIndent(sample, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		path := filepath.Join(s.deps.StatusDir, StatusFileName)
		if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
			errs = append(errs, fmt.Errorf("writing status file: %w", err))
		}
	}

	if s.deps.DB != nil {
		if err := s.deps.DB.Create(&sample).Error; err != nil {
			errs = append(errs, fmt.Errorf("writing health sample: %w", err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Source == nil {
		s.mu.Unlock()
		return fmt.Errorf("monitor has no source")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				sample := s.Sample()
				logger.Debug("health sample",
					"status", sample.Status,
					"frames", sample.Frames,
					"zones", sample.Zones,
				)
				if err := s.WriteSample(sample); err != nil {
					logger.Error("Error writing health sample", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()
	<-done
}
