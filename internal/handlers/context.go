package handlers

import (
	"sync"
	"time"

	"github.com/catdetector/companion/internal/geo"
)

// FrameContext holds what is known about the most recent camera frame.
type FrameContext struct {
	mu       sync.RWMutex
	size     geo.Size
	received time.Time
	frames   uint64
}

// NewFrameContext creates a FrameContext with no frame seen.
func NewFrameContext() *FrameContext {
	return &FrameContext{}
}

// Size returns the native size of the last decodable frame. It is the zero
// Size until a frame arrives.
func (fc *FrameContext) Size() geo.Size {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.size
}

// Received returns when the last frame arrived.
func (fc *FrameContext) Received() time.Time {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.received
}

// Frames returns how many frames have been decoded.
func (fc *FrameContext) Frames() uint64 {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.frames
}

// SetFrame records a decoded frame.
func (fc *FrameContext) SetFrame(size geo.Size, at time.Time) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.size = size
	fc.received = at
	fc.frames++
}

// Reset forgets the last frame.
func (fc *FrameContext) Reset() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.size = geo.Size{}
	fc.received = time.Time{}
	fc.frames = 0
}
