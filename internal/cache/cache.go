// Package cache holds the latest inbound value per topic. Each slot keeps only
// the most recent payload; older ones are overwritten.
package cache

import (
	"sync"
	"time"
)

// Entry is the value held in a slot.
type Entry struct {
	Payload  string
	Received time.Time
	// Seq increases by one on every write to the slot.
	Seq uint64
}

// Slots maps topics to their most recent entry.
type Slots struct {
	mu    sync.RWMutex
	slots map[string]Entry
}

// NewSlots creates an empty set of slots.
func NewSlots() *Slots {
	return &Slots{
		slots: make(map[string]Entry),
	}
}

// Set overwrites the slot for topic and returns the stored entry.
func (c *Slots) Set(topic, payload string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := Entry{Payload: payload, Received: time.Now(), Seq: c.slots[topic].Seq + 1}
	c.slots[topic] = e
	return e
}

// Get retrieves the latest entry for topic
func (c *Slots) Get(topic string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.slots[topic]
	return e, ok
}

// Payload returns the latest payload for topic, or "" when nothing was stored.
func (c *Slots) Payload(topic string) string {
	e, _ := c.Get(topic)
	return e.Payload
}

// Reset clears all slots
func (c *Slots) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = make(map[string]Entry)
}
