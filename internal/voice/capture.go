// Package voice models the platform speech-capture capability as a single
// subscription yielding an ordered stream of transcript and listening-state
// events.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCaptureActive rejects starting a capture while one is already running.
var ErrCaptureActive = errors.New("voice capture already active")

// EventKind distinguishes the two event types a capture source emits.
type EventKind int

const (
	// EventTranscript carries the latest cumulative transcript text.
	EventTranscript EventKind = iota
	// EventListening carries a listening-state transition.
	EventListening
)

// Event is one update from the capture source.
type Event struct {
	Kind       EventKind
	Transcript string
	Listening  bool
}

// Source is the platform capability: a long-lived listening session that
// emits transcript updates and listening-state transitions in order. The
// returned channel must close when the session ends or ctx is cancelled.
type Source interface {
	Listen(ctx context.Context) (<-chan Event, error)
}

// Capture manages at most one active subscription to a Source and retains
// the last received transcript across stop/start cycles. Stopping discards
// nothing: whatever partial or final transcript arrived last is kept.
type Capture struct {
	source Source

	mu         sync.Mutex
	active     bool
	listening  bool
	transcript string
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewCapture creates a Capture over the given source.
func NewCapture(source Source) *Capture {
	return &Capture{source: source}
}

// Start begins a capture session. Starting while one is active is a caller
// error.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrCaptureActive
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := c.source.Listen(ctx)
	if err != nil {
		cancel()
		c.mu.Unlock()
		return fmt.Errorf("starting capture: %w", err)
	}

	done := make(chan struct{})
	c.active = true
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for ev := range events {
			c.mu.Lock()
			switch ev.Kind {
			case EventTranscript:
				c.transcript = ev.Transcript
			case EventListening:
				c.listening = ev.Listening
			}
			c.mu.Unlock()
		}
		c.mu.Lock()
		c.active = false
		c.listening = false
		c.mu.Unlock()
	}()
	return nil
}

// Stop ends the active session and waits for the event stream to drain.
// Calling Stop with no active session is a no-op.
func (c *Capture) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Wait blocks until the active session's event stream ends, whether by
// cancellation or because the source closed it. With no active session it
// returns immediately.
func (c *Capture) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Transcript returns the most recent transcript text.
func (c *Capture) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Listening reports the last known listening state.
func (c *Capture) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Active reports whether a capture session is running.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
