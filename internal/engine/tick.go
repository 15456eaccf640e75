// Package engine provides the frame clock that drives per-frame effects.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is roughly 60 frames per second.
const DefaultInterval = time.Second / 60

// Engine advances a frame counter and an effect clock at a fixed interval.
// The clock moves by Interval*Speed per frame, so it is independent of how
// long a frame's callbacks take.
type Engine struct {
	Interval time.Duration // Wall time between frames

	// OnFrame receives the effect clock in seconds after every frame.
	OnFrame func(time float64)
	// OnSecond fires once per whole second of effect time.
	OnSecond func(time float64)

	mu     sync.Mutex
	frame  uint64
	clock  float64
	speed  float64 // 1.0 = real time, 0 = paused
	cancel context.CancelFunc
}

// NewEngine creates a frame clock with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval: DefaultInterval,
		speed:    1.0,
	}
}

// Run drives frames until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	interval := e.Interval
	e.mu.Unlock()
	defer cancel()

	if interval <= 0 {
		interval = DefaultInterval
	}
	slog.Info("frame clock started", "interval", interval, "speed", e.Speed())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("frame clock stopped", "frame", e.Frame(), "time", FormatClock(e.Clock()))
			return
		case <-ticker.C:
			e.Step()
		}
	}
}

// Stop halts a running loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Step advances one frame. A paused engine does nothing.
func (e *Engine) Step() {
	e.mu.Lock()
	if e.speed <= 0 {
		e.mu.Unlock()
		return
	}
	interval := e.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	prev := e.clock
	e.frame++
	e.clock += interval.Seconds() * e.speed
	now := e.clock
	onFrame, onSecond := e.OnFrame, e.OnSecond
	e.mu.Unlock()

	if onFrame != nil {
		onFrame(now)
	}
	if onSecond != nil && int64(now) > int64(prev) {
		onSecond(now)
	}
}

// SetSpeed sets the clock multiplier. Zero or negative pauses the clock.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = max(speed, 0)
}

// Speed returns the clock multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// Frame returns the number of frames advanced.
func (e *Engine) Frame() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

// Clock returns the effect clock in seconds.
func (e *Engine) Clock() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// FormatClock renders an effect clock as minutes and seconds.
func FormatClock(seconds float64) string {
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d.%03d", total/60, total%60, int64((seconds-float64(total))*1000))
}
