// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultJoinTimeout bounds how long Stop waits for the worker
const DefaultJoinTimeout = time.Second

var (
	// ErrAlreadyScanning is returned by Start while a pattern is running
	ErrAlreadyScanning = errors.New("scan already active")

	// ErrJoinTimeout is returned by Stop when the worker did not exit in time
	ErrJoinTimeout = errors.New("scan worker did not stop within join timeout")
)

// AngleSetter is the deflector side of a scan
type AngleSetter interface {
	SetAngle(angle float64) error
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithJoinTimeout overrides DefaultJoinTimeout
func WithJoinTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.joinTimeout = d }
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithStepHook registers a callback run after every applied setpoint
func WithStepHook(hook func(id string, step Step)) EngineOption {
	return func(e *Engine) { e.onStep = hook }
}

// WithFinishHook registers a callback run when a pattern ends on its own,
// either exhausted (err == nil) or after a setpoint failure.
func WithFinishHook(hook func(id string, err error)) EngineOption {
	return func(e *Engine) { e.onFinish = hook }
}

// Engine runs at most one scan worker at a time
type Engine struct {
	setter      AngleSetter
	joinTimeout time.Duration
	logger      logrus.FieldLogger
	onStep      func(string, Step)
	onFinish    func(string, error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stale   chan struct{} // worker abandoned by a timed-out Stop
	current string
	lastErr error
}

// NewEngine creates an engine that forwards setpoints to setter
func NewEngine(setter AngleSetter, opts ...EngineOption) *Engine {
	e := &Engine{
		setter:      setter,
		joinTimeout: DefaultJoinTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	e.logger = e.logger.WithField("component", "scan")
	return e
}

// Start launches a worker running gen under the given pattern id. The
// returned channel is closed when that worker exits.
func (e *Engine) Start(id string, gen Generator) (<-chan struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done != nil {
		return nil, ErrAlreadyScanning
	}
	if e.stale != nil {
		select {
		case <-e.stale:
			e.stale = nil
		default:
			return nil, ErrAlreadyScanning
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.current = id
	e.lastErr = nil

	e.logger.WithField("pattern", id).Info("scan started")
	go e.run(ctx, id, gen, done)
	return done, nil
}

func (e *Engine) run(ctx context.Context, id string, gen Generator, done chan struct{}) {
	defer close(done)

	start := time.Now()
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		step, ok := gen.Next(time.Since(start))
		if !ok {
			e.finish(id, done, nil)
			return
		}

		if ctx.Err() != nil {
			return
		}
		if err := e.setter.SetAngle(step.Angle); err != nil {
			e.finish(id, done, err)
			return
		}
		if e.onStep != nil {
			e.onStep(id, step)
		}

		if ctx.Err() != nil {
			return
		}
		if step.Delay <= 0 {
			continue
		}
		if timer == nil {
			timer = time.NewTimer(step.Delay)
		} else {
			timer.Reset(step.Delay)
		}
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// finish clears the active run if it is still this one and reports the end
func (e *Engine) finish(id string, done chan struct{}, err error) {
	e.mu.Lock()
	owned := e.done == done
	if owned {
		e.cancel()
		e.cancel = nil
		e.done = nil
		e.current = ""
		e.lastErr = err
	}
	e.mu.Unlock()

	if !owned {
		return
	}
	log := e.logger.WithField("pattern", id)
	if err != nil {
		log.WithError(err).Error("scan aborted")
	} else {
		log.Info("scan finished")
	}
	if e.onFinish != nil {
		e.onFinish(id, err)
	}
}

// Stop cancels the running worker and waits up to the join timeout. The
// engine reports idle afterwards even when the join timed out, but Start
// keeps failing until the abandoned worker has exited. Stopping an idle
// engine is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.done == nil {
		e.mu.Unlock()
		return nil
	}
	cancel, done, id := e.cancel, e.done, e.current
	e.cancel = nil
	e.done = nil
	e.current = ""
	e.mu.Unlock()

	cancel()

	timer := time.NewTimer(e.joinTimeout)
	defer timer.Stop()
	select {
	case <-done:
		e.logger.WithField("pattern", id).Info("scan stopped")
		return nil
	case <-timer.C:
		e.mu.Lock()
		e.stale = done
		e.mu.Unlock()
		e.logger.WithField("pattern", id).Warn("scan worker did not exit within join timeout")
		return ErrJoinTimeout
	}
}

// Active reports whether a worker is running
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done != nil
}

// Current returns the running pattern id, or "" when idle
func (e *Engine) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Done returns a channel closed when the current worker exits, or nil when idle
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		return nil
	}
	return e.done
}

// Err returns the terminal error of the last pattern that ended on its own
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}
