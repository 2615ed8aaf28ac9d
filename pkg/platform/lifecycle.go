package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// hook is one named startup step and its matching teardown.
type hook struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

// Lifecycle runs startup steps in registration order and teardown in
// reverse. A failed step rolls back the steps that already ran.
type Lifecycle struct {
	mu      sync.Mutex
	hooks   []hook
	started int
	running bool
}

// NewLifecycle creates a new lifecycle manager.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Add registers a step. Either function may be nil.
func (l *Lifecycle) Add(name string, start, stop func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook{name: name, start: start, stop: stop})
}

// AddCloser registers c to be closed on shutdown.
func (l *Lifecycle) AddCloser(name string, c Closer) {
	l.Add(name, nil, func(context.Context) error { return c.Close() })
}

// Start runs every start step.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return errors.New("lifecycle already started")
	}

	for i, h := range l.hooks {
		if h.start != nil {
			if err := h.start(ctx); err != nil {
				l.stopFrom(ctx, i-1)
				return fmt.Errorf("starting %s: %w", h.name, err)
			}
		}
		slog.Debug("lifecycle step started", "step", h.name)
	}

	l.started = len(l.hooks)
	l.running = true
	return nil
}

// stopFrom runs stop steps from index last down to zero, logging failures.
func (l *Lifecycle) stopFrom(ctx context.Context, last int) {
	for j := last; j >= 0; j-- {
		h := l.hooks[j]
		if h.stop == nil {
			continue
		}
		if err := h.stop(ctx); err != nil {
			slog.Warn("lifecycle rollback: stop step failed", "step", h.name, "error", err)
		}
	}
}

// Stop runs the stop steps of every started step in reverse order.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}

	var errs []error
	for i := l.started - 1; i >= 0; i-- {
		h := l.hooks[i]
		if h.stop == nil {
			continue
		}
		if err := h.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", h.name, err))
		}
	}

	l.running = false
	l.started = 0
	return errors.Join(errs...)
}

// IsStarted returns whether the lifecycle has been started.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Closer is something that can be closed.
type Closer interface {
	Close() error
}
