package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"colony-counter/internal/logger"
)

// HookTimeout bounds how long a single shutdown hook may run.
const HookTimeout = 10 * time.Second

type hook struct {
	name string
	fn   func()
}

// Manager cancels the run context on SIGINT/SIGTERM and runs the registered
// hooks, newest first, exactly once.
type Manager struct {
	hooks   []hook
	logger  logger.Logger
	mu      sync.Mutex
	done    chan struct{}
	signals chan os.Signal
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewManager(parent context.Context, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(parent)

	return &Manager{
		logger: log,
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (m *Manager) Register(name string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Listen cancels the context on SIGINT or SIGTERM.
func (m *Manager) Listen() {
	m.signals = make(chan os.Signal, 1)
	signal.Notify(m.signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-m.signals:
			m.logger.Info("ShutdownManager", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			m.cancel()
		case <-m.done:
		}
	}()
}

// Shutdown cancels the context, stops signal delivery and runs the hooks.
// Later calls are no-ops.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}

	if m.signals != nil {
		signal.Stop(m.signals)
	}
	m.cancel()

	for i := len(m.hooks) - 1; i >= 0; i-- {
		h := m.hooks[i]

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			h.fn()
		}()

		select {
		case <-finished:
		case <-time.After(HookTimeout):
			m.logger.Warning("ShutdownManager", "shutdown hook timed out", map[string]interface{}{
				"hook": h.name,
			})
		}
	}
}

func (m *Manager) Context() context.Context {
	return m.ctx
}
