package usecases

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/pkg/geospatial"
	"github.com/samirrijal/ridepass/internal/pkg/metrics"
)

// ProviderSource yields the providers currently known to the rider.
type ProviderSource interface {
	Providers() []domain.Provider
}

// LocationWriter is the backing-store write path for provider positions.
type LocationWriter interface {
	UpdateLocation(ctx context.Context, id string, loc domain.Coordinate) error
}

// SimulatorConfig configures a MovementSimulator.
type SimulatorConfig struct {
	Interval  time.Duration
	JitterDeg float64
	// Rand returns a uniform value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// MovementSimulator nudges every known provider by a small random offset
// on a fixed interval while active. Moves go through the store write path,
// so they come back to the rider through the live feed like real moves.
type MovementSimulator struct {
	source ProviderSource
	writer LocationWriter
	cfg    SimulatorConfig
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
}

// NewMovementSimulator creates an inactive simulator.
func NewMovementSimulator(source ProviderSource, writer LocationWriter, cfg SimulatorConfig, logger *slog.Logger) *MovementSimulator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.JitterDeg == 0 {
		cfg.JitterDeg = 0.001
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	return &MovementSimulator{source: source, writer: writer, cfg: cfg, logger: logger}
}

// Running reports whether the ticker loop is active.
func (m *MovementSimulator) Running() bool {
	return m.running.Load()
}

// Activate starts the ticker loop. It is a no-op while already running.
func (m *MovementSimulator) Activate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.running.Store(true)
	metrics.SimulatorsRunning.Inc()

	go m.run(runCtx, done)
	return nil
}

// Deactivate stops the ticker loop and waits for an in-progress tick to
// finish, so a following Activate never overlaps the old loop.
func (m *MovementSimulator) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel, m.done = nil, nil
	m.running.Store(false)
	metrics.SimulatorsRunning.Dec()
}

func (m *MovementSimulator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick moves every provider once. A failed write is logged and the rest of
// the batch still runs.
func (m *MovementSimulator) tick(ctx context.Context) {
	providers := m.source.Providers()
	for _, p := range providers {
		if ctx.Err() != nil {
			return
		}
		next := geospatial.Offset(p.Location, m.jitter(), m.jitter())
		if err := m.writer.UpdateLocation(ctx, p.ID, next); err != nil {
			metrics.SimulatorWrites.WithLabelValues("error").Inc()
			m.logger.Warn("simulated move failed", "provider_id", p.ID, "error", err)
			continue
		}
		metrics.SimulatorWrites.WithLabelValues("ok").Inc()
	}
}

func (m *MovementSimulator) jitter() float64 {
	return (m.cfg.Rand()*2 - 1) * m.cfg.JitterDeg
}
