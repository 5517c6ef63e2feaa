package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/ports"
	"github.com/samirrijal/ridepass/internal/pkg/geospatial"
	"github.com/samirrijal/ridepass/internal/pkg/metrics"
	"github.com/samirrijal/ridepass/internal/pkg/telemetry"
)

const demoFlagValue = "true"

// AccessConfig configures an AccessController.
type AccessConfig struct {
	Area domain.ServiceArea
	// FlagKey is the durable key holding the demo-mode flag.
	FlagKey string
	// LaunchDemo is the one-time boot override requesting demo mode.
	LaunchDemo bool
	// Timeout bounds the single geolocation attempt.
	Timeout time.Duration
}

// AccessController decides whether a rider may use the app: a persisted
// demo flag wins, otherwise a single fresh geolocation fix is checked
// against the service area.
//
// Only one geolocation request is in flight at a time. Every check bumps a
// generation counter; a result that comes back for an older generation is
// dropped, so a late fix can never undo a newer decision.
type AccessController struct {
	locator ports.Geolocator
	flags   ports.FlagStore
	cfg     AccessConfig
	logger  *slog.Logger

	mu       sync.Mutex
	state    domain.AccessState
	location *domain.Coordinate
	gen      uint64
	inFlight bool
	started  bool
	onChange func(domain.AccessState)
}

// NewAccessController creates a controller in the Checking state.
func NewAccessController(locator ports.Geolocator, flags ports.FlagStore, cfg AccessConfig, logger *slog.Logger) *AccessController {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FlagKey == "" {
		cfg.FlagKey = "demo_mode"
	}
	return &AccessController{
		locator: locator,
		flags:   flags,
		cfg:     cfg,
		logger:  logger,
		state:   domain.AccessState{Phase: domain.AccessChecking},
	}
}

// OnChange registers fn to be called, outside the controller's lock, after
// every state change. It must be set before Start.
func (a *AccessController) OnChange(fn func(domain.AccessState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = fn
}

// State returns the current verdict.
func (a *AccessController) State() domain.AccessState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Location returns the last resolved rider position, or nil if none is known.
func (a *AccessController) Location() *domain.Coordinate {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.location == nil {
		return nil
	}
	loc := *a.location
	return &loc
}

// Start runs the automatic startup check. Only the first call does any work.
func (a *AccessController) Start(ctx context.Context) domain.AccessState {
	a.mu.Lock()
	if a.started {
		st := a.state
		a.mu.Unlock()
		return st
	}
	a.started = true
	a.mu.Unlock()

	if a.cfg.LaunchDemo || a.demoFlagSet(ctx) {
		return a.grantDemo(ctx)
	}
	return a.checkLocation(ctx)
}

// EnableDemo is the explicit opt-in from the Blocked screen. It also
// supersedes a check that is still waiting on geolocation.
func (a *AccessController) EnableDemo(ctx context.Context) (domain.AccessState, error) {
	a.mu.Lock()
	if a.state.Granted() {
		st := a.state
		a.mu.Unlock()
		return st, nil
	}
	a.mu.Unlock()
	return a.grantDemo(ctx), nil
}

// ExitDemo clears the durable flag and checks the real location again.
func (a *AccessController) ExitDemo(ctx context.Context) (domain.AccessState, error) {
	a.mu.Lock()
	if !(a.state.Granted() && a.state.Demo) {
		st := a.state
		a.mu.Unlock()
		return st, domain.ErrInvalidTransition
	}
	a.mu.Unlock()

	if err := a.flags.Remove(ctx, a.cfg.FlagKey); err != nil {
		a.logger.Warn("clear demo flag failed", "key", a.cfg.FlagKey, "error", err)
	}
	return a.checkLocation(ctx), nil
}

// Retry re-runs the location check from the Blocked state.
func (a *AccessController) Retry(ctx context.Context) (domain.AccessState, error) {
	a.mu.Lock()
	if a.state.Phase != domain.AccessBlocked {
		st := a.state
		a.mu.Unlock()
		return st, domain.ErrInvalidTransition
	}
	a.mu.Unlock()
	return a.checkLocation(ctx), nil
}

func (a *AccessController) demoFlagSet(ctx context.Context) bool {
	v, ok, err := a.flags.Get(ctx, a.cfg.FlagKey)
	if err != nil {
		a.logger.Warn("read demo flag failed", "key", a.cfg.FlagKey, "error", err)
		return false
	}
	return ok && v == demoFlagValue
}

func (a *AccessController) grantDemo(ctx context.Context) domain.AccessState {
	if err := a.flags.Set(ctx, a.cfg.FlagKey, demoFlagValue); err != nil {
		a.logger.Warn("persist demo flag failed", "key", a.cfg.FlagKey, "error", err)
	}

	a.mu.Lock()
	a.gen++
	a.inFlight = false
	a.state = domain.AccessState{Phase: domain.AccessGranted, Demo: true}
	st := a.state
	a.mu.Unlock()

	metrics.AccessVerdicts.WithLabelValues("demo").Inc()
	a.logger.Info("access granted", "demo", true)
	a.notify(st)
	return st
}

func (a *AccessController) notify(st domain.AccessState) {
	a.mu.Lock()
	fn := a.onChange
	a.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// checkLocation performs one geolocation attempt. A call made while another
// is in flight returns the current (Checking) state without a second request.
func (a *AccessController) checkLocation(ctx context.Context) domain.AccessState {
	a.mu.Lock()
	if a.inFlight {
		st := a.state
		a.mu.Unlock()
		return st
	}
	a.inFlight = true
	a.gen++
	gen := a.gen
	a.state = domain.AccessState{Phase: domain.AccessChecking}
	a.mu.Unlock()
	a.notify(domain.AccessState{Phase: domain.AccessChecking})

	ctx, span := telemetry.Tracer().Start(ctx, "access.check_location")
	defer span.End()

	lookupCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	start := time.Now()
	pos, err := a.locator.CurrentPosition(lookupCtx, ports.PositionOptions{
		Timeout:      a.cfg.Timeout,
		HighAccuracy: true,
		MaxAge:       0,
	})
	metrics.GeolocationDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		err = pos.Validate()
	}

	st, fresh := a.settle(gen, pos, err, span)
	if fresh {
		a.notify(st)
	}
	return st
}

// settle records the outcome of the lookup for generation gen. It reports
// false when a newer check or a demo grant superseded it.
func (a *AccessController) settle(gen uint64, pos domain.Coordinate, err error, span trace.Span) (domain.AccessState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen {
		a.logger.Debug("discarding stale geolocation result", "generation", gen, "current", a.gen)
		return a.state, false
	}
	a.inFlight = false

	if err != nil {
		if !errors.Is(err, domain.ErrLocationUnavailable) {
			err = errors.Join(domain.ErrLocationUnavailable, err)
		}
		a.state = domain.AccessState{Phase: domain.AccessBlocked}
		metrics.AccessVerdicts.WithLabelValues("unavailable").Inc()
		span.SetAttributes(attribute.String("verdict", "unavailable"))
		a.logger.Warn("location unavailable, blocking access", "error", err)
		return a.state, true
	}

	a.location = &pos
	inside := geospatial.IsWithinServiceArea(pos, a.cfg.Area)
	distance := geospatial.DistanceKm(pos, a.cfg.Area.Center)
	span.SetAttributes(attribute.Float64("distance_km", distance), attribute.Bool("inside", inside))

	if inside {
		a.state = domain.AccessState{Phase: domain.AccessGranted}
		metrics.AccessVerdicts.WithLabelValues("inside").Inc()
		a.logger.Info("access granted", "demo", false, "distance_km", distance)
	} else {
		a.state = domain.AccessState{Phase: domain.AccessBlocked}
		metrics.AccessVerdicts.WithLabelValues("outside").Inc()
		a.logger.Info("outside service area, blocking access", "distance_km", distance, "radius_km", a.cfg.Area.RadiusKm)
	}
	return a.state, true
}
