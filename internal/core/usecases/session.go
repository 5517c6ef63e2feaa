package usecases

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/ports"
)

// SessionDeps are the collaborators shared by every rider session.
type SessionDeps struct {
	Hotspots  HotspotLister
	Providers OnlineProviderLister
	Writer    LocationWriter
	Changes   ports.ChangeFeed
	Flags     ports.FlagStore
}

// SessionConfig holds the per-session tunables.
type SessionConfig struct {
	Area        domain.ServiceArea
	FlagKey     string
	LaunchDemo  bool
	GeoTimeout  time.Duration
	SplashDelay time.Duration
	Simulator   SimulatorConfig
}

// SessionView is the full state pushed to a rider front-end.
type SessionView struct {
	ID         string             `json:"id"`
	Access     domain.AccessState `json:"access"`
	Location   *domain.Coordinate `json:"location,omitempty"`
	MapCenter  domain.Coordinate  `json:"map_center"`
	Screen     ScreenView         `json:"screen"`
	Feed       Snapshot           `json:"feed"`
	Simulating bool               `json:"simulating"`
}

// Session is one rider's running app: the location gate, the screen
// machine and the map components it switches on and off.
type Session struct {
	id     string
	area   domain.ServiceArea
	logger *slog.Logger

	access  *AccessController
	feed    *LiveFeed
	sim     *MovementSimulator
	screens *ScreenController

	lastSeen atomic.Int64

	mu        sync.Mutex
	watchers  map[int]func(SessionView)
	nextWatch int
	closed    bool
}

// NewSession wires the session's components. Nothing runs until Start.
func NewSession(id string, deps SessionDeps, locator ports.Geolocator, cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id)

	s := &Session{
		id:       id,
		area:     cfg.Area,
		logger:   logger,
		watchers: make(map[int]func(SessionView)),
	}
	s.Touch()

	s.access = NewAccessController(locator, deps.Flags, AccessConfig{
		Area:       cfg.Area,
		FlagKey:    cfg.FlagKey,
		LaunchDemo: cfg.LaunchDemo,
		Timeout:    cfg.GeoTimeout,
	}, logger)
	s.feed = NewLiveFeed(deps.Hotspots, deps.Providers, deps.Changes, logger, func(Snapshot) {
		s.broadcast()
	})
	s.sim = NewMovementSimulator(s.feed, deps.Writer, cfg.Simulator, logger)
	s.screens = NewScreenController(s.access, s.feed, s.sim, cfg.SplashDelay, logger, func(ScreenView) {
		s.broadcast()
	})
	s.access.OnChange(func(domain.AccessState) {
		s.screens.Sync(context.Background())
		s.broadcast()
	})
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Touch marks the session as used now.
func (s *Session) Touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// LastSeen is the time of the last Touch.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// View assembles the current state of every component.
func (s *Session) View() SessionView {
	st := s.access.State()
	loc := s.access.Location()
	center := s.area.Center
	if loc != nil {
		center = *loc
	}
	return SessionView{
		ID:         s.id,
		Access:     st,
		Location:   loc,
		MapCenter:  center,
		Screen:     s.screens.View(),
		Feed:       s.feed.Snapshot(),
		Simulating: s.sim.Running(),
	}
}

// Watch registers fn to receive every state change. The returned func
// removes it.
func (s *Session) Watch(fn func(SessionView)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Session) broadcast() {
	s.mu.Lock()
	if s.closed || len(s.watchers) == 0 {
		s.mu.Unlock()
		return
	}
	fns := make([]func(SessionView), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	v := s.View()
	for _, fn := range fns {
		fn(v)
	}
}

// Start runs the startup access check and moves off the Checking screen.
// It blocks until the verdict is known.
func (s *Session) Start(ctx context.Context) SessionView {
	s.access.Start(ctx)
	s.screens.Sync(ctx)
	return s.View()
}

// EnableDemo is the rider's opt-in from the Blocked screen.
func (s *Session) EnableDemo(ctx context.Context) (SessionView, error) {
	if _, err := s.access.EnableDemo(ctx); err != nil {
		return s.View(), err
	}
	s.screens.Sync(ctx)
	return s.View(), nil
}

// ExitDemo leaves demo mode and checks the real location again.
func (s *Session) ExitDemo(ctx context.Context) (SessionView, error) {
	if _, err := s.access.ExitDemo(ctx); err != nil {
		return s.View(), err
	}
	s.screens.Sync(ctx)
	return s.View(), nil
}

// Retry re-runs the location check from the Blocked screen.
func (s *Session) Retry(ctx context.Context) (SessionView, error) {
	if _, err := s.access.Retry(ctx); err != nil {
		return s.View(), err
	}
	s.screens.Sync(ctx)
	return s.View(), nil
}

// Navigate applies a payload-free navigation event.
func (s *Session) Navigate(ctx context.Context, ev domain.Event) (SessionView, error) {
	_, err := s.screens.Navigate(ctx, ev)
	return s.View(), err
}

func (s *Session) ChooseDestination(ctx context.Context, name string) (SessionView, error) {
	_, err := s.screens.ChooseDestination(ctx, name)
	return s.View(), err
}

func (s *Session) TapHotspot(ctx context.Context, id int64) (SessionView, error) {
	_, err := s.screens.TapHotspot(ctx, id)
	return s.View(), err
}

func (s *Session) TapProvider(ctx context.Context, id string) (SessionView, error) {
	_, err := s.screens.TapProvider(ctx, id)
	return s.View(), err
}

func (s *Session) SelectProvider(ctx context.Context, id string) (SessionView, error) {
	_, err := s.screens.SelectProvider(ctx, id)
	return s.View(), err
}

// Close stops the feed, the simulator and any pending timer, and drops
// all watchers. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.watchers = make(map[int]func(SessionView))
	s.mu.Unlock()

	s.screens.Close()
	s.logger.Debug("session closed")
}
