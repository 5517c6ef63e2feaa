package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/pkg/metrics"
)

// Lifecycle is a component that is switched on and off by screen changes.
type Lifecycle interface {
	Activate(ctx context.Context) error
	Deactivate()
}

// Feed is the live feed as seen by the screen controller.
type Feed interface {
	Lifecycle
	Snapshot() Snapshot
}

// AccessView exposes the latest location gate verdict.
type AccessView interface {
	State() domain.AccessState
}

// transitions is the navigation table. Gate pseudo-screens are left by
// Sync, never by a rider event, except the demo opt-in edge which Sync
// fires once the gate reports a demo grant.
var transitions = map[domain.Screen]map[domain.Event]domain.Screen{
	domain.ScreenBlocked: {
		domain.EventDemoOptIn: domain.ScreenSplash,
	},
	domain.ScreenSplash: {
		domain.EventSplashElapsed: domain.ScreenOnboarding,
		domain.EventSkip:          domain.ScreenOnboarding,
	},
	domain.ScreenOnboarding: {
		domain.EventSkip:       domain.ScreenMap,
		domain.EventGetStarted: domain.ScreenMap,
	},
	domain.ScreenMap: {
		domain.EventOpenDestination: domain.ScreenDestination,
		domain.EventTapHotspot:      domain.ScreenProviders,
		domain.EventTapProvider:     domain.ScreenProviders,
	},
	domain.ScreenDestination: {
		domain.EventBack:        domain.ScreenMap,
		domain.EventConfirmDest: domain.ScreenProviders,
	},
	domain.ScreenProviders: {
		domain.EventBack:           domain.ScreenMap,
		domain.EventSelectProvider: domain.ScreenConfirmation,
	},
	domain.ScreenConfirmation: {
		domain.EventBookAnother: domain.ScreenMap,
	},
}

// payloadEvents need data the plain Navigate call cannot carry.
var payloadEvents = map[domain.Event]bool{
	domain.EventTapHotspot:     true,
	domain.EventTapProvider:    true,
	domain.EventSelectProvider: true,
	domain.EventConfirmDest:    true,
	domain.EventDemoOptIn:      true,
}

type screenHook func(s *ScreenController, ctx context.Context)

type screenHooks struct {
	enter screenHook
	leave screenHook
}

// hooks holds the side effects bound to each screen. It is filled in init
// because the hooks reach back into moveTo.
var hooks map[domain.Screen]screenHooks

func init() {
	hooks = map[domain.Screen]screenHooks{
		domain.ScreenChecking: {enter: (*ScreenController).enterGate},
		domain.ScreenBlocked:  {enter: (*ScreenController).enterGate},
		domain.ScreenSplash: {
			enter: (*ScreenController).startSplashTimer,
			leave: (*ScreenController).stopSplashTimer,
		},
		domain.ScreenMap: {
			enter: (*ScreenController).enterMap,
			leave: (*ScreenController).leaveMap,
		},
		domain.ScreenConfirmation: {leave: (*ScreenController).clearTrip},
	}
}

// ScreenView is what the rider front-end renders.
type ScreenView struct {
	Screen      domain.Screen    `json:"screen"`
	Destination string           `json:"destination,omitempty"`
	Pickup      *domain.Hotspot  `json:"pickup,omitempty"`
	Focus       *domain.Provider `json:"focus,omitempty"`
	Booking     *domain.Booking  `json:"booking,omitempty"`
}

// ScreenController is the rider's navigation state machine. Exactly one
// screen is active; the booking only exists on Confirmation.
type ScreenController struct {
	access      AccessView
	feed        Feed
	sim         Lifecycle
	splashDelay time.Duration
	logger      *slog.Logger
	onChange    func(ScreenView)

	// op serializes transitions, hooks included. mu only guards the view so
	// readers are never blocked behind a hook doing I/O.
	op     sync.Mutex
	closed bool

	mu          sync.RWMutex
	view        ScreenView
	splashGen   uint64
	splashTimer *time.Timer
}

// NewScreenController creates a controller on the Checking screen.
// onChange, if set, is called after every screen change.
func NewScreenController(access AccessView, feed Feed, sim Lifecycle, splashDelay time.Duration, logger *slog.Logger, onChange func(ScreenView)) *ScreenController {
	if logger == nil {
		logger = slog.Default()
	}
	if splashDelay <= 0 {
		splashDelay = 2 * time.Second
	}
	return &ScreenController{
		access:      access,
		feed:        feed,
		sim:         sim,
		splashDelay: splashDelay,
		logger:      logger,
		onChange:    onChange,
		view:        ScreenView{Screen: domain.ScreenChecking},
	}
}

// View returns the current screen state.
func (s *ScreenController) View() ScreenView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Screen returns the active screen.
func (s *ScreenController) Screen() domain.Screen {
	return s.View().Screen
}

// Sync reconciles the screen with the latest gate verdict. It is
// idempotent and safe to call after any access change, in any order.
func (s *ScreenController) Sync(ctx context.Context) ScreenView {
	s.op.Lock()
	defer s.op.Unlock()

	st := s.access.State()
	cur := s.Screen()
	switch {
	case st.Phase == domain.AccessChecking && cur != domain.ScreenChecking:
		s.moveTo(ctx, domain.ScreenChecking)
	case st.Phase == domain.AccessBlocked && cur != domain.ScreenBlocked:
		s.moveTo(ctx, domain.ScreenBlocked)
	case st.Granted() && cur == domain.ScreenBlocked:
		s.fire(ctx, domain.EventDemoOptIn)
	case st.Granted() && cur == domain.ScreenChecking:
		s.moveTo(ctx, domain.ScreenSplash)
	}
	return s.View()
}

// Navigate applies a rider event that carries no payload.
func (s *ScreenController) Navigate(ctx context.Context, ev domain.Event) (ScreenView, error) {
	if payloadEvents[ev] {
		return s.View(), fmt.Errorf("event %q needs a payload: %w", ev, domain.ErrInvalidTransition)
	}
	s.op.Lock()
	defer s.op.Unlock()
	if err := s.guard(ev); err != nil {
		return s.View(), err
	}
	s.fire(ctx, ev)
	return s.View(), nil
}

// ChooseDestination confirms the destination entry and opens the provider list.
func (s *ScreenController) ChooseDestination(ctx context.Context, name string) (ScreenView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.View(), fmt.Errorf("empty destination: %w", domain.ErrInvalidTransition)
	}
	s.op.Lock()
	defer s.op.Unlock()
	if err := s.guard(domain.EventConfirmDest); err != nil {
		return s.View(), err
	}
	s.mu.Lock()
	s.view.Destination = name
	s.mu.Unlock()
	s.fire(ctx, domain.EventConfirmDest)
	return s.View(), nil
}

// TapHotspot opens the provider list for a hotspot on the map.
func (s *ScreenController) TapHotspot(ctx context.Context, id int64) (ScreenView, error) {
	s.op.Lock()
	defer s.op.Unlock()
	if err := s.guard(domain.EventTapHotspot); err != nil {
		return s.View(), err
	}
	h := s.findHotspot(id)
	if h == nil {
		return s.View(), fmt.Errorf("hotspot %d: %w", id, domain.ErrNotFound)
	}
	s.mu.Lock()
	s.view.Pickup = h
	s.view.Focus = nil
	s.mu.Unlock()
	s.fire(ctx, domain.EventTapHotspot)
	return s.View(), nil
}

// TapProvider opens the provider list focused on one provider marker.
func (s *ScreenController) TapProvider(ctx context.Context, id string) (ScreenView, error) {
	s.op.Lock()
	defer s.op.Unlock()
	if err := s.guard(domain.EventTapProvider); err != nil {
		return s.View(), err
	}
	p := s.findProvider(id)
	if p == nil {
		return s.View(), fmt.Errorf("provider %s: %w", id, domain.ErrNotFound)
	}
	s.mu.Lock()
	s.view.Focus = p
	s.mu.Unlock()
	s.fire(ctx, domain.EventTapProvider)
	return s.View(), nil
}

// SelectProvider books the provider and shows the confirmation.
func (s *ScreenController) SelectProvider(ctx context.Context, id string) (ScreenView, error) {
	s.op.Lock()
	defer s.op.Unlock()
	if err := s.guard(domain.EventSelectProvider); err != nil {
		return s.View(), err
	}
	p := s.findProvider(id)
	if p == nil {
		return s.View(), fmt.Errorf("provider %s: %w", id, domain.ErrNotFound)
	}
	s.mu.Lock()
	s.view.Booking = &domain.Booking{
		Provider:    *p,
		Destination: s.view.Destination,
		Pickup:      s.view.Pickup,
	}
	s.mu.Unlock()
	s.fire(ctx, domain.EventSelectProvider)
	return s.View(), nil
}

// Close switches off everything the active screen started. Later
// transitions, including a pending splash timer, are ignored.
func (s *ScreenController) Close() {
	s.op.Lock()
	defer s.op.Unlock()
	s.closed = true
	s.stopSplashTimer(context.Background())
	s.sim.Deactivate()
	s.feed.Deactivate()
}

// guard must be called with op held.
func (s *ScreenController) guard(ev domain.Event) error {
	cur := s.Screen()
	if cur.Gated() {
		return fmt.Errorf("%s: %w", cur, domain.ErrAccessDenied)
	}
	if _, ok := transitions[cur][ev]; !ok {
		return fmt.Errorf("%s on %s: %w", ev, cur, domain.ErrInvalidTransition)
	}
	return nil
}

// fire looks up ev in the table and moves. Unknown edges are ignored.
func (s *ScreenController) fire(ctx context.Context, ev domain.Event) {
	next, ok := transitions[s.Screen()][ev]
	if !ok {
		return
	}
	s.moveTo(ctx, next)
}

// moveTo runs the leave hook of the current screen, switches, then runs
// the enter hook of the new one. Caller holds op.
func (s *ScreenController) moveTo(ctx context.Context, next domain.Screen) {
	prev := s.Screen()
	if prev == next || s.closed {
		return
	}
	if h := hooks[prev].leave; h != nil {
		h(s, ctx)
	}

	s.mu.Lock()
	s.view.Screen = next
	view := s.view
	s.mu.Unlock()

	if h := hooks[next].enter; h != nil {
		h(s, ctx)
		view = s.View()
	}

	metrics.ScreenTransitions.WithLabelValues(string(next)).Inc()
	s.logger.Debug("screen changed", "from", prev, "to", next)
	if s.onChange != nil {
		s.onChange(view)
	}
}

func (s *ScreenController) enterGate(ctx context.Context) {
	s.stopSplashTimer(ctx)
	s.sim.Deactivate()
	s.feed.Deactivate()
	s.clearTrip(ctx)
}

// enterMap starts a fresh trip: whatever was picked on an abandoned
// destination or provider screen is dropped.
func (s *ScreenController) enterMap(ctx context.Context) {
	s.clearTrip(ctx)
	if err := s.feed.Activate(ctx); err != nil {
		s.logger.Error("live feed activation failed", "error", err)
	}
	if err := s.sim.Activate(ctx); err != nil {
		s.logger.Error("movement simulator activation failed", "error", err)
	}
}

func (s *ScreenController) leaveMap(context.Context) {
	s.sim.Deactivate()
}

func (s *ScreenController) clearTrip(context.Context) {
	s.mu.Lock()
	s.view.Booking = nil
	s.view.Destination = ""
	s.view.Pickup = nil
	s.view.Focus = nil
	s.mu.Unlock()
}

func (s *ScreenController) startSplashTimer(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.splashTimer != nil {
		s.splashTimer.Stop()
	}
	s.splashGen++
	gen := s.splashGen
	s.splashTimer = time.AfterFunc(s.splashDelay, func() {
		s.splashElapsed(gen)
	})
}

func (s *ScreenController) stopSplashTimer(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.splashGen++
	if s.splashTimer != nil {
		s.splashTimer.Stop()
		s.splashTimer = nil
	}
}

// splashElapsed advances past the splash unless the timer was superseded
// while waiting for the transition lock.
func (s *ScreenController) splashElapsed(gen uint64) {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.RLock()
	stale := gen != s.splashGen
	s.mu.RUnlock()
	if stale {
		return
	}
	s.fire(context.Background(), domain.EventSplashElapsed)
}

func (s *ScreenController) findHotspot(id int64) *domain.Hotspot {
	for _, h := range s.feed.Snapshot().Hotspots {
		if h.ID == id {
			h := h
			return &h
		}
	}
	return nil
}

func (s *ScreenController) findProvider(id string) *domain.Provider {
	for _, p := range s.feed.Snapshot().Providers {
		if p.ID == id {
			p := p
			return &p
		}
	}
	return nil
}
