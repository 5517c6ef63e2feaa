package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/ports"
	"github.com/samirrijal/ridepass/internal/pkg/metrics"
)

// SessionOptions are supplied by the front-end when it opens a session.
type SessionOptions struct {
	// ClientID identifies the install; the demo flag is stored under it so
	// it survives reloads. Empty means the flag lives as long as the session.
	ClientID string
	// Demo is the launch parameter forcing demo mode.
	Demo bool
	// RemoteIP is the address the rider connected from.
	RemoteIP string
}

// LocatorFactory returns the geolocator used for a rider at remoteIP.
type LocatorFactory func(remoteIP string) ports.Geolocator

// RegistryConfig configures a SessionRegistry.
type RegistryConfig struct {
	Session    SessionConfig
	IdleTTL    time.Duration
	FlagPrefix string
}

// SessionRegistry owns the running sessions and reaps the idle ones so
// their subscriptions and timers are released.
type SessionRegistry struct {
	deps     SessionDeps
	locators LocatorFactory
	cfg      RegistryConfig
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(deps SessionDeps, locators LocatorFactory, cfg RegistryConfig, logger *slog.Logger) *SessionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.FlagPrefix == "" {
		cfg.FlagPrefix = "ridepass"
	}
	return &SessionRegistry{
		deps:     deps,
		locators: locators,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// FlagKey is the durable demo flag key for a client.
func (r *SessionRegistry) FlagKey(clientID string) string {
	return fmt.Sprintf("%s:%s:demo_mode", r.cfg.FlagPrefix, clientID)
}

// Create opens a session and starts its access check in the background.
func (r *SessionRegistry) Create(ctx context.Context, opts SessionOptions) *Session {
	id := uuid.NewString()

	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		clientID = id
	}
	cfg := r.cfg.Session
	cfg.FlagKey = r.FlagKey(clientID)
	cfg.LaunchDemo = cfg.LaunchDemo || opts.Demo

	sess := NewSession(id, r.deps, r.locators(opts.RemoteIP), cfg, r.logger)

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()
	r.logger.Info("session created", "session_id", id, "client_id", clientID, "demo", cfg.LaunchDemo)

	go sess.Start(context.WithoutCancel(ctx))
	return sess
}

// Get returns a live session and marks it as used.
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	sess.Touch()
	return sess, nil
}

// Close ends a session.
func (r *SessionRegistry) Close(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	sess.Close()
	metrics.ActiveSessions.Dec()
	return nil
}

// Len returns the number of open sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reap closes every session idle since before now minus the TTL.
func (r *SessionRegistry) Reap(now time.Time) int {
	cutoff := now.Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	var idle []*Session
	for id, sess := range r.sessions {
		if sess.LastSeen().Before(cutoff) {
			idle = append(idle, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, sess := range idle {
		sess.Close()
		metrics.ActiveSessions.Dec()
	}
	if len(idle) > 0 {
		r.logger.Info("reaped idle sessions", "count", len(idle))
	}
	return len(idle)
}

// Run reaps idle sessions periodically until ctx is cancelled, then
// closes whatever is left.
func (r *SessionRegistry) Run(ctx context.Context) {
	interval := r.cfg.IdleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case now := <-ticker.C:
			r.Reap(now)
		}
	}
}

// CloseAll ends every session.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range all {
		sess.Close()
		metrics.ActiveSessions.Dec()
	}
}
