package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/ports"
	"github.com/samirrijal/ridepass/internal/pkg/metrics"
	"github.com/samirrijal/ridepass/internal/pkg/telemetry"
)

// HotspotLister is the read side the live feed needs for hotspots.
type HotspotLister interface {
	List(ctx context.Context) ([]domain.Hotspot, error)
}

// OnlineProviderLister is the read side the live feed needs for providers.
type OnlineProviderLister interface {
	ListOnline(ctx context.Context) ([]domain.Provider, error)
}

// Snapshot is an immutable view of the live feed. Slices are never mutated
// after publication; a refresh swaps in new ones.
type Snapshot struct {
	Hotspots  []domain.Hotspot  `json:"hotspots"`
	Providers []domain.Provider `json:"providers"`
	Loading   bool              `json:"loading"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// LiveFeed keeps the hotspot and online-provider snapshot current: one
// fetch on activation, then a provider refetch on every change notification.
type LiveFeed struct {
	hotspots  HotspotLister
	providers OnlineProviderLister
	changes   ports.ChangeFeed
	logger    *slog.Logger
	onUpdate  func(Snapshot)

	mu     sync.RWMutex
	snap   Snapshot
	active bool
	gen    uint64
	sub    ports.Subscription
	cancel context.CancelFunc
}

// NewLiveFeed creates an inactive feed. onUpdate, if set, is called after
// every snapshot change, outside the feed's lock.
func NewLiveFeed(hotspots HotspotLister, providers OnlineProviderLister, changes ports.ChangeFeed, logger *slog.Logger, onUpdate func(Snapshot)) *LiveFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveFeed{
		hotspots:  hotspots,
		providers: providers,
		changes:   changes,
		logger:    logger,
		onUpdate:  onUpdate,
		snap:      Snapshot{Hotspots: []domain.Hotspot{}, Providers: []domain.Provider{}},
	}
}

// Snapshot returns the current snapshot.
func (f *LiveFeed) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap
}

// Providers returns the currently known online providers.
func (f *LiveFeed) Providers() []domain.Provider {
	return f.Snapshot().Providers
}

// Subscribed reports whether a change subscription is open.
func (f *LiveFeed) Subscribed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sub != nil
}

// Activate fetches the initial snapshot and then opens the provider change
// subscription. Calling it again before Deactivate is a no-op.
func (f *LiveFeed) Activate(ctx context.Context) error {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return nil
	}
	f.active = true
	f.gen++
	gen := f.gen
	// The subscription outlives the request that activated it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	f.snap.Loading = true
	snap := f.snap
	f.mu.Unlock()
	f.publish(snap)

	f.load(ctx, gen)

	sub, err := f.changes.Subscribe(runCtx, domain.TableProviders, func() {
		f.refreshProviders(runCtx, gen)
	})
	if err != nil {
		f.logger.Error("provider change subscription failed", "error", err)
		// Leave the snapshot in place; the next activation cycle subscribes again.
		f.mu.Lock()
		if gen == f.gen {
			f.active = false
			f.gen++
			f.cancel = nil
		}
		f.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: %v", domain.ErrSubscriptionFailed, err)
	}

	f.mu.Lock()
	if !f.active || gen != f.gen {
		// Deactivated while subscribing.
		f.mu.Unlock()
		_ = sub.Unsubscribe()
		return nil
	}
	f.sub = sub
	f.mu.Unlock()
	metrics.FeedSubscriptions.Inc()
	return nil
}

// Deactivate closes the change subscription. Refreshes still running for
// the closed cycle are discarded.
func (f *LiveFeed) Deactivate() {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	f.active = false
	f.gen++
	sub := f.sub
	f.sub = nil
	cancel := f.cancel
	f.cancel = nil
	f.snap.Loading = false
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			f.logger.Warn("unsubscribe provider changes failed", "error", err)
		}
		metrics.FeedSubscriptions.Dec()
	}
}

// load fetches both collections. Each list is replaced only if its fetch
// succeeded; the loading flag is cleared once, whatever the outcome.
func (f *LiveFeed) load(ctx context.Context, gen uint64) {
	ctx, span := telemetry.Tracer().Start(ctx, "feed.load")
	defer span.End()

	hotspots, hErr := f.hotspots.List(ctx)
	if hErr != nil {
		metrics.FeedFetches.WithLabelValues("hotspots", "error").Inc()
		f.logger.Error("fetch hotspots failed", "error", hErr)
	} else {
		metrics.FeedFetches.WithLabelValues("hotspots", "ok").Inc()
	}

	providers, pErr := f.providers.ListOnline(ctx)
	if pErr != nil {
		metrics.FeedFetches.WithLabelValues("providers", "error").Inc()
		f.logger.Error("fetch providers failed", "error", pErr)
	} else {
		metrics.FeedFetches.WithLabelValues("providers", "ok").Inc()
	}

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return
	}
	next := f.snap
	if hErr == nil {
		next.Hotspots = orEmpty(hotspots)
	}
	if pErr == nil {
		next.Providers = orEmpty(providers)
	}
	if hErr == nil || pErr == nil {
		next.UpdatedAt = time.Now()
	}
	next.Loading = false
	f.snap = next
	f.mu.Unlock()
	f.publish(next)
}

func (f *LiveFeed) refreshProviders(ctx context.Context, gen uint64) {
	providers, err := f.providers.ListOnline(ctx)
	if err != nil {
		metrics.FeedFetches.WithLabelValues("providers", "error").Inc()
		f.logger.Error("refetch providers failed", "error", err)
		return
	}
	metrics.FeedFetches.WithLabelValues("providers", "ok").Inc()

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return
	}
	next := f.snap
	next.Providers = orEmpty(providers)
	next.UpdatedAt = time.Now()
	f.snap = next
	f.mu.Unlock()
	f.publish(next)
}

func (f *LiveFeed) publish(s Snapshot) {
	if f.onUpdate != nil {
		f.onUpdate(s)
	}
}

// orEmpty keeps the snapshot encoding as arrays, never null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
