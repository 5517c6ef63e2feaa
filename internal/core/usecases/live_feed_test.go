package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/usecases"
	"github.com/samirrijal/ridepass/internal/pkg/logging"
)

func notifyProviders(t *testing.T, feed *memChangeFeed) {
	t.Helper()
	require.NoError(t, feed.Publish(context.Background(), domain.ChangeEvent{Table: domain.TableProviders, Op: domain.ChangeUpdate, RowID: "p1"}))
}

func TestLiveFeed_ActivateLoadsAndSubscribes(t *testing.T) {
	hotspots := &mockHotspotLister{listFn: func(context.Context) ([]domain.Hotspot, error) { return sampleHotspots(), nil }}
	providers := &mockProviderLister{listOnlineFn: func(context.Context) ([]domain.Provider, error) { return sampleProviders(), nil }}
	changes := newMemChangeFeed()
	f := usecases.NewLiveFeed(hotspots, providers, changes, logging.Discard(), nil)

	require.NoError(t, f.Activate(context.Background()))

	snap := f.Snapshot()
	assert.Len(t, snap.Hotspots, 2)
	assert.Len(t, snap.Providers, 2)
	assert.False(t, snap.Loading)
	assert.False(t, snap.UpdatedAt.IsZero())
	assert.True(t, f.Subscribed())
	assert.Equal(t, 1, changes.active(domain.TableProviders))
}

func TestLiveFeed_ActivateTwiceKeepsOneSubscription(t *testing.T) {
	changes := newMemChangeFeed()
	providers := &mockProviderLister{}
	f := usecases.NewLiveFeed(&mockHotspotLister{}, providers, changes, logging.Discard(), nil)

	require.NoError(t, f.Activate(context.Background()))
	require.NoError(t, f.Activate(context.Background()))

	assert.Equal(t, 1, changes.active(domain.TableProviders))
	assert.Equal(t, int32(1), providers.calls.Load())
}

func TestLiveFeed_NotificationRefetchesProviders(t *testing.T) {
	var mu sync.Mutex
	current := sampleProviders()
	providers := &mockProviderLister{listOnlineFn: func(context.Context) ([]domain.Provider, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]domain.Provider(nil), current...), nil
	}}
	hotspots := &mockHotspotLister{listFn: func(context.Context) ([]domain.Hotspot, error) { return sampleHotspots(), nil }}
	changes := newMemChangeFeed()

	var updates int
	f := usecases.NewLiveFeed(hotspots, providers, changes, logging.Discard(), func(usecases.Snapshot) { updates++ })
	require.NoError(t, f.Activate(context.Background()))
	before := updates

	mu.Lock()
	current = current[:1]
	mu.Unlock()
	notifyProviders(t, changes)

	assert.Len(t, f.Providers(), 1)
	assert.Equal(t, before+1, updates)
	// Hotspots are fetched once per activation only.
	assert.Equal(t, int32(1), hotspots.calls.Load())
}

func TestLiveFeed_FetchFailureKeepsPreviousSnapshot(t *testing.T) {
	fail := false
	providers := &mockProviderLister{listOnlineFn: func(context.Context) ([]domain.Provider, error) {
		if fail {
			return nil, errors.New("db down")
		}
		return sampleProviders(), nil
	}}
	changes := newMemChangeFeed()
	f := usecases.NewLiveFeed(&mockHotspotLister{}, providers, changes, logging.Discard(), nil)
	require.NoError(t, f.Activate(context.Background()))

	fail = true
	notifyProviders(t, changes)

	assert.Len(t, f.Providers(), 2)
	assert.False(t, f.Snapshot().Loading)
}

func TestLiveFeed_InitialFetchFailureClearsLoading(t *testing.T) {
	hotspots := &mockHotspotLister{listFn: func(context.Context) ([]domain.Hotspot, error) { return nil, errors.New("timeout") }}
	providers := &mockProviderLister{listOnlineFn: func(context.Context) ([]domain.Provider, error) { return sampleProviders(), nil }}

	var loadingStates []bool
	f := usecases.NewLiveFeed(hotspots, providers, newMemChangeFeed(), logging.Discard(), func(s usecases.Snapshot) {
		loadingStates = append(loadingStates, s.Loading)
	})
	require.NoError(t, f.Activate(context.Background()))

	snap := f.Snapshot()
	assert.Empty(t, snap.Hotspots)
	assert.Len(t, snap.Providers, 2)
	assert.False(t, snap.Loading)
	assert.Equal(t, []bool{true, false}, loadingStates)
}

func TestLiveFeed_DeactivateUnsubscribes(t *testing.T) {
	providers := &mockProviderLister{}
	changes := newMemChangeFeed()
	f := usecases.NewLiveFeed(&mockHotspotLister{}, providers, changes, logging.Discard(), nil)
	require.NoError(t, f.Activate(context.Background()))

	f.Deactivate()
	notifyProviders(t, changes)

	assert.False(t, f.Subscribed())
	assert.Zero(t, changes.active(domain.TableProviders))
	assert.Equal(t, int32(1), providers.calls.Load())
}

func TestLiveFeed_CyclesNeverLeakSubscriptions(t *testing.T) {
	changes := newMemChangeFeed()
	f := usecases.NewLiveFeed(&mockHotspotLister{}, &mockProviderLister{}, changes, logging.Discard(), nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Activate(context.Background()))
		assert.Equal(t, 1, changes.active(domain.TableProviders))
		f.Deactivate()
		assert.Zero(t, changes.active(domain.TableProviders))
	}
	assert.Equal(t, 5, changes.subscribes)
}

func TestLiveFeed_SubscribeFailure(t *testing.T) {
	changes := newMemChangeFeed()
	changes.subscribeErr = errors.New("broker unreachable")
	f := usecases.NewLiveFeed(&mockHotspotLister{}, &mockProviderLister{}, changes, logging.Discard(), nil)

	err := f.Activate(context.Background())
	assert.ErrorIs(t, err, domain.ErrSubscriptionFailed)
	assert.False(t, f.Subscribed())

	// A later activation tries again.
	changes.subscribeErr = nil
	require.NoError(t, f.Activate(context.Background()))
	assert.True(t, f.Subscribed())
}

func TestLiveFeed_EmptyResultsEncodeAsArrays(t *testing.T) {
	f := usecases.NewLiveFeed(&mockHotspotLister{}, &mockProviderLister{}, newMemChangeFeed(), logging.Discard(), nil)

	data, err := json.Marshal(f.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hotspots":[]`)
	assert.Contains(t, string(data), `"providers":[]`)

	require.NoError(t, f.Activate(context.Background()))
	defer f.Deactivate()

	data, err = json.Marshal(f.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hotspots":[]`)
	assert.Contains(t, string(data), `"providers":[]`)
}
