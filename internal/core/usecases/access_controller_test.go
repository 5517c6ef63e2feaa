package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/ports"
	"github.com/samirrijal/ridepass/internal/core/usecases"
	"github.com/samirrijal/ridepass/internal/pkg/logging"
)

const testFlagKey = "ridepass:test:demo_mode"

func newAccess(loc ports.Geolocator, flags ports.FlagStore, launchDemo bool) *usecases.AccessController {
	return usecases.NewAccessController(loc, flags, usecases.AccessConfig{
		Area:       serviceArea,
		FlagKey:    testFlagKey,
		LaunchDemo: launchDemo,
		Timeout:    time.Second,
	}, logging.Discard())
}

func TestAccessController_InsideArea(t *testing.T) {
	loc := fixedLocator(domain.Coordinate{Lat: 10.82, Lon: 78.71})
	a := newAccess(loc, newMemFlags(), false)

	st := a.Start(context.Background())

	assert.Equal(t, domain.AccessState{Phase: domain.AccessGranted, Demo: false}, st)
	require.NotNil(t, a.Location())
	assert.InDelta(t, 10.82, a.Location().Lat, 1e-9)
}

func TestAccessController_OutsideArea(t *testing.T) {
	a := newAccess(fixedLocator(chennai), newMemFlags(), false)

	st := a.Start(context.Background())

	assert.Equal(t, domain.AccessBlocked, st.Phase)
}

func TestAccessController_LocationUnavailable(t *testing.T) {
	loc := &mockGeolocator{
		currentPositionFn: func(context.Context, ports.PositionOptions) (domain.Coordinate, error) {
			return domain.Coordinate{}, errors.New("permission denied")
		},
	}
	a := newAccess(loc, newMemFlags(), false)

	st := a.Start(context.Background())

	assert.Equal(t, domain.AccessBlocked, st.Phase)
	assert.Nil(t, a.Location())
}

func TestAccessController_InvalidFixBlocks(t *testing.T) {
	a := newAccess(fixedLocator(domain.Coordinate{Lat: 91, Lon: 0}), newMemFlags(), false)

	assert.Equal(t, domain.AccessBlocked, a.Start(context.Background()).Phase)
}

func TestAccessController_RequestsFreshFix(t *testing.T) {
	var got ports.PositionOptions
	loc := &mockGeolocator{
		currentPositionFn: func(_ context.Context, opts ports.PositionOptions) (domain.Coordinate, error) {
			got = opts
			return trichy, nil
		},
	}
	newAccess(loc, newMemFlags(), false).Start(context.Background())

	assert.Equal(t, time.Second, got.Timeout)
	assert.True(t, got.HighAccuracy)
	assert.Zero(t, got.MaxAge)
}

func TestAccessController_TimeoutBlocks(t *testing.T) {
	loc := &mockGeolocator{
		currentPositionFn: func(ctx context.Context, _ ports.PositionOptions) (domain.Coordinate, error) {
			<-ctx.Done()
			return domain.Coordinate{}, ctx.Err()
		},
	}
	a := usecases.NewAccessController(loc, newMemFlags(), usecases.AccessConfig{
		Area:    serviceArea,
		FlagKey: testFlagKey,
		Timeout: 20 * time.Millisecond,
	}, logging.Discard())

	assert.Equal(t, domain.AccessBlocked, a.Start(context.Background()).Phase)
}

func TestAccessController_PersistedDemoSkipsGeolocation(t *testing.T) {
	flags := newMemFlags()
	flags.values[testFlagKey] = "true"
	loc := fixedLocator(chennai)
	a := newAccess(loc, flags, false)

	st := a.Start(context.Background())

	assert.Equal(t, domain.AccessState{Phase: domain.AccessGranted, Demo: true}, st)
	assert.Zero(t, loc.calls.Load(), "geolocation must not be consulted when the demo flag is set")
}

func TestAccessController_LaunchDemoPersistsFlag(t *testing.T) {
	flags := newMemFlags()
	loc := fixedLocator(chennai)
	a := newAccess(loc, flags, true)

	st := a.Start(context.Background())

	assert.True(t, st.Granted())
	assert.True(t, st.Demo)
	assert.True(t, flags.has(testFlagKey))
	assert.Zero(t, loc.calls.Load())
}

func TestAccessController_StartRunsOnce(t *testing.T) {
	loc := fixedLocator(trichy)
	a := newAccess(loc, newMemFlags(), false)

	a.Start(context.Background())
	a.Start(context.Background())

	assert.Equal(t, int32(1), loc.calls.Load())
}

func TestAccessController_EnableDemoFromBlocked(t *testing.T) {
	flags := newMemFlags()
	a := newAccess(fixedLocator(chennai), flags, false)
	a.Start(context.Background())

	st, err := a.EnableDemo(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.AccessState{Phase: domain.AccessGranted, Demo: true}, st)
	assert.True(t, flags.has(testFlagKey))
}

func TestAccessController_EnableDemoFlagWriteFailureStillGrants(t *testing.T) {
	flags := newMemFlags()
	flags.setErr = errors.New("store down")
	a := newAccess(fixedLocator(chennai), flags, false)
	a.Start(context.Background())

	st, err := a.EnableDemo(context.Background())

	require.NoError(t, err)
	assert.True(t, st.Demo)
}

func TestAccessController_ExitDemoRechecks(t *testing.T) {
	flags := newMemFlags()
	flags.values[testFlagKey] = "true"
	loc := fixedLocator(chennai)
	a := newAccess(loc, flags, false)
	a.Start(context.Background())

	st, err := a.ExitDemo(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.AccessBlocked, st.Phase)
	assert.False(t, flags.has(testFlagKey))
	assert.Equal(t, int32(1), loc.calls.Load())
}

func TestAccessController_ExitDemoRequiresDemo(t *testing.T) {
	a := newAccess(fixedLocator(trichy), newMemFlags(), false)
	a.Start(context.Background())

	st, err := a.ExitDemo(context.Background())

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.AccessGranted, st.Phase)
}

func TestAccessController_RetryOnlyFromBlocked(t *testing.T) {
	var inside bool
	loc := &mockGeolocator{
		currentPositionFn: func(context.Context, ports.PositionOptions) (domain.Coordinate, error) {
			if inside {
				return trichy, nil
			}
			return chennai, nil
		},
	}
	a := newAccess(loc, newMemFlags(), false)
	a.Start(context.Background())
	require.Equal(t, domain.AccessBlocked, a.State().Phase)

	inside = true
	st, err := a.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.AccessGranted, st.Phase)

	_, err = a.Retry(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAccessController_SecondCheckWhileInFlightIsNoop(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	loc := &mockGeolocator{
		currentPositionFn: func(context.Context, ports.PositionOptions) (domain.Coordinate, error) {
			entered <- struct{}{}
			<-release
			return chennai, nil
		},
	}
	flags := newMemFlags()
	flags.values[testFlagKey] = "true"
	a := newAccess(loc, flags, false)
	a.Start(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = a.ExitDemo(context.Background())
	}()
	<-entered

	// The state is now Checking; Retry is rejected and nothing new is issued.
	_, err := a.Retry(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.AccessChecking, a.State().Phase)

	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), loc.calls.Load())
	assert.Equal(t, domain.AccessBlocked, a.State().Phase)
}

func TestAccessController_StaleResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	loc := &mockGeolocator{
		currentPositionFn: func(context.Context, ports.PositionOptions) (domain.Coordinate, error) {
			close(entered)
			<-release
			return chennai, nil
		},
	}
	a := newAccess(loc, newMemFlags(), false)

	done := make(chan domain.AccessState)
	go func() { done <- a.Start(context.Background()) }()
	<-entered

	st, err := a.EnableDemo(context.Background())
	require.NoError(t, err)
	require.True(t, st.Demo)

	close(release)
	<-done

	// The late "outside" fix must not override the demo grant.
	assert.Equal(t, domain.AccessState{Phase: domain.AccessGranted, Demo: true}, a.State())
}

func TestAccessController_OnChange(t *testing.T) {
	a := newAccess(fixedLocator(trichy), newMemFlags(), false)
	var mu sync.Mutex
	var seen []domain.AccessPhase
	a.OnChange(func(st domain.AccessState) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st.Phase)
	})

	a.Start(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.AccessPhase{domain.AccessChecking, domain.AccessGranted}, seen)
}
