package usecases_test

import (
	"context"
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

type sessionEnv struct {
	repo    *mockProviderRepo
	changes *memChangeFeed
	flags   *memFlags
	deps    usecases.SessionDeps
	cfg     usecases.SessionConfig
}

func newSessionEnv() *sessionEnv {
	repo := newMockProviderRepo(sampleProviders()...)
	changes := newMemChangeFeed()
	svc := usecases.NewProviderService(repo, changes, logging.Discard())
	flags := newMemFlags()
	return &sessionEnv{
		repo:    repo,
		changes: changes,
		flags:   flags,
		deps: usecases.SessionDeps{
			Hotspots:  &mockHotspotLister{listFn: func(context.Context) ([]domain.Hotspot, error) { return sampleHotspots(), nil }},
			Providers: svc,
			Writer:    svc,
			Changes:   changes,
			Flags:     flags,
		},
		cfg: usecases.SessionConfig{
			Area:        serviceArea,
			FlagKey:     testFlagKey,
			GeoTimeout:  time.Second,
			SplashDelay: time.Hour,
			Simulator:   usecases.SimulatorConfig{Interval: 5 * time.Millisecond, JitterDeg: 0.001},
		},
	}
}

func (e *sessionEnv) session(loc ports.Geolocator) *usecases.Session {
	return usecases.NewSession("s1", e.deps, loc, e.cfg, logging.Discard())
}

func TestSession_InsideAreaReachesMap(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.session(fixedLocator(trichy))
	defer s.Close()

	v := s.Start(ctx)
	assert.Equal(t, domain.ScreenSplash, v.Screen.Screen)
	assert.False(t, v.Access.Demo)

	_, err := s.Navigate(ctx, domain.EventSkip)
	require.NoError(t, err)
	v, err = s.Navigate(ctx, domain.EventGetStarted)
	require.NoError(t, err)

	assert.Equal(t, domain.ScreenMap, v.Screen.Screen)
	assert.Len(t, v.Feed.Providers, 2)
	assert.Len(t, v.Feed.Hotspots, 2)
	assert.True(t, v.Simulating)
	assert.Equal(t, 1, env.changes.active(domain.TableProviders))
	assert.Equal(t, trichy, v.MapCenter)
}

func TestSession_BlockedThenDemo(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	loc := fixedLocator(chennai)
	s := env.session(loc)
	defer s.Close()

	v := s.Start(ctx)
	require.Equal(t, domain.ScreenBlocked, v.Screen.Screen)

	v, err := s.EnableDemo(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ScreenSplash, v.Screen.Screen)
	assert.True(t, v.Access.Demo)
	assert.True(t, env.flags.has(testFlagKey))
	// The outside fix is still the best known position.
	assert.Equal(t, chennai, v.MapCenter)
}

func TestSession_DemoWithoutFixCentresOnServiceArea(t *testing.T) {
	env := newSessionEnv()
	env.cfg.LaunchDemo = true
	s := env.session(fixedLocator(chennai))
	defer s.Close()

	v := s.Start(context.Background())

	assert.True(t, v.Access.Demo)
	assert.Nil(t, v.Location)
	assert.Equal(t, serviceArea.Center, v.MapCenter)
}

func TestSession_ExitDemoFromMapTearsDown(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	env.flags.values[testFlagKey] = "true"
	s := env.session(fixedLocator(chennai))
	defer s.Close()

	s.Start(ctx)
	_, _ = s.Navigate(ctx, domain.EventSkip)
	_, _ = s.Navigate(ctx, domain.EventGetStarted)
	require.True(t, s.View().Simulating)

	v, err := s.ExitDemo(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.ScreenBlocked, v.Screen.Screen)
	assert.False(t, v.Simulating)
	assert.Zero(t, env.changes.active(domain.TableProviders))
	assert.False(t, env.flags.has(testFlagKey))
}

func TestSession_WatchReceivesUpdates(t *testing.T) {
	env := newSessionEnv()
	s := env.session(fixedLocator(trichy))
	defer s.Close()

	var mu sync.Mutex
	var screens []domain.Screen
	stop := s.Watch(func(v usecases.SessionView) {
		mu.Lock()
		defer mu.Unlock()
		screens = append(screens, v.Screen.Screen)
	})

	s.Start(context.Background())
	stop()
	_, _ = s.Navigate(context.Background(), domain.EventSkip)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, screens)
	assert.Equal(t, domain.ScreenSplash, screens[len(screens)-1])
}

func TestSession_CloseReleasesEverything(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.session(fixedLocator(trichy))

	s.Start(ctx)
	_, _ = s.Navigate(ctx, domain.EventSkip)
	_, _ = s.Navigate(ctx, domain.EventGetStarted)
	require.Eventually(t, func() bool { return env.changes.publishedCount() > 0 }, time.Second, time.Millisecond)

	s.Close()
	s.Close()

	assert.False(t, s.View().Simulating)
	assert.Zero(t, env.changes.active(domain.TableProviders))
	n := env.changes.publishedCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, env.changes.publishedCount())
}

func TestSessionRegistry_Lifecycle(t *testing.T) {
	env := newSessionEnv()
	locators := func(string) ports.Geolocator { return fixedLocator(trichy) }
	r := usecases.NewSessionRegistry(env.deps, locators, usecases.RegistryConfig{
		Session: env.cfg,
		IdleTTL: time.Minute,
	}, logging.Discard())

	s := r.Create(context.Background(), usecases.SessionOptions{ClientID: "device-1"})
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	require.Eventually(t, func() bool { return s.View().Access.Granted() }, time.Second, time.Millisecond)

	require.NoError(t, r.Close(s.ID()))
	_, err = r.Get(s.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, r.Close(s.ID()), domain.ErrNotFound)
}

func TestSessionRegistry_DemoFlagSurvivesPerClient(t *testing.T) {
	env := newSessionEnv()
	loc := fixedLocator(chennai)
	r := usecases.NewSessionRegistry(env.deps, func(string) ports.Geolocator { return loc }, usecases.RegistryConfig{
		Session: env.cfg,
	}, logging.Discard())

	first := r.Create(context.Background(), usecases.SessionOptions{ClientID: "device-1", Demo: true})
	require.Eventually(t, func() bool { return first.View().Access.Demo }, time.Second, time.Millisecond)
	assert.True(t, env.flags.has(r.FlagKey("device-1")))
	require.NoError(t, r.Close(first.ID()))

	// A reload from the same device skips geolocation.
	second := r.Create(context.Background(), usecases.SessionOptions{ClientID: "device-1"})
	require.Eventually(t, func() bool { return second.View().Access.Demo }, time.Second, time.Millisecond)
	assert.Zero(t, loc.calls.Load())

	// Another device is checked normally.
	other := r.Create(context.Background(), usecases.SessionOptions{ClientID: "device-2"})
	require.Eventually(t, func() bool { return loc.calls.Load() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		st := other.View().Access
		return st.Phase == domain.AccessBlocked
	}, time.Second, time.Millisecond)

	r.CloseAll()
	assert.Zero(t, r.Len())
}

func TestSessionRegistry_ReapsIdle(t *testing.T) {
	env := newSessionEnv()
	r := usecases.NewSessionRegistry(env.deps, func(string) ports.Geolocator { return fixedLocator(trichy) }, usecases.RegistryConfig{
		Session: env.cfg,
		IdleTTL: time.Minute,
	}, logging.Discard())

	s := r.Create(context.Background(), usecases.SessionOptions{})

	assert.Zero(t, r.Reap(time.Now()))
	assert.Equal(t, 1, r.Reap(time.Now().Add(2*time.Minute)))
	_, err := r.Get(s.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSession_MapReentryKeepsOneTimerAndSubscription(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.session(fixedLocator(trichy))
	defer s.Close()

	s.Start(ctx)
	_, err := s.Navigate(ctx, domain.EventSkip)
	require.NoError(t, err)
	v, err := s.Navigate(ctx, domain.EventGetStarted)
	require.NoError(t, err)
	require.Equal(t, domain.ScreenMap, v.Screen.Screen)
	assert.True(t, v.Simulating)
	assert.Equal(t, 1, env.changes.active(domain.TableProviders))

	for cycle := 0; cycle < 2; cycle++ {
		v, err = s.Navigate(ctx, domain.EventOpenDestination)
		require.NoError(t, err)
		assert.Equal(t, domain.ScreenDestination, v.Screen.Screen)
		assert.False(t, v.Simulating, "cycle %d", cycle)
		assert.Equal(t, 1, env.changes.active(domain.TableProviders), "cycle %d", cycle)

		v, err = s.Navigate(ctx, domain.EventBack)
		require.NoError(t, err)
		assert.Equal(t, domain.ScreenMap, v.Screen.Screen)
		assert.True(t, v.Simulating, "cycle %d", cycle)
		assert.Equal(t, 1, env.changes.active(domain.TableProviders), "cycle %d", cycle)
	}
}

func TestSession_AbandonedSelectionLeavesNoResidue(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.session(fixedLocator(trichy))
	defer s.Close()

	s.Start(ctx)
	_, _ = s.Navigate(ctx, domain.EventSkip)
	_, _ = s.Navigate(ctx, domain.EventGetStarted)

	_, err := s.TapHotspot(ctx, 2)
	require.NoError(t, err)
	_, err = s.Navigate(ctx, domain.EventBack)
	require.NoError(t, err)
	_, err = s.TapProvider(ctx, "p1")
	require.NoError(t, err)
	_, err = s.Navigate(ctx, domain.EventBack)
	require.NoError(t, err)
	_, err = s.Navigate(ctx, domain.EventOpenDestination)
	require.NoError(t, err)

	v, err := s.ChooseDestination(ctx, "Airport")
	require.NoError(t, err)
	assert.Nil(t, v.Screen.Focus)

	v, err = s.SelectProvider(ctx, "p2")
	require.NoError(t, err)
	require.NotNil(t, v.Screen.Booking)
	assert.Nil(t, v.Screen.Booking.Pickup)
	assert.Equal(t, "Airport", v.Screen.Booking.Destination)
}
