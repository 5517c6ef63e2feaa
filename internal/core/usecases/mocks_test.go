package usecases_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/ports"
	"github.com/samirrijal/ridepass/internal/core/usecases"
)

// --- Mock Geolocator ---

type mockGeolocator struct {
	calls             atomic.Int32
	currentPositionFn func(ctx context.Context, opts ports.PositionOptions) (domain.Coordinate, error)
}

func (m *mockGeolocator) CurrentPosition(ctx context.Context, opts ports.PositionOptions) (domain.Coordinate, error) {
	m.calls.Add(1)
	if m.currentPositionFn != nil {
		return m.currentPositionFn(ctx, opts)
	}
	return domain.Coordinate{}, domain.ErrLocationUnavailable
}

func fixedLocator(c domain.Coordinate) *mockGeolocator {
	return &mockGeolocator{
		currentPositionFn: func(context.Context, ports.PositionOptions) (domain.Coordinate, error) {
			return c, nil
		},
	}
}

// --- Mock FlagStore ---

type memFlags struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMemFlags() *memFlags { return &memFlags{values: make(map[string]string)} }

func (m *memFlags) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memFlags) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *memFlags) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memFlags) has(key string) bool {
	_, ok, _ := m.Get(context.Background(), key)
	return ok
}

// --- Mock ChangeFeed ---

// memChangeFeed delivers notifications synchronously and counts open
// subscriptions per table.
type memChangeFeed struct {
	mu           sync.Mutex
	subs         map[int]memSub
	next         int
	subscribeErr error
	subscribes   int
	published    []domain.ChangeEvent
}

type memSub struct {
	table string
	fn    func()
}

type memSubscription struct {
	feed *memChangeFeed
	id   int
}

func (s *memSubscription) Unsubscribe() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	delete(s.feed.subs, s.id)
	return nil
}

func newMemChangeFeed() *memChangeFeed { return &memChangeFeed{subs: make(map[int]memSub)} }

func (f *memChangeFeed) Subscribe(_ context.Context, table string, onChange func()) (ports.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	id := f.next
	f.next++
	f.subs[id] = memSub{table: table, fn: onChange}
	return &memSubscription{feed: f, id: id}, nil
}

func (f *memChangeFeed) Publish(_ context.Context, ev domain.ChangeEvent) error {
	f.mu.Lock()
	f.published = append(f.published, ev)
	var fns []func()
	for _, s := range f.subs {
		if s.table == ev.Table {
			fns = append(fns, s.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return nil
}

func (f *memChangeFeed) active(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if s.table == table {
			n++
		}
	}
	return n
}

func (f *memChangeFeed) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// --- Mock listers ---

type mockHotspotLister struct {
	calls  atomic.Int32
	listFn func(ctx context.Context) ([]domain.Hotspot, error)
}

func (m *mockHotspotLister) List(ctx context.Context) ([]domain.Hotspot, error) {
	m.calls.Add(1)
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

type mockProviderLister struct {
	calls        atomic.Int32
	listOnlineFn func(ctx context.Context) ([]domain.Provider, error)
}

func (m *mockProviderLister) ListOnline(ctx context.Context) ([]domain.Provider, error) {
	m.calls.Add(1)
	if m.listOnlineFn != nil {
		return m.listOnlineFn(ctx)
	}
	return nil, nil
}

// --- Mock ProviderRepository ---

type mockProviderRepo struct {
	mu               sync.Mutex
	providers        map[string]domain.Provider
	updateLocationFn func(ctx context.Context, id string, loc domain.Coordinate) error
}

func newMockProviderRepo(ps ...domain.Provider) *mockProviderRepo {
	r := &mockProviderRepo{providers: make(map[string]domain.Provider)}
	for _, p := range ps {
		r.providers[p.ID] = p
	}
	return r
}

func (m *mockProviderRepo) ListOnline(context.Context) ([]domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Provider
	for _, p := range m.providers {
		if p.IsOnline {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProviderRepo) GetByID(_ context.Context, id string) (*domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockProviderRepo) UpdateLocation(ctx context.Context, id string, loc domain.Coordinate) error {
	if m.updateLocationFn != nil {
		if err := m.updateLocationFn(ctx, id, loc); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Location = loc
	m.providers[id] = p
	return nil
}

func (m *mockProviderRepo) SetOnline(_ context.Context, id string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.IsOnline = online
	m.providers[id] = p
	return nil
}

func (m *mockProviderRepo) location(id string) domain.Coordinate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.providers[id].Location
}

// --- Mock Lifecycle ---

type mockLifecycle struct {
	mu          sync.Mutex
	active      bool
	activations int
}

func (m *mockLifecycle) Activate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		m.activations++
	}
	m.active = true
	return nil
}

func (m *mockLifecycle) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
}

func (m *mockLifecycle) isActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

type mockFeed struct {
	mockLifecycle
	snapshot usecases.Snapshot
}

func (m *mockFeed) Snapshot() usecases.Snapshot { return m.snapshot }

// --- Fixtures ---

var (
	trichy      = domain.Coordinate{Lat: 10.8155, Lon: 78.7047}
	chennai     = domain.Coordinate{Lat: 13.0827, Lon: 80.2707}
	serviceArea = domain.ServiceArea{Center: trichy, RadiusKm: 15}
)

func sampleHotspots() []domain.Hotspot {
	return []domain.Hotspot{
		{ID: 1, Name: "Central Bus Stand", Location: domain.Coordinate{Lat: 10.7989, Lon: 78.6820}, ProviderCount: 6, Status: domain.HotspotHigh},
		{ID: 2, Name: "Srirangam", Location: domain.Coordinate{Lat: 10.8620, Lon: 78.6890}, ProviderCount: 2, Status: domain.HotspotLow},
	}
}

func sampleProviders() []domain.Provider {
	return []domain.Provider{
		{ID: "p1", Name: "Arun", VehicleLabel: "Auto TN45 1234", Location: domain.Coordinate{Lat: 10.81, Lon: 78.70}, SeatsAvailable: 3, Rating: 4.7, IsOnline: true},
		{ID: "p2", Name: "Divya", VehicleLabel: "Cab TN45 5678", Location: domain.Coordinate{Lat: 10.82, Lon: 78.69}, SeatsAvailable: 4, Rating: 4.9, IsOnline: true},
	}
}
