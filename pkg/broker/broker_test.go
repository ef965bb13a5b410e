package broker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s := store.New()
	require.NoError(t, s.Load(fleet.CollectionVehicles, &fleet.Vehicle{
		ID:          "G2S-01",
		RouteID:     "r1",
		Speed:       32,
		Status:      fleet.VehicleStatusOnRoute,
		Capacity:    40,
		Occupancy:   38,
		SafetyScore: 95,
	}))

	return s
}

// recorder counts deliveries and keeps the last snapshot
type recorder struct {
	mu        sync.Mutex
	snapshots []store.Snapshot
}

func (r *recorder) callback(snapshot store.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots = append(r.snapshots, snapshot)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.snapshots)
}

func (r *recorder) last() store.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshots[len(r.snapshots)-1]
}

// speedDriver bumps the vehicle speed and publishes, the way the simulator does
type speedDriver struct {
	store    *store.Store
	broker   *Broker
	advances atomic.Int64
}

func (d *speedDriver) Advance(ctx context.Context) error {
	n := d.advances.Add(1)
	if err := d.store.Update(fleet.CollectionVehicles, "G2S-01", fleet.Fields{"speed": float64(20 + n%10)}); err != nil {
		return err
	}

	d.broker.Publish(fleet.CollectionVehicles)
	return nil
}

func TestSubscribeDeliversSynchronously(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		items      int
	}{
		{name: "populated", collection: "vehicles", items: 1},
		{name: "alias", collection: "buses", items: 1},
		{name: "empty", collection: "notifications", items: 0},
		{name: "unknown", collection: "spaceships", items: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(newTestStore(t))
			defer b.Close()

			r := &recorder{}
			cancel := b.Subscribe(tt.collection, r.callback)
			defer cancel()

			require.Equal(t, 1, r.count())
			assert.Len(t, r.last().Items, tt.items)
			assert.NotNil(t, r.last().Items)
		})
	}
}

func TestUnknownCollectionIsNotRegistered(t *testing.T) {
	b := New(newTestStore(t))

	r := &recorder{}
	cancel := b.Subscribe("spaceships", r.callback)
	b.Publish("spaceships")

	assert.Equal(t, 1, r.count())
	assert.Equal(t, 0, b.Subscribers("spaceships"))
	assert.NotPanics(t, func() { cancel() })
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	s := newTestStore(t)
	b := New(s)
	defer b.Close()

	first, second := &recorder{}, &recorder{}
	defer b.Subscribe(fleet.CollectionVehicles, first.callback)()
	defer b.Subscribe("buses", second.callback)()

	require.NoError(t, s.Update(fleet.CollectionVehicles, "G2S-01", fleet.Fields{"speed": 36.0}))
	b.Publish(fleet.CollectionVehicles)

	for _, r := range []*recorder{first, second} {
		require.Equal(t, 2, r.count())
		vehicles := store.Items[*fleet.Vehicle](r.last())
		require.Len(t, vehicles, 1)
		assert.Equal(t, 36.0, vehicles[0].Speed)
	}
	assert.Equal(t, 2, b.Subscribers(fleet.CollectionVehicles))
}

func TestSubscribersReceiveIndependentCopies(t *testing.T) {
	b := New(newTestStore(t))
	defer b.Close()

	mutator := func(snapshot store.Snapshot) {
		for _, vehicle := range store.Items[*fleet.Vehicle](snapshot) {
			vehicle.Speed = 999
		}
	}
	r := &recorder{}

	defer b.Subscribe(fleet.CollectionVehicles, mutator)()
	defer b.Subscribe(fleet.CollectionVehicles, r.callback)()
	b.Publish(fleet.CollectionVehicles)

	assert.Equal(t, 32.0, store.Items[*fleet.Vehicle](r.last())[0].Speed)
}

func TestCancelStopsDelivery(t *testing.T) {
	s := newTestStore(t)
	b := New(s)
	driver := &speedDriver{store: s, broker: b}

	r := &recorder{}
	cancel := b.Subscribe(fleet.CollectionVehicles, r.callback)
	require.NoError(t, driver.Advance(context.Background()))
	require.Equal(t, 2, r.count())

	cancel()
	require.NoError(t, driver.Advance(context.Background()))
	require.NoError(t, driver.Advance(context.Background()))

	assert.Equal(t, 2, r.count())
	assert.NotPanics(t, func() { cancel() })
	assert.Equal(t, 0, b.Subscribers(fleet.CollectionVehicles))
}

func TestTimerIsReferenceCounted(t *testing.T) {
	s := newTestStore(t)
	b := New(s)
	defer b.Close()

	driver := &speedDriver{store: s, broker: b}
	b.Drive(fleet.CollectionVehicles, driver, 5*time.Millisecond)

	assert.False(t, b.Running(fleet.CollectionVehicles))

	first, second := &recorder{}, &recorder{}
	cancelFirst := b.Subscribe(fleet.CollectionVehicles, first.callback)
	assert.True(t, b.Running(fleet.CollectionVehicles))

	cancelSecond := b.Subscribe(fleet.CollectionVehicles, second.callback)
	require.Eventually(t, func() bool { return second.count() > 2 }, time.Second, time.Millisecond)

	cancelFirst()
	assert.True(t, b.Running(fleet.CollectionVehicles))

	delivered := second.count()
	require.Eventually(t, func() bool { return second.count() > delivered }, time.Second, time.Millisecond)

	cancelSecond()
	assert.False(t, b.Running(fleet.CollectionVehicles))

	// a delivery already in progress may still land
	time.Sleep(10 * time.Millisecond)
	afterCancel := second.count()
	advances := driver.advances.Load()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, afterCancel, second.count())
	assert.LessOrEqual(t, driver.advances.Load(), advances+1)
}

func TestTimerRestartsForLaterSubscriber(t *testing.T) {
	s := newTestStore(t)
	b := New(s)
	defer b.Close()

	b.Drive(fleet.CollectionVehicles, &speedDriver{store: s, broker: b}, 5*time.Millisecond)

	b.Subscribe(fleet.CollectionVehicles, func(store.Snapshot) {})()
	assert.False(t, b.Running(fleet.CollectionVehicles))

	r := &recorder{}
	defer b.Subscribe(fleet.CollectionVehicles, r.callback)()

	require.Eventually(t, func() bool { return r.count() > 2 }, time.Second, time.Millisecond)
}

func TestStaticCollectionHasNoTimer(t *testing.T) {
	s := newTestStore(t)
	b := New(s)
	defer b.Close()

	b.Drive(fleet.CollectionVehicles, &speedDriver{store: s, broker: b}, 5*time.Millisecond)

	r := &recorder{}
	defer b.Subscribe(fleet.CollectionRoutes, r.callback)()

	assert.False(t, b.Running(fleet.CollectionRoutes))
	assert.False(t, b.Running(fleet.CollectionVehicles))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, r.count())
}

func TestCallbackMayReenterBroker(t *testing.T) {
	s := newTestStore(t)
	b := New(s)
	defer b.Close()

	var cancel CancelFunc
	var calls atomic.Int64
	nested := &recorder{}

	cancel = b.Subscribe(fleet.CollectionVehicles, func(snapshot store.Snapshot) {
		if calls.Add(1) == 2 {
			b.Subscribe(fleet.CollectionRoutes, nested.callback)()
			b.Publish(fleet.CollectionVehicles)
			cancel()
		}
	})

	b.Publish(fleet.CollectionVehicles)

	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, 1, nested.count())
	assert.Equal(t, 0, b.Subscribers(fleet.CollectionVehicles))
}

func TestPanickingCallbackDoesNotStopOthers(t *testing.T) {
	b := New(newTestStore(t))
	defer b.Close()

	r := &recorder{}
	defer b.Subscribe(fleet.CollectionVehicles, func(store.Snapshot) {
		panic("boom")
	})()
	defer b.Subscribe(fleet.CollectionVehicles, r.callback)()

	assert.NotPanics(t, func() { b.Publish(fleet.CollectionVehicles) })
	assert.Equal(t, 2, r.count())
}

func TestClose(t *testing.T) {
	s := newTestStore(t)
	b := New(s)

	b.Drive(fleet.CollectionVehicles, &speedDriver{store: s, broker: b}, 5*time.Millisecond)

	r := &recorder{}
	cancel := b.Subscribe(fleet.CollectionVehicles, r.callback)
	require.True(t, b.Running(fleet.CollectionVehicles))

	b.Close()
	delivered := r.count()

	assert.False(t, b.Running(fleet.CollectionVehicles))
	assert.Equal(t, 0, b.Subscribers(fleet.CollectionVehicles))

	b.Publish(fleet.CollectionVehicles)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, delivered, r.count())
	assert.NotPanics(t, func() { cancel() })

	late := &recorder{}
	b.Subscribe(fleet.CollectionVehicles, late.callback)()
	assert.Equal(t, 1, late.count())
	assert.False(t, b.Running(fleet.CollectionVehicles))

	assert.NotPanics(t, b.Close)
}

// scriptedSource blocks the first Get until released and serves the versions in order
type scriptedSource struct {
	mu       sync.Mutex
	versions []uint64
	calls    int

	entered chan struct{}
	release chan struct{}
}

func (s *scriptedSource) Get(collection string) store.Snapshot {
	s.mu.Lock()
	call := s.calls
	s.calls++
	version := s.versions[min(call, len(s.versions)-1)]
	s.mu.Unlock()

	if call == 0 {
		close(s.entered)
		<-s.release
	}

	return store.Snapshot{Collection: collection, Version: version, Items: []fleet.Entity{}}
}

func TestOlderSnapshotQueuedDuringInitialDeliveryIsDropped(t *testing.T) {
	source := &scriptedSource{
		versions: []uint64{2, 1},
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	b := New(source)
	defer b.Close()

	r := &recorder{}
	subscribed := make(chan CancelFunc)
	go func() {
		subscribed <- b.Subscribe(fleet.CollectionOccupants, r.callback)
	}()

	<-source.entered
	b.Publish(fleet.CollectionOccupants)
	close(source.release)

	cancel := <-subscribed
	defer cancel()

	time.Sleep(20 * time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()

	versions := []uint64{}
	for _, snapshot := range r.snapshots {
		versions = append(versions, snapshot.Version)
	}
	assert.Equal(t, []uint64{2}, versions)
}

func TestQueuedSnapshotsStayInVersionOrder(t *testing.T) {
	r := &recorder{}
	sub := &subscriber{callback: r.callback, running: true}

	sub.deliverInitial(store.Snapshot{Version: 3})
	sub.mu.Lock()
	sub.running = true
	sub.pending = []store.Snapshot{{Version: 2}, {Version: 4}, {Version: 3}, {Version: 5}}
	sub.mu.Unlock()

	next, ok := sub.next()
	require.True(t, ok)
	sub.drain(next)

	versions := []uint64{}
	for _, snapshot := range r.snapshots {
		versions = append(versions, snapshot.Version)
	}
	assert.Equal(t, []uint64{3, 4, 5}, versions)
}

func TestCancelledBeforeDrainIsNotDelivered(t *testing.T) {
	r := &recorder{}
	sub := &subscriber{callback: r.callback, running: true}

	sub.cancel()
	sub.drain(store.Snapshot{Version: 1})

	assert.Equal(t, 0, r.count())
	assert.False(t, sub.running)
}

// blockingDriver holds its first tick until released
type blockingDriver struct {
	entered  chan struct{}
	release  chan struct{}
	finished atomic.Bool
	once     sync.Once
}

func (d *blockingDriver) Advance(ctx context.Context) error {
	first := false
	d.once.Do(func() { first = true })
	if !first {
		return nil
	}

	close(d.entered)
	<-d.release
	d.finished.Store(true)
	return nil
}

func TestCloseWaitsForTickOfStoppedTimer(t *testing.T) {
	b := New(newTestStore(t))

	driver := &blockingDriver{entered: make(chan struct{}), release: make(chan struct{})}
	b.Drive(fleet.CollectionVehicles, driver, time.Millisecond)

	cancel := b.Subscribe(fleet.CollectionVehicles, func(store.Snapshot) {})
	<-driver.entered

	cancel()
	require.False(t, b.Running(fleet.CollectionVehicles))

	closed := make(chan struct{})
	go func() {
		b.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a tick was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(driver.release)
	<-closed
	assert.True(t, driver.finished.Load())
}
