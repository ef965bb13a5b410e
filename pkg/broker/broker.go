// Package broker delivers collection snapshots to registered watchers.
//
// Every subscription receives the current snapshot synchronously from Subscribe, then a
// fresh snapshot each time the collection is published. Snapshots reach a subscriber
// one at a time and in publication order; a subscriber that is still busy when the next
// snapshot arrives has it queued. Callbacks are never invoked with broker locks held, so
// a callback may subscribe, cancel or publish.
//
// Collections that move on a timer are registered with Drive. Their timer runs only
// while the collection has at least one subscriber.
package broker

import (
	"cmp"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/exp/slices"
)

// Source supplies snapshots by collection name
type Source interface {
	Get(collection string) store.Snapshot
}

// Driver advances a moving collection by one tick. The driver is responsible for
// publishing the collection once its tick is written.
type Driver interface {
	Advance(ctx context.Context) error
}

type Callback func(snapshot store.Snapshot)

// CancelFunc stops delivery to a subscription. It is safe to call more than once and
// from any goroutine, including from inside the subscription's own callback.
type CancelFunc func()

type Option func(*Broker)

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// WithConcurrency bounds how many subscribers a snapshot is delivered to at once
func WithConcurrency(concurrency int) Option {
	return func(b *Broker) {
		if concurrency > 0 {
			b.concurrency = concurrency
		}
	}
}

type Broker struct {
	source      Source
	logger      zerolog.Logger
	concurrency int

	mu          sync.Mutex
	nextID      uint64
	subscribers map[string]map[uint64]*subscriber
	drives      map[string]*drive
	stopping    []chan struct{}
	closed      bool
}

func New(source Source, opts ...Option) *Broker {
	b := &Broker{
		source:      source,
		logger:      log.Logger.With().Str("component", "broker").Logger(),
		concurrency: 16,
		subscribers: map[string]map[uint64]*subscriber{},
		drives:      map[string]*drive{},
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

func canonical(collection string) string {
	name, _ := fleet.CanonicalCollection(collection)
	return name
}

// Subscribe delivers the current snapshot of the collection to callback exactly once
// before returning, then keeps delivering until the returned CancelFunc is called.
// Unknown collections deliver an empty snapshot and nothing after it.
func (b *Broker) Subscribe(collection string, callback Callback) CancelFunc {
	name, known := fleet.CanonicalCollection(collection)
	sub := &subscriber{
		collection: name,
		callback:   callback,
		logger:     b.logger,
		running:    true,
	}

	b.mu.Lock()
	registered := known && !b.closed
	if registered {
		b.nextID++
		sub.id = b.nextID

		if b.subscribers[name] == nil {
			b.subscribers[name] = map[uint64]*subscriber{}
		}
		b.subscribers[name][sub.id] = sub

		if d, ok := b.drives[name]; ok && !d.active() {
			d.start()
			b.logger.Debug().Str("collection", name).Msg("Started collection timer")
		}
	}
	b.mu.Unlock()

	initial := b.source.Get(name)
	sub.deliverInitial(initial)

	if !registered {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(sub)
		})
	}
}

func (b *Broker) unsubscribe(sub *subscriber) {
	sub.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers := b.subscribers[sub.collection]
	delete(subscribers, sub.id)

	if len(subscribers) > 0 {
		return
	}
	delete(b.subscribers, sub.collection)

	if d, ok := b.drives[sub.collection]; ok && d.active() {
		b.track(d.stop())
		b.logger.Debug().Str("collection", sub.collection).Msg("Stopped collection timer")
	}
}

// Publish delivers the current snapshot of the collection to every live subscriber and
// returns once each has either processed it or queued it behind an earlier snapshot.
func (b *Broker) Publish(collection string) {
	name := canonical(collection)

	b.mu.Lock()
	subscribers := make([]*subscriber, 0, len(b.subscribers[name]))
	for _, sub := range b.subscribers[name] {
		subscribers = append(subscribers, sub)
	}
	b.mu.Unlock()

	if len(subscribers) == 0 {
		return
	}

	slices.SortFunc(subscribers, func(a, b *subscriber) int {
		return cmp.Compare(a.id, b.id)
	})

	snapshot := b.source.Get(name)

	p := pool.New().WithMaxGoroutines(b.concurrency)
	for _, sub := range subscribers {
		copied := snapshot.Clone()
		p.Go(func() {
			sub.offer(copied)
		})
	}
	p.Wait()

	b.logger.Debug().Str("collection", name).Uint64("version", snapshot.Version).Int("subscribers", len(subscribers)).Msg("Published snapshot")
}

// Drive registers a timer that advances the collection every interval while it has
// subscribers. Registering a collection again replaces its driver.
func (b *Broker) Drive(collection string, driver Driver, interval time.Duration) {
	name := canonical(collection)

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.drives[name]; ok && existing.active() {
		b.track(existing.stop())
	}

	d := &drive{
		collection: name,
		driver:     driver,
		interval:   interval,
		logger:     b.logger,
	}
	b.drives[name] = d

	if !b.closed && len(b.subscribers[name]) > 0 {
		d.start()
	}
}

// Subscribers returns the number of live subscriptions to the collection
func (b *Broker) Subscribers(collection string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subscribers[canonical(collection)])
}

// Running reports whether the collection's timer is currently running
func (b *Broker) Running(collection string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.drives[canonical(collection)]
	return ok && d.active()
}

// track keeps the done channel of a stopped timer whose last tick may still be running.
// Callers hold b.mu.
func (b *Broker) track(done chan struct{}) {
	running := b.stopping[:0]
	for _, ch := range b.stopping {
		select {
		case <-ch:
		default:
			running = append(running, ch)
		}
	}
	b.stopping = append(running, done)
}

// Close cancels every subscription and stops every timer, waiting for running ticks
// to finish, including those of timers stopped earlier. It must not be called from
// inside a callback.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	for _, subscribers := range b.subscribers {
		for _, sub := range subscribers {
			sub.cancel()
		}
	}
	b.subscribers = map[string]map[uint64]*subscriber{}

	for _, d := range b.drives {
		if d.active() {
			b.track(d.stop())
		}
	}
	stopping := b.stopping
	b.stopping = nil
	b.mu.Unlock()

	for _, done := range stopping {
		<-done
	}

	b.logger.Debug().Int("timers", len(stopping)).Msg("Broker closed")
}

type drive struct {
	collection string
	driver     Driver
	interval   time.Duration
	logger     zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func (d *drive) active() bool {
	return d.cancel != nil
}

func (d *drive) start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.run(ctx, d.done)
}

// stop cancels the timer, returning the channel closed once its goroutine exits
func (d *drive) stop() chan struct{} {
	d.cancel()
	d.cancel = nil
	return d.done
}

func (d *drive) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.driver.Advance(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error().Err(err).Str("collection", d.collection).Msg("Tick failed")
			}
		}
	}
}
