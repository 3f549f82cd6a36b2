// Package catalog keeps a live, push-based snapshot of products and customers.
package catalog

import (
	"context"
	"log"
	"sync"
	"time"

	"familypos/backend/internal/domain"
)

// Loader is the part of the store the feed reads from.
type Loader interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
}

// Snapshot is an immutable view of the catalog. Callers must not modify it.
type Snapshot struct {
	Version   uint64
	At        time.Time
	Products  []domain.Product
	Customers []domain.Customer

	productsByID  map[string]domain.Product
	customersByID map[string]domain.Customer
}

func (s *Snapshot) Product(id string) (domain.Product, bool) {
	if s == nil {
		return domain.Product{}, false
	}
	p, ok := s.productsByID[id]
	return p, ok
}

func (s *Snapshot) Customer(id string) (domain.Customer, bool) {
	if s == nil {
		return domain.Customer{}, false
	}
	c, ok := s.customersByID[id]
	return c, ok
}

type Feed struct {
	loader Loader

	mu      sync.RWMutex
	current *Snapshot
	subs    map[int]chan *Snapshot
	nextSub int
	version uint64
	// loads numbers each Refresh when it starts reading; installed is the
	// number of the load behind current. An older load never replaces a
	// newer one.
	loads     uint64
	installed uint64
}

func NewFeed(loader Loader) *Feed {
	return &Feed{
		loader:  loader,
		current: &Snapshot{productsByID: map[string]domain.Product{}, customersByID: map[string]domain.Customer{}},
		subs:    map[int]chan *Snapshot{},
	}
}

// Refresh reloads the catalog and pushes the new snapshot to subscribers. On
// error the previous snapshot stays current. When refreshes overlap, the one
// that started reading last wins; a slower, older read returns the current
// snapshot instead of installing its own.
func (f *Feed) Refresh(ctx context.Context) (*Snapshot, error) {
	f.mu.Lock()
	f.loads++
	seq := f.loads
	f.mu.Unlock()

	products, err := f.loader.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := f.loader.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		At:            time.Now().UTC(),
		Products:      products,
		Customers:     customers,
		productsByID:  make(map[string]domain.Product, len(products)),
		customersByID: make(map[string]domain.Customer, len(customers)),
	}
	for _, p := range products {
		snap.productsByID[p.ID] = p
	}
	for _, c := range customers {
		snap.customersByID[c.ID] = c
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq < f.installed {
		return f.current, nil
	}
	f.installed = seq
	f.version++
	snap.Version = f.version
	f.current = snap
	for _, ch := range f.subs {
		publishLatest(ch, snap)
	}
	return snap, nil
}

func (f *Feed) Current() *Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

func (f *Feed) Product(id string) (domain.Product, bool) {
	return f.Current().Product(id)
}

func (f *Feed) Customer(id string) (domain.Customer, bool) {
	return f.Current().Customer(id)
}

// Subscribe returns a channel that always holds the newest snapshot. Slow
// readers skip intermediate versions. The returned func unsubscribes and
// closes the channel.
func (f *Feed) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	ch <- f.current
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Run refreshes on every tick until ctx is done, so edits made outside this
// process still reach subscribers.
func (f *Feed) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := f.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[catalog] WARN: refresh failed: %v", err)
			}
		}
	}
}

// publishLatest replaces any unread snapshot. Called with f.mu held.
func publishLatest(ch chan *Snapshot, snap *Snapshot) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}
