package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/port"
)

// fakeStore holds the committed state of every product. Units of work load
// copies from it and write back only when the version they loaded is still
// the stored one.
type fakeStore struct {
	mu        sync.Mutex
	products  map[string]*domain.Product
	commits   int
	envelopes map[uuid.UUID]domain.Envelope

	// loadBarrier, when set, holds every load until all participants loaded.
	loadBarrier *sync.WaitGroup
}

func cloneProduct(p *domain.Product) *domain.Product {
	batches := make([]*domain.Batch, 0, len(p.Batches))
	for _, b := range p.Batches {
		var eta *time.Time
		if b.ETA != nil {
			t := *b.ETA
			eta = &t
		}
		batches = append(batches, domain.RestoreBatch(b.Reference, b.Sku, b.PurchasedQuantity, eta, b.Allocations()))
	}
	clone := domain.NewProduct(p.Sku, batches...)
	clone.VersionNumber = p.VersionNumber
	return clone
}

type fakeRepository struct {
	store *fakeStore

	mu      sync.Mutex
	tracked map[string]*trackedProduct
}

type trackedProduct struct {
	product *domain.Product
	version int
	isNew   bool
	deleted bool
}

func (r *fakeRepository) track(p *domain.Product, isNew bool) *domain.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tracked[p.Sku]; ok {
		return t.product
	}
	r.tracked[p.Sku] = &trackedProduct{product: p, version: p.VersionNumber, isNew: isNew}
	return p
}

func (r *fakeRepository) load(find func(*domain.Product) bool) *domain.Product {
	r.store.mu.Lock()
	var found *domain.Product
	for _, p := range r.store.products {
		if find(p) {
			found = cloneProduct(p)
			break
		}
	}
	barrier := r.store.loadBarrier
	r.store.mu.Unlock()

	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	if found == nil {
		return nil
	}
	return r.track(found, false)
}

func (r *fakeRepository) Add(ctx context.Context, product *domain.Product) error {
	r.track(product, true)
	return nil
}

func (r *fakeRepository) Get(ctx context.Context, sku string) (*domain.Product, error) {
	r.mu.Lock()
	t, ok := r.tracked[sku]
	r.mu.Unlock()
	if ok {
		return t.product, nil
	}
	return r.load(func(p *domain.Product) bool { return p.Sku == sku }), nil
}

func (r *fakeRepository) GetByBatchRef(ctx context.Context, ref string) (*domain.Product, error) {
	r.mu.Lock()
	for _, t := range r.tracked {
		if t.product.Batch(ref) != nil {
			r.mu.Unlock()
			return t.product, nil
		}
	}
	r.mu.Unlock()
	return r.load(func(p *domain.Product) bool { return p.Batch(ref) != nil }), nil
}

func (r *fakeRepository) Delete(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tracked[product.Sku]
	if !ok {
		t = &trackedProduct{product: product, version: product.VersionNumber}
		r.tracked[product.Sku] = t
	}
	t.deleted = true
	return nil
}

// fakeUnitOfWorkFactory keeps every envelope that was ever written to its
// outbox.
type fakeUnitOfWorkFactory struct {
	store *fakeStore
}

func newFakeUnitOfWorkFactory(products ...*domain.Product) *fakeUnitOfWorkFactory {
	store := &fakeStore{
		products:  make(map[string]*domain.Product),
		envelopes: make(map[uuid.UUID]domain.Envelope),
	}
	for _, p := range products {
		store.products[p.Sku] = cloneProduct(p)
	}
	return &fakeUnitOfWorkFactory{store: store}
}

func (f *fakeUnitOfWorkFactory) Begin(ctx context.Context) (port.UnitOfWork, error) {
	return &fakeUnitOfWork{
		store:  f.store,
		repo:   &fakeRepository{store: f.store, tracked: make(map[string]*trackedProduct)},
		events: domain.CatcherFrom(ctx),
	}, nil
}

func (f *fakeUnitOfWorkFactory) commitCount() int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.commits
}

// stored returns a copy of the committed product, nil when absent.
func (f *fakeUnitOfWorkFactory) stored(sku string) *domain.Product {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	p, ok := f.store.products[sku]
	if !ok {
		return nil
	}
	return cloneProduct(p)
}

func (f *fakeUnitOfWorkFactory) envelopesOfType(typ string) []domain.Envelope {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []domain.Envelope
	for _, env := range f.store.envelopes {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

type fakeUnitOfWork struct {
	store     *fakeStore
	repo      *fakeRepository
	events    *domain.Catcher
	committed bool
}

func (u *fakeUnitOfWork) Products() port.ProductRepository { return u.repo }
func (u *fakeUnitOfWork) Events() *domain.Catcher          { return u.events }

// Commit applies every tracked product atomically, failing with
// port.ErrConcurrencyConflict when another unit of work committed first.
func (u *fakeUnitOfWork) Commit(ctx context.Context) error {
	events := u.events.Drain()

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	u.repo.mu.Lock()
	defer u.repo.mu.Unlock()

	for sku, t := range u.repo.tracked {
		current, exists := u.store.products[sku]
		switch {
		case t.isNew && exists:
			return fmt.Errorf("%w: product %s already exists", port.ErrConcurrencyConflict, sku)
		case !t.isNew && (!exists || current.VersionNumber != t.version):
			return fmt.Errorf("%w: product %s", port.ErrConcurrencyConflict, sku)
		}
	}

	envs := make([]domain.Envelope, 0, len(events))
	for _, evt := range events {
		env, err := domain.NewEnvelope(evt)
		if err != nil {
			return err
		}
		envs = append(envs, env)
	}

	for sku, t := range u.repo.tracked {
		if t.deleted {
			delete(u.store.products, sku)
			continue
		}
		u.store.products[sku] = cloneProduct(t.product)
	}
	for _, env := range envs {
		u.store.envelopes[env.ID] = env
	}
	u.store.commits++

	u.committed = true
	u.events.Commit(events)
	return nil
}

func (u *fakeUnitOfWork) Rollback(ctx context.Context) error {
	if !u.committed {
		u.events.Drain()
	}
	return nil
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []port.EmailMessage
}

func (s *fakeEmailSender) Send(ctx context.Context, msg port.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeEmailSender) messages() []port.EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]port.EmailMessage(nil), s.sent...)
}

type fakeView struct {
	mu   sync.Mutex
	rows map[string]map[string]string
}

func newFakeView() *fakeView {
	return &fakeView{rows: make(map[string]map[string]string)}
}

func (v *fakeView) Add(ctx context.Context, orderID, sku, batchRef string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.rows[orderID] == nil {
		v.rows[orderID] = make(map[string]string)
	}
	v.rows[orderID][sku] = batchRef
	return nil
}

func (v *fakeView) Remove(ctx context.Context, orderID, sku string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.rows[orderID], sku)
	return nil
}

func (v *fakeView) ForOrder(ctx context.Context, orderID string) ([]port.AllocationView, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []port.AllocationView
	for sku, ref := range v.rows[orderID] {
		out = append(out, port.AllocationView{Sku: sku, BatchRef: ref})
	}
	return out, nil
}
