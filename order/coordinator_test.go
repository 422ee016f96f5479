package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/surgekit/surge/idgen"
	"github.com/surgekit/surge/lock"
	"github.com/surgekit/surge/provider/local"
)

// memStore implements Store with the same guarded-decrement semantics as
// the SQL implementation: the decrement and the insert happen under one
// mutex, and a zero-stock decrement fails the whole create.
type memStore struct {
	mu     sync.Mutex
	offers map[int64]*Offer
	orders []Order
}

var _ Store = (*memStore)(nil)

func newMemStore(offers ...Offer) *memStore {
	s := &memStore{offers: make(map[int64]*Offer)}
	for i := range offers {
		o := offers[i]
		s.offers[o.ID] = &o
	}
	return s
}

func (s *memStore) Offer(_ context.Context, offerID int64) (Offer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[offerID]
	if !ok {
		return Offer{}, false, nil
	}
	return *o, true, nil
}

func (s *memStore) HasOrder(_ context.Context, userID, offerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.UserID == userID && o.OfferID == offerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Create(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, ok := s.offers[o.OfferID]
	if !ok || offer.Stock < 1 {
		return ErrStockExhausted
	}
	offer.Stock--
	s.orders = append(s.orders, o)
	return nil
}

func (s *memStore) stock(offerID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offers[offerID].Stock
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func openOffer(id int64, stock int) Offer {
	now := time.Now()
	return Offer{ID: id, Stock: stock, StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour)}
}

func newCoordinator(t *testing.T, store Store) *Coordinator {
	t.Helper()
	p := local.New()
	locks, err := lock.New(p, "")
	if err != nil {
		t.Fatalf("lock.New: %v", err)
	}
	ids, err := idgen.New(p)
	if err != nil {
		t.Fatalf("idgen.New: %v", err)
	}
	c, err := New(Options{
		Store:    store,
		Locks:    locks,
		IDs:      ids,
		LockWait: 3 * time.Second, // generous so contention resolves, not rejects
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestPurchaseHappyPath(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(openOffer(1, 3))
	c := newCoordinator(t, store)

	o, err := c.Purchase(ctx, 100, 1)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if o.ID == 0 || o.UserID != 100 || o.OfferID != 1 {
		t.Fatalf("bad order: %+v", o)
	}
	if store.stock(1) != 2 {
		t.Fatalf("stock = %d, want 2", store.stock(1))
	}
}

func TestSaleWindowRejections(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	early := newMemStore(Offer{ID: 1, Stock: 5, StartAt: now.Add(time.Hour), EndAt: now.Add(2 * time.Hour)})
	if _, err := newCoordinator(t, early).Purchase(ctx, 100, 1); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("want ErrNotStarted, got %v", err)
	}

	late := newMemStore(Offer{ID: 1, Stock: 5, StartAt: now.Add(-2 * time.Hour), EndAt: now.Add(-time.Hour)})
	if _, err := newCoordinator(t, late).Purchase(ctx, 100, 1); !errors.Is(err, ErrEnded) {
		t.Fatalf("want ErrEnded, got %v", err)
	}

	empty := newMemStore(openOffer(1, 0))
	if _, err := newCoordinator(t, empty).Purchase(ctx, 100, 1); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("want ErrOutOfStock, got %v", err)
	}
}

func TestUnknownOffer(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, newMemStore())
	_, err := c.Purchase(ctx, 100, 42)
	if !errors.Is(err, ErrUnknownOffer) {
		t.Fatalf("want ErrUnknownOffer, got %v", err)
	}
	if IsRejection(err) {
		t.Fatalf("unknown offer must not be a business rejection")
	}
}

func TestDuplicatePurchaseRejected(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(openOffer(1, 5))
	c := newCoordinator(t, store)

	if _, err := c.Purchase(ctx, 100, 1); err != nil {
		t.Fatalf("first Purchase: %v", err)
	}
	_, err := c.Purchase(ctx, 100, 1)
	if !errors.Is(err, ErrAlreadyPurchased) {
		t.Fatalf("want ErrAlreadyPurchased, got %v", err)
	}
	if !IsRejection(err) {
		t.Fatalf("expected a business rejection")
	}
	if store.stock(1) != 4 {
		t.Fatalf("duplicate purchase touched stock: %d", store.stock(1))
	}
}

// M concurrent attempts by one user: exactly one order, M-1 rejected as
// already purchased.
func TestConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(openOffer(1, 100))
	c := newCoordinator(t, store)

	const m = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var committed, duplicate int
	wg.Add(m)
	for i := 0; i < m; i++ {
		go func() {
			defer wg.Done()
			_, err := c.Purchase(ctx, 100, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				committed++
			case errors.Is(err, ErrAlreadyPurchased):
				duplicate++
			default:
				t.Errorf("unexpected outcome: %v", err)
			}
		}()
	}
	wg.Wait()

	if committed != 1 || duplicate != m-1 {
		t.Fatalf("committed=%d duplicate=%d, want 1/%d", committed, duplicate, m-1)
	}
	if store.orderCount() != 1 {
		t.Fatalf("orders = %d, want 1", store.orderCount())
	}
}

// Stock S with more concurrent distinct users than units: successes never
// exceed S and stock never goes negative.
func TestStockSafetyUnderContention(t *testing.T) {
	ctx := context.Background()
	const stock = 5
	const users = 20
	store := newMemStore(openOffer(1, stock))
	c := newCoordinator(t, store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var committed, soldOut int
	ids := make(map[uint64]struct{})
	wg.Add(users)
	for u := 0; u < users; u++ {
		userID := int64(1000 + u)
		go func() {
			defer wg.Done()
			o, err := c.Purchase(ctx, userID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				committed++
				ids[o.ID] = struct{}{}
			case errors.Is(err, ErrOutOfStock):
				soldOut++
			default:
				t.Errorf("unexpected outcome: %v", err)
			}
		}()
	}
	wg.Wait()

	if committed != stock || soldOut != users-stock {
		t.Fatalf("committed=%d soldout=%d, want %d/%d", committed, soldOut, stock, users-stock)
	}
	if got := store.stock(1); got != 0 {
		t.Fatalf("remaining stock = %d, want 0", got)
	}
	if len(ids) != stock {
		t.Fatalf("order ids not distinct: %d unique of %d", len(ids), stock)
	}
}

// stock = 1, two distinct users: exactly one commit, one out-of-stock.
func TestLastUnitRace(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(openOffer(1, 1))
	c := newCoordinator(t, store)

	results := make(chan error, 2)
	for _, userID := range []int64{100, 200} {
		go func(uid int64) {
			_, err := c.Purchase(ctx, uid, 1)
			results <- err
		}(userID)
	}

	var commits, rejects int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			commits++
		case errors.Is(err, ErrOutOfStock):
			rejects++
		default:
			t.Fatalf("unexpected outcome: %v", err)
		}
	}
	if commits != 1 || rejects != 1 {
		t.Fatalf("commits=%d rejects=%d, want 1/1", commits, rejects)
	}
	if store.stock(1) != 0 {
		t.Fatalf("stock = %d, want 0", store.stock(1))
	}
}
