package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tiendaluz/ecommerce-api/models"
)

// MemoryStore keeps everything in maps behind one mutex. It backs tests and
// local development. It intentionally does not implement AtomicStore: it
// models a backend without multi-record transactions, which makes the
// orchestrator's stock-first commit path reachable.
type MemoryStore struct {
	mu         sync.Mutex
	carts      map[uint]*models.Cart
	products   map[uint]*models.Product
	users      map[string]*models.User
	folios     map[string]int64
	nextCartID uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts:      make(map[uint]*models.Cart),
		products:   make(map[uint]*models.Product),
		users:      make(map[string]*models.User),
		folios:     make(map[string]int64),
		nextCartID: 1,
	}
}

func (s *MemoryStore) Carts() CartRepository       { return (*memCarts)(s) }
func (s *MemoryStore) Products() ProductRepository { return (*memProducts)(s) }
func (s *MemoryStore) Users() UserRepository       { return (*memUsers)(s) }
func (s *MemoryStore) Stock() StockLedger          { return (*memStock)(s) }
func (s *MemoryStore) Folios() FolioAllocator      { return (*memFolios)(s) }

// cloneCart returns a copy with items, products and user resolved, so
// callers can mutate the result without racing the store.
func (s *MemoryStore) cloneCart(c *models.Cart) *models.Cart {
	out := *c
	out.Items = make([]models.LineItem, len(c.Items))
	copy(out.Items, c.Items)
	for i := range out.Items {
		if p, ok := s.products[out.Items[i].ProductID]; ok {
			out.Items[i].Product = *p
		}
	}
	if u, ok := s.users[c.UserID]; ok {
		out.User = *u
	}
	return &out
}

// -------- carts --------

type memCarts MemoryStore

func (r *memCarts) FindByID(_ context.Context, id uint) (*models.Cart, error) {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[id]
	if !ok {
		return nil, ErrCartNotFound
	}
	return s.cloneCart(cart), nil
}

func (r *memCarts) Create(_ context.Context, cart *models.Cart) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cart.ID == 0 {
		cart.ID = s.nextCartID
		s.nextCartID++
	}
	for i := range cart.Items {
		cart.Items[i].CartID = cart.ID
	}
	stored := *cart
	stored.Items = append([]models.LineItem(nil), cart.Items...)
	s.carts[cart.ID] = &stored
	return nil
}

func (r *memCarts) Update(_ context.Context, cart *models.Cart) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carts[cart.ID]; !ok {
		return ErrCartNotFound
	}
	stored := *cart
	stored.Items = append([]models.LineItem(nil), cart.Items...)
	s.carts[cart.ID] = &stored
	return nil
}

func (r *memCarts) Delete(_ context.Context, id uint) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[id]
	if !ok {
		return ErrCartNotFound
	}
	if cart.PaymentStatus == models.PaymentStatusPaid {
		return ErrCartPaid
	}
	delete(s.carts, id)
	return nil
}

func (r *memCarts) ClosedByUser(_ context.Context, userID string) ([]models.Cart, error) {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Cart
	for _, cart := range s.carts {
		if cart.UserID == userID && cart.Status == models.CartStatusClosed {
			out = append(out, *s.cloneCart(cart))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCarts) AllClosed(_ context.Context) ([]models.Cart, error) {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Cart
	for _, cart := range s.carts {
		if cart.Status == models.CartStatusClosed {
			out = append(out, *s.cloneCart(cart))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// -------- products --------

type memProducts MemoryStore

func (r *memProducts) FindByID(_ context.Context, id uint) (*models.Product, error) {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	out := *product
	return &out, nil
}

func (r *memProducts) FindByIDs(_ context.Context, ids []uint) (map[uint]*models.Product, error) {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[uint]*models.Product, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			out := *product
			byID[id] = &out
		}
	}
	return byID, nil
}

func (r *memProducts) Save(_ context.Context, product *models.Product) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *product
	s.products[product.ID] = &stored
	return nil
}

// -------- users --------

type memUsers MemoryStore

func (r *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (r *memUsers) Save(_ context.Context, user *models.User) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

// -------- stock ledger --------

type memStock MemoryStore

// ReserveAndDecrement validates every item first, then applies every
// decrement, all under the store mutex. Either all decrements land or none.
// Quantities are aggregated per product, so a list naming the same product
// twice is checked against its combined demand.
func (l *memStock) ReserveAndDecrement(_ context.Context, items []StockItem) error {
	s := (*MemoryStore)(l)
	s.mu.Lock()
	defer s.mu.Unlock()
	need := make(map[uint]int, len(items))
	for _, item := range items {
		product, ok := s.products[item.ProductID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
		}
		need[item.ProductID] += item.Quantity
		if product.Stock < need[item.ProductID] {
			return &InsufficientStockError{ProductID: item.ProductID}
		}
	}
	for id, qty := range need {
		s.products[id].Stock -= qty
	}
	return nil
}

func (l *memStock) Release(_ context.Context, items []StockItem) error {
	s := (*MemoryStore)(l)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		product, ok := s.products[item.ProductID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
		}
		product.Stock += item.Quantity
	}
	return nil
}

// -------- folios --------

type memFolios MemoryStore

func (a *memFolios) NextFolio(_ context.Context, series string) (int64, error) {
	s := (*MemoryStore)(a)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folios[series]++
	return s.folios[series], nil
}
