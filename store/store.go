package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tiendaluz/ecommerce-api/models"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrProductNotFound = errors.New("product not found")
	ErrUserNotFound    = errors.New("user not found")

	// ErrCartPaid guards the audit trail: paid carts are never deleted.
	ErrCartPaid = errors.New("paid carts cannot be deleted")
)

// StockItem is one (product, quantity) pair of a decrement request.
type StockItem struct {
	ProductID uint
	Quantity  int
}

// InsufficientStockError names the first product found short. The ledger
// guarantees no decrement was applied when it is returned.
type InsufficientStockError struct {
	ProductID uint
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}

type CartRepository interface {
	// FindByID loads a cart with its items, products and owner.
	FindByID(ctx context.Context, id uint) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	Update(ctx context.Context, cart *models.Cart) error
	// Delete refuses to remove paid carts (ErrCartPaid).
	Delete(ctx context.Context, id uint) error
	ClosedByUser(ctx context.Context, userID string) ([]models.Cart, error)
	AllClosed(ctx context.Context) ([]models.Cart, error)
}

type ProductRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uint) (map[uint]*models.Product, error)
	Save(ctx context.Context, product *models.Product) error
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
}

// StockLedger guards the one contended resource. ReserveAndDecrement applies
// every decrement or none: the availability check and the decrement are a
// single atomic step per product. Release reverses a prior decrement.
type StockLedger interface {
	ReserveAndDecrement(ctx context.Context, items []StockItem) error
	Release(ctx context.Context, items []StockItem) error
}

// FolioAllocator hands out monotonically increasing folio numbers per series.
type FolioAllocator interface {
	NextFolio(ctx context.Context, series string) (int64, error)
}

type Store interface {
	Carts() CartRepository
	Products() ProductRepository
	Users() UserRepository
	Stock() StockLedger
	Folios() FolioAllocator
}

// AtomicStore is implemented by stores whose backend supports multi-record
// transactions. fn runs against a store bound to one transaction; any error
// rolls the whole unit back.
type AtomicStore interface {
	Store
	Atomic(ctx context.Context, fn func(Store) error) error
}
