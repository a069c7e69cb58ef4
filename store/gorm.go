package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tiendaluz/ecommerce-api/models"
)

// GormStore is the Postgres-backed store. All repositories share the same
// *gorm.DB, so Atomic can rebind them to one transaction.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Carts() CartRepository       { return &gormCarts{db: s.db} }
func (s *GormStore) Products() ProductRepository { return &gormProducts{db: s.db} }
func (s *GormStore) Users() UserRepository       { return &gormUsers{db: s.db} }
func (s *GormStore) Stock() StockLedger          { return &gormStock{db: s.db} }
func (s *GormStore) Folios() FolioAllocator      { return &gormFolios{db: s.db} }

// Atomic runs fn inside a single database transaction.
func (s *GormStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

// -------- carts --------

type gormCarts struct {
	db *gorm.DB
}

func (r *gormCarts) FindByID(ctx context.Context, id uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("User").
		First(&cart, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *gormCarts) Create(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

// Update persists the cart's own columns and replaces its line items. The
// write never touches product or user rows: the preloaded snapshots on the
// cart may be stale (the ledger owns stock), and writing them back would
// resurrect pre-decrement values.
func (r *gormCarts) Update(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(cart).Error; err != nil {
			return err
		}

		del := tx.Where("cart_id = ?", cart.ID)
		if len(cart.Items) > 0 {
			productIDs := make([]uint, 0, len(cart.Items))
			for i := range cart.Items {
				cart.Items[i].CartID = cart.ID
				productIDs = append(productIDs, cart.Items[i].ProductID)
			}
			del = del.Where("product_id NOT IN ?", productIDs)
		}
		if err := del.Delete(&models.LineItem{}).Error; err != nil {
			return err
		}

		if len(cart.Items) == 0 {
			return nil
		}
		return tx.Omit("Product").Save(&cart.Items).Error
	})
}

func (r *gormCarts) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.First(&cart, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCartNotFound
			}
			return err
		}
		if cart.PaymentStatus == models.PaymentStatusPaid {
			return ErrCartPaid
		}
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.LineItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&cart).Error
	})
}

func (r *gormCarts) ClosedByUser(ctx context.Context, userID string) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.CartStatusClosed).
		Preload("Items").
		Preload("Items.Product").
		Order("closed_at DESC").
		Find(&carts).Error
	return carts, err
}

func (r *gormCarts) AllClosed(ctx context.Context) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Where("status = ?", models.CartStatusClosed).
		Preload("Items").
		Preload("Items.Product").
		Preload("User").
		Order("closed_at DESC").
		Find(&carts).Error
	return carts, err
}

// -------- products --------

type gormProducts struct {
	db *gorm.DB
}

func (r *gormProducts) FindByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *gormProducts) FindByIDs(ctx context.Context, ids []uint) (map[uint]*models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return byID, nil
}

func (r *gormProducts) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// -------- users --------

type gormUsers struct {
	db *gorm.DB
}

func (r *gormUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormUsers) Save(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// -------- stock ledger --------

type gormStock struct {
	db *gorm.DB
}

// ReserveAndDecrement locks every product row FOR UPDATE in ascending id
// order (avoids lock-order deadlocks between concurrent checkouts), checks
// availability and decrements inside one transaction. A shortage rolls the
// whole transaction back, so no partial decrement survives.
func (l *gormStock) ReserveAndDecrement(ctx context.Context, items []StockItem) error {
	sorted := sortedByProduct(items)
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range sorted {
			var product models.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&product, "id = ?", item.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
				}
				return err
			}
			if product.Stock < item.Quantity {
				return &InsufficientStockError{ProductID: item.ProductID}
			}
			product.Stock -= item.Quantity
			if err := tx.Save(&product).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Release re-increments stock that a prior ReserveAndDecrement took.
func (l *gormStock) Release(ctx context.Context, items []StockItem) error {
	sorted := sortedByProduct(items)
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range sorted {
			var product models.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&product, "id = ?", item.ProductID).Error; err != nil {
				return err
			}
			product.Stock += item.Quantity
			if err := tx.Save(&product).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func sortedByProduct(items []StockItem) []StockItem {
	sorted := make([]StockItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	return sorted
}

// -------- folios --------

type gormFolios struct {
	db *gorm.DB
}

// NextFolio increments the per-series counter under a row lock, creating the
// series on first use. Numbers are monotonic and never reused.
func (a *gormFolios) NextFolio(ctx context.Context, series string) (int64, error) {
	var n int64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var folio models.InvoiceFolio
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&folio, "series = ?", series).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			n = 1
			return tx.Create(&models.InvoiceFolio{Series: series, Next: 2}).Error
		}
		if err != nil {
			return err
		}
		n = folio.Next
		folio.Next++
		return tx.Save(&folio).Error
	})
	return n, err
}
