package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

const defaultTimeout = 2 * time.Second

// Product is the live catalog view of one product id.
type Product struct {
	ID       uuid.UUID
	Name     string
	Price    decimal.Decimal
	Images   []string
	Stock    int
	IsActive bool
	// Exists is false when the id is unknown to the catalog.
	Exists bool
}

// Purchasable reports whether the product can be added or checked out.
func (p Product) Purchasable() bool {
	return p.Exists && p.IsActive
}

// Image returns the first product image, if any.
func (p Product) Image() *string {
	if len(p.Images) == 0 || p.Images[0] == "" {
		return nil
	}
	img := p.Images[0]
	return &img
}

// StockOracle is the read side used by cart operations.
type StockOracle interface {
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)
}

// Oracle answers price, stock and active-status questions from the catalog
// tables. Every call is bounded by a timeout and fails closed.
type Oracle struct {
	repo    *Repository
	timeout time.Duration
	logg    *logger.Logger
}

// NewOracle builds an oracle over the catalog repository.
func NewOracle(repo *Repository, timeout time.Duration, logg *logger.Logger) *Oracle {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Oracle{repo: repo, timeout: timeout, logg: logg}
}

// WithTx returns an oracle whose reads and stock changes join tx.
func (o *Oracle) WithTx(tx *gorm.DB) *Oracle {
	return &Oracle{repo: o.repo.WithTx(tx), timeout: o.timeout, logg: o.logg}
}

// GetProduct returns the live view of one product. Unknown ids come back
// with Exists=false rather than an error.
func (o *Oracle) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	products, err := o.GetProducts(ctx, []uuid.UUID{id})
	if err != nil {
		return Product{}, err
	}
	return products[id], nil
}

// GetProducts returns one entry per requested id.
func (o *Oracle) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	out := make(map[uuid.UUID]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	rows, err := o.repo.FindProducts(callCtx, ids)
	if err != nil {
		return nil, o.unavailable(ctx, err)
	}
	stock, err := o.repo.FindInventory(callCtx, ids)
	if err != nil {
		return nil, o.unavailable(ctx, err)
	}

	for _, id := range ids {
		out[id] = Product{ID: id}
	}
	for _, row := range rows {
		out[row.ID] = Product{
			ID:       row.ID,
			Name:     row.Name,
			Price:    row.Price,
			Images:   row.Images,
			Stock:    stock[row.ID].AvailableQty,
			IsActive: row.IsActive && row.DeletedAt == nil,
			Exists:   true,
		}
	}
	return out, nil
}

// Reserve moves qty units of productID into the reserved bucket. The caller
// supplies the transaction so the reservation commits with the order.
func (o *Oracle) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	ok, err := o.repo.WithTx(tx).ReserveStock(ctx, productID, qty)
	if err != nil {
		return o.unavailable(ctx, err)
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithReason(pkgerrors.ReasonStockConflict).
			WithDetails(map[string]any{"productId": productID, "requested": qty})
	}
	return nil
}

// Release returns previously reserved units to available stock.
func (o *Oracle) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := o.repo.WithTx(tx).ReleaseStock(ctx, productID, qty); err != nil {
		return o.unavailable(ctx, err)
	}
	return nil
}

// Commit consumes previously reserved units after payment.
func (o *Oracle) Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := o.repo.WithTx(tx).CommitStock(ctx, productID, qty); err != nil {
		return o.unavailable(ctx, err)
	}
	return nil
}

func (o *Oracle) unavailable(ctx context.Context, err error) error {
	if o.logg != nil {
		o.logg.Warn(ctx, "stock oracle unavailable: "+err.Error())
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stock oracle unavailable").
		WithReason(pkgerrors.ReasonStockOracleUnavailable)
}

// SnapshotTx reads products through tx, so the values match what the
// transaction will commit against.
func (o *Oracle) SnapshotTx(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	return o.WithTx(tx).GetProducts(ctx, ids)
}
