package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/internal/cart"
	"github.com/abdulbasit0-UI/storefront-backend/internal/catalog"
	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox/payloads"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/validation"
)

// Inventory is the stock surface the assembler needs inside its transaction.
type Inventory interface {
	SnapshotTx(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AssembleInput carries what is needed to turn a cart into an order.
type AssembleInput struct {
	Identity        identity.Identity
	ShippingAddress types.Address
	// ExpectedVersion, when set, must equal the cart version at assembly time.
	ExpectedVersion *int64
}

// AssemblerParams wires the Assembler.
type AssemblerParams struct {
	Tx        txRunner
	Carts     cart.CartRepository
	Orders    Repository
	Inventory Inventory
	Locker    cart.Locker
	Outbox    outboxEmitter
	Pricer    Pricer
	Currency  string
	Logger    *logger.Logger
}

// Assembler converts a cart into an immutable pending order. The stock
// re-check, reservation, order insert and cart clear commit together.
type Assembler struct {
	tx        txRunner
	carts     cart.CartRepository
	orders    Repository
	inventory Inventory
	locker    cart.Locker
	outbox    outboxEmitter
	pricer    Pricer
	currency  string
	logg      *logger.Logger
}

func NewAssembler(params AssemblerParams) (*Assembler, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Inventory == nil:
		return nil, fmt.Errorf("inventory required")
	case params.Locker == nil:
		return nil, fmt.Errorf("cart locker required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	pricer := params.Pricer
	if pricer == nil {
		pricer = ZeroPricer{}
	}
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	return &Assembler{
		tx:        params.Tx,
		carts:     params.Carts,
		orders:    params.Orders,
		inventory: params.Inventory,
		locker:    params.Locker,
		outbox:    params.Outbox,
		pricer:    pricer,
		currency:  currency,
		logg:      params.Logger,
	}, nil
}

// CreateOrder snapshots the identity's cart into a pending order and clears
// the cart. Any line that is no longer purchasable in the requested quantity
// aborts the whole assembly.
func (a *Assembler) CreateOrder(ctx context.Context, in AssembleInput) (*models.Order, error) {
	if err := identity.RequireAuthenticated(in.Identity); err != nil {
		return nil, err
	}
	address, err := validation.Address(in.ShippingAddress)
	if err != nil {
		return nil, err
	}

	unlock, err := a.locker.Lock(ctx, in.Identity.Key())
	if err != nil {
		return nil, err
	}
	defer unlock()

	var order *models.Order
	err = a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := a.carts.WithTx(tx)
		current, err := carts.FindByIdentity(ctx, in.Identity.Key())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return emptyCart()
			}
			return err
		}
		if len(current.Lines) == 0 {
			return emptyCart()
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != current.Version {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart changed since checkout started").
				WithReason(pkgerrors.ReasonCartChanged).
				WithDetails(map[string]any{"expectedVersion": *in.ExpectedVersion, "currentVersion": current.Version})
		}

		ids := make([]uuid.UUID, 0, len(current.Lines))
		for _, line := range current.Lines {
			ids = append(ids, line.ProductID)
		}
		products, err := a.inventory.SnapshotTx(ctx, tx, ids)
		if err != nil {
			return err
		}

		lines, subtotal, err := snapshotLines(current.Lines, products)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := a.inventory.Reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		adjustments, err := a.pricer.Adjustments(ctx, PricingInput{
			UserID:          in.Identity.UserID(),
			Subtotal:        subtotal,
			Lines:           lines,
			ShippingAddress: address,
		})
		if err != nil {
			return fmt.Errorf("price order: %w", err)
		}

		order = &models.Order{
			UserID:            in.Identity.UserID(),
			Status:            enums.OrderStatusPending,
			Currency:          a.currency,
			Subtotal:          subtotal,
			Adjustments:       adjustments,
			Total:             subtotal.Add(adjustments),
			ShippingAddress:   address,
			SourceCartVersion: current.Version,
			Lines:             lines,
		}
		if err := a.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		if _, err := carts.DeleteLines(ctx, current.ID); err != nil {
			return err
		}
		if _, err := carts.BumpVersion(ctx, current.ID); err != nil {
			return err
		}

		return a.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.CustomerActor(order.UserID, ""),
			OccurredAt:    order.CreatedAt,
			Data:          orderCreatedPayload(order),
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assemble order")
	}

	if a.logg != nil {
		logCtx := a.logg.WithOrderID(a.logg.WithUserID(ctx, order.UserID.String()), order.ID.String())
		a.logg.Info(logCtx, "order assembled")
	}
	return order, nil
}

// snapshotLines freezes name, price and image for every cart line and checks
// it against live stock.
func snapshotLines(cartLines []models.CartLine, products map[uuid.UUID]catalog.Product) ([]models.OrderLine, decimal.Decimal, error) {
	subtotal := decimal.Zero
	lines := make([]models.OrderLine, 0, len(cartLines))
	for _, line := range cartLines {
		product := products[line.ProductID]
		if !product.Purchasable() {
			return nil, decimal.Zero, stockConflict(line.ProductID, 0, line.Quantity, "product is no longer available")
		}
		if line.Quantity > product.Stock {
			return nil, decimal.Zero, stockConflict(line.ProductID, product.Stock, line.Quantity, "insufficient stock")
		}
		total := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(total)
		lines = append(lines, models.OrderLine{
			ProductID:   line.ProductID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Image:       product.Image(),
			Quantity:    line.Quantity,
			LineTotal:   total,
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductName < lines[j].ProductName })
	return lines, subtotal, nil
}

func orderCreatedPayload(order *models.Order) payloads.OrderCreatedEvent {
	lines := make([]payloads.OrderLine, 0, len(order.Lines))
	items := 0
	for _, line := range order.Lines {
		items += line.Quantity
		lines = append(lines, payloads.OrderLine{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			UnitPrice:   line.UnitPrice.StringFixed(2),
			Quantity:    line.Quantity,
		})
	}
	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return payloads.OrderCreatedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		Currency:  order.Currency,
		Total:     order.Total.StringFixed(2),
		ItemCount: items,
		Lines:     lines,
		CreatedAt: createdAt,
	}
}

func emptyCart() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty").WithReason(pkgerrors.ReasonEmptyCart)
}

func stockConflict(productID uuid.UUID, available, requested int, message string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, message).
		WithReason(pkgerrors.ReasonStockConflict).
		WithDetails(map[string]any{
			"productId": productID,
			"available": available,
			"requested": requested,
		})
}
