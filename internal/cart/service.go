package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/internal/catalog"
	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/metrics"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
)

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type recorder interface {
	ObserveCartMutation(op, outcome string)
	ObserveMerge(outcome string, clamped int)
}

// Service exposes cart reads, mutations and the guest-to-user merge.
type Service interface {
	Get(ctx context.Context, id identity.Identity) (*View, error)
	Count(ctx context.Context, id identity.Identity) (int, error)
	AddItem(ctx context.Context, id identity.Identity, productID uuid.UUID, qty int) (*View, error)
	UpdateItem(ctx context.Context, id identity.Identity, productID uuid.UUID, qty int) (*View, error)
	RemoveItem(ctx context.Context, id identity.Identity, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, id identity.Identity) error
	Merge(ctx context.Context, anonymous, authenticated identity.Identity) (*MergeResult, error)
	RetryPendingMerges(ctx context.Context, limit int) (RetryReport, error)
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Repo    CartRepository
	Pending PendingMergeRepository
	Tx      txRunner
	Oracle  catalog.StockOracle
	Locker  Locker
	Outbox  outboxEmitter
	Metrics recorder
	Logger  *logger.Logger
	Merge   MergePolicy
}

type service struct {
	repo    CartRepository
	pending PendingMergeRepository
	tx      txRunner
	oracle  catalog.StockOracle
	locker  Locker
	outbox  outboxEmitter
	metrics recorder
	logg    *logger.Logger
	policy  MergePolicy
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Pending == nil {
		return nil, fmt.Errorf("pending merge repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Oracle == nil {
		return nil, fmt.Errorf("stock oracle required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	locker := params.Locker
	if locker == nil {
		locker = NewKeyedMutex(0)
	}
	rec := params.Metrics
	if rec == nil {
		rec = (*metrics.Storefront)(nil)
	}
	return &service{
		repo:    params.Repo,
		pending: params.Pending,
		tx:      params.Tx,
		oracle:  params.Oracle,
		locker:  locker,
		outbox:  params.Outbox,
		metrics: rec,
		logg:    params.Logger,
		policy:  params.Merge.withDefaults(),
	}, nil
}

func (s *service) Get(ctx context.Context, id identity.Identity) (*View, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.view(ctx, id)
}

func (s *service) Count(ctx context.Context, id identity.Identity) (int, error) {
	view, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return view.ItemCount, nil
}

func (s *service) AddItem(ctx context.Context, id identity.Identity, productID uuid.UUID, qty int) (*View, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	unlock, err := s.locker.Lock(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := s.load(ctx, id)
	if err != nil {
		return nil, s.fail("add", err)
	}
	product, err := s.purchasable(ctx, productID)
	if err != nil {
		return nil, s.fail("add", err)
	}
	existing := lineQuantity(cart, productID)
	if existing+qty > product.Stock {
		return nil, s.fail("add", outOfStock(productID, product.Stock, existing+qty, existing))
	}

	if err := s.writeLine(ctx, id, productID, existing+qty); err != nil {
		return nil, s.fail("add", err)
	}
	s.metrics.ObserveCartMutation("add", metrics.OutcomeOK)
	return s.view(ctx, id)
}

func (s *service) UpdateItem(ctx context.Context, id identity.Identity, productID uuid.UUID, qty int) (*View, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	defer unlock()

	if qty <= 0 {
		return s.removeLocked(ctx, id, productID)
	}

	cart, err := s.load(ctx, id)
	if err != nil {
		return nil, s.fail("update", err)
	}
	existing := lineQuantity(cart, productID)
	if existing == 0 {
		return nil, s.fail("update", pkgerrors.New(pkgerrors.CodeNotFound, "item is not in the cart"))
	}
	product, err := s.purchasable(ctx, productID)
	if err != nil {
		return nil, s.fail("update", err)
	}
	if qty > product.Stock {
		return nil, s.fail("update", outOfStock(productID, product.Stock, qty, existing))
	}
	if qty != existing {
		if err := s.writeLine(ctx, id, productID, qty); err != nil {
			return nil, s.fail("update", err)
		}
	}
	s.metrics.ObserveCartMutation("update", metrics.OutcomeOK)
	return s.view(ctx, id)
}

func (s *service) RemoveItem(ctx context.Context, id identity.Identity, productID uuid.UUID) (*View, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.removeLocked(ctx, id, productID)
}

func (s *service) removeLocked(ctx context.Context, id identity.Identity, productID uuid.UUID) (*View, error) {
	cart, err := s.load(ctx, id)
	if err != nil {
		return nil, s.fail("remove", err)
	}
	if cart != nil {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			deleted, err := repo.DeleteLine(ctx, cart.ID, productID)
			if err != nil || !deleted {
				return err
			}
			_, err = repo.BumpVersion(ctx, cart.ID)
			return err
		})
		if err != nil {
			return nil, s.fail("remove", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart line"))
		}
	}
	s.metrics.ObserveCartMutation("remove", metrics.OutcomeOK)
	return s.view(ctx, id)
}

func (s *service) Clear(ctx context.Context, id identity.Identity) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	unlock, err := s.locker.Lock(ctx, id.Key())
	if err != nil {
		return err
	}
	defer unlock()

	cart, err := s.load(ctx, id)
	if err != nil {
		return s.fail("clear", err)
	}
	if cart == nil {
		return nil
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		removed, err := repo.DeleteLines(ctx, cart.ID)
		if err != nil || removed == 0 {
			return err
		}
		_, err = repo.BumpVersion(ctx, cart.ID)
		return err
	})
	if err != nil {
		return s.fail("clear", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart"))
	}
	s.metrics.ObserveCartMutation("clear", metrics.OutcomeOK)
	return nil
}

// writeLine sets one line's quantity and bumps the version in a single
// transaction, creating the cart row on first mutation.
func (s *service) writeLine(ctx context.Context, id identity.Identity, productID uuid.UUID, qty int) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.GetOrCreate(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.UpsertLine(ctx, cart.ID, productID, qty); err != nil {
			return err
		}
		_, err = repo.BumpVersion(ctx, cart.ID)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write cart line")
	}
	return nil
}

// load returns the persisted cart or nil when the identity has none yet.
func (s *service) load(ctx context.Context, id identity.Identity) (*models.Cart, error) {
	cart, err := s.repo.FindByIdentity(ctx, id.Key())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return cart, nil
}

func (s *service) view(ctx context.Context, id identity.Identity) (*View, error) {
	cart, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	products, err := s.oracle.GetProducts(ctx, productIDs(cart))
	if err != nil {
		return nil, err
	}
	return buildView(cart, products), nil
}

func (s *service) purchasable(ctx context.Context, productID uuid.UUID) (catalog.Product, error) {
	product, err := s.oracle.GetProduct(ctx, productID)
	if err != nil {
		return catalog.Product{}, err
	}
	if !product.Exists {
		return catalog.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if !product.IsActive {
		return catalog.Product{}, pkgerrors.New(pkgerrors.CodeConflict, "product is no longer available").
			WithReason(pkgerrors.ReasonProductInactive).
			WithDetails(map[string]any{"productId": productID})
	}
	return product, nil
}

func (s *service) fail(op string, err error) error {
	outcome := metrics.OutcomeError
	if typed := pkgerrors.As(err); typed != nil && !pkgerrors.MetadataFor(typed.Code()).Retryable {
		outcome = metrics.OutcomeRejected
	}
	s.metrics.ObserveCartMutation(op, outcome)
	return err
}

func outOfStock(productID uuid.UUID, available, requested, inCart int) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "requested quantity exceeds available stock").
		WithReason(pkgerrors.ReasonOutOfStock).
		WithDetails(map[string]any{
			"productId": productID,
			"available": available,
			"requested": requested,
			"inCart":    inCart,
		})
}

func requireIdentity(id identity.Identity) error {
	if id.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "cart identity required")
	}
	return nil
}
