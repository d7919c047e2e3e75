package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/internal/catalog"
	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/metrics"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox/payloads"
)

// MergePolicy bounds the retries spent on a catalog outage during merge.
type MergePolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RetryDelay schedules the background retry of a deferred merge.
	RetryDelay time.Duration
}

func (p MergePolicy) withDefaults() MergePolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 100 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 2 * time.Second
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = time.Minute
	}
	return p
}

// ClampedLine reports a merged line whose quantity was cut down to stock.
type ClampedLine struct {
	ProductID uuid.UUID `json:"productId"`
	Requested int       `json:"requested"`
	Applied   int       `json:"applied"`
}

// MergeResult describes the outcome of draining a guest cart.
type MergeResult struct {
	// Cart is nil when the merge was deferred.
	Cart     *View         `json:"cart,omitempty"`
	Deferred bool          `json:"deferred"`
	Merged   int           `json:"mergedLines"`
	Clamped  []ClampedLine `json:"clamped"`
	Skipped  []uuid.UUID   `json:"skipped"`
	// Empty is set when there was no guest cart to drain.
	Empty bool `json:"-"`
}

// RetryReport summarizes one pass over deferred merges.
type RetryReport struct {
	Attempted int
	Merged    int
	Deferred  int
	Dropped   int
	Failed    int
}

// mergePlan is the set of writes computed from both carts and live stock.
type mergePlan struct {
	upserts map[uuid.UUID]int
	result  *MergeResult
}

// Merge drains the anonymous cart into the authenticated one. Both identity
// locks are held for the whole merge, guest first.
func (s *service) Merge(ctx context.Context, anonymous, authenticated identity.Identity) (*MergeResult, error) {
	if !anonymous.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merge source must be a guest session")
	}
	if err := identity.RequireAuthenticated(authenticated); err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"identity":   authenticated.Key(),
			"session_id": anonymous.SessionID(),
		})
	}

	unlock, err := lockBoth(ctx, s.locker, anonymous.Key(), authenticated.Key())
	if err != nil {
		return nil, err
	}
	defer unlock()

	anonCart, err := s.load(ctx, anonymous)
	if err != nil {
		return nil, err
	}
	authCart, err := s.load(ctx, authenticated)
	if err != nil {
		return nil, err
	}

	if anonCart == nil || len(anonCart.Lines) == 0 {
		if err := s.discardGuest(ctx, anonymous, anonCart); err != nil {
			return nil, err
		}
		view, err := s.view(ctx, authenticated)
		if err != nil {
			return nil, err
		}
		return &MergeResult{Cart: view, Clamped: []ClampedLine{}, Skipped: []uuid.UUID{}, Empty: true}, nil
	}

	ids := append(productIDs(anonCart), productIDs(authCart)...)
	products, err := s.productsWithRetry(ctx, ids)
	if err != nil {
		if !pkgerrors.IsReason(err, pkgerrors.ReasonStockOracleUnavailable) {
			return nil, err
		}
		return s.deferMerge(ctx, anonymous, authenticated, err)
	}

	plan := planMerge(anonCart, authCart, products)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		target, err := repo.GetOrCreate(ctx, authenticated)
		if err != nil {
			return err
		}
		for productID, qty := range plan.upserts {
			if err := repo.UpsertLine(ctx, target.ID, productID, qty); err != nil {
				return err
			}
		}
		version := target.Version
		if len(plan.upserts) > 0 {
			if version, err = repo.BumpVersion(ctx, target.ID); err != nil {
				return err
			}
		}
		if err := repo.Delete(ctx, anonCart.ID); err != nil {
			return err
		}
		if err := s.pending.WithTx(tx).DeleteByAnonymousKey(ctx, anonymous.Key()); err != nil {
			return err
		}
		userID := authenticated.UserID()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartMerged,
			AggregateType: enums.AggregateCart,
			AggregateID:   target.ID,
			Actor:         outbox.CustomerActor(userID, anonymous.SessionID()),
			Data: payloads.CartMergedEvent{
				CartID:        target.ID,
				UserID:        userID,
				SessionID:     anonymous.SessionID(),
				MergedLines:   plan.result.Merged,
				ClampedLines:  len(plan.result.Clamped),
				SkippedLines:  len(plan.result.Skipped),
				ProductIDs:    productIDs(anonCart),
				ResultVersion: version,
			},
		})
	})
	if err != nil {
		s.metrics.ObserveMerge(metrics.OutcomeError, 0)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge carts")
	}

	merged, err := s.load(ctx, authenticated)
	if err != nil {
		return nil, err
	}
	plan.result.Cart = buildView(merged, products)
	s.metrics.ObserveMerge(metrics.OutcomeOK, len(plan.result.Clamped))
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"merged":  plan.result.Merged,
			"clamped": len(plan.result.Clamped),
			"skipped": len(plan.result.Skipped),
		}), "guest cart merged")
	}
	return plan.result, nil
}

// planMerge adds each guest line onto the user cart, clamping the combined
// quantity to live stock. Only guest units are clamped: a user line already
// above stock is left as it is. Lines for products that can no longer be
// bought are skipped and reported.
func planMerge(anonCart, authCart *models.Cart, products map[uuid.UUID]catalog.Product) mergePlan {
	plan := mergePlan{
		upserts: map[uuid.UUID]int{},
		result:  &MergeResult{Clamped: []ClampedLine{}, Skipped: []uuid.UUID{}},
	}
	for _, line := range anonCart.Lines {
		product := products[line.ProductID]
		if !product.Purchasable() {
			plan.result.Skipped = append(plan.result.Skipped, line.ProductID)
			continue
		}
		existing := lineQuantity(authCart, line.ProductID)
		requested := existing + line.Quantity
		applied := max(existing, min(requested, product.Stock))
		if applied < requested {
			plan.result.Clamped = append(plan.result.Clamped, ClampedLine{
				ProductID: line.ProductID,
				Requested: requested,
				Applied:   applied,
			})
		}
		if applied > existing {
			plan.upserts[line.ProductID] = applied
		}
		plan.result.Merged++
	}
	return plan
}

func (s *service) productsWithRetry(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	backoff := s.policy.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		products, err := s.oracle.GetProducts(ctx, ids)
		if err == nil {
			return products, nil
		}
		if !pkgerrors.IsReason(err, pkgerrors.ReasonStockOracleUnavailable) {
			return nil, err
		}
		lastErr = err
		if attempt == s.policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.policy.MaxBackoff {
			backoff = s.policy.MaxBackoff
		}
	}
	return nil, lastErr
}

// deferMerge keeps the guest cart and schedules a background retry.
func (s *service) deferMerge(ctx context.Context, anonymous, authenticated identity.Identity, cause error) (*MergeResult, error) {
	msg := cause.Error()
	row := &models.PendingMerge{
		AnonymousKey:  anonymous.Key(),
		SessionID:     anonymous.SessionID(),
		UserID:        authenticated.UserID(),
		Attempts:      1,
		LastError:     &msg,
		NextAttemptAt: time.Now().UTC().Add(s.policy.RetryDelay),
	}
	if err := s.pending.Record(ctx, row); err != nil {
		s.metrics.ObserveMerge(metrics.OutcomeError, 0)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record deferred merge")
	}
	s.metrics.ObserveMerge(metrics.OutcomeDeferred, 0)
	if s.logg != nil {
		s.logg.Warn(ctx, "cart merge deferred: "+msg)
	}
	return &MergeResult{Deferred: true, Clamped: []ClampedLine{}, Skipped: []uuid.UUID{}}, nil
}

// discardGuest removes an empty guest cart and any stale retry record.
func (s *service) discardGuest(ctx context.Context, anonymous identity.Identity, anonCart *models.Cart) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if anonCart != nil {
			if err := s.repo.WithTx(tx).Delete(ctx, anonCart.ID); err != nil {
				return err
			}
		}
		return s.pending.WithTx(tx).DeleteByAnonymousKey(ctx, anonymous.Key())
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "discard guest cart")
	}
	return nil
}

// RetryPendingMerges re-runs merges deferred by an earlier outage.
func (s *service) RetryPendingMerges(ctx context.Context, limit int) (RetryReport, error) {
	var report RetryReport
	rows, err := s.pending.ListDue(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("list pending merges: %w", err)
	}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Attempted++
		anonymous, err := identity.Anonymous(row.SessionID)
		if err != nil {
			report.Failed++
			continue
		}
		authenticated, err := identity.Authenticated(row.UserID)
		if err != nil {
			report.Failed++
			continue
		}
		res, err := s.Merge(ctx, anonymous, authenticated)
		switch {
		case err != nil:
			report.Failed++
			if s.logg != nil {
				s.logg.Error(s.logg.WithField(ctx, "anonymous_key", row.AnonymousKey), "pending merge failed", err)
			}
		case res.Deferred:
			report.Deferred++
		case res.Empty:
			report.Dropped++
		default:
			report.Merged++
		}
	}
	return report, nil
}
