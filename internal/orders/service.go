package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/pagination"
)

// Service is the read side of orders for customers and admins.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, filters ListFilters) (*OrderList, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderResponse, error)
	ListAll(ctx context.Context, filters ListFilters) (*OrderList, error)
	GetAny(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error)
}

type service struct {
	repo Repository
}

// NewService builds the orders read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, filters ListFilters) (*OrderList, error) {
	return s.list(ctx, &userID, filters)
}

func (s *service) ListAll(ctx context.Context, filters ListFilters) (*OrderList, error) {
	return s.list(ctx, nil, filters)
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.repo.FindByIDForUser(ctx, userID, orderID)
	return s.one(order, err)
}

func (s *service) GetAny(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	return s.one(order, err)
}

func (s *service) one(order *models.Order, err error) (*OrderResponse, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return FromModel(order), nil
}

func (s *service) list(ctx context.Context, userID *uuid.UUID, filters ListFilters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	cursor, err := pagination.ParseCursor(filters.Params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, ListParams{
		UserID: userID,
		Status: filters.Status,
		Limit:  filters.Params.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := &OrderList{Orders: make([]OrderResponse, 0, len(rows))}
	for i := range rows {
		out.Orders = append(out.Orders, *FromModel(&rows[i]))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}
