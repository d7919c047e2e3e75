package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abdulbasit0-UI/storefront-backend/internal/catalog"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
)

// LineView is a cart line priced against the live catalog.
type LineView struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     *string         `json:"image,omitempty"`
	Stock     int             `json:"stock"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Available bool            `json:"available"`
}

// View is the read model returned by every cart operation. Totals are
// derived on each read and never stored.
type View struct {
	Version        int64           `json:"version"`
	Lines          []LineView      `json:"items"`
	Total          decimal.Decimal `json:"total"`
	ItemCount      int             `json:"itemCount"`
	HasUnavailable bool            `json:"hasUnavailable"`
}

// IsEmpty reports whether the cart has no lines at all.
func (v *View) IsEmpty() bool {
	return v == nil || len(v.Lines) == 0
}

// buildView prices lines against products. Lines whose product is missing or
// inactive stay in the view, flagged unavailable and left out of the totals.
func buildView(cart *models.Cart, products map[uuid.UUID]catalog.Product) *View {
	view := &View{Lines: []LineView{}, Total: decimal.Zero}
	if cart == nil {
		return view
	}
	view.Version = cart.Version
	for _, line := range cart.Lines {
		product := products[line.ProductID]
		lv := LineView{
			ProductID: line.ProductID,
			Name:      product.Name,
			Price:     product.Price,
			Image:     product.Image(),
			Stock:     product.Stock,
			Quantity:  line.Quantity,
			Available: product.Purchasable(),
		}
		if lv.Available {
			lv.LineTotal = product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			view.Total = view.Total.Add(lv.LineTotal)
			view.ItemCount += line.Quantity
		} else {
			lv.LineTotal = decimal.Zero
			view.HasUnavailable = true
		}
		view.Lines = append(view.Lines, lv)
	}
	return view
}

func lineQuantity(cart *models.Cart, productID uuid.UUID) int {
	if cart == nil {
		return 0
	}
	for _, line := range cart.Lines {
		if line.ProductID == productID {
			return line.Quantity
		}
	}
	return 0
}

func productIDs(cart *models.Cart) []uuid.UUID {
	if cart == nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}
