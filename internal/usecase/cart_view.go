package usecase

import (
	"context"
	"errors"

	"cartengine/internal/domain/model"
	repo "cartengine/internal/repository"
)

// price は unit_price_snapshot（追加時点の価格）
type CartItemView struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

type CartView struct {
	ID         int64          `json:"id"`
	Items      []CartItemView `json:"items"`
	TotalPrice int64          `json:"total_price"`
	TotalItems int64          `json:"total_items"`
	OwnerID    string         `json:"owner_id"`
	OwnerType  string         `json:"owner_type"`
	Status     string         `json:"status"`
}

// cartの明細をまとめてCartViewを作る（Tx内で呼ぶ）
func buildCartView(ctx context.Context, r repo.TxRepos, cart model.Cart) (CartView, error) {
	items, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartView{}, err
	}

	owner := cart.Owner()
	view := CartView{
		ID:        cart.ID,
		Items:     make([]CartItemView, 0, len(items)),
		OwnerID:   owner.ID(),
		OwnerType: string(owner.Type),
		Status:    string(cart.Status),
	}

	for _, it := range items {
		name := ""
		p, err := r.Products().FindByID(ctx, it.ProductID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return CartView{}, err
		}
		if err == nil {
			name = p.Name
		}

		view.Items = append(view.Items, CartItemView{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPriceSnapshot,
			Subtotal:  it.Subtotal(),
		})
		view.TotalPrice += it.Subtotal()
		view.TotalItems += it.Quantity
	}

	return view, nil
}
