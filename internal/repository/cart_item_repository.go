package repository

import (
	"context"

	"cartengine/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	// 同じカート・同じ商品の明細を行ロック付きで取得。無ければErrNotFound
	FindByCartAndProductForUpdate(ctx context.Context, cartID int64, productID int64) (model.CartItem, error)
	Create(ctx context.Context, item model.CartItem) (model.CartItem, error)
	// 数量と価格スナップショットをまとめて更新
	UpdateQuantityAndPrice(ctx context.Context, cartItemID int64, qty int64, unitPriceSnapshot int64) error
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	// 明細を別カートへ付け替える（マージ用）
	Reparent(ctx context.Context, cartItemID int64, newCartID int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	DeleteByCartID(ctx context.Context, cartID int64) error
}
