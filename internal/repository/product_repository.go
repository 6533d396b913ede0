package repository

import (
	"cartengine/internal/domain/model"
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	// 期待した状態ではなかった（同時更新で先を越された等）
	ErrStaleState = errors.New("stale state")
)

// 商品の読み取り。論理削除済みも返す（呼び出し側でPurchasableを見る）
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	// 在庫のcheck→adjustの間、商品行をロックする
	FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error)
}
