package repository

import (
	"context"

	"cartengine/internal/domain/model"
)

// カートの取得・作成・状態遷移
type CartRepository interface {
	// ACTIVEカートを返す（無ければ作る）。返したカート行はTx終了までロックされる
	GetOrCreateActive(ctx context.Context, owner model.Owner) (model.Cart, error)
	// ACTIVEカートを行ロック付きで取得。無ければErrNotFound
	FindActiveForUpdate(ctx context.Context, owner model.Owner) (model.Cart, error)
	// from -> to の遷移。fromでなければErrStaleState
	TransitionStatus(ctx context.Context, cartID int64, from, to model.CartStatus) error
	// updated_atの更新
	Touch(ctx context.Context, cartID int64) error
}
