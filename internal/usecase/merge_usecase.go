package usecase

import (
	"context"
	"errors"
	"fmt"

	"cartengine/internal/domain/model"
	repo "cartengine/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MergeUsecase はログイン時にゲストカートをユーザーカートへ寄せる。
// ゲスト明細の在庫は追加時に引当済みなので、ここでは在庫を動かさない。
type MergeUsecase struct {
	tx     repo.TransactionManager
	cache  CartViewCache
	logger *zap.Logger
}

func NewMergeUsecase(tx repo.TransactionManager, cache CartViewCache, logger *zap.Logger) *MergeUsecase {
	if cache == nil {
		cache = noopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeUsecase{tx: tx, cache: cache, logger: logger}
}

// MergeOnLogin はゲストのACTIVEカートの明細を全部ユーザーカートへ移し、ゲストカートをABANDONEDにする。
// ゲストのACTIVEカートが無ければ何もしない。
func (u *MergeUsecase) MergeOnLogin(ctx context.Context, userID int64, guestID string) (err error) {
	ctx, span := tracer.Start(ctx, "MergeUsecase.MergeOnLogin")
	span.SetAttributes(attribute.Int64("user.id", userID))
	defer func() { endSpan(span, err) }()

	if userID <= 0 {
		return invalidArgument("invalid user id")
	}
	if _, perr := uuid.Parse(guestID); perr != nil {
		return invalidArgument("invalid guest id %q", guestID)
	}

	guest := model.GuestOwner(guestID)
	user := model.UserOwner(userID)
	moved, combined := 0, 0
	merged := false

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// ロック順: guest cart -> user cart
		guestCart, err := r.Carts().FindActiveForUpdate(ctx, guest)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		userCart, err := r.Carts().GetOrCreateActive(ctx, user)
		if err != nil {
			return err
		}

		items, err := r.CartItems().ListByCartID(ctx, guestCart.ID)
		if err != nil {
			return err
		}

		for _, gi := range items {
			existing, err := r.CartItems().FindByCartAndProductForUpdate(ctx, userCart.ID, gi.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				if err := r.CartItems().Reparent(ctx, gi.ID, userCart.ID); err != nil {
					return err
				}
				moved++
				continue
			}
			if err != nil {
				return err
			}

			// 同じ商品は数量を合算し、価格は現在価格に揃える
			price := existing.UnitPriceSnapshot
			p, err := r.Products().FindByID(ctx, gi.ProductID)
			switch {
			case err == nil:
				price = p.Price
			case !errors.Is(err, repo.ErrNotFound):
				return err
			}
			if err := r.CartItems().UpdateQuantityAndPrice(ctx, existing.ID, existing.Quantity+gi.Quantity, price); err != nil {
				return err
			}
			if err := r.CartItems().DeleteByID(ctx, gi.ID); err != nil {
				return err
			}
			combined++
		}

		if err := r.Carts().TransitionStatus(ctx, guestCart.ID, model.CartStatusActive, model.CartStatusAbandoned); err != nil {
			if errors.Is(err, repo.ErrStaleState) {
				return invalidState("guest cart %d is no longer active", guestCart.ID)
			}
			return err
		}
		if err := r.Carts().Touch(ctx, userCart.ID); err != nil {
			return err
		}
		merged = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("merge on login: %w", err)
	}

	if !merged {
		u.logger.Debug("no guest cart to merge", zap.Int64("user_id", userID))
		return nil
	}

	if cerr := u.cache.Delete(ctx, guest, user); cerr != nil {
		u.logger.Warn("cart cache invalidate failed", zap.Error(cerr))
	}
	u.logger.Info("guest cart merged",
		zap.Int64("user_id", userID),
		zap.Int("moved_items", moved),
		zap.Int("combined_items", combined),
	)
	return nil
}
