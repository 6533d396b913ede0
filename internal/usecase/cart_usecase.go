package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cartengine/internal/domain/model"
	repo "cartengine/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CartUsecase は /cart の業務ロジックです。
// 在庫の引当はカート操作の時点で行い、1操作=1トランザクションで在庫とカートを同時に更新します。
type CartUsecase struct {
	tx     repo.TransactionManager
	cache  CartViewCache
	clock  Clock
	logger *zap.Logger
}

func NewCartUsecase(tx repo.TransactionManager, cache CartViewCache, clock Clock, logger *zap.Logger) *CartUsecase {
	if cache == nil {
		cache = noopCache{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartUsecase{tx: tx, cache: cache, clock: clock, logger: logger}
}

// GetCart はカート取得（無ければACTIVEを作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, owner model.Owner) (view CartView, err error) {
	ctx, span := tracer.Start(ctx, "CartUsecase.GetCart")
	defer func() { endSpan(span, err) }()

	if !owner.Valid() {
		return CartView{}, invalidArgument("invalid owner")
	}

	if cached, ok, cerr := u.cache.Get(ctx, owner); cerr != nil {
		u.logger.Warn("cart cache get failed", zap.Stringer("owner", owner), zap.Error(cerr))
	} else if ok {
		return cached, nil
	}

	// DBを読む前の世代。読んでいる間に変更が入ったら保存しない
	version, verr := u.cache.Version(ctx, owner)
	if verr != nil {
		u.logger.Warn("cart cache version failed", zap.Stringer("owner", owner), zap.Error(verr))
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateActive(ctx, owner)
		if err != nil {
			return err
		}
		view, err = buildCartView(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartView{}, fmt.Errorf("get cart: %w", err)
	}

	if verr == nil {
		stored, cerr := u.cache.SetIfVersion(ctx, owner, version, view)
		if cerr != nil {
			u.logger.Warn("cart cache set failed", zap.Stringer("owner", owner), zap.Error(cerr))
		} else if !stored {
			u.logger.Debug("cart changed while loading; not cached", zap.Stringer("owner", owner))
		}
	}
	return view, nil
}

// AddItem はカートに追加（同一商品は数量加算）。
// 在庫が足りなければ何も変えずにErrInsufficientStock。
func (u *CartUsecase) AddItem(ctx context.Context, owner model.Owner, productID int64, qty int64) (view CartView, err error) {
	ctx, span := tracer.Start(ctx, "CartUsecase.AddItem")
	span.SetAttributes(attribute.Int64("product.id", productID), attribute.Int64("quantity", qty))
	defer func() { endSpan(span, err) }()

	if !owner.Valid() {
		return CartView{}, invalidArgument("invalid owner")
	}
	if productID <= 0 {
		return CartView{}, invalidArgument("invalid product_id")
	}
	if qty < 1 {
		return CartView{}, invalidArgument("quantity must be at least 1")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.clock.Now()

		// ロック順: cart -> product -> cart_item
		cart, err := r.Carts().GetOrCreateActive(ctx, owner)
		if err != nil {
			return err
		}

		p, err := r.Products().FindByIDForUpdate(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return invalidArgument("unknown product %d", productID)
		}
		if err != nil {
			return err
		}
		if !p.Purchasable() {
			return invalidArgument("product %d is not available", productID)
		}

		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, productID, qty)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: product %d has %d left", ErrInsufficientStock, productID, p.Stock)
		}

		existing, err := r.CartItems().FindByCartAndProductForUpdate(ctx, cart.ID, productID)
		switch {
		case err == nil:
			// 数量加算時は価格スナップショットも現在価格に揃える
			if err := r.CartItems().UpdateQuantityAndPrice(ctx, existing.ID, existing.Quantity+qty, p.Price); err != nil {
				return err
			}
		case errors.Is(err, repo.ErrNotFound):
			if _, err := r.CartItems().Create(ctx, model.NewCartItem(cart.ID, productID, qty, p.Price, now)); err != nil {
				return err
			}
		default:
			return err
		}

		if err := r.Inventory().CreateAdjustment(ctx, model.NewReserveAdjustment(productID, cart.ID, qty, now)); err != nil {
			return err
		}
		if err := r.Carts().Touch(ctx, cart.ID); err != nil {
			return err
		}

		view, err = buildCartView(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartView{}, fmt.Errorf("add item: %w", err)
	}

	u.invalidate(ctx, owner)
	u.logger.Info("cart item added",
		zap.Stringer("owner", owner),
		zap.Int64("cart_id", view.ID),
		zap.Int64("product_id", productID),
		zap.Int64("quantity", qty),
	)
	return view, nil
}

// UpdateQuantity は数量を newQty にする。差分だけ在庫を動かす。
// newQty が0以下なら明細を消して全数を戻す。
func (u *CartUsecase) UpdateQuantity(ctx context.Context, owner model.Owner, productID int64, newQty int64) (view CartView, err error) {
	ctx, span := tracer.Start(ctx, "CartUsecase.UpdateQuantity")
	span.SetAttributes(attribute.Int64("product.id", productID), attribute.Int64("quantity", newQty))
	defer func() { endSpan(span, err) }()

	if !owner.Valid() {
		return CartView{}, invalidArgument("invalid owner")
	}
	if productID <= 0 {
		return CartView{}, invalidArgument("invalid product_id")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.clock.Now()

		cart, item, err := lockCartItem(ctx, r, owner, productID)
		if err != nil {
			return err
		}

		if newQty <= 0 {
			if err := releaseItem(ctx, r, item, now); err != nil {
				return err
			}
		} else {
			diff := newQty - item.Quantity
			switch {
			case diff > 0:
				ok, err := r.Inventory().DecreaseStockIfEnough(ctx, productID, diff)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: product %d cannot reserve %d more", ErrInsufficientStock, productID, diff)
				}
				if err := r.Inventory().CreateAdjustment(ctx, model.NewReserveAdjustment(productID, cart.ID, diff, now)); err != nil {
					return err
				}
			case diff < 0:
				if err := r.Inventory().IncreaseStock(ctx, productID, -diff); err != nil {
					return err
				}
				if err := r.Inventory().CreateAdjustment(ctx, model.NewReleaseAdjustment(productID, cart.ID, -diff, now)); err != nil {
					return err
				}
			}
			if diff != 0 {
				if err := r.CartItems().UpdateQuantity(ctx, item.ID, newQty); err != nil {
					return err
				}
			}
		}

		if err := r.Carts().Touch(ctx, cart.ID); err != nil {
			return err
		}
		view, err = buildCartView(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartView{}, fmt.Errorf("update quantity: %w", err)
	}

	u.invalidate(ctx, owner)
	u.logger.Info("cart item quantity updated",
		zap.Stringer("owner", owner),
		zap.Int64("cart_id", view.ID),
		zap.Int64("product_id", productID),
		zap.Int64("quantity", newQty),
	)
	return view, nil
}

// RemoveItem は明細を消して、数量分の在庫を戻す。
func (u *CartUsecase) RemoveItem(ctx context.Context, owner model.Owner, productID int64) (view CartView, err error) {
	ctx, span := tracer.Start(ctx, "CartUsecase.RemoveItem")
	span.SetAttributes(attribute.Int64("product.id", productID))
	defer func() { endSpan(span, err) }()

	if !owner.Valid() {
		return CartView{}, invalidArgument("invalid owner")
	}
	if productID <= 0 {
		return CartView{}, invalidArgument("invalid product_id")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, item, err := lockCartItem(ctx, r, owner, productID)
		if err != nil {
			return err
		}
		if err := releaseItem(ctx, r, item, u.clock.Now()); err != nil {
			return err
		}
		if err := r.Carts().Touch(ctx, cart.ID); err != nil {
			return err
		}
		view, err = buildCartView(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartView{}, fmt.Errorf("remove item: %w", err)
	}

	u.invalidate(ctx, owner)
	u.logger.Info("cart item removed",
		zap.Stringer("owner", owner),
		zap.Int64("cart_id", view.ID),
		zap.Int64("product_id", productID),
	)
	return view, nil
}

func (u *CartUsecase) invalidate(ctx context.Context, owners ...model.Owner) {
	if err := u.cache.Delete(ctx, owners...); err != nil {
		u.logger.Warn("cart cache invalidate failed", zap.Error(err))
	}
}

// ACTIVEカート -> 商品 -> 明細 の順にロックを取る。どれか無ければErrNotFound
func lockCartItem(ctx context.Context, r repo.TxRepos, owner model.Owner, productID int64) (model.Cart, model.CartItem, error) {
	cart, err := r.Carts().FindActiveForUpdate(ctx, owner)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, model.CartItem{}, notFound("no active cart for %s", owner)
	}
	if err != nil {
		return model.Cart{}, model.CartItem{}, err
	}

	if _, err := r.Products().FindByIDForUpdate(ctx, productID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Cart{}, model.CartItem{}, notFound("product %d is not in cart", productID)
		}
		return model.Cart{}, model.CartItem{}, err
	}

	item, err := r.CartItems().FindByCartAndProductForUpdate(ctx, cart.ID, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, model.CartItem{}, notFound("product %d is not in cart", productID)
	}
	if err != nil {
		return model.Cart{}, model.CartItem{}, err
	}
	return cart, item, nil
}

// 明細を消して全数を在庫に戻す
func releaseItem(ctx context.Context, r repo.TxRepos, item model.CartItem, now time.Time) error {
	if err := r.CartItems().DeleteByID(ctx, item.ID); err != nil {
		return err
	}
	if err := r.Inventory().IncreaseStock(ctx, item.ProductID, item.Quantity); err != nil {
		return err
	}
	return r.Inventory().CreateAdjustment(ctx, model.NewReleaseAdjustment(item.ProductID, item.CartID, item.Quantity, now))
}
