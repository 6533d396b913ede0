package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cartengine/internal/domain/model"
	repo "cartengine/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CheckoutUsecase はACTIVEカートを注文に変換する。
// 在庫はカート操作時に引当済みなので、ここでは在庫を動かさない。
type CheckoutUsecase struct {
	tx     repo.TransactionManager
	cache  CartViewCache
	ids    IDGenerator
	clock  Clock
	logger *zap.Logger
}

func NewCheckoutUsecase(tx repo.TransactionManager, cache CartViewCache, ids IDGenerator, clock Clock, logger *zap.Logger) *CheckoutUsecase {
	if cache == nil {
		cache = noopCache{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutUsecase{tx: tx, cache: cache, ids: ids, clock: clock, logger: logger}
}

type CheckoutInput struct {
	// 空なら冪等チェックしない
	IdempotencyKey string
}

type OrderItemOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type OrderOutput struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	CartID      int64             `json:"cart_id"`
	Status      string            `json:"status"`
	TotalAmount int64             `json:"total_amount"`
	OrderDate   time.Time         `json:"order_date"`
	Items       []OrderItemOutput `json:"items"`
	// 同じ冪等キーで作成済みの注文を返した
	Replayed bool `json:"replayed"`
}

func (u *CheckoutUsecase) Checkout(ctx context.Context, owner model.Owner, in CheckoutInput) (out OrderOutput, err error) {
	ctx, span := tracer.Start(ctx, "CheckoutUsecase.Checkout")
	defer func() { endSpan(span, err) }()

	if !owner.IsUser() || !owner.Valid() {
		return OrderOutput{}, invalidState("checkout requires an authenticated user")
	}
	span.SetAttributes(attribute.Int64("user.id", owner.UserID))

	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return OrderOutput{}, invalidArgument("invalid idempotency key")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 先にカートをロックする。同じキーの同時リクエストはここで直列になる
		cart, cartErr := r.Carts().FindActiveForUpdate(ctx, owner)
		if cartErr != nil && !errors.Is(cartErr, repo.ErrNotFound) {
			return cartErr
		}

		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, owner.UserID, key)
			if err != nil {
				return err
			}
			if found {
				items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
				if err != nil {
					return err
				}
				out = toOrderOutput(existing, items)
				out.Replayed = true
				return nil
			}
		}

		if cartErr != nil {
			return invalidState("no active cart")
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(cartItems) == 0 {
			return invalidState("cart is empty")
		}

		now := u.clock.Now()
		orderItems := make([]model.OrderItem, 0, len(cartItems))
		var total int64 = 0

		for _, ci := range cartItems {
			// 商品名は現在の名前、単価はカートのスナップショット
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if err != nil {
				return fmt.Errorf("product %d: %w", ci.ProductID, err)
			}
			oi := model.SnapshotOrderItem(ci, p.Name, now)
			orderItems = append(orderItems, oi)
			total += oi.Subtotal
		}

		order := model.Order{
			UserID:      owner.UserID,
			CartID:      cart.ID,
			Status:      model.OrderStatusPending,
			TotalAmount: total,
			OrderDate:   now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return err
		}

		//カートを空にしてORDEREDへ（再注文防止）
		if err := r.CartItems().DeleteByCartID(ctx, cart.ID); err != nil {
			return err
		}
		if err := r.Carts().TransitionStatus(ctx, cart.ID, model.CartStatusActive, model.CartStatusOrdered); err != nil {
			if errors.Is(err, repo.ErrStaleState) {
				return invalidState("cart %d is no longer active", cart.ID)
			}
			return err
		}

		payload, err := json.Marshal(model.NewOrderPlacedPayload(order, orderItems))
		if err != nil {
			return err
		}
		if err := r.Outbox().Create(ctx, model.OutboxEvent{
			ID:          u.ids.NewID(),
			AggregateID: strconv.FormatInt(orderID, 10),
			EventType:   model.EventTypeOrderPlaced,
			Payload:     payload,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		out = toOrderOutput(order, orderItems)
		return nil
	})
	if err != nil {
		return OrderOutput{}, fmt.Errorf("checkout: %w", err)
	}

	if out.Replayed {
		u.logger.Info("checkout replayed", zap.Int64("user_id", owner.UserID), zap.Int64("order_id", out.ID))
		return out, nil
	}

	if cerr := u.cache.Delete(ctx, owner); cerr != nil {
		u.logger.Warn("cart cache invalidate failed", zap.Error(cerr))
	}
	u.logger.Info("order placed",
		zap.Int64("user_id", owner.UserID),
		zap.Int64("order_id", out.ID),
		zap.Int64("cart_id", out.CartID),
		zap.Int64("total_amount", out.TotalAmount),
	)
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			UnitPrice: it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal,
		})
	}

	return OrderOutput{
		ID:          o.ID,
		UserID:      o.UserID,
		CartID:      o.CartID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		OrderDate:   o.OrderDate,
		Items:       outItems,
	}
}
