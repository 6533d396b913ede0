package usecase_test

import (
	"context"
	"encoding/json"
	"testing"

	"cartengine/internal/domain/model"
	"cartengine/internal/infra/memory"
	repo "cartengine/internal/repository"
	"cartengine/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout_RequiresUser(t *testing.T) {
	e := newEngine(t)
	_, err := e.checkout.Checkout(context.Background(), guest(), usecase.CheckoutInput{})
	assert.ErrorIs(t, err, usecase.ErrInvalidState)
}

func TestCheckout_EmptyOrMissingCart(t *testing.T) {
	e := newEngine(t)
	u := model.UserOwner(1)
	ctx := context.Background()

	_, err := e.checkout.Checkout(ctx, u, usecase.CheckoutInput{})
	assert.ErrorIs(t, err, usecase.ErrInvalidState)

	_, err = e.cart.GetCart(ctx, u)
	require.NoError(t, err)
	_, err = e.checkout.Checkout(ctx, u, usecase.CheckoutInput{})
	assert.ErrorIs(t, err, usecase.ErrInvalidState)
	assert.Empty(t, e.store.Orders())
}

func TestCheckout_DoesNotTouchStock(t *testing.T) {
	e := newEngine(t)
	p := e.seed("Tea", 1000, 5)
	u := model.UserOwner(1)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, u, p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.stock(t, p.ID))

	_, err = e.checkout.Checkout(ctx, u, usecase.CheckoutInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.stock(t, p.ID))
	assert.Len(t, e.store.Adjustments(), 1)
}

func TestCheckout_IsOneShot(t *testing.T) {
	e := newEngine(t)
	p := e.seed("Tea", 1000, 5)
	u := model.UserOwner(1)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, u, p.ID, 1)
	require.NoError(t, err)

	_, err = e.checkout.Checkout(ctx, u, usecase.CheckoutInput{})
	require.NoError(t, err)

	_, err = e.checkout.Checkout(ctx, u, usecase.CheckoutInput{})
	assert.ErrorIs(t, err, usecase.ErrInvalidState)
	assert.Len(t, e.store.Orders(), 1)
}

func TestCheckout_IdempotencyKeyReplays(t *testing.T) {
	e := newEngine(t)
	p := e.seed("Tea", 1000, 5)
	u := model.UserOwner(1)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, u, p.ID, 2)
	require.NoError(t, err)

	first, err := e.checkout.Checkout(ctx, u, usecase.CheckoutInput{IdempotencyKey: "k-1"})
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := e.checkout.Checkout(ctx, u, usecase.CheckoutInput{IdempotencyKey: "k-1"})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TotalAmount, second.TotalAmount)
	assert.Len(t, second.Items, 1)
	assert.Len(t, e.store.Orders(), 1)

	// 別のキーは空カート扱い
	_, err = e.checkout.Checkout(ctx, u, usecase.CheckoutInput{IdempotencyKey: "k-2"})
	assert.ErrorIs(t, err, usecase.ErrInvalidState)
}

func TestCheckout_WritesOrderPlacedEvent(t *testing.T) {
	e := newEngine(t)
	p := e.seed("Tea", 1000, 5)
	u := model.UserOwner(4)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, u, p.ID, 3)
	require.NoError(t, err)
	out, err := e.checkout.Checkout(ctx, u, usecase.CheckoutInput{})
	require.NoError(t, err)

	events := e.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventTypeOrderPlaced, events[0].EventType)
	assert.Nil(t, events[0].PublishedAt)

	var payload model.OrderPlacedPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, out.ID, payload.OrderID)
	assert.Equal(t, int64(4), payload.UserID)
	assert.Equal(t, int64(3000), payload.TotalAmount)
	require.Len(t, payload.Items, 1)
	assert.Equal(t, "Tea", payload.Items[0].ProductName)
}

func TestCheckout_RollsBackWhenAnyWriteFails(t *testing.T) {
	store := memory.NewStore()
	ok := newEngineWith(t, store, store)
	broken := newEngineWith(t, store, faultTx{inner: store, outboxErr: errOutboxDown})
	p := ok.seed("Tea", 1000, 5)
	u := model.UserOwner(1)
	ctx := context.Background()

	_, err := ok.cart.AddItem(ctx, u, p.ID, 2)
	require.NoError(t, err)

	_, err = broken.checkout.Checkout(ctx, u, usecase.CheckoutInput{})
	require.ErrorIs(t, err, errOutboxDown)

	// 注文なし、カートはACTIVEのまま明細も残る
	assert.Empty(t, store.Orders())
	assert.Empty(t, store.OutboxEvents())
	view, err := ok.cart.GetCart(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", view.Status)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(2), view.Items[0].Quantity)

	// 直れば通る
	_, err = ok.checkout.Checkout(ctx, u, usecase.CheckoutInput{})
	require.NoError(t, err)
}

func TestCheckout_OrderSnapshotIgnoresLaterCatalogChanges(t *testing.T) {
	e := newEngine(t)
	p := e.seed("Tea", 1000, 5)
	u := model.UserOwner(6)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, u, p.ID, 2)
	require.NoError(t, err)
	placed, err := e.checkout.Checkout(ctx, u, usecase.CheckoutInput{IdempotencyKey: "snap-1"})
	require.NoError(t, err)

	e.store.SetPrice(p.ID, 9999)
	e.store.Rename(p.ID, "Premium Tea")

	// 保存済みの明細
	var items []model.OrderItem
	require.NoError(t, e.store.WithinTx(ctx, func(r repo.TxRepos) error {
		items, err = r.OrderItems().ListByOrderID(ctx, placed.ID)
		return err
	}))
	require.Len(t, items, 1)
	assert.Equal(t, "Tea", items[0].ProductNameSnapshot)
	assert.Equal(t, int64(1000), items[0].UnitPriceSnapshot)
	assert.Equal(t, int64(2000), items[0].Subtotal)

	// 再送しても作成時の内容のまま
	replayed, err := e.checkout.Checkout(ctx, u, usecase.CheckoutInput{IdempotencyKey: "snap-1"})
	require.NoError(t, err)
	assert.True(t, replayed.Replayed)
	assert.Equal(t, int64(2000), replayed.TotalAmount)
	require.Len(t, replayed.Items, 1)
	assert.Equal(t, "Tea", replayed.Items[0].Name)
	assert.Equal(t, int64(1000), replayed.Items[0].UnitPrice)
}
