package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"cartengine/internal/domain/model"
	"cartengine/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// 在庫より多い同時追加でも在庫はマイナスにならない
func TestConcurrentAdd_NeverOversells(t *testing.T) {
	e := newEngine(t)
	const stock, buyers = 7, 30
	p := e.seed("Hot", 500, stock)

	var ok, rejected atomic.Int64
	var g errgroup.Group
	for i := 0; i < buyers; i++ {
		g.Go(func() error {
			_, err := e.cart.AddItem(context.Background(), guest(), p.ID, 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, usecase.ErrInsufficientStock):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(stock), ok.Load())
	assert.Equal(t, int64(buyers-stock), rejected.Load())
	assert.Equal(t, int64(0), e.stock(t, p.ID))
	assert.Equal(t, int64(stock), e.store.ReservedQuantity(p.ID))
}

// 同じ持ち主の同時アクセスでもACTIVEカートは1つ
func TestConcurrentGetCart_SingleActiveCart(t *testing.T) {
	e := newEngine(t)
	owner := model.UserOwner(11)

	ids := make([]int64, 20)
	var g errgroup.Group
	for i := range ids {
		i := i
		g.Go(func() error {
			v, err := e.cart.GetCart(context.Background(), owner)
			ids[i] = v.ID
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	active := 0
	for _, c := range e.store.Carts() {
		if c.IsActive() && c.Owner() == owner {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

// 同時チェックアウトでも注文は1件
func TestConcurrentCheckout_OneOrder(t *testing.T) {
	e := newEngine(t)
	p := e.seed("Tea", 1000, 10)
	u := model.UserOwner(12)
	_, err := e.cart.AddItem(context.Background(), u, p.ID, 2)
	require.NoError(t, err)

	var placed, refused atomic.Int64
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := e.checkout.Checkout(context.Background(), u, usecase.CheckoutInput{})
			switch {
			case err == nil:
				placed.Add(1)
			case errors.Is(err, usecase.ErrInvalidState):
				refused.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), placed.Load())
	assert.Equal(t, int64(9), refused.Load())
	assert.Len(t, e.store.Orders(), 1)
}

// 追加・更新・削除が入り乱れても 初期在庫-現在在庫 = ACTIVEカートの数量合計
func TestConcurrentMixedMutations_ConserveStock(t *testing.T) {
	e := newEngine(t)
	const initial = 40
	p := e.seed("Tea", 1000, initial)

	var g errgroup.Group
	for i := 0; i < 12; i++ {
		owner := guest()
		g.Go(func() error {
			ctx := context.Background()
			for _, step := range []func() error{
				func() error { _, err := e.cart.AddItem(ctx, owner, p.ID, 3); return err },
				func() error { _, err := e.cart.UpdateQuantity(ctx, owner, p.ID, 5); return err },
				func() error { _, err := e.cart.UpdateQuantity(ctx, owner, p.ID, 2); return err },
				func() error { _, err := e.cart.AddItem(ctx, owner, p.ID, 1); return err },
			} {
				if err := step(); err != nil && !usecase.IsBusinessError(err) {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	current := e.stock(t, p.ID)
	assert.GreaterOrEqual(t, current, int64(0))
	assert.Equal(t, int64(initial)-current, e.store.ReservedQuantity(p.ID))
}
