package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cartengine/internal/domain/model"
	"cartengine/internal/infra/memory"
	repo "cartengine/internal/repository"
	"cartengine/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type uuidGen struct{}

func (uuidGen) NewID() string { return uuid.NewString() }

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type engine struct {
	store    *memory.Store
	cache    *recordingCache
	cart     *usecase.CartUsecase
	merge    *usecase.MergeUsecase
	checkout *usecase.CheckoutUsecase
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	store := memory.NewStore()
	return newEngineWith(t, store, store)
}

// txは失敗注入用に差し替えられる
func newEngineWith(t *testing.T, store *memory.Store, tx repo.TransactionManager) *engine {
	t.Helper()
	cache := newRecordingCache()
	clock := fixedClock{t: testNow}
	return &engine{
		store:    store,
		cache:    cache,
		cart:     usecase.NewCartUsecase(tx, cache, clock, nil),
		merge:    usecase.NewMergeUsecase(tx, cache, nil),
		checkout: usecase.NewCheckoutUsecase(tx, cache, uuidGen{}, clock, nil),
	}
}

func (e *engine) seed(name string, price, stock int64) model.Product {
	return e.store.SeedProduct(model.Product{Name: name, Price: price, Stock: stock, IsActive: true})
}

func (e *engine) stock(t *testing.T, productID int64) int64 {
	t.Helper()
	p, ok := e.store.Product(productID)
	require.True(t, ok)
	return p.Stock
}

func guest() model.Owner { return model.GuestOwner(uuid.NewString()) }

// キャッシュの呼び出しを記録するだけのフェイク
type recordingCache struct {
	mu       sync.Mutex
	views    map[string]usecase.CartView
	versions map[string]int64
	deleted  []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{views: map[string]usecase.CartView{}, versions: map[string]int64{}}
}

func (c *recordingCache) Get(_ context.Context, owner model.Owner) (usecase.CartView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[owner.String()]
	return v, ok, nil
}

func (c *recordingCache) Version(_ context.Context, owner model.Owner) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[owner.String()], nil
}

func (c *recordingCache) SetIfVersion(_ context.Context, owner model.Owner, version int64, view usecase.CartView) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[owner.String()] != version {
		return false, nil
	}
	c.views[owner.String()] = view
	return true, nil
}

func (c *recordingCache) Delete(_ context.Context, owners ...model.Owner) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range owners {
		c.versions[o.String()]++
		delete(c.views, o.String())
		c.deleted = append(c.deleted, o.String())
	}
	return nil
}

func (c *recordingCache) put(owner model.Owner, view usecase.CartView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[owner.String()] = view
}

func (c *recordingCache) cached(owner model.Owner) (usecase.CartView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[owner.String()]
	return v, ok
}

func (c *recordingCache) deletedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

// 最初の保存の直前に beforeSet を一度だけ走らせる
type interleavingCache struct {
	*recordingCache
	once      sync.Once
	beforeSet func()
}

func (c *interleavingCache) SetIfVersion(ctx context.Context, owner model.Owner, version int64, view usecase.CartView) (bool, error) {
	c.once.Do(c.beforeSet)
	return c.recordingCache.SetIfVersion(ctx, owner, version, view)
}

// 指定したリポジトリ操作だけ失敗させるTxManager。nilのフィールドは素通し
type faultTx struct {
	inner repo.TransactionManager

	adjustmentErr error
	transitionErr error
	reparentErr   error
	outboxErr     error
}

var (
	errOutboxDown = errors.New("outbox down")
	errLedgerDown = errors.New("ledger down")
	errDBDown     = errors.New("db down")
)

func (f faultTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return f.inner.WithinTx(ctx, func(r repo.TxRepos) error {
		return fn(faultRepos{TxRepos: r, f: f})
	})
}

type faultRepos struct {
	repo.TxRepos
	f faultTx
}

func (r faultRepos) Inventory() repo.InventoryRepository {
	return faultInventory{InventoryRepository: r.TxRepos.Inventory(), err: r.f.adjustmentErr}
}

func (r faultRepos) Carts() repo.CartRepository {
	return faultCarts{CartRepository: r.TxRepos.Carts(), err: r.f.transitionErr}
}

func (r faultRepos) CartItems() repo.CartItemRepository {
	return faultCartItems{CartItemRepository: r.TxRepos.CartItems(), err: r.f.reparentErr}
}

func (r faultRepos) Outbox() repo.OutboxRepository {
	return faultOutbox{OutboxRepository: r.TxRepos.Outbox(), err: r.f.outboxErr}
}

type faultInventory struct {
	repo.InventoryRepository
	err error
}

func (i faultInventory) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	if i.err != nil {
		return i.err
	}
	return i.InventoryRepository.CreateAdjustment(ctx, adj)
}

type faultCarts struct {
	repo.CartRepository
	err error
}

func (c faultCarts) TransitionStatus(ctx context.Context, cartID int64, from, to model.CartStatus) error {
	if c.err != nil {
		return c.err
	}
	return c.CartRepository.TransitionStatus(ctx, cartID, from, to)
}

type faultCartItems struct {
	repo.CartItemRepository
	err error
}

func (c faultCartItems) Reparent(ctx context.Context, cartItemID int64, newCartID int64) error {
	if c.err != nil {
		return c.err
	}
	return c.CartItemRepository.Reparent(ctx, cartItemID, newCartID)
}

type faultOutbox struct {
	repo.OutboxRepository
	err error
}

func (o faultOutbox) Create(ctx context.Context, event model.OutboxEvent) error {
	if o.err != nil {
		return o.err
	}
	return o.OutboxRepository.Create(ctx, event)
}

// 在庫の増減を台帳から集計する（WithinTx経由）
func ledgerSum(t *testing.T, tx repo.TransactionManager, productID int64) int64 {
	t.Helper()
	var sum int64
	require.NoError(t, tx.WithinTx(context.Background(), func(r repo.TxRepos) error {
		adjs, err := r.Inventory().ListAdjustments(context.Background(), productID)
		if err != nil {
			return err
		}
		for _, a := range adjs {
			sum += a.Delta
		}
		return nil
	}))
	return sum
}
