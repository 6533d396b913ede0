package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"cartengine/internal/domain/model"
	repo "cartengine/internal/repository"
)

type txRepos struct {
	st  *state
	now func() time.Time
}

func (r *txRepos) Orders() repo.OrderRepository         { return orderRepo{r} }
func (r *txRepos) OrderItems() repo.OrderItemRepository { return orderItemRepo{r} }
func (r *txRepos) Carts() repo.CartRepository           { return cartRepo{r} }
func (r *txRepos) CartItems() repo.CartItemRepository   { return cartItemRepo{r} }
func (r *txRepos) Inventory() repo.InventoryRepository  { return inventoryRepo{r} }
func (r *txRepos) Products() repo.ProductRepository     { return productRepo{r} }
func (r *txRepos) Outbox() repo.OutboxRepository        { return outboxRepo{r} }

// ---- carts

type cartRepo struct{ *txRepos }

func (r cartRepo) GetOrCreateActive(ctx context.Context, owner model.Owner) (model.Cart, error) {
	if !owner.Valid() {
		return model.Cart{}, errors.New("invalid owner")
	}
	if c, ok := r.st.activeCartOf(owner); ok {
		return c, nil
	}
	c := model.NewActiveCart(owner, r.now())
	r.st.nextCartID++
	c.ID = r.st.nextCartID
	r.st.carts[c.ID] = c
	return c, nil
}

func (r cartRepo) FindActiveForUpdate(ctx context.Context, owner model.Owner) (model.Cart, error) {
	if c, ok := r.st.activeCartOf(owner); ok {
		return c, nil
	}
	return model.Cart{}, repo.ErrNotFound
}

func (r cartRepo) TransitionStatus(ctx context.Context, cartID int64, from, to model.CartStatus) error {
	c, ok := r.st.carts[cartID]
	if !ok || c.Status != from {
		return repo.ErrStaleState
	}
	c.Status = to
	c.UpdatedAt = r.now()
	r.st.carts[cartID] = c
	return nil
}

func (r cartRepo) Touch(ctx context.Context, cartID int64) error {
	c, ok := r.st.carts[cartID]
	if !ok {
		return repo.ErrNotFound
	}
	c.UpdatedAt = r.now()
	r.st.carts[cartID] = c
	return nil
}

// ---- cart items

type cartItemRepo struct{ *txRepos }

func (r cartItemRepo) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	return r.st.itemsOf(cartID), nil
}

func (r cartItemRepo) FindByCartAndProductForUpdate(ctx context.Context, cartID int64, productID int64) (model.CartItem, error) {
	for _, it := range r.st.items {
		if it.CartID == cartID && it.ProductID == productID {
			return it, nil
		}
	}
	return model.CartItem{}, repo.ErrNotFound
}

func (r cartItemRepo) Create(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	if item.Quantity <= 0 {
		return model.CartItem{}, errors.New("invalid quantity")
	}
	if _, err := r.FindByCartAndProductForUpdate(ctx, item.CartID, item.ProductID); err == nil {
		return model.CartItem{}, errors.New("duplicate cart item")
	}
	r.st.nextItemID++
	item.ID = r.st.nextItemID
	r.st.items[item.ID] = item
	return item, nil
}

func (r cartItemRepo) UpdateQuantityAndPrice(ctx context.Context, cartItemID int64, qty int64, unitPriceSnapshot int64) error {
	if qty <= 0 {
		return errors.New("invalid quantity")
	}
	return r.mutate(cartItemID, func(it *model.CartItem) {
		it.Quantity = qty
		it.UnitPriceSnapshot = unitPriceSnapshot
	})
}

func (r cartItemRepo) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	if qty <= 0 {
		return errors.New("invalid quantity")
	}
	return r.mutate(cartItemID, func(it *model.CartItem) {
		it.Quantity = qty
	})
}

func (r cartItemRepo) Reparent(ctx context.Context, cartItemID int64, newCartID int64) error {
	return r.mutate(cartItemID, func(it *model.CartItem) {
		it.CartID = newCartID
	})
}

func (r cartItemRepo) mutate(cartItemID int64, fn func(it *model.CartItem)) error {
	it, ok := r.st.items[cartItemID]
	if !ok {
		return repo.ErrNotFound
	}
	fn(&it)
	it.UpdatedAt = r.now()
	r.st.items[cartItemID] = it
	return nil
}

func (r cartItemRepo) DeleteByID(ctx context.Context, cartItemID int64) error {
	if _, ok := r.st.items[cartItemID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.st.items, cartItemID)
	return nil
}

func (r cartItemRepo) DeleteByCartID(ctx context.Context, cartID int64) error {
	for id, it := range r.st.items {
		if it.CartID == cartID {
			delete(r.st.items, id)
		}
	}
	return nil
}

// ---- products / inventory

type productRepo struct{ *txRepos }

func (r productRepo) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r productRepo) FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error) {
	return r.FindByID(ctx, id)
}

type inventoryRepo struct{ *txRepos }

func (r inventoryRepo) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	p, ok := r.st.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	r.st.products[productID] = p
	return true, nil
}

func (r inventoryRepo) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	p, ok := r.st.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock += qty
	r.st.products[productID] = p
	return nil
}

func (r inventoryRepo) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	r.st.nextAdjID++
	adj.ID = r.st.nextAdjID
	r.st.adjustments = append(r.st.adjustments, adj)
	return nil
}

func (r inventoryRepo) ListAdjustments(ctx context.Context, productID int64) ([]model.InventoryAdjustment, error) {
	out := make([]model.InventoryAdjustment, 0)
	for _, a := range r.st.adjustments {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ---- orders

type orderRepo struct{ *txRepos }

func (r orderRepo) Create(ctx context.Context, order model.Order) (int64, error) {
	for _, o := range r.st.orders {
		if o.CartID == order.CartID {
			return 0, errors.New("cart already ordered")
		}
		if order.IdempotencyKey != nil && o.IdempotencyKey != nil &&
			o.UserID == order.UserID && *o.IdempotencyKey == *order.IdempotencyKey {
			return 0, errors.New("duplicate idempotency key")
		}
	}
	r.st.nextOrderID++
	order.ID = r.st.nextOrderID
	r.st.orders[order.ID] = order
	return order.ID, nil
}

func (r orderRepo) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	for _, o := range r.st.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

type orderItemRepo struct{ *txRepos }

func (r orderItemRepo) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for i := range items {
		r.st.nextOrderItemID++
		items[i].ID = r.st.nextOrderItemID
		items[i].OrderID = orderID
		r.st.orderItems[orderID] = append(r.st.orderItems[orderID], items[i])
	}
	return nil
}

func (r orderItemRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return append([]model.OrderItem{}, r.st.orderItems[orderID]...), nil
}

// ---- outbox

type outboxRepo struct{ *txRepos }

func (r outboxRepo) Create(ctx context.Context, event model.OutboxEvent) error {
	r.st.outbox = append(r.st.outbox, event)
	return nil
}

func (r outboxRepo) ListUnpublished(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	out := make([]model.OutboxEvent, 0)
	for _, e := range r.st.outbox {
		if e.PublishedAt == nil {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(ctx context.Context, eventID string, publishedAt time.Time) error {
	for i, e := range r.st.outbox {
		if e.ID == eventID && e.PublishedAt == nil {
			t := publishedAt
			r.st.outbox[i].PublishedAt = &t
			return nil
		}
	}
	return repo.ErrNotFound
}
