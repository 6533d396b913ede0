package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cartengine/internal/domain/model"
	repo "cartengine/internal/repository"
)

// state はストア全体の中身。Txごとにコピーして、成功したときだけ差し替える
type state struct {
	products    map[int64]model.Product
	carts       map[int64]model.Cart
	items       map[int64]model.CartItem
	adjustments []model.InventoryAdjustment
	orders      map[int64]model.Order
	orderItems  map[int64][]model.OrderItem
	outbox      []model.OutboxEvent

	nextProductID   int64
	nextCartID      int64
	nextItemID      int64
	nextAdjID       int64
	nextOrderID     int64
	nextOrderItemID int64
}

func newState() *state {
	return &state{
		products:   make(map[int64]model.Product),
		carts:      make(map[int64]model.Cart),
		items:      make(map[int64]model.CartItem),
		orders:     make(map[int64]model.Order),
		orderItems: make(map[int64][]model.OrderItem),
	}
}

func (s *state) clone() *state {
	c := *s
	c.products = make(map[int64]model.Product, len(s.products))
	for k, v := range s.products {
		c.products[k] = v
	}
	c.carts = make(map[int64]model.Cart, len(s.carts))
	for k, v := range s.carts {
		c.carts[k] = v
	}
	c.items = make(map[int64]model.CartItem, len(s.items))
	for k, v := range s.items {
		c.items[k] = v
	}
	c.adjustments = append([]model.InventoryAdjustment(nil), s.adjustments...)
	c.orders = make(map[int64]model.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.orderItems = make(map[int64][]model.OrderItem, len(s.orderItems))
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]model.OrderItem(nil), v...)
	}
	c.outbox = append([]model.OutboxEvent(nil), s.outbox...)
	return &c
}

// Store はプロセス内で完結するストア。
// Txは1本ずつ直列に流すので、行ロックの代わりになる
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// WithinTx はスナップショット上でfnを実行し、エラーなら丸ごと捨てる
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(&txRepos{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// SeedProduct は商品を登録する（カタログ側の代わり）
func (s *Store) SeedProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		s.st.nextProductID++
		p.ID = s.st.nextProductID
	} else if p.ID > s.st.nextProductID {
		s.st.nextProductID = p.ID
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.st.products[p.ID] = p
	return p
}

// SetPrice はカタログ側の価格変更の代わり
func (s *Store) SetPrice(productID int64, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.st.products[productID]; ok {
		p.Price = price
		s.st.products[productID] = p
	}
}

// Rename はカタログ側の商品名変更の代わり
func (s *Store) Rename(productID int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.st.products[productID]; ok {
		p.Name = name
		s.st.products[productID] = p
	}
}

func (s *Store) Product(id int64) (model.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	return p, ok
}

// Carts は全カートをID順で返す
func (s *Store) Carts() []model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Cart, 0, len(s.st.carts))
	for _, c := range s.st.carts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) CartItems(cartID int64) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.itemsOf(cartID)
}

// ReservedQuantity はACTIVEカートに入っている商品の数量合計
func (s *Store) ReservedQuantity(productID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, it := range s.st.items {
		if it.ProductID != productID {
			continue
		}
		if c, ok := s.st.carts[it.CartID]; ok && c.IsActive() {
			total += it.Quantity
		}
	}
	return total
}

func (s *Store) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Order, 0, len(s.st.orders))
	for _, o := range s.st.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) OrderItems(orderID int64) []model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OrderItem(nil), s.st.orderItems[orderID]...)
}

func (s *Store) Adjustments() []model.InventoryAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.InventoryAdjustment(nil), s.st.adjustments...)
}

func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.st.outbox...)
}

func (s *state) itemsOf(cartID int64) []model.CartItem {
	out := make([]model.CartItem, 0)
	for _, it := range s.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) activeCartOf(owner model.Owner) (model.Cart, bool) {
	for _, c := range s.carts {
		if c.IsActive() && c.Owner() == owner {
			return c, true
		}
	}
	return model.Cart{}, false
}
