package model

import "time"

// カートの明細
// 追加時点の価格を必ず保存。quantityは1以上（0になったら行ごと消す）
type CartItem struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            int64     `gorm:"not null;index" json:"cart_id"`
	ProductID         int64     `gorm:"not null;index" json:"product_id"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot int64     `gorm:"not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

func NewCartItem(cartID, productID, qty, unitPrice int64, now time.Time) CartItem {
	return CartItem{
		CartID:            cartID,
		ProductID:         productID,
		Quantity:          qty,
		UnitPriceSnapshot: unitPrice,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (it CartItem) Subtotal() int64 {
	return it.UnitPriceSnapshot * it.Quantity
}
