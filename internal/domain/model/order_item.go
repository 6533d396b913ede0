package model

import "time"

// 注文時点のスナップショット。作成後は更新しない
type OrderItem struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64     `gorm:"not null;index" json:"order_id"`
	ProductID           int64     `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string    `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   int64     `gorm:"not null" json:"unit_price_snapshot"`
	Quantity            int64     `gorm:"not null" json:"quantity"`
	Subtotal            int64     `gorm:"not null" json:"subtotal"`
	CreatedAt           time.Time `gorm:"not null" json:"created_at"`
}

// SnapshotOrderItem はカート明細と商品名から注文明細を作る。
// 単価はカート明細に保存された価格を使う（現在の商品価格ではない）
func SnapshotOrderItem(ci CartItem, productName string, now time.Time) OrderItem {
	return OrderItem{
		ProductID:           ci.ProductID,
		ProductNameSnapshot: productName,
		UnitPriceSnapshot:   ci.UnitPriceSnapshot,
		Quantity:            ci.Quantity,
		Subtotal:            ci.Subtotal(),
		CreatedAt:           now,
	}
}
