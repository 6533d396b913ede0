package model

import "time"

type AdjustmentReason string

const (
	// カート追加・数量増による引当
	AdjustmentCartReserve AdjustmentReason = "CART_RESERVE"
	// 数量減・削除による戻し
	AdjustmentCartRelease AdjustmentReason = "CART_RELEASE"
)

// 在庫調整の履歴。在庫の増減と同じTxで書く
type InventoryAdjustment struct {
	ID        int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64            `gorm:"not null;index" json:"product_id"`
	CartID    int64            `gorm:"not null;index" json:"cart_id"`
	Delta     int64            `gorm:"not null" json:"delta"`
	Reason    AdjustmentReason `gorm:"type:varchar(32);not null" json:"reason"`
	CreatedAt time.Time        `gorm:"not null" json:"created_at"`
}

func NewReserveAdjustment(productID, cartID, qty int64, now time.Time) InventoryAdjustment {
	return InventoryAdjustment{ProductID: productID, CartID: cartID, Delta: -qty, Reason: AdjustmentCartReserve, CreatedAt: now}
}

func NewReleaseAdjustment(productID, cartID, qty int64, now time.Time) InventoryAdjustment {
	return InventoryAdjustment{ProductID: productID, CartID: cartID, Delta: qty, Reason: AdjustmentCartRelease, CreatedAt: now}
}
