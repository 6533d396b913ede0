package model

import "time"

type CartStatus string

const (
	CartStatusActive    CartStatus = "ACTIVE"
	CartStatusOrdered   CartStatus = "ORDERED"
	CartStatusAbandoned CartStatus = "ABANDONED"
)

// 1オーナーにつきACTIVEは1つ（部分ユニークインデックスで担保）
// user_id / guest_id はどちらか一方だけ入る
type Cart struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *int64     `gorm:"index" json:"user_id,omitempty"`
	GuestID   *string    `gorm:"type:uuid;index" json:"guest_id,omitempty"`
	Status    CartStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

// NewActiveCart は空のACTIVEカートを作る（タイムスタンプもここで入れる）
func NewActiveCart(owner Owner, now time.Time) Cart {
	c := Cart{
		Status:    CartStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if owner.IsUser() {
		id := owner.UserID
		c.UserID = &id
	} else {
		gid := owner.GuestID
		c.GuestID = &gid
	}
	return c
}

func (c Cart) Owner() Owner {
	if c.UserID != nil {
		return UserOwner(*c.UserID)
	}
	if c.GuestID != nil {
		return GuestOwner(*c.GuestID)
	}
	return Owner{}
}

func (c Cart) IsActive() bool {
	return c.Status == CartStatusActive
}
