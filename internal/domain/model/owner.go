package model

import (
	"strconv"
	"strings"
)

type OwnerType string

const (
	OwnerUser  OwnerType = "USER"
	OwnerGuest OwnerType = "GUEST"
)

// カートの持ち主。UserかGuestのどちらか一方だけ。
type Owner struct {
	Type    OwnerType
	UserID  int64
	GuestID string
}

func UserOwner(userID int64) Owner {
	return Owner{Type: OwnerUser, UserID: userID}
}

func GuestOwner(guestID string) Owner {
	return Owner{Type: OwnerGuest, GuestID: guestID}
}

func (o Owner) IsUser() bool  { return o.Type == OwnerUser }
func (o Owner) IsGuest() bool { return o.Type == OwnerGuest }

// Validは片側だけが埋まっているかを見る
func (o Owner) Valid() bool {
	switch o.Type {
	case OwnerUser:
		return o.UserID > 0 && o.GuestID == ""
	case OwnerGuest:
		return o.UserID == 0 && strings.TrimSpace(o.GuestID) != ""
	default:
		return false
	}
}

// ID はレスポンス・キャッシュキー用の文字列表現
func (o Owner) ID() string {
	if o.IsUser() {
		return strconv.FormatInt(o.UserID, 10)
	}
	return o.GuestID
}

func (o Owner) String() string {
	return strings.ToLower(string(o.Type)) + ":" + o.ID()
}
