package usecase

import (
	"errors"
	"time"

	"cartengine/internal/domain/model"
)

var ErrInvalidGuestToken = errors.New("invalid guest token")

// ゲストトークンの発行/検証（実装はinfra/token）
type GuestTokenCodec interface {
	Mint(guestID string, now time.Time) (token string, expiresAt time.Time, err error)
	// 期限切れ・改ざん・typ違いはErrInvalidGuestToken
	Parse(token string, now time.Time) (guestID string, err error)
}

type IdentityInput struct {
	// 認証ミドルウェアで検証済みのユーザーID（未ログインは0）
	UserID     int64
	GuestToken string
}

type Identity struct {
	Owner model.Owner

	// trueなら GuestToken をクライアントへ返す
	IssueGuestToken bool
	GuestToken      string
	ExpiresAt       time.Time
}

// IdentityResolver はリクエストのカート所有者を決める。カートには触らない
type IdentityResolver struct {
	codec GuestTokenCodec
	ids   IDGenerator
	clock Clock
}

func NewIdentityResolver(codec GuestTokenCodec, ids IDGenerator, clock Clock) *IdentityResolver {
	if clock == nil {
		clock = systemClock{}
	}
	return &IdentityResolver{codec: codec, ids: ids, clock: clock}
}

// Resolve はログイン済みならユーザー、そうでなければゲスト。
// ゲストトークンが無い/壊れている/期限切れなら新しいゲストIDを発行する。
func (r *IdentityResolver) Resolve(in IdentityInput) (Identity, error) {
	if in.UserID > 0 {
		return Identity{Owner: model.UserOwner(in.UserID)}, nil
	}

	now := r.clock.Now()
	if in.GuestToken != "" {
		guestID, err := r.codec.Parse(in.GuestToken, now)
		if err == nil {
			return Identity{Owner: model.GuestOwner(guestID)}, nil
		}
		if !errors.Is(err, ErrInvalidGuestToken) {
			return Identity{}, err
		}
	}

	guestID := r.ids.NewID()
	token, exp, err := r.codec.Mint(guestID, now)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		Owner:           model.GuestOwner(guestID),
		IssueGuestToken: true,
		GuestToken:      token,
		ExpiresAt:       exp,
	}, nil
}

// GuestID はマージ用。トークンが有効な時だけゲストIDを返す
func (r *IdentityResolver) GuestID(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	guestID, err := r.codec.Parse(token, r.clock.Now())
	if err != nil {
		return "", false
	}
	return guestID, true
}
