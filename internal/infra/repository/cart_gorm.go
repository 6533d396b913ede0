package repository

import (
	"cartengine/internal/domain/model"
	repo "cartengine/internal/repository"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// オーナーのACTIVEカートに絞る
func activeCartOf(owner model.Owner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner.IsUser() {
			return db.Where("user_id = ? AND status = ?", owner.UserID, model.CartStatusActive)
		}
		return db.Where("guest_id = ? AND status = ?", owner.GuestID, model.CartStatusActive)
	}
}

// オーナーのACTIVEカートを取得し、無ければ作成
func (r *CartGormRepository) GetOrCreateActive(ctx context.Context, owner model.Owner) (model.Cart, error) {
	if !owner.Valid() {
		return model.Cart{}, errors.New("invalid owner")
	}

	cart, err := r.FindActiveForUpdate(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, err
	}

	// 無ければ作る。Tx内ならSAVEPOINTになるので、競合してもそこだけ戻せる
	newCart := model.NewActiveCart(owner, time.Now())
	createErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&newCart).Error
	})
	if createErr == nil {
		return newCart, nil
	}
	if !isUniqueViolation(createErr) {
		return model.Cart{}, createErr
	}

	// 同時に誰かが作った → 読み直す
	return r.FindActiveForUpdate(ctx, owner)
}

// ACTIVEカートを行ロック付きで取得
func (r *CartGormRepository) FindActiveForUpdate(ctx context.Context, owner model.Owner) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(activeCartOf(owner)).
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// carts.statusを from -> to に更新
func (r *CartGormRepository) TransitionStatus(ctx context.Context, cartID int64, from, to model.CartStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ? AND status = ?", cartID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrStaleState
	}
	return nil
}

func (r *CartGormRepository) Touch(ctx context.Context, cartID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", time.Now())

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
