package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/MrEthical07/goSessionAuth/store"
)

type users struct {
	db *gorm.DB
}

func (r users) Create(ctx context.Context, user *store.User) error {
	return mapError(r.db.WithContext(ctx).Create(user).Error)
}

func (r users) FindByID(ctx context.Context, id string) (*store.User, error) {
	var u store.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r users) FindByEmail(ctx context.Context, email string) (*store.User, error) {
	var u store.User
	if err := r.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r users) Update(ctx context.Context, user *store.User) error {
	res := r.db.WithContext(ctx).
		Model(&store.User{}).
		Where("id = ?", user.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(user)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
