package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MrEthical07/goSessionAuth/store"
)

type twoFactorTokens struct {
	db *gorm.DB
}

func (r twoFactorTokens) Upsert(ctx context.Context, token *store.TwoFactorToken) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"id", "code", "action", "attempts", "expires_at", "created_at"}),
	}).Create(token).Error
	return mapError(err)
}

func (r twoFactorTokens) Find(ctx context.Context, userID string, typ store.TwoFactorType) (*store.TwoFactorToken, error) {
	var tok store.TwoFactorToken
	err := r.db.WithContext(ctx).First(&tok, "user_id = ? AND type = ?", userID, typ).Error
	if err != nil {
		return nil, mapError(err)
	}
	return &tok, nil
}

func (r twoFactorTokens) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var tok store.TwoFactorToken
	res := r.db.WithContext(ctx).Model(&tok).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "attempts"}}}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return 0, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, store.ErrNotFound
	}
	return tok.Attempts, nil
}

func (r twoFactorTokens) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&store.TwoFactorToken{}, "id = ?", id)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r twoFactorTokens) DeleteByUser(ctx context.Context, userID string, typ store.TwoFactorType) error {
	err := r.db.WithContext(ctx).Delete(&store.TwoFactorToken{}, "user_id = ? AND type = ?", userID, typ).Error
	return mapError(err)
}

type oneTimeTokens struct {
	db    *gorm.DB
	table string
}

func (r oneTimeTokens) Upsert(ctx context.Context, token *store.OneTimeToken) error {
	err := r.db.WithContext(ctx).Table(r.table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"id", "token_hash", "expires_at", "created_at"}),
	}).Create(token).Error
	return mapError(err)
}

func (r oneTimeTokens) FindByUser(ctx context.Context, userID string) (*store.OneTimeToken, error) {
	var tok store.OneTimeToken
	if err := r.db.WithContext(ctx).Table(r.table).First(&tok, "user_id = ?", userID).Error; err != nil {
		return nil, mapError(err)
	}
	return &tok, nil
}

func (r oneTimeTokens) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Table(r.table).Delete(&store.OneTimeToken{}, "id = ?", id)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
