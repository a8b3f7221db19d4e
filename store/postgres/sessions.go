package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/MrEthical07/goSessionAuth/store"
)

type sessions struct {
	db *gorm.DB
}

func (r sessions) Create(ctx context.Context, session *store.Session) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("RefreshToken").Create(session).Error; err != nil {
			return err
		}
		session.RefreshToken.SessionID = session.ID
		return tx.Create(&session.RefreshToken).Error
	})
	return mapError(err)
}

func (r sessions) FindByID(ctx context.Context, id string) (*store.Session, error) {
	return r.findByID(r.db.WithContext(ctx), id)
}

func (r sessions) findByID(db *gorm.DB, id string) (*store.Session, error) {
	var s store.Session
	if err := db.Preload("RefreshToken").First(&s, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

func (r sessions) FindByTokenHash(ctx context.Context, tokenHash string) (*store.Session, error) {
	db := r.db.WithContext(ctx)

	var rt store.RefreshToken
	if err := db.First(&rt, "token_hash = ?", tokenHash).Error; err != nil {
		return nil, mapError(err)
	}
	return r.findByID(db, rt.SessionID)
}

func (r sessions) FindByFingerprint(ctx context.Context, userID, ip, userAgent string) (*store.Session, error) {
	var s store.Session
	err := r.db.WithContext(ctx).
		Preload("RefreshToken").
		Where("user_id = ? AND ip_address = ? AND user_agent = ?", userID, ip, userAgent).
		First(&s).Error
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

func (r sessions) FindLatestByUser(ctx context.Context, userID string) (*store.Session, error) {
	var s store.Session
	err := r.db.WithContext(ctx).
		Preload("RefreshToken").
		Where("user_id = ?", userID).
		Order("last_used DESC").
		First(&s).Error
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

func (r sessions) ListByUser(ctx context.Context, userID string) ([]store.Session, error) {
	var out []store.Session
	err := r.db.WithContext(ctx).
		Preload("RefreshToken").
		Where("user_id = ?", userID).
		Order("last_used DESC").
		Find(&out).Error
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// Update rewrites the refresh token first so that a stale ExpectedTokenHash
// aborts the transaction before the session row is touched.
func (r sessions) Update(ctx context.Context, u store.SessionUpdate) (*store.Session, error) {
	var out *store.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&store.RefreshToken{}).Where("session_id = ?", u.SessionID)
		if u.ExpectedTokenHash != "" {
			q = q.Where("token_hash = ?", u.ExpectedTokenHash)
		}
		res := q.Updates(map[string]any{
			"token_hash": u.TokenHash,
			"expires_at": u.TokenExpiresAt,
			"updated_at": u.LastUsed,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}

		res = tx.Model(&store.Session{}).Where("id = ?", u.SessionID).Updates(map[string]any{
			"ip_address":  u.IPAddress,
			"user_agent":  u.UserAgent,
			"device_type": u.DeviceType,
			"device_name": u.DeviceName,
			"browser":     u.Browser,
			"os":          u.OS,
			"last_used":   u.LastUsed,
		})
		if res.Error != nil {
			return res.Error
		}

		s, err := r.findByID(tx, u.SessionID)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (r sessions) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&store.Session{}, "id = ?", id)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r sessions) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&store.Session{}, "user_id = ?", userID)
	if res.Error != nil {
		return 0, mapError(res.Error)
	}
	return res.RowsAffected, nil
}
