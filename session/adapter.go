package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goSessionAuth/device"
	"github.com/MrEthical07/goSessionAuth/internal"
	"github.com/MrEthical07/goSessionAuth/store"
)

// DefaultTTL is the absolute lifetime of a session.
const DefaultTTL = 30 * 24 * time.Hour

const defaultMaxAttempts = 3

var (
	// ErrContention is returned when concurrent writers kept invalidating
	// the session being updated.
	ErrContention = errors.New("session: too much contention")
	// ErrStaleToken is returned by Rotate when the presented refresh token
	// no longer owns the session.
	ErrStaleToken = errors.New("session: refresh token already rotated")
)

// IssueFunc mints a refresh token for sessionID. It is called once per
// write attempt.
type IssueFunc func(sessionID string) (token string, expiresAt time.Time, err error)

// Config tunes the adapter.
type Config struct {
	// TTL is the absolute session lifetime; rotation does not extend it.
	TTL         time.Duration
	MaxAttempts int
	Now         func() time.Time
	// OnWrite, if set, is told whether FindOrCreate created a session or
	// reused one.
	OnWrite func(created bool)
}

// Client identifies the device a session belongs to.
type Client struct {
	IP        string
	UserAgent string
	Device    device.Info
}

// FindOrCreateInput describes a login-like request.
type FindOrCreateInput struct {
	UserID string
	Client Client
	// PresentedRefreshToken is the raw refresh token the caller already
	// holds, if any.
	PresentedRefreshToken string
}

// Adapter implements session find-or-create, rotation and deletion on top
// of a [store.SessionRepository].
type Adapter struct {
	repo store.SessionRepository
	cfg  Config
}

// New returns an Adapter with defaults applied to zero config values.
func New(repo store.SessionRepository, cfg Config) *Adapter {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Adapter{repo: repo, cfg: cfg}
}

// FindOrCreate reuses the caller's session or creates one, installing a new
// refresh token minted by issue.
func (a *Adapter) FindOrCreate(ctx context.Context, in FindOrCreateInput, issue IssueFunc) (*store.Session, error) {
	if in.UserID == "" {
		return nil, errors.New("session: user id is required")
	}

	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		existing, err := a.lookup(ctx, in)
		if err != nil {
			return nil, err
		}

		var sess *store.Session
		if existing != nil {
			sess, err = a.update(ctx, existing, in.Client, issue)
		} else {
			sess, err = a.create(ctx, in.UserID, in.Client, issue)
		}
		if err == nil {
			if a.cfg.OnWrite != nil {
				a.cfg.OnWrite(existing == nil)
			}
			return sess, nil
		}
		// Lost a race with another writer for the same device; look again.
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
			continue
		}
		return nil, err
	}

	return nil, ErrContention
}

func (a *Adapter) lookup(ctx context.Context, in FindOrCreateInput) (*store.Session, error) {
	now := a.cfg.Now()

	var presented *store.Session
	if in.PresentedRefreshToken != "" {
		s, err := a.live(ctx, now, func() (*store.Session, error) {
			return a.repo.FindByTokenHash(ctx, internal.HashToken(in.PresentedRefreshToken))
		})
		if err != nil {
			return nil, err
		}
		if s != nil && s.UserID == in.UserID {
			presented = s
		}
	}

	if presented != nil && sameDevice(presented, in.Client) {
		return presented, nil
	}

	byDevice, err := a.live(ctx, now, func() (*store.Session, error) {
		return a.repo.FindByFingerprint(ctx, in.UserID, in.Client.IP, in.Client.UserAgent)
	})
	if err != nil {
		return nil, err
	}
	if byDevice != nil {
		return byDevice, nil
	}

	// The presented session moves to the new fingerprint.
	return presented, nil
}

// live runs find and drops expired results, deleting them as it goes.
func (a *Adapter) live(ctx context.Context, now time.Time, find func() (*store.Session, error)) (*store.Session, error) {
	s, err := find()
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.Expired(now) {
		if err := a.Delete(ctx, s.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s, nil
}

func (a *Adapter) update(ctx context.Context, s *store.Session, c Client, issue IssueFunc) (*store.Session, error) {
	token, expiresAt, err := issue(s.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return a.repo.Update(ctx, sessionUpdate(s, c, a.cfg.Now(), token, expiresAt))
}

func (a *Adapter) create(ctx context.Context, userID string, c Client, issue IssueFunc) (*store.Session, error) {
	id := uuid.NewString()
	token, expiresAt, err := issue(id)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	now := a.cfg.Now()
	s := &store.Session{
		ID:         id,
		UserID:     userID,
		IPAddress:  c.IP,
		UserAgent:  c.UserAgent,
		DeviceType: string(c.Device.Type),
		DeviceName: c.Device.Name,
		Browser:    c.Device.Browser,
		OS:         c.Device.OS,
		LastUsed:   now,
		ExpiresAt:  now.Add(a.cfg.TTL),
		CreatedAt:  now,
		RefreshToken: store.RefreshToken{
			ID:        uuid.NewString(),
			SessionID: id,
			TokenHash: internal.HashToken(token),
			ExpiresAt: expiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if err := a.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// FindByRefreshToken returns the session owning the raw refresh token, or
// (nil, nil) when none does. Expired sessions are returned as-is so the
// caller can decide how to recover.
func (a *Adapter) FindByRefreshToken(ctx context.Context, token string) (*store.Session, error) {
	if token == "" {
		return nil, nil
	}
	return noneIfMissing(a.repo.FindByTokenHash(ctx, internal.HashToken(token)))
}

// Rotate replaces the refresh token of s, provided s still owns presented.
// It returns ErrStaleToken when another request rotated first. A conflicting
// write is retried once with a freshly issued token.
func (a *Adapter) Rotate(ctx context.Context, s *store.Session, presented string, c Client, issue IssueFunc) (*store.Session, error) {
	expected := internal.HashToken(presented)

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var (
			token     string
			expiresAt time.Time
			updated   *store.Session
		)
		token, expiresAt, err = issue(s.ID)
		if err != nil {
			return nil, fmt.Errorf("issue refresh token: %w", err)
		}

		upd := sessionUpdate(s, c, a.cfg.Now(), token, expiresAt)
		upd.ExpectedTokenHash = expected

		updated, err = a.repo.Update(ctx, upd)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrStaleToken
		case !errors.Is(err, store.ErrConflict):
			return nil, err
		}
	}
	return nil, err
}

// Get returns the session by id, or (nil, nil).
func (a *Adapter) Get(ctx context.Context, id string) (*store.Session, error) {
	return noneIfMissing(a.repo.FindByID(ctx, id))
}

// LatestForUser returns the most recently used session of userID, or (nil, nil).
func (a *Adapter) LatestForUser(ctx context.Context, userID string) (*store.Session, error) {
	return noneIfMissing(a.repo.FindLatestByUser(ctx, userID))
}

// List returns every session of userID, most recently used first.
func (a *Adapter) List(ctx context.Context, userID string) ([]store.Session, error) {
	return a.repo.ListByUser(ctx, userID)
}

// Delete removes the session and its refresh token. Deleting a missing
// session is not an error.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	err := a.repo.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// DeleteAllForUser removes every session of userID and reports how many
// were deleted.
func (a *Adapter) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	return a.repo.DeleteByUser(ctx, userID)
}

func sessionUpdate(s *store.Session, c Client, now time.Time, token string, expiresAt time.Time) store.SessionUpdate {
	return store.SessionUpdate{
		SessionID:         s.ID,
		ExpectedTokenHash: s.RefreshToken.TokenHash,
		IPAddress:         c.IP,
		UserAgent:         c.UserAgent,
		DeviceType:        string(c.Device.Type),
		DeviceName:        c.Device.Name,
		Browser:           c.Device.Browser,
		OS:                c.Device.OS,
		LastUsed:          now,
		TokenHash:         internal.HashToken(token),
		TokenExpiresAt:    expiresAt,
	}
}

func sameDevice(s *store.Session, c Client) bool {
	return s.IPAddress == c.IP && s.UserAgent == c.UserAgent
}

func noneIfMissing(s *store.Session, err error) (*store.Session, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return s, err
}
