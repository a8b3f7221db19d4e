// Package memory implements store.Store in process memory. It enforces the
// same uniqueness rules as the PostgreSQL schema and is safe for concurrent
// use.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MrEthical07/goSessionAuth/store"
)

// Store is an in-memory store.Store.
type Store struct {
	mu sync.RWMutex

	users       map[string]store.User
	sessions    map[string]store.Session
	twoFactor   map[string]store.TwoFactorToken
	verifyMail  map[string]store.OneTimeToken
	resetPasswd map[string]store.OneTimeToken
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:       make(map[string]store.User),
		sessions:    make(map[string]store.Session),
		twoFactor:   make(map[string]store.TwoFactorToken),
		verifyMail:  make(map[string]store.OneTimeToken),
		resetPasswd: make(map[string]store.OneTimeToken),
	}
}

func (s *Store) Users() store.UserRepository                    { return users{s} }
func (s *Store) Sessions() store.SessionRepository              { return sessions{s} }
func (s *Store) TwoFactorTokens() store.TwoFactorTokenRepository { return twoFactorTokens{s} }
func (s *Store) EmailVerifications() store.OneTimeTokenRepository {
	return oneTimeTokens{s: s, records: func() map[string]store.OneTimeToken { return s.verifyMail }}
}
func (s *Store) PasswordResets() store.OneTimeTokenRepository {
	return oneTimeTokens{s: s, records: func() map[string]store.OneTimeToken { return s.resetPasswd }}
}

type users struct{ s *Store }

func (r users) Create(_ context.Context, user *store.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; ok {
		return store.ErrConflict
	}
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return store.ErrConflict
		}
		if user.GoogleID != nil && u.GoogleID != nil && *u.GoogleID == *user.GoogleID {
			return store.ErrConflict
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r users) FindByID(_ context.Context, id string) (*store.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (r users) FindByEmail(_ context.Context, email string) (*store.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r users) Update(_ context.Context, user *store.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; !ok {
		return store.ErrNotFound
	}
	for id, u := range r.s.users {
		if id == user.ID {
			continue
		}
		if u.Email == user.Email {
			return store.ErrConflict
		}
		if user.GoogleID != nil && u.GoogleID != nil && *u.GoogleID == *user.GoogleID {
			return store.ErrConflict
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

type sessions struct{ s *Store }

func (r sessions) Create(_ context.Context, session *store.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[session.ID]; ok {
		return store.ErrConflict
	}
	for _, existing := range r.s.sessions {
		if sameFingerprint(existing, session.UserID, session.IPAddress, session.UserAgent) {
			return store.ErrConflict
		}
		if existing.RefreshToken.TokenHash == session.RefreshToken.TokenHash {
			return store.ErrConflict
		}
	}
	r.s.sessions[session.ID] = *session
	return nil
}

func (r sessions) FindByID(_ context.Context, id string) (*store.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (r sessions) FindByTokenHash(_ context.Context, tokenHash string) (*store.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, sess := range r.s.sessions {
		if sess.RefreshToken.TokenHash == tokenHash {
			out := sess
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r sessions) FindByFingerprint(_ context.Context, userID, ip, userAgent string) (*store.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, sess := range r.s.sessions {
		if sameFingerprint(sess, userID, ip, userAgent) {
			out := sess
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r sessions) FindLatestByUser(ctx context.Context, userID string) (*store.Session, error) {
	list, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return &list[0], nil
}

// ListByUser returns sessions ordered by LastUsed, newest first.
func (r sessions) ListByUser(_ context.Context, userID string) ([]store.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]store.Session, 0)
	for _, sess := range r.s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUsed.After(out[j].LastUsed)
	})
	return out, nil
}

func (r sessions) Update(_ context.Context, u store.SessionUpdate) (*store.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[u.SessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.ExpectedTokenHash != "" && sess.RefreshToken.TokenHash != u.ExpectedTokenHash {
		return nil, store.ErrNotFound
	}
	for id, other := range r.s.sessions {
		if id == sess.ID {
			continue
		}
		if sameFingerprint(other, sess.UserID, u.IPAddress, u.UserAgent) || other.RefreshToken.TokenHash == u.TokenHash {
			return nil, store.ErrConflict
		}
	}

	sess.IPAddress = u.IPAddress
	sess.UserAgent = u.UserAgent
	sess.DeviceType = u.DeviceType
	sess.DeviceName = u.DeviceName
	sess.Browser = u.Browser
	sess.OS = u.OS
	sess.LastUsed = u.LastUsed
	sess.RefreshToken.TokenHash = u.TokenHash
	sess.RefreshToken.ExpiresAt = u.TokenExpiresAt
	sess.RefreshToken.UpdatedAt = u.LastUsed
	r.s.sessions[sess.ID] = sess

	return &sess, nil
}

func (r sessions) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.sessions, id)
	return nil
}

func (r sessions) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

func sameFingerprint(sess store.Session, userID, ip, userAgent string) bool {
	return sess.UserID == userID && sess.IPAddress == ip && sess.UserAgent == userAgent
}

type twoFactorTokens struct{ s *Store }

func twoFactorKey(userID string, typ store.TwoFactorType) string {
	return userID + "|" + string(typ)
}

func (r twoFactorTokens) Upsert(_ context.Context, token *store.TwoFactorToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.twoFactor[twoFactorKey(token.UserID, token.Type)] = *token
	return nil
}

func (r twoFactorTokens) Find(_ context.Context, userID string, typ store.TwoFactorType) (*store.TwoFactorToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tok, ok := r.s.twoFactor[twoFactorKey(userID, typ)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &tok, nil
}

func (r twoFactorTokens) IncrementAttempts(_ context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for key, tok := range r.s.twoFactor {
		if tok.ID == id {
			tok.Attempts++
			r.s.twoFactor[key] = tok
			return tok.Attempts, nil
		}
	}
	return 0, store.ErrNotFound
}

func (r twoFactorTokens) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for key, tok := range r.s.twoFactor {
		if tok.ID == id {
			delete(r.s.twoFactor, key)
			return nil
		}
	}
	return store.ErrNotFound
}

func (r twoFactorTokens) DeleteByUser(_ context.Context, userID string, typ store.TwoFactorType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.twoFactor, twoFactorKey(userID, typ))
	return nil
}

type oneTimeTokens struct {
	s       *Store
	records func() map[string]store.OneTimeToken
}

func (r oneTimeTokens) Upsert(_ context.Context, token *store.OneTimeToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.records()[token.UserID] = *token
	return nil
}

func (r oneTimeTokens) FindByUser(_ context.Context, userID string) (*store.OneTimeToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tok, ok := r.records()[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &tok, nil
}

func (r oneTimeTokens) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	records := r.records()
	for userID, tok := range records {
		if tok.ID == id {
			delete(records, userID)
			return nil
		}
	}
	return store.ErrNotFound
}
