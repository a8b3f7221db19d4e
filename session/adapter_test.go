package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSessionAuth/device"
	"github.com/MrEthical07/goSessionAuth/store"
	"github.com/MrEthical07/goSessionAuth/store/memory"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type issuer struct {
	clock  *fixedClock
	mu     sync.Mutex
	tokens []string
}

func (i *issuer) issue(string) (string, time.Time, error) {
	tok := uuid.NewString()
	i.mu.Lock()
	i.tokens = append(i.tokens, tok)
	i.mu.Unlock()
	return tok, i.clock.Now().Add(7 * 24 * time.Hour), nil
}

func (i *issuer) last() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tokens[len(i.tokens)-1]
}

func newAdapter(t *testing.T) (*Adapter, *issuer, *fixedClock) {
	t.Helper()
	c := &fixedClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	return New(memory.New().Sessions(), Config{Now: c.Now}), &issuer{clock: c}, c
}

var laptop = Client{
	IP:        "10.0.0.1",
	UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/120.0",
	Device:    device.Info{Type: device.TypeDesktop, Browser: "Firefox", OS: "Linux"},
}

func TestFindOrCreateReusesFingerprint(t *testing.T) {
	ctx := context.Background()
	a, iss, c := newAdapter(t)

	first, err := a.FindOrCreate(ctx, FindOrCreateInput{UserID: "u1", Client: laptop}, iss.issue)
	require.NoError(t, err)
	firstToken := iss.last()

	c.Advance(time.Minute)
	second, err := a.FindOrCreate(ctx, FindOrCreateInput{UserID: "u1", Client: laptop}, iss.issue)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.LastUsed.After(first.LastUsed))
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt, "reuse does not extend the session")

	list, err := a.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got, err := a.FindByRefreshToken(ctx, firstToken)
	require.NoError(t, err)
	assert.Nil(t, got, "old refresh token no longer resolves")
}

func TestFindOrCreatePrefersPresentedToken(t *testing.T) {
	ctx := context.Background()
	a, iss, _ := newAdapter(t)

	orig, err := a.FindOrCreate(ctx, FindOrCreateInput{UserID: "u1", Client: laptop}, iss.issue)
	require.NoError(t, err)

	moved := laptop
	moved.IP = "10.0.0.2"
	sess, err := a.FindOrCreate(ctx, FindOrCreateInput{
		UserID:                "u1",
		Client:                moved,
		PresentedRefreshToken: iss.last(),
	}, iss.issue)
	require.NoError(t, err)
	assert.Equal(t, orig.ID, sess.ID)
	assert.Equal(t, "10.0.0.2", sess.IPAddress)
}

func TestFindOrCreateIgnoresForeignPresentedToken(t *testing.T) {
	ctx := context.Background()
	a, iss, _ := newAdapter(t)

	other, err := a.FindOrCreate(ctx, FindOrCreateInput{UserID: "u2", Client: laptop}, iss.issue)
	require.NoError(t, err)

	mine, err := a.FindOrCreate(ctx, FindOrCreateInput{
		UserID:                "u1",
		Client:                laptop,
		PresentedRefreshToken: iss.last(),
	}, iss.issue)
	require.NoError(t, err)
	assert.NotEqual(t, other.ID, mine.ID)
	assert.Equal(t, "u1", mine.UserID)
}

func TestFindOrCreateReplacesExpiredSession(t *testing.T) {
	ctx := context.Background()
	a, iss, c := newAdapter(t)

	old, err := a.FindOrCreate(ctx, FindOrCreateInput{UserID: "u1", Client: laptop}, iss.issue)
	require.NoError(t, err)

	c.Advance(DefaultTTL)
	fresh, err := a.FindOrCreate(ctx, FindOrCreateInput{UserID: "u1", Client: laptop}, iss.issue)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)

	gone, err := a.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestConcurrentFindOrCreateConverges(t *testing.T) {
	ctx := context.Background()
	a, iss, _ := newAdapter(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.FindOrCreate(ctx, FindOrCreateInput{UserID: "u1", Client: laptop}, iss.issue)
			if err != nil && err != ErrContention {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := a.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRotate(t *testing.T) {
	ctx := context.Background()
	a, iss, c := newAdapter(t)

	sess, err := a.FindOrCreate(ctx, FindOrCreateInput{UserID: "u1", Client: laptop}, iss.issue)
	require.NoError(t, err)
	presented := iss.last()

	c.Advance(time.Hour)
	rotated, err := a.Rotate(ctx, sess, presented, laptop, iss.issue)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken.TokenHash, rotated.RefreshToken.TokenHash)
	assert.True(t, rotated.RefreshToken.ExpiresAt.After(sess.RefreshToken.ExpiresAt))

	_, err = a.Rotate(ctx, sess, presented, laptop, iss.issue)
	assert.ErrorIs(t, err, ErrStaleToken, "a rotated token cannot rotate again")

	found, err := a.FindByRefreshToken(ctx, iss.last())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sess.ID, found.ID)
}

// conflictingSessions fails the next n updates with store.ErrConflict.
type conflictingSessions struct {
	store.SessionRepository
	mu sync.Mutex
	n  int
}

func (r *conflictingSessions) Update(ctx context.Context, upd store.SessionUpdate) (*store.Session, error) {
	r.mu.Lock()
	if r.n > 0 {
		r.n--
		r.mu.Unlock()
		return nil, store.ErrConflict
	}
	r.mu.Unlock()
	return r.SessionRepository.Update(ctx, upd)
}

func TestRotateRetriesConflictOnce(t *testing.T) {
	ctx := context.Background()
	c := &fixedClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := &conflictingSessions{SessionRepository: memory.New().Sessions()}
	a := New(repo, Config{Now: c.Now})
	iss := &issuer{clock: c}

	sess, err := a.FindOrCreate(ctx, FindOrCreateInput{UserID: "u1", Client: laptop}, iss.issue)
	require.NoError(t, err)
	presented := iss.last()

	repo.n = 1
	rotated, err := a.Rotate(ctx, sess, presented, laptop, iss.issue)
	require.NoError(t, err)
	assert.Len(t, iss.tokens, 3, "the retry mints a fresh token")

	found, err := a.FindByRefreshToken(ctx, iss.last())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, rotated.ID, found.ID)

	repo.n = 2
	_, err = a.Rotate(ctx, rotated, iss.last(), laptop, iss.issue)
	assert.ErrorIs(t, err, store.ErrConflict, "a second conflict is returned")
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	a, iss, _ := newAdapter(t)

	phone := Client{IP: "10.0.0.9", UserAgent: "okhttp/4.9.0", Device: device.Info{Type: device.TypeMobile}}

	s1, err := a.FindOrCreate(ctx, FindOrCreateInput{UserID: "u1", Client: laptop}, iss.issue)
	require.NoError(t, err)
	s2, err := a.FindOrCreate(ctx, FindOrCreateInput{UserID: "u1", Client: phone}, iss.issue)
	require.NoError(t, err)

	require.NoError(t, a.Delete(ctx, s1.ID))
	require.NoError(t, a.Delete(ctx, s1.ID), "delete is idempotent")

	kept, err := a.Get(ctx, s2.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	n, err := a.DeleteAllForUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	latest, err := a.LatestForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestFindByRefreshTokenEmpty(t *testing.T) {
	a, _, _ := newAdapter(t)
	s, err := a.FindByRefreshToken(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, s)
}

var _ store.SessionRepository = memory.New().Sessions()
