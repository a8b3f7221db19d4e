package goSessionAuth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSessionAuth/mail"
	"github.com/MrEthical07/goSessionAuth/store"
	"github.com/MrEthical07/goSessionAuth/store/memory"
)

const (
	testPassword = "Secret1!"
	desktopUA    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	testEncKey   = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	fail error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) setFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *fakeMailer) count(tmpl mail.Template) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.sent {
		if msg.Template == tmpl {
			n++
		}
	}
	return n
}

// last returns the newest message of tmpl.
func (m *fakeMailer) last(t *testing.T, tmpl mail.Template) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Template == tmpl {
			return m.sent[i]
		}
	}
	t.Fatalf("no %s email sent", tmpl)
	return mail.Message{}
}

func (m *fakeMailer) code(t *testing.T, tmpl mail.Template) string {
	t.Helper()
	code, ok := m.last(t, tmpl).Data["Code"].(string)
	require.True(t, ok, "email has no code")
	return code
}

// linkToken splits {ClientURL}/auth/<action>/{userId}/{token}.
func (m *fakeMailer) linkToken(t *testing.T, tmpl mail.Template) (userID, token string) {
	t.Helper()
	link, ok := m.last(t, tmpl).Data["Link"].(string)
	require.True(t, ok, "email has no link")
	parts := strings.Split(link, "/")
	require.GreaterOrEqual(t, len(parts), 2)
	return parts[len(parts)-2], parts[len(parts)-1]
}

type fakeGoogle struct {
	mu           sync.Mutex
	identity     GoogleIdentity
	tokens       GoogleTokens
	exchangeErr  error
	refreshErr   error
	refreshCalls int
}

func (g *fakeGoogle) Exchange(_ context.Context, code string) (GoogleTokens, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.exchangeErr != nil {
		return GoogleTokens{}, g.exchangeErr
	}
	if code == "" {
		return GoogleTokens{}, errors.New("empty code")
	}
	return g.tokens, nil
}

func (g *fakeGoogle) VerifyIDToken(_ context.Context, idToken string) (GoogleIdentity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idToken != g.tokens.IDToken {
		return GoogleIdentity{}, errors.New("bad id token")
	}
	return g.identity, nil
}

func (g *fakeGoogle) Refresh(_ context.Context, refreshToken string) (GoogleTokens, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refreshCalls++
	if g.refreshErr != nil {
		return GoogleTokens{}, g.refreshErr
	}
	if refreshToken != g.tokens.RefreshToken {
		return GoogleTokens{}, errors.New("unknown refresh token")
	}
	return GoogleTokens{AccessToken: "renewed-access", IDToken: g.tokens.IDToken, Expiry: time.Now().Add(time.Hour)}, nil
}

type testEnv struct {
	engine *Engine
	store  *memory.Store
	mailer *fakeMailer
	clock  *testClock
	google *fakeGoogle
	audit  *ChannelSink
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-refresh-secret-0123456789")
	cfg.Password.BcryptCost = 4
	cfg.Security.EncryptionKey = testEncKey
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{
		store:  memory.New(),
		mailer: &fakeMailer{},
		clock:  newTestClock(),
		google: &fakeGoogle{},
	}
	if cfg.Audit.Enabled {
		env.audit = NewChannelSink(256)
	}

	b := New().
		WithConfig(cfg).
		WithStore(env.store).
		WithMailer(env.mailer).
		WithGoogleProvider(env.google).
		WithClock(env.clock.Now)
	if env.audit != nil {
		b = b.WithAuditSink(env.audit)
	}

	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func clientCtx(ip, ua string) context.Context {
	return WithUserAgent(WithClientIP(context.Background(), ip), ua)
}

func desktopCtx() context.Context { return clientCtx("203.0.113.10", desktopUA) }

// verifiedUser registers email and confirms it through the emailed link.
func (env *testEnv) verifiedUser(t *testing.T, email string) *store.User {
	t.Helper()
	ctx := desktopCtx()

	res, err := env.engine.Register(ctx, RegisterInput{Email: email, Password: testPassword})
	require.NoError(t, err)
	userID, token := env.mailer.linkToken(t, mail.TemplateVerifyEmail)
	require.Equal(t, res.ID, userID)
	require.NoError(t, env.engine.VerifyEmail(ctx, userID, token))

	return env.user(t, userID)
}

func (env *testEnv) user(t *testing.T, id string) *store.User {
	t.Helper()
	u, err := env.store.Users().FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (env *testEnv) sessionCount(t *testing.T, userID string) int {
	t.Helper()
	list, err := env.store.Sessions().ListByUser(context.Background(), userID)
	require.NoError(t, err)
	return len(list)
}

func (env *testEnv) login(t *testing.T, ctx context.Context, email string) *AuthResult {
	t.Helper()
	res, err := env.engine.Login(ctx, LoginInput{Email: email, Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, OutcomeLogin, res.Outcome)
	require.NotNil(t, res.Auth)
	return res.Auth
}
