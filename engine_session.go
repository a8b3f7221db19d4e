package goSessionAuth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/goSessionAuth/jwt"
	"github.com/MrEthical07/goSessionAuth/store"
)

// Authenticate verifies an access token and loads the session it belongs
// to. It has no side effects: an expired token is rejected, never refreshed.
//
// Tokens carrying a session id load exactly that session; older tokens
// without one fall back to the user's most recently used session.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (id *Identity, err error) {
	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}
	}()

	if accessToken == "" {
		return nil, ErrTokenMissing
	}

	claims, err := e.jwt.Verify(accessToken, jwt.TypeAccess)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			e.logger.Debug("access token expired", zap.Error(err))
			return nil, ErrTokenExpired
		}
		e.logger.Warn("access token rejected",
			zap.String("ip", clientIPFromContext(ctx)),
			zap.Error(err),
		)
		return nil, ErrTokenInvalid
	}

	var sess *store.Session
	if claims.SessionID != "" {
		sess, err = e.sessions.Get(ctx, claims.SessionID)
		if sess != nil && sess.UserID != claims.UserID {
			sess = nil
		}
	} else {
		sess, err = e.sessions.LatestForUser(ctx, claims.UserID)
	}
	if err != nil {
		return nil, e.internalError("load session", err, zap.String("user_id", claims.UserID))
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Expired(e.now()) {
		return nil, ErrSessionExpired
	}

	return &Identity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		SessionID: sess.ID,
	}, nil
}

// Logout deletes exactly the given session.
func (e *Engine) Logout(ctx context.Context, id Identity) (err error) {
	ctx, span := e.startSpan(ctx, "Logout", attribute.String("session.id", id.SessionID))
	defer func() { endSpan(span, err) }()

	if err := e.sessions.Delete(ctx, id.SessionID); err != nil {
		return e.internalError("delete session", err, zap.String("session_id", id.SessionID))
	}
	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionDeleted)
	e.emitAudit(ctx, auditEventLogoutSession, true, id.UserID, id.SessionID, nil, nil)
	return nil
}

// LogoutAll deletes every session of userID and reports how many there were.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (n int64, err error) {
	ctx, span := e.startSpan(ctx, "LogoutAll", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	n, err = e.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, e.internalError("delete sessions", err, zap.String("user_id", userID))
	}
	e.metricInc(MetricLogoutAll)
	for i := int64(0); i < n; i++ {
		e.metricInc(MetricSessionDeleted)
	}
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{
			"sessions": strconv.FormatInt(n, 10),
		}
	})
	return n, nil
}

// RevokeSession deletes one of the caller's other sessions. Sessions of
// other users are reported as not found.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) error {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return e.internalError("load session", err, zap.String("session_id", sessionID))
	}
	if sess == nil || sess.UserID != userID {
		return ErrSessionNotOwned
	}
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return e.internalError("delete session", err, zap.String("session_id", sessionID))
	}
	e.metricInc(MetricSessionDeleted)
	e.emitAudit(ctx, auditEventSessionRevoked, true, userID, sessionID, nil, nil)
	return nil
}

// ListSessions returns the caller's live sessions, most recently used first,
// with the current one flagged.
func (e *Engine) ListSessions(ctx context.Context, id Identity) ([]SessionView, error) {
	sessions, err := e.sessions.List(ctx, id.UserID)
	if err != nil {
		return nil, e.internalError("list sessions", err, zap.String("user_id", id.UserID))
	}

	now := e.now()
	views := make([]SessionView, 0, len(sessions))
	for i := range sessions {
		if sessions[i].Expired(now) {
			continue
		}
		v := sessionView(&sessions[i])
		v.Current = sessions[i].ID == id.SessionID
		views = append(views, v)
	}
	return views, nil
}

// Me returns the caller's profile.
func (e *Engine) Me(ctx context.Context, userID string) (*UserView, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	v := userView(user)
	return &v, nil
}

func (e *Engine) loadUser(ctx context.Context, userID string) (*store.User, error) {
	user, err := e.users.FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, e.internalError("load user", err, zap.String("user_id", userID))
	}
	return user, nil
}
