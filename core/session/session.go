// Package session issues and verifies opaque bearer tokens.
//
// Expired rows are purged every time a session is created or verified;
// there is no background sweep and no revocation, expiry is the only way a session ends.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/identity"
)

const tokenBytes = 32

var nowFunc = time.Now // mockable

type (
	Session struct {
		Token     string        `json:"token" db:"token"`
		UserID    int64         `json:"user_id" db:"user_id"`
		Role      identity.Role `json:"role" db:"role"`
		CreatedAt int64         `json:"-" db:"created_at"` // unix seconds
		ExpiresAt int64         `json:"expires_at" db:"expires_at"`
	}

	Repository interface {
		CreateSession(ctx context.Context, s Session, exec ...core.DBExecutor) error
		// GetActiveSession returns the session only if it expires after now.
		GetActiveSession(ctx context.Context, token string, now int64, exec ...core.DBExecutor) (Session, error)
		// DeleteExpiredSessions removes every session whose expiry is not after now.
		DeleteExpiredSessions(ctx context.Context, now int64, exec ...core.DBExecutor) (int64, error)
	}

	Manager struct {
		repo Repository
		ttl  time.Duration
		log  core.Logger
	}
)

// Identity is a partial identity of the session owner, enough for logging.
func (s Session) Identity() identity.Identity {
	return identity.Identity{ID: s.UserID, Role: s.Role}
}

func (s Session) Expiry() time.Time {
	return time.Unix(s.ExpiresAt, 0).UTC()
}

func NewManager(repo Repository, conf *core.Config, log core.Logger) *Manager {
	ttl := conf.Session.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{repo: repo, ttl: ttl, log: log}
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generating session token")
	}
	return hex.EncodeToString(b), nil
}

func (m *Manager) purge(ctx context.Context, now time.Time) {
	n, err := m.repo.DeleteExpiredSessions(ctx, now.Unix())
	if err != nil {
		m.log.Warn("purging expired sessions", err)
		return
	}
	if n > 0 {
		m.log.Debug("purged expired sessions", map[string]interface{}{"count": n})
	}
}

// Create issues a new token for (userID, role) valid for the configured TTL.
func (m *Manager) Create(ctx context.Context, userID int64, role identity.Role) (Session, error) {
	if !role.Valid() {
		return Session{}, errors.Errorf("unknown role %q", role)
	}
	now := nowFunc().UTC()
	m.purge(ctx, now)

	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		Token:     token,
		UserID:    userID,
		Role:      role,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(m.ttl).Unix(),
	}
	if err = m.repo.CreateSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Verify resolves a token to its session. Unknown and expired tokens are core.ErrUnauthorized.
func (m *Manager) Verify(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, core.ErrUnauthorized
	}
	now := nowFunc().UTC()
	m.purge(ctx, now)

	sess, err := m.repo.GetActiveSession(ctx, token, now.Unix())
	if err != nil {
		if core.IsNotFound(err) {
			return Session{}, core.ErrUnauthorized
		}
		return Session{}, err
	}
	return sess, nil
}
