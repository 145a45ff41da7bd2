package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/session"
)

type sessionRepository struct {
	repository
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(exec core.DBExecutor) *sessionRepository {
	return &sessionRepository{repository{exec: exec}}
}

func (repo sessionRepository) CreateSession(ctx context.Context, s session.Session, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind("INSERT INTO sessions (token, user_id, role, created_at, expires_at) VALUES (?, ?, ?, ?, ?)")
	if _, err := exe.ExecContext(ctx, q, s.Token, s.UserID, string(s.Role), s.CreatedAt, s.ExpiresAt); err != nil {
		return errors.Wrap(err, "inserting session")
	}
	return nil
}

func (repo sessionRepository) GetActiveSession(ctx context.Context, token string, now int64, exec ...core.DBExecutor) (session.Session, error) {
	var s session.Session
	exe := repo.getExec(exec)
	q := exe.Rebind("SELECT token, user_id, role, created_at, expires_at FROM sessions WHERE token = ? AND expires_at > ?")
	if err := exe.GetContext(ctx, &s, q, token, now); err != nil {
		return session.Session{}, trapNoRowsErr(err, "session", "finding session")
	}
	return s, nil
}

func (repo sessionRepository) DeleteExpiredSessions(ctx context.Context, now int64, exec ...core.DBExecutor) (int64, error) {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM sessions WHERE expires_at <= ?"), now)
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired sessions")
	}
	return n, nil
}
