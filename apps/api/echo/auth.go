package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/core/session"
)

const contextSessionKey = "session"

// sessionLookupError carries a failure unrelated to the token itself (e.g. the database is down).
type sessionLookupError struct {
	err error
}

func (e *sessionLookupError) Error() string {
	return e.err.Error()
}

// newSessionMiddleware authenticates "Authorization: Bearer <token>" requests against the session store.
func newSessionMiddleware(mgr *session.Manager) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(token string, ctx echo.Context) (bool, error) {
			sess, err := mgr.Verify(ctx.Request().Context(), token)
			if err != nil {
				if errors.Cause(err) == core.ErrUnauthorized {
					return false, nil
				}
				return false, &sessionLookupError{err: err}
			}
			ctx.Set(contextSessionKey, sess)
			return true, nil
		},
		ErrorHandler: func(err error, ctx echo.Context) error {
			var lookupErr *sessionLookupError
			if errors.As(err, &lookupErr) {
				return errors.Wrap(lookupErr.err, "verifying session")
			}
			return errUnauthorized
		},
	})
}

func getContextSession(ctx echo.Context) (session.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(session.Session); ok {
		return sess, nil
	}
	return session.Session{}, errUnauthorized
}

// roleMiddleware must run after the session middleware.
func roleMiddleware(role identity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getContextSession(ctx)
			if err != nil {
				return err
			}
			if sess.Role != role {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
