package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/core/session"
)

type identityApi struct {
	svc      *identity.Service
	sessions *session.Manager
	validate *validator.Validate
}

func registerIdentityAPI(
	g *echo.Group,
	limiter echo.MiddlewareFunc,
	svc *identity.Service,
	sessions *session.Manager,
	validate *validator.Validate,
) {
	api := identityApi{
		svc:      svc,
		sessions: sessions,
		validate: validate,
	}

	g.POST("/login", api.login(identity.RoleStudent), limiter)
	g.POST("/teacher/login", api.login(identity.RoleTeacher), limiter)
}

// Handlers

func (api *identityApi) login(role identity.Role) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data LoginRequest
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to LoginRequest")
		}
		if err := data.Validate(api.validate); err != nil {
			return err
		}

		c := ctx.Request().Context()
		ident, err := api.svc.Authenticate(c, role, data.ExternalID, data.BirthDate)
		if err != nil {
			return err
		}
		sess, err := api.sessions.Create(c, ident.ID, ident.Role)
		if err != nil {
			return errors.Wrap(err, "creating session")
		}

		return ctx.JSON(http.StatusOK, newLoginResponse(sess, ident))
	}
}
