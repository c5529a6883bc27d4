package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// newActorMiddleware turns the verified token claims into the request's core.Actor.
func newActorMiddleware(validate *validator.Validate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if err = claims.Validate(validate); err != nil {
				return errUnauthorized
			}
			actor, err := claims.Actor()
			if err != nil {
				return errUnauthorized
			}
			ctx.Set(contextActorKey, actor)
			return next(ctx)
		}
	}
}

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() {
			return errHttpForbidden
		}
		return next(ctx)
	}
}
