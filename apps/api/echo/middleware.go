package echoapi

import (
	"github.com/labstack/echo/v4"
)

// roleMiddleware only lets through users with one of `roles`.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return err
			}
			if contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// instructorMiddleware restricts certificate authoring to instructors and admins.
func instructorMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(RoleInstructor, RoleAdmin)
}
