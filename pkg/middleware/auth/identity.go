package middleware

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var ErrUnauthorized = errors.New("unauthorized")

type Identity struct {
	UserID uuid.UUID
	Role   string
	Email  string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// IdentityFrom reads what RequireAuth stored on the context.
func IdentityFrom(c echo.Context) (Identity, error) {
	s, ok := c.Get(UserIDKey).(string)
	if !ok || s == "" {
		return Identity{}, ErrUnauthorized
	}
	userID, err := uuid.Parse(s)
	if err != nil {
		return Identity{}, ErrUnauthorized
	}
	role, _ := c.Get(RoleKey).(string)
	email, _ := c.Get(EmailKey).(string)
	return Identity{UserID: userID, Role: role, Email: email}, nil
}

// AdminOnly expects RequireAuth to have run earlier in the chain.
func AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if role, _ := c.Get(RoleKey).(string); role != RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	}
}
