package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/ebee_shop/pkg/authclient"
	"github.com/Skotchmaster/ebee_shop/pkg/cookies"
	"github.com/Skotchmaster/ebee_shop/pkg/tokens"
)

// Context keys set for authenticated requests.
const (
	UserIDKey = "user_id"
	RoleKey   = "role"
	EmailKey  = "email"
)

const RoleAdmin = "admin"

type AutoRefreshMiddleware struct {
	JWTSecret []byte
	// AuthClient is optional. Without it an expired access token is rejected.
	AuthClient *authclient.Client
}

func NewAutoRefreshMiddleware(secret []byte, authClient *authclient.Client) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret:  secret,
		AuthClient: authClient,
	}
}

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		access, fromCookie := accessToken(c)
		if access == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(access, m.JWTSecret)
		if err == nil {
			setUserContext(c, claims)
			return next(c)
		}

		if !errors.Is(err, jwt.ErrTokenExpired) || !fromCookie || m.AuthClient == nil {
			if fromCookie {
				clearAuthCookies(c)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		refreshCookie, rErr := c.Cookie(cookies.RefreshToken)
		if rErr != nil || refreshCookie.Value == "" {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
		}

		refreshResp, refErr := m.AuthClient.RefreshTokens(c.Request().Context(), refreshCookie.Value, access)
		if errors.Is(refErr, authclient.ErrRejected) {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh rejected")
		}
		if refErr != nil {
			// cookies stay so the client can retry once the auth service is back
			return echo.NewHTTPError(http.StatusServiceUnavailable, "auth service unavailable")
		}

		c.SetCookie(cookies.Create(cookies.AccessToken, refreshResp.AccessToken, "/", time.Unix(refreshResp.AccessExp, 0)))
		c.SetCookie(cookies.Create(cookies.RefreshToken, refreshResp.RefreshToken, "/", time.Unix(refreshResp.RefreshExp, 0)))

		newClaims, pErr := tokens.AccessClaimsFromToken(refreshResp.AccessToken, m.JWTSecret)
		if pErr != nil {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
		}

		setUserContext(c, newClaims)
		return next(c)
	}
}

// accessToken prefers the cookie and falls back to an Authorization bearer header.
func accessToken(c echo.Context) (string, bool) {
	if ck, err := c.Cookie(cookies.AccessToken); err == nil && ck.Value != "" {
		return ck.Value, true
	}
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if v, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(v), false
	}
	return "", false
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(cookies.Delete(cookies.AccessToken, "/"))
	c.SetCookie(cookies.Delete(cookies.RefreshToken, "/"))
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set(UserIDKey, claims.Subject)
	c.Set(RoleKey, claims.Role)
	c.Set(EmailKey, claims.Email)
}
