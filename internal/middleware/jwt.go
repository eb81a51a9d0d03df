package middleware // HTTP middleware shared by the public and admin route groups

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var errBadClaims = errors.New("invalid claims")

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores its subject and role in the context as "user_id" (uint64) and
// "role" (string).  Requests without a valid token are rejected with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			uid, role, err := ParseAccess(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set("user_id", uid)
			c.Set("role", role)
			return next(c)
		}
	}
}

// OptionalJWT behaves like JWTAuth when a valid token is present and lets
// guests through otherwise.  Booking routes use it so that signed-in
// customers get their bookings linked to their account.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if uid, role, err := ParseAccess(secret, raw); err == nil {
					c.Set("user_id", uid)
					c.Set("role", role)
				}
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

// ParseAccess validates an HS256 access token and returns its sub and role
// claims.  Numeric subjects decode as float64; string subjects are parsed.
func ParseAccess(secret, raw string) (uint64, string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return 0, "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", errBadClaims
	}
	var uid uint64
	switch sub := claims["sub"].(type) {
	case float64:
		uid = uint64(sub)
	case string:
		if uid, err = strconv.ParseUint(sub, 10, 64); err != nil {
			return 0, "", errBadClaims
		}
	default:
		return 0, "", errBadClaims
	}
	role, _ := claims["role"].(string)
	if uid == 0 || role == "" {
		return 0, "", errBadClaims
	}
	return uid, role, nil
}
