package middleware

import (
	"context"
	"net/http"

	"agridist/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTCustomClaims carries the caller role alongside the registered claims.
type JWTCustomClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTConfig builds the echo-jwt configuration used on protected route groups.
func JWTConfig(jwtSecret string) echojwt.Config {
	return echojwt.Config{
		SigningKey: []byte(jwtSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JWTCustomClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	}
}

// ClaimsToContext lifts the validated token claims onto the request context:
// user id plus the role normalized through the closed enum. Tokens carrying
// a role outside the enum (and its legacy synonyms) are rejected here.
func ClaimsToContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}
			claims, ok := token.Claims.(*JWTCustomClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid claims")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid user_id format")
			}

			role, ok := NormalizeRole(claims.Role)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unknown role")
			}

			ctx := context.WithValue(c.Request().Context(), common.UserIDKey, userID)
			ctx = context.WithValue(ctx, common.RoleKey, string(role))
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
