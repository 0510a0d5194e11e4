// Package middleware provides authentication and authorization middleware for the application.
package middleware

import (
	"context"
	"strconv"
	"strings"

	"murmur/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// TokenSource extracts a candidate credential from a request. Sources are
// evaluated in order; the first one that yields a token wins.
type TokenSource func(c *fiber.Ctx) (string, bool)

// BearerHeaderSource reads a token from the "Authorization: Bearer <token>" header.
func BearerHeaderSource(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// QueryTokenSource reads a token from the "token" query parameter. Browser
// WebSocket clients cannot set request headers, so the upgrade request
// carries the credential in the URL instead.
func QueryTokenSource(c *fiber.Ctx) (string, bool) {
	token := c.Query("token")
	if token == "" {
		return "", false
	}
	return token, true
}

// ExtractToken runs the sources in order and returns the first token found.
func ExtractToken(c *fiber.Ctx, sources ...TokenSource) (string, bool) {
	for _, source := range sources {
		if token, ok := source(c); ok {
			return token, true
		}
	}
	return "", false
}

// TokenIssuer and TokenAudience are the iss/aud claims every token this
// service issues must carry.
const (
	TokenIssuer   = "murmur-api"
	TokenAudience = "murmur-client"
)

// ParseUserID validates a signed token and returns the user ID from its
// "sub" claim (subject claim per RFC 7519).
func ParseUserID(tokenString string) (uint, error) {
	userID, _, err := parseToken(tokenString)
	return userID, err
}

// parseToken validates the signature and the iss/aud claims, returning the
// user ID and the token's jti (empty when absent).
func parseToken(tokenString string) (uint, string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, "", fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}

	if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != TokenIssuer {
		return 0, "", fiber.NewError(fiber.StatusUnauthorized, "Invalid token issuer")
	}
	if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != TokenAudience {
		return 0, "", fiber.NewError(fiber.StatusUnauthorized, "Invalid token audience")
	}

	subStr, ok := claims["sub"].(string)
	if !ok {
		return 0, "", fiber.NewError(fiber.StatusUnauthorized, "Invalid subject claim")
	}
	userIDVal, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil {
		return 0, "", fiber.NewError(fiber.StatusUnauthorized, "Invalid user ID in token")
	}

	jti, _ := claims["jti"].(string)
	return uint(userIDVal), jti, nil
}

func requireAuth(sources ...TokenSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := ExtractToken(c, sources...)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token required",
			})
		}

		userID, jti, err := parseToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("userID", userID)
		if jti != "" {
			c.Locals("tokenJTI", jti)
		}
		ctx := context.WithValue(c.UserContext(), UserIDKey, userID)
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// AuthRequired enforces authentication for protected REST routes. Only the
// Authorization header is accepted.
var AuthRequired = requireAuth(BearerHeaderSource)

// WebSocketAuthRequired enforces authentication on WebSocket upgrade
// requests. The query parameter is tried first, then the header; whichever
// source yields, the resulting identity is the same.
var WebSocketAuthRequired = requireAuth(QueryTokenSource, BearerHeaderSource)
