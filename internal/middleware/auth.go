// Package middleware provides request context, identity, rate limiting and
// tracing middleware for the HTTP layer.
package middleware

import (
	"context"
	"strconv"
	"strings"

	"rebound/internal/config"
	"rebound/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// IdentityResolver turns a bearer token into a member id. Tokens are issued
// by the external identity service; this side only verifies them.
type IdentityResolver struct {
	secret   []byte
	issuer   string
	audience string
	rdb      *redis.Client
}

// NewIdentityResolver builds a resolver from config. rdb may be nil, in which
// case revoked token ids are not checked.
func NewIdentityResolver(cfg *config.Config, rdb *redis.Client) *IdentityResolver {
	return &IdentityResolver{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		rdb:      rdb,
	}
}

// Resolve validates the token and returns the member id in its subject claim.
// Every failure is an UNAUTHENTICATED AppError.
func (r *IdentityResolver) Resolve(ctx context.Context, tokenString string) (uint, error) {
	if tokenString == "" {
		return 0, models.NewUnauthenticatedError("Authorization required")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}
	if r.audience != "" {
		opts = append(opts, jwt.WithAudience(r.audience))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return r.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return 0, &models.AppError{
			Code:    models.CodeUnauthenticated,
			Message: "Invalid or expired token",
			Err:     err,
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, models.NewUnauthenticatedError("Invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return 0, models.NewUnauthenticatedError("Invalid subject claim")
	}
	memberID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || memberID == 0 {
		return 0, models.NewUnauthenticatedError("Invalid member ID in token")
	}

	if jti, _ := claims["jti"].(string); jti != "" && r.rdb != nil {
		revoked, err := r.rdb.Exists(ctx, "blacklist:"+jti).Result()
		if err == nil && revoked > 0 {
			return 0, models.NewUnauthenticatedError("Token has been revoked")
		}
	}

	return uint(memberID), nil
}

// RequireIdentity rejects requests without a valid bearer token and stores
// the member id in locals and in the request context.
func (r *IdentityResolver) RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		memberID, err := r.Resolve(c.UserContext(), bearerToken(c))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		setMember(c, memberID)
		return c.Next()
	}
}

// OptionalIdentity resolves the caller when a valid token is present and
// otherwise lets the request through anonymously.
func (r *IdentityResolver) OptionalIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := bearerToken(c); token != "" {
			if memberID, err := r.Resolve(c.UserContext(), token); err == nil {
				setMember(c, memberID)
			}
		}
		return c.Next()
	}
}

// MemberID returns the caller resolved by the identity middleware, or 0.
func MemberID(c *fiber.Ctx) uint {
	if id, ok := c.Locals(LocalMemberID).(uint); ok {
		return id
	}
	return 0
}

func setMember(c *fiber.Ctx, memberID uint) {
	c.Locals(LocalMemberID, memberID)
	c.SetUserContext(context.WithValue(c.UserContext(), MemberIDKey, memberID))
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get(fiber.HeaderAuthorization), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
