// Package middleware provides authentication, rate limiting, logging and tracing middleware.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vistagram/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Token claim values shared by issuance and verification.
const (
	TokenIssuer   = "vistagram-api"
	TokenAudience = "vistagram-client"
	TokenTTL      = 7 * 24 * time.Hour
)

const (
	localsUserID = "userID"
	localsClaims = "authClaims"
)

// ErrTokenRevoked is returned for tokens whose jti was blacklisted at logout.
var ErrTokenRevoked = errors.New("token has been revoked")

// Claims is the verified subset of a token we act on.
type Claims struct {
	UserID    primitive.ObjectID
	JTI       string
	ExpiresAt time.Time
}

// Authenticator issues and verifies HS256 bearer tokens. Revocation is tracked
// in Redis when a client is configured.
type Authenticator struct {
	secret []byte
	redis  *redis.Client
	now    func() time.Time
}

// NewAuthenticator returns an Authenticator for secret. rdb may be nil.
func NewAuthenticator(secret string, rdb *redis.Client) *Authenticator {
	return &Authenticator{secret: []byte(secret), redis: rdb, now: time.Now}
}

// IssueToken signs a token whose subject is the user's hex id.
func (a *Authenticator) IssueToken(userID primitive.ObjectID) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := a.now()
	claims := jwt.MapClaims{
		"sub": userID.Hex(),
		"iss": TokenIssuer,
		"aud": TokenAudience,
		"exp": now.Add(TokenTTL).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Parse verifies signature, issuer, audience and expiry, then checks revocation.
func (a *Authenticator) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("invalid subject claim")
	}
	userID, err := primitive.ObjectIDFromHex(sub)
	if err != nil {
		return nil, errors.New("invalid user ID in token")
	}

	claims := &Claims{UserID: userID}
	if jti, ok := mc["jti"].(string); ok {
		claims.JTI = jti
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	if claims.JTI != "" && a.redis != nil {
		n, err := a.redis.Exists(ctx, blacklistKey(claims.JTI)).Result()
		if err == nil && n > 0 {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Revoke blacklists the token's jti until it would have expired anyway.
func (a *Authenticator) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.JTI == "" {
		return nil
	}
	if a.redis == nil {
		return errors.New("token revocation unavailable: redis not configured")
	}
	ttl := claims.ExpiresAt.Sub(a.now())
	if ttl <= 0 {
		return nil
	}
	return a.redis.Set(ctx, blacklistKey(claims.JTI), "1", ttl).Err()
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

// Required rejects requests without a valid bearer token.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := a.Parse(c.UserContext(), tokenString)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, ErrTokenRevoked) {
				msg = "Token has been revoked"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}

		setIdentity(c, claims)
		return c.Next()
	}
}

// Optional attaches the identity when a valid token is present and never rejects.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString := bearerToken(c); tokenString != "" {
			if claims, err := a.Parse(c.UserContext(), tokenString); err == nil {
				setIdentity(c, claims)
			}
		}
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, claims *Claims) {
	c.Locals(localsUserID, claims.UserID)
	c.Locals(localsClaims, claims)
	ctx := context.WithValue(c.UserContext(), UserIDKey, claims.UserID.Hex())
	c.SetUserContext(ctx)
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// UserID returns the authenticated user id set by Required or Optional.
func UserID(c *fiber.Ctx) (primitive.ObjectID, bool) {
	id, ok := c.Locals(localsUserID).(primitive.ObjectID)
	return id, ok
}

// ClaimsFrom returns the verified token claims, if any.
func ClaimsFrom(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(localsClaims).(*Claims)
	return claims, ok
}

// ViewerFrom converts the request identity into a models.Viewer.
func ViewerFrom(c *fiber.Ctx) models.Viewer {
	if id, ok := UserID(c); ok {
		return models.AuthenticatedViewer(id)
	}
	return models.Anonymous()
}
