package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/ticket-tracker/internal/infra/config"
)

var (
	// ErrInvalidAccessToken covers malformed, forged and mis-addressed tokens.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken is returned for well-formed tokens past their expiry.
	ErrExpiredAccessToken = errors.New("access token expired")
)

// AccessTokenClaims are the claims read from bearer tokens minted by the identity service.
type AccessTokenClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Principal returns the caller id: uid when present, otherwise sub.
func (c *AccessTokenClaims) Principal() string {
	if id := strings.TrimSpace(c.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}

// AccessTokenVerifier validates HMAC signed access tokens.
type AccessTokenVerifier struct {
	secret  []byte
	options []jwt.ParserOption
}

// NewAccessTokenVerifier builds a verifier from auth settings. Issuer and audience are only
// enforced when configured.
func NewAccessTokenVerifier(cfg config.AuthSettings) (*AccessTokenVerifier, error) {
	secret := strings.TrimSpace(cfg.AccessTokenSecret)
	if secret == "" {
		return nil, fmt.Errorf("access token secret is required")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	if cfg.ClockSkew > 0 {
		options = append(options, jwt.WithLeeway(cfg.ClockSkew))
	}

	return &AccessTokenVerifier{secret: []byte(secret), options: options}, nil
}

// Verify parses token and returns its claims.
func (v *AccessTokenVerifier) Verify(token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidAccessToken
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, v.options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if parsed == nil || !parsed.Valid || claims.Principal() == "" {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}

// SignAccessToken mints an HS256 token for userID. Used by local tooling and tests.
func SignAccessToken(cfg config.AuthSettings, userID string, ttl time.Duration, now time.Time) (string, error) {
	claims := AccessTokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.AccessTokenSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}
