package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/grimoire/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	bearerPrefix = "Bearer "
	bearerScheme = "bearer"
)

// TokenService mints and verifies stateless HMAC-signed tokens. It holds only
// immutable configuration and is safe for concurrent use.
type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowFunc    func() time.Time
	parser     *jwt.Parser
}

// NewTokenService validates cfg and builds a TokenService.
func NewTokenService(cfg config.AuthConfig) (*TokenService, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}

	alg := cfg.JWTAlgorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Name
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	s := &TokenService{
		secret:     []byte(cfg.JWTSecret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		nowFunc:    time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.nowFunc() }),
	)
	return s, nil
}

// CreateAccessToken signs claims as an access token valid for ttl, or the
// configured default when ttl is not positive.
func (s *TokenService) CreateAccessToken(claims AccessClaims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.accessTTL
	}
	claims.TokenType = AccessToken
	claims.RegisteredClaims = s.stamp(claims.RegisteredClaims, ttl)
	return s.sign(&claims)
}

// CreateRefreshToken signs claims as a refresh token. Callers pass only the
// minimal refresh payload.
func (s *TokenService) CreateRefreshToken(claims RefreshClaims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.refreshTTL
	}
	claims.TokenType = RefreshToken
	claims.RegisteredClaims = s.stamp(claims.RegisteredClaims, ttl)
	return s.sign(&claims)
}

// CreateTokenPair issues an access token for claims and a refresh token
// carrying only its subject, user id and family.
func (s *TokenService) CreateTokenPair(claims AccessClaims, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	if accessTTL <= 0 {
		accessTTL = s.accessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = s.refreshTTL
	}

	access, err := s.CreateAccessToken(claims, accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("create access token: %w", err)
	}
	refresh, err := s.CreateRefreshToken(refreshFrom(claims), refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("create refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        bearerScheme,
		ExpiresIn:        int64(accessTTL / time.Second),
		RefreshExpiresIn: int64(refreshTTL / time.Second),
	}, nil
}

// NormalizeBearerToken strips an exact "Bearer " prefix and surrounding
// whitespace. Applying it twice yields the same result.
func NormalizeBearerToken(raw string) (string, error) {
	if raw == "" {
		return "", ErrEmptyToken
	}
	token := strings.TrimSpace(raw)
	token = strings.TrimPrefix(token, bearerPrefix)
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// VerifyToken decodes raw and checks its signature, expiry and, unless
// expected is AnyTokenType, its declared type.
func (s *TokenService) VerifyToken(raw string, expected TokenType) (Claims, error) {
	token := raw
	if strings.Contains(raw, " ") {
		normalized, err := NormalizeBearerToken(raw)
		if err != nil {
			return nil, &TokenVerificationError{Err: err}
		}
		token = normalized
	}

	var payload AccessClaims
	if _, err := s.parser.ParseWithClaims(token, &payload, s.key); err != nil {
		return nil, &TokenVerificationError{Err: err}
	}

	var claims Claims
	switch payload.TokenType {
	case AccessToken:
		claims = &payload
	case RefreshToken:
		claims = &RefreshClaims{
			UserID:           payload.UserID,
			TokenFamily:      payload.TokenFamily,
			TokenType:        payload.TokenType,
			RegisteredClaims: payload.RegisteredClaims,
		}
	default:
		return nil, &TokenVerificationError{Err: fmt.Errorf("unknown token type %q", payload.TokenType)}
	}

	if expected != AnyTokenType && claims.Type() != expected {
		return nil, &TokenTypeMismatchError{Expected: expected, Actual: claims.Type()}
	}
	return claims, nil
}

// VerifyAccessToken verifies raw as an access token.
func (s *TokenService) VerifyAccessToken(raw string) (*AccessClaims, error) {
	claims, err := s.VerifyToken(raw, AccessToken)
	if err != nil {
		return nil, err
	}
	return claims.(*AccessClaims), nil
}

// VerifyRefreshToken verifies raw as a refresh token.
func (s *TokenService) VerifyRefreshToken(raw string) (*RefreshClaims, error) {
	claims, err := s.VerifyToken(raw, RefreshToken)
	if err != nil {
		return nil, err
	}
	return claims.(*RefreshClaims), nil
}

// RefreshAccessToken verifies a refresh token and issues a brand-new pair.
// merge, when non-nil, adds claims to the rebuilt access payload.
func (s *TokenService) RefreshAccessToken(raw string, merge func(*AccessClaims)) (TokenPair, error) {
	refresh, err := s.VerifyRefreshToken(raw)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	family := refresh.TokenFamily
	if family == "" {
		family = DefaultTokenFamily
	}
	claims := AccessClaims{
		UserID:           refresh.UserID,
		TokenFamily:      family,
		RegisteredClaims: jwt.RegisteredClaims{Subject: refresh.Subject},
	}
	if merge != nil {
		merge(&claims)
	}
	return s.CreateTokenPair(claims, 0, 0)
}

// CurrentUser returns the verified claims, or false when raw does not verify.
func (s *TokenService) CurrentUser(raw string, expected TokenType) (Claims, bool) {
	claims, err := s.VerifyToken(raw, expected)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// RevokeTokenFamily always reports success. Tokens are stateless and no
// revocation list is kept, so a revoked family stays valid until expiry.
func (s *TokenService) RevokeTokenFamily(family string) bool {
	return true
}

func (s *TokenService) stamp(rc jwt.RegisteredClaims, ttl time.Duration) jwt.RegisteredClaims {
	now := s.nowFunc().UTC()
	rc.IssuedAt = jwt.NewNumericDate(now)
	rc.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return rc
}

func (s *TokenService) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
}

func (s *TokenService) key(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}
