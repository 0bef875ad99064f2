package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/abduss/grimoire/internal/user"
	"github.com/golang-jwt/jwt/v5"
)

// userStore abstracts the persistence layer.
type userStore interface {
	GetByUsername(ctx context.Context, username string) (user.User, bool, error)
	Get(ctx context.Context, id int64) (user.User, bool, error)
	VerifyPassword(u user.User, password string) bool
}

// Service orchestrates login, token introspection and refresh.
type Service struct {
	users   userStore
	tokens  *TokenService
	nowFunc func() time.Time
}

// NewService creates a Service with dependencies.
func NewService(users userStore, tokens *TokenService) *Service {
	return &Service{
		users:   users,
		tokens:  tokens,
		nowFunc: time.Now,
	}
}

// Tokens exposes the underlying token service.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Login checks credentials and issues a token pair. Unknown users, inactive
// users and wrong passwords all yield ErrAuthenticationFailed.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	u, found, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if !found || !u.IsActive || !s.users.VerifyPassword(u, password) {
		return TokenPair{}, ErrAuthenticationFailed
	}

	claims := claimsFor(u)
	claims.TokenFamily = fmt.Sprintf("user_%d_%d", u.ID, s.nowFunc().Unix())
	return s.tokens.CreateTokenPair(claims, 0, 0)
}

// CheckToken verifies a bearer header value of either token type.
func (s *Service) CheckToken(header string) (Claims, error) {
	return s.tokens.VerifyToken(header, AnyTokenType)
}

// Refresh exchanges a refresh token for a new pair. The access payload is
// rebuilt from the current user record; deactivated users cannot refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	u, found, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if !found || !u.IsActive {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	return s.tokens.RefreshAccessToken(refreshToken, func(c *AccessClaims) {
		current := claimsFor(u)
		c.Subject = current.Subject
		c.Username = current.Username
		c.IsActive = current.IsActive
		c.IsSuperuser = current.IsSuperuser
	})
}

// Logout revokes the family of the presented token.
func (s *Service) Logout(claims Claims) bool {
	return s.tokens.RevokeTokenFamily(claims.Family())
}

func claimsFor(u user.User) AccessClaims {
	return AccessClaims{
		UserID:           u.ID,
		Username:         u.Username,
		IsActive:         u.IsActive,
		IsSuperuser:      u.IsSuperuser,
		RegisteredClaims: jwt.RegisteredClaims{Subject: u.Email},
	}
}
