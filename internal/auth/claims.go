package auth

import "github.com/golang-jwt/jwt/v5"

// TokenType distinguishes the two token roles.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
	// AnyTokenType disables the type check in VerifyToken.
	AnyTokenType TokenType = ""
)

// DefaultTokenFamily is used when refresh claims carry no family.
const DefaultTokenFamily = "default"

// Claims is implemented by AccessClaims and RefreshClaims.
type Claims interface {
	jwt.Claims
	Type() TokenType
	Family() string
	Identity() int64
}

// AccessClaims is the payload of a short-lived access token. Subject holds the
// user's email.
type AccessClaims struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	TokenFamily string    `json:"token_family"`
	TokenType   TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) Type() TokenType { return c.TokenType }
func (c *AccessClaims) Family() string  { return c.TokenFamily }
func (c *AccessClaims) Identity() int64 { return c.UserID }

// RefreshClaims is the minimal payload of a long-lived refresh token.
type RefreshClaims struct {
	UserID      int64     `json:"user_id"`
	TokenFamily string    `json:"token_family"`
	TokenType   TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

func (c *RefreshClaims) Type() TokenType { return c.TokenType }
func (c *RefreshClaims) Family() string  { return c.TokenFamily }
func (c *RefreshClaims) Identity() int64 { return c.UserID }

// refreshFrom derives the minimal refresh payload from access claims.
func refreshFrom(c AccessClaims) RefreshClaims {
	family := c.TokenFamily
	if family == "" {
		family = DefaultTokenFamily
	}
	return RefreshClaims{
		UserID:           c.UserID,
		TokenFamily:      family,
		RegisteredClaims: jwt.RegisteredClaims{Subject: c.Subject},
	}
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}
