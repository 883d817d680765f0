package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/classroll/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// Token kinds.
const (
	KindSession = "session"
	KindAPI     = "api"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	errNoSecret     = errors.New("signing secret is required")
)

// Claims are the claims carried by every token the server signs.
type Claims struct {
	Email  string       `json:"email"`
	Role   string       `json:"role"`
	System types.System `json:"system"`
	Kind   string       `json:"kind"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c Claims) UserID() (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Subject))
	if err != nil || id < 1 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// Signer signs and verifies HS256 tokens.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errNoSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Grant describes a token to sign for a user.
type Grant struct {
	ID        string
	Kind      string
	System    types.System
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Sign signs a token for user. A zero ExpiresAt yields a token without an
// exp claim.
func (s *Signer) Sign(user types.User, g Grant) (string, error) {
	claims := Claims{
		Email:  user.Email,
		Role:   user.Role,
		System: g.System,
		Kind:   g.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       g.ID,
			Subject:  strconv.Itoa(user.ID),
			IssuedAt: jwt.NewNumericDate(g.IssuedAt),
		},
	}
	if !g.ExpiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(g.ExpiresAt)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse verifies tokenString and returns its claims. Only HMAC signatures
// are accepted.
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	switch claims.Kind {
	case KindSession, KindAPI:
	default:
		return nil, ErrInvalidToken
	}
	return claims, nil
}
