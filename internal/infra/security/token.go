package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"driveshare/internal/app/services/auth"
)

var (
	ErrSecretRequired = errors.New("security: signing secret is required")
	ErrInvalidToken   = errors.New("security: invalid token")
)

// JWTManager issues and verifies HS256 bearer tokens.
type JWTManager struct {
	Secret []byte
	Issuer string
}

type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

func (m JWTManager) Issue(userID string, roles []string, ttl time.Duration) (string, error) {
	if len(m.Secret) == 0 {
		return "", ErrSecretRequired
	}
	now := time.Now().UTC()
	claims := tokenClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.Secret)
}

func (m JWTManager) Verify(raw string) (auth.Identity, error) {
	if len(m.Secret) == 0 {
		return auth.Identity{}, ErrSecretRequired
	}
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.Secret, nil
	}, jwt.WithIssuer(m.issuer()), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return auth.Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return auth.Identity{}, ErrInvalidToken
	}
	return auth.Identity{UserID: claims.Subject, Roles: claims.Roles}, nil
}

func (m JWTManager) issuer() string {
	if m.Issuer != "" {
		return m.Issuer
	}
	return "driveshare"
}

var _ auth.TokenIssuer = JWTManager{}
