package portal

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired portal link")

// Claims identify one client of one owner.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID  string `json:"oid"`
	ClientID string `json:"cid"`
}

// Tokens signs and verifies portal links with HS256.
type Tokens struct {
	key []byte
	ttl time.Duration

	Now func() time.Time
}

func NewTokens(signingKey string, ttl time.Duration) *Tokens {
	return &Tokens{
		key: []byte(signingKey),
		ttl: ttl,
		Now: time.Now,
	}
}

// Issue returns a signed token for the owner's client and its expiry.
func (t *Tokens) Issue(ownerID, clientID string) (string, time.Time, error) {
	now := t.Now()
	exp := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Subject:   clientID,
		},
		OwnerID:  ownerID,
		ClientID: clientID,
	})
	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign portal token: %w", err)
	}
	return signed, exp, nil
}

func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.OwnerID == "" || claims.ClientID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
