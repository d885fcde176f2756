// Package auth is the identity boundary: it turns a bearer token into the
// verified (user id, wallet address) pair the core trusts.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// RoleArbiter may resolve disputes and record external delivery signals.
const RoleArbiter = "arbiter"

type Identity struct {
	UserID uuid.UUID
	Wallet string
	Role   string
}

func (i Identity) IsArbiter() bool { return i.Role == RoleArbiter }

type claims struct {
	jwt.RegisteredClaims
	Wallet string `json:"wallet,omitempty"`
	Role   string `json:"role,omitempty"`
}

type Service struct {
	secret []byte
	ttl    time.Duration
}

func NewService(secret string) *Service {
	return &Service{secret: []byte(secret), ttl: 24 * time.Hour}
}

// IssueToken signs a token for id. The identity provider owns issuance in
// production; this is used by tooling and tests.
func (s *Service) IssueToken(id Identity) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Wallet: id.Wallet,
		Role:   id.Role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *Service) ValidateToken(token string) (Identity, error) {
	tok, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, errors.Join(ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return Identity{}, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, errors.Join(ErrInvalidToken, err)
	}
	return Identity{UserID: id, Wallet: c.Wallet, Role: c.Role}, nil
}
