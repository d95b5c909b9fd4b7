// Package auth issues and verifies the bearer tokens that bind a connection
// to one participant of one poll.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rankroom/rankroom/pkg/polls"
)

// Claims is the identity carried by a session token. It is fixed when the
// token is issued and attached immutably to a connection for its lifetime.
type Claims struct {
	PollID string
	UserID string
	Name   string
}

// Issuer signs and verifies session tokens with a shared HS256 secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer returns an Issuer. Token lifetime should match the poll
// time-to-live so a token never outlives its document.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl}
}

// Issue signs a token for the given identity.
func (i *Issuer) Issue(pollID, userID, name string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"pollID": pollID,
		"name":   name,
		"sub":    userID,
		"iat":    now.Unix(),
		"exp":    now.Add(i.ttl).Unix(),
	})
	return token.SignedString(i.secret)
}

// Verify checks signature and expiry and decodes the bound identity.
// Failures are reported as unauthorized without further detail.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	tok, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return nil, polls.Unauthorized("invalid or expired token")
	}

	mapClaims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, polls.Unauthorized("invalid token claims")
	}

	pollID, _ := mapClaims["pollID"].(string)
	name, _ := mapClaims["name"].(string)
	sub, _ := mapClaims["sub"].(string)
	if pollID == "" || sub == "" {
		return nil, polls.Unauthorized("token is missing identity claims")
	}

	return &Claims{PollID: pollID, UserID: sub, Name: name}, nil
}
