// Package validator decides locally whether a session token can still be
// used. It never talks to the network.
package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"accesos/pkg/claims"

	jwt "github.com/dgrijalva/jwt-go"
)

var (
	ErrTokenEmpty     = errors.New("token is empty")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token is expired")
)

type Option func(*Validator)

// WithClock replaces time.Now. Expiry is compared against this clock as-is.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// WithKey makes Decode verify the HS256 signature with key.
func WithKey(key []byte) Option {
	return func(v *Validator) {
		v.key = key
	}
}

type Validator struct {
	now    func() time.Time
	key    []byte
	parser *jwt.Parser
}

func New(opts ...Option) *Validator {
	v := &Validator{
		now: time.Now,
		parser: &jwt.Parser{
			ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
			SkipClaimsValidation: true,
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) Decode(token string) (*claims.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenEmpty
	}

	c := &claims.Claims{}

	if len(v.key) == 0 {
		if _, _, err := v.parser.ParseUnverified(token, c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
		return c, nil
	}

	hashSecretGetter := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	}

	parsed, err := v.parser.ParseWithClaims(token, c, hashSecretGetter)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return c, nil
}

func (v *Validator) Check(token string) error {
	c, err := v.Decode(token)
	if err != nil {
		return err
	}
	if !c.Expiry().After(v.now()) {
		return ErrTokenExpired
	}
	return nil
}

func (v *Validator) IsValid(token string) bool {
	return v.Check(token) == nil
}
