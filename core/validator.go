package core

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
)

// TokenChecker asks the API whether a token is still accepted. It returns
// ErrSessionExpired on an explicit rejection.
type TokenChecker interface {
	CheckToken(ctx context.Context, token string) error
}

// Validator decides whether a session is still usable.
type Validator struct {
	clock  clockwork.Clock
	remote TokenChecker
	parser *jwt.Parser
}

// NewValidator builds a validator. remote may be nil, in which case Confirm
// is the same as IsValid.
func NewValidator(clock clockwork.Clock, remote TokenChecker) *Validator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Validator{clock: clock, remote: remote, parser: jwt.NewParser()}
}

// IsValid is the local check. It never touches the network and is safe to
// call with a nil session.
func (v *Validator) IsValid(s *Session) bool {
	if s == nil || s.Token == "" {
		return false
	}
	now := v.clock.Now()
	if exp, ok := v.TokenExpiry(s.Token); ok {
		return now.Before(exp)
	}
	if s.ExpiresAt != nil {
		return now.Before(*s.ExpiresAt)
	}
	return true
}

// Confirm runs IsValid and then, if configured, the server round trip. Only
// an explicit rejection fails; transport errors keep the session.
func (v *Validator) Confirm(ctx context.Context, s *Session) bool {
	if !v.IsValid(s) {
		return false
	}
	if v.remote == nil {
		return true
	}
	err := v.remote.CheckToken(ctx, s.Token)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrSessionExpired):
		return false
	default:
		log.Printf("[session] token check failed, keeping session: %v", err)
		return true
	}
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// Opaque tokens report ok=false.
func (v *Validator) TokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := v.parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
