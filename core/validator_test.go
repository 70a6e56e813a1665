package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestValidatorIsValid(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	v := NewValidator(clock, nil)
	past := clock.Now().Add(-time.Minute)
	future := clock.Now().Add(time.Minute)

	tests := []struct {
		name string
		sess *Session
		want bool
	}{
		{"nil session", nil, false},
		{"empty token", &Session{}, false},
		{"opaque token without expiry", &Session{Token: "opaque"}, true},
		{"opaque token expired", &Session{Token: "opaque", ExpiresAt: &past}, false},
		{"opaque token not yet expired", &Session{Token: "opaque", ExpiresAt: &future}, true},
		{"jwt expired", &Session{Token: signedToken(t, past)}, false},
		{"jwt valid", &Session{Token: signedToken(t, future)}, true},
		{"jwt exp wins over stored expiry", &Session{Token: signedToken(t, past), ExpiresAt: &future}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.IsValid(tt.sess); got != tt.want {
				t.Fatalf("IsValid = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidatorExpiresWithClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	v := NewValidator(clock, nil)
	sess := &Session{Token: signedToken(t, clock.Now().Add(time.Hour))}

	if !v.IsValid(sess) {
		t.Fatalf("token should be valid before expiry")
	}
	clock.Advance(2 * time.Hour)
	if v.IsValid(sess) {
		t.Fatalf("token should be invalid after expiry")
	}
}

func TestValidatorConfirm(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	checker := &fakeChecker{}
	v := NewValidator(clock, checker)
	sess := &Session{Token: "opaque"}

	if !v.Confirm(ctx, sess) {
		t.Fatalf("accepted token should confirm")
	}

	checker.set(errors.New("connection refused"))
	if !v.Confirm(ctx, sess) {
		t.Fatalf("transport failure must keep the session")
	}

	checker.set(ErrSessionExpired)
	if v.Confirm(ctx, sess) {
		t.Fatalf("explicit rejection must fail")
	}

	calls := checker.count()
	if v.Confirm(ctx, &Session{}) {
		t.Fatalf("empty session must fail")
	}
	if checker.count() != calls {
		t.Fatalf("locally invalid session must not reach the server")
	}
}

func TestTokenExpiry(t *testing.T) {
	v := NewValidator(clockwork.NewFakeClock(), nil)
	exp := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	got, ok := v.TokenExpiry(signedToken(t, exp))
	if !ok || !got.Equal(exp) {
		t.Fatalf("TokenExpiry = %v ok=%v", got, ok)
	}
	if _, ok := v.TokenExpiry("not-a-jwt"); ok {
		t.Fatalf("opaque token should have no expiry")
	}
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{"ana@kakariko.hn", " ana.perez@mail.example.com "}
	invalidEmails := []string{"", "ana", "ana@", "ana@mail", "@mail.com", "ana perez@mail.com", "ana@@mail.com"}
	for _, e := range valid {
		if !IsValidEmail(e) {
			t.Errorf("IsValidEmail(%q) = false", e)
		}
	}
	for _, e := range invalidEmails {
		if IsValidEmail(e) {
			t.Errorf("IsValidEmail(%q) = true", e)
		}
	}
}

func TestDefaultPasswordPolicy(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
		message  string
	}{
		{"", false, "La contraseña es requerida"},
		{"   ", false, "La contraseña es requerida"},
		{"Ab1", false, "La contraseña debe tener al menos 8 caracteres"},
		{"abcdefg1", false, "La contraseña debe contener al menos una mayúscula"},
		{"ABCDEFG1", false, "La contraseña debe contener al menos una minúscula"},
		{"Abcdefgh", false, "La contraseña debe contener al menos un número"},
		{"Abcdefg1", true, ""},
		{"Ñandú2026", true, ""},
	}
	for _, tt := range tests {
		got := DefaultPasswordPolicy{}.Validate(tt.password)
		if got.IsValid != tt.valid || got.Message != tt.message {
			t.Errorf("Validate(%q) = %+v, want valid=%v message=%q", tt.password, got, tt.valid, tt.message)
		}
	}

	custom := DefaultPasswordPolicy{MinLength: 12}.Validate("Abcdefg1")
	if custom.IsValid || custom.Message != "La contraseña debe tener al menos 12 caracteres" {
		t.Fatalf("unexpected custom policy result: %+v", custom)
	}
}
