package devapi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestTokenIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	u := User{ID: 42, Email: "ana@kakariko.hn"}

	token, exp, err := issuer.Issue(u)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if d := time.Until(exp); d <= 59*time.Minute || d > time.Hour {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 42 || claims.Email != "ana@kakariko.hn" || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other, _, err := issuer.Issue(u)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	otherClaims, err := issuer.Parse(other)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if otherClaims.ID == claims.ID {
		t.Fatalf("every token needs its own id")
	}
}

func TestTokenParseRejects(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	expired := NewTokenIssuer("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(User{ID: 1})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := issuer.Parse(old); err == nil {
		t.Fatalf("expired token must be rejected")
	}

	foreign, _, err := NewTokenIssuer("other-secret", time.Hour).Issue(User{ID: 1})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := issuer.Parse(foreign); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := issuer.Parse(wrongIssuer); err == nil {
		t.Fatalf("token from another issuer must be rejected")
	}

	if _, err := issuer.Parse("not.a.token"); err == nil {
		t.Fatalf("garbage must be rejected")
	}
}
