package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
)

// waitFor polls cond; fake-clock callbacks run on their own goroutines.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(exp)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

type navCall struct {
	route   string
	replace bool
}

type navRecorder struct {
	mu    sync.Mutex
	calls []navCall
}

func (n *navRecorder) Navigate(route string, replace bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, navCall{route, replace})
}

func (n *navRecorder) last() (navCall, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		return navCall{}, false
	}
	return n.calls[len(n.calls)-1], true
}

func (n *navRecorder) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// fakeAuthAPI implements AuthAPI and Revoker.
type fakeAuthAPI struct {
	mu            sync.Mutex
	session       Session
	err           error
	loginCalls    int
	registerCalls int
	revoked       []string

	// When block is set, Login signals started and waits for block to close.
	block   chan struct{}
	started chan struct{}
}

func (f *fakeAuthAPI) Login(ctx context.Context, email, password string) (Session, error) {
	f.mu.Lock()
	f.loginCalls++
	block, started := f.block, f.started
	f.mu.Unlock()
	if block != nil {
		close(started)
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.err
}

func (f *fakeAuthAPI) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	return f.session, f.err
}

func (f *fakeAuthAPI) Logout(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return nil
}

func (f *fakeAuthAPI) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.registerCalls
}

// fakeChecker implements TokenChecker.
type fakeChecker struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeChecker) CheckToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeChecker) set(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeChecker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type authFixture struct {
	clock   clockwork.FakeClock
	store   *CredentialStore
	api     *fakeAuthAPI
	checker *fakeChecker
	nav     *navRecorder
	auth    *AuthController
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		clock:   clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		store:   NewCredentialStore(nil),
		api:     &fakeAuthAPI{},
		checker: &fakeChecker{},
		nav:     &navRecorder{},
	}
	f.auth = NewAuthController(f.store, NewValidator(f.clock, f.checker), f.api, AuthOptions{
		Navigator: f.nav,
		Clock:     f.clock,
	})
	return f
}

// signIn stores an opaque session with no expiry information.
func (f *authFixture) signIn(t *testing.T, token string) {
	t.Helper()
	if err := f.store.Set(context.Background(), Session{Token: token, User: Identity{ID: 1, Name: "Ana", Email: "ana@kakariko.hn"}}); err != nil {
		t.Fatalf("set session: %v", err)
	}
}
