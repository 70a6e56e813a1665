package core

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultPollInterval is how often a mounted screen re-validates the session.
const DefaultPollInterval = 60 * time.Second

const (
	opLogin    = "login"
	opRegister = "register"
	opLogout   = "logout"
)

// RegisterRequest is what the API receives on registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterInput is the registration form as typed by the operator.
type RegisterInput struct {
	Name            string
	Lastname        string
	Email           string
	Password        string
	ConfirmPassword string
}

// AuthAPI is the remote side of login and registration. Implementations map
// rejections to ErrInvalidCredentials and ErrEmailAlreadyRegistered.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (Session, error)
	Register(ctx context.Context, req RegisterRequest) (Session, error)
}

// Revoker is implemented by APIs that can invalidate a token on logout.
type Revoker interface {
	Logout(ctx context.Context, token string) error
}

// AuthOptions carries the optional collaborators of an AuthController.
type AuthOptions struct {
	Policy       PasswordPolicy
	Navigator    Navigator
	Clock        clockwork.Clock
	PollInterval time.Duration
}

// AuthController owns the credential store and drives login, registration,
// logout and session validation.
type AuthController struct {
	store     *CredentialStore
	validator *Validator
	api       AuthAPI
	policy    PasswordPolicy
	nav       Navigator
	clock     clockwork.Clock
	pollEvery time.Duration

	mu   sync.Mutex
	busy string
}

func NewAuthController(store *CredentialStore, validator *Validator, api AuthAPI, opts AuthOptions) *AuthController {
	a := &AuthController{
		store:     store,
		validator: validator,
		api:       api,
		policy:    opts.Policy,
		nav:       opts.Navigator,
		clock:     opts.Clock,
		pollEvery: opts.PollInterval,
	}
	if a.policy == nil {
		a.policy = DefaultPasswordPolicy{}
	}
	if a.nav == nil {
		a.nav = logNavigator{}
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	if a.pollEvery <= 0 {
		a.pollEvery = DefaultPollInterval
	}
	return a
}

// begin claims the controller for op. Login, register and logout share one
// slot, so it reports false while any of them is in flight.
func (a *AuthController) begin(op string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.busy != "" {
		log.Printf("[auth] %s ignored, %s in flight", op, a.busy)
		return false
	}
	a.busy = op
	return true
}

func (a *AuthController) end() {
	a.mu.Lock()
	a.busy = ""
	a.mu.Unlock()
}

// Get returns the stored session, if any.
func (a *AuthController) Get() (Session, bool) {
	return a.store.Get()
}

// Login checks only the syntax of the input; credential strength is the
// server's business.
func (a *AuthController) Login(ctx context.Context, email, password string) (Session, error) {
	if !a.begin(opLogin) {
		return Session{}, ErrSubmissionInFlight
	}
	defer a.end()

	email = strings.TrimSpace(email)
	if email == "" {
		return Session{}, invalid("email", "El email es requerido")
	}
	if !looksLikeEmail(email) {
		return Session{}, invalid("email", "Por favor ingresa un email válido")
	}
	if strings.TrimSpace(password) == "" {
		return Session{}, invalid("password", "La contraseña es requerida")
	}

	sess, err := a.api.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	sess = a.fillExpiry(sess)
	if err := a.store.Set(ctx, sess); err != nil {
		log.Printf("[auth] session kept in memory only: %v", err)
	}
	log.Printf("[auth] login ok user=%s", sess.User.Email)
	a.nav.Navigate(RouteDashboard, true)
	return sess, nil
}

// Register validates in a fixed order and stops at the first failing rule.
func (a *AuthController) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if !a.begin(opRegister) {
		return Session{}, ErrSubmissionInFlight
	}
	defer a.end()

	if strings.TrimSpace(in.Name) == "" {
		return Session{}, invalid("name", "El nombre es requerido")
	}
	if strings.TrimSpace(in.Lastname) == "" {
		return Session{}, invalid("lastname", "El apellido es requerido")
	}
	if strings.TrimSpace(in.Email) == "" {
		return Session{}, invalid("email", "El email es requerido")
	}
	if !IsValidEmail(in.Email) {
		return Session{}, invalid("email", "Por favor ingresa un email válido")
	}
	if check := a.policy.Validate(in.Password); !check.IsValid {
		return Session{}, invalid("password", check.Message)
	}
	if in.Password != in.ConfirmPassword {
		return Session{}, invalid("confirmPassword", "Las contraseñas no coinciden")
	}

	sess, err := a.api.Register(ctx, RegisterRequest{
		Name:     strings.TrimSpace(in.Name),
		Lastname: strings.TrimSpace(in.Lastname),
		Email:    strings.TrimSpace(in.Email),
		Password: in.Password,
	})
	if err != nil {
		return Session{}, err
	}
	if sess.Token == "" {
		// Account created without a login; the operator signs in next.
		a.nav.Navigate(RouteLogin, true)
		return sess, nil
	}
	sess = a.fillExpiry(sess)
	if err := a.store.Set(ctx, sess); err != nil {
		log.Printf("[auth] session kept in memory only: %v", err)
	}
	a.nav.Navigate(RouteDashboard, true)
	return sess, nil
}

// Logout clears the session. Calling it without a session is fine; it is
// refused only while a login or registration is still in flight.
func (a *AuthController) Logout(ctx context.Context) error {
	if !a.begin(opLogout) {
		return ErrSubmissionInFlight
	}
	defer a.end()

	sess, had := a.store.Get()
	a.clear(ctx)
	if had {
		if r, ok := a.api.(Revoker); ok {
			if err := r.Logout(ctx, sess.Token); err != nil {
				log.Printf("[auth] remote logout failed: %v", err)
			}
		}
	}
	a.nav.Navigate(RouteLogin, false)
	return nil
}

// ValidateToken runs the local check against the stored session and forces a
// logout with redirect when it fails.
func (a *AuthController) ValidateToken(ctx context.Context) bool {
	sess, ok := a.store.Get()
	if ok && a.validator.IsValid(&sess) {
		return true
	}
	a.Expire(ctx)
	return false
}

// Confirm is ValidateToken plus the server round trip; the session poll uses it.
func (a *AuthController) Confirm(ctx context.Context) bool {
	sess, ok := a.store.Get()
	if ok && a.validator.Confirm(ctx, &sess) {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	a.Expire(ctx)
	return false
}

// Expire drops the session and sends the operator to the login route.
func (a *AuthController) Expire(ctx context.Context) {
	if _, had := a.store.Get(); had {
		log.Printf("[auth] session expired, logging out")
	}
	a.clear(ctx)
	a.nav.Navigate(RouteLogin, true)
}

func (a *AuthController) clear(ctx context.Context) {
	if err := a.store.Clear(ctx); err != nil {
		log.Printf("[auth] failed to remove stored session: %v", err)
	}
}

func (a *AuthController) fillExpiry(s Session) Session {
	if s.ExpiresAt != nil {
		return s
	}
	if exp, ok := a.validator.TokenExpiry(s.Token); ok {
		s.ExpiresAt = &exp
	}
	return s
}
