package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"

	"github.com/GakeBruh/kakarikostore.ui/devapi"
)

type liveFixture struct {
	server *httptest.Server
	store  *CredentialStore
	api    *APIClient
	auth   *AuthController
	nav    *navRecorder
}

// newLiveFixture runs the development API in memory and points a real client at it.
func newLiveFixture(t *testing.T) *liveFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := devapi.Config{
		SessionKey:     "test-session-key-test-session-key",
		TokenSecret:    "test-token-secret",
		TokenTTL:       time.Hour,
		CookieSameSite: "Lax",
		AllowedOrigins: []string{"*"},
	}
	mem := devapi.NewMemoryStore()
	router := devapi.NewRouter(cfg, devapi.Deps{
		Auth:        devapi.NewRepositoryAuthService(mem.Users()),
		Users:       mem.Users(),
		Types:       mem.CatalogTypes(),
		Catalogs:    mem.Catalogs(),
		Tokens:      devapi.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL),
		Revocations: devapi.NewMemoryRevocations(),
		Sessions:    sessions.NewCookieStore([]byte(cfg.SessionKey)),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	f := &liveFixture{server: server, store: NewCredentialStore(nil), nav: &navRecorder{}}
	f.api = NewAPIClient(server.URL, 5*time.Second, f.store)
	f.api.SetOrigin("http://localhost:5173")
	f.auth = NewAuthController(f.store, NewValidator(clockwork.NewRealClock(), f.api), f.api, AuthOptions{Navigator: f.nav})
	return f
}

func (f *liveFixture) register(t *testing.T) Session {
	t.Helper()
	sess, err := f.auth.Register(context.Background(), RegisterInput{
		Name:            "Ana",
		Lastname:        "Pérez",
		Email:           "ana@kakariko.hn",
		Password:        "Secreta123",
		ConfirmPassword: "Secreta123",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	return sess
}

func TestLiveAuthFlow(t *testing.T) {
	f := newLiveFixture(t)
	ctx := context.Background()

	sess := f.register(t)
	if sess.Token == "" || sess.User.Email != "ana@kakariko.hn" || sess.ExpiresAt == nil {
		t.Fatalf("unexpected session %+v", sess)
	}
	if err := f.api.CheckToken(ctx, sess.Token); err != nil {
		t.Fatalf("CheckToken error: %v", err)
	}

	_, err := f.auth.Register(ctx, RegisterInput{
		Name: "Otra", Lastname: "Persona", Email: "ANA@kakariko.hn",
		Password: "Secreta123", ConfirmPassword: "Secreta123",
	})
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}

	if err := f.auth.Logout(ctx); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if err := f.api.CheckToken(ctx, sess.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("revoked token should be rejected, got %v", err)
	}

	if _, err := f.auth.Login(ctx, "ana@kakariko.hn", "incorrecta"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	again, err := f.auth.Login(ctx, "ana@kakariko.hn", "Secreta123")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if again.Token == sess.Token {
		t.Fatalf("login should issue a fresh token")
	}
	if !f.auth.Confirm(ctx) {
		t.Fatalf("fresh session should confirm against the server")
	}
}

func TestLiveCatalogScreens(t *testing.T) {
	f := newLiveFixture(t)
	ctx := context.Background()
	f.register(t)

	types := NewCatalogTypeScreen(f.api.CatalogTypes(), f.auth)
	defer types.Close()
	if err := types.Load(ctx); err != nil {
		t.Fatalf("Load types error: %v", err)
	}
	if len(types.Items()) != 0 {
		t.Fatalf("expected no types yet")
	}
	if err := types.Create(); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	electronics, err := types.Submit(ctx, CatalogTypeFields{Description: "Electrónica", Active: true})
	if err != nil {
		t.Fatalf("Submit type error: %v", err)
	}

	catalogs := NewCatalogScreen(f.api.Catalogs(), f.api.CatalogTypes(), f.auth)
	defer catalogs.Close()
	if err := catalogs.Load(ctx); err != nil {
		t.Fatalf("Load catalogs error: %v", err)
	}
	if opts := catalogs.TypeOptions(); len(opts) != 1 || opts[0].ID != electronics.ID {
		t.Fatalf("unexpected type options %v", opts)
	}

	if err := catalogs.Create(); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	tv, err := catalogs.Submit(ctx, CatalogFields{
		Name:          "Televisor",
		Description:   "Pantalla 55 pulgadas",
		CatalogTypeID: electronics.ID,
		Cost:          dec("1500.50"),
		Discount:      dec("10"),
		Active:        true,
	})
	if err != nil {
		t.Fatalf("Submit catalog error: %v", err)
	}
	items := catalogs.Items()
	if len(items) != 1 || items[0].TypeName() != "Electrónica" {
		t.Fatalf("unexpected catalogs %+v", items)
	}
	if !items[0].FinalPrice().Equal(dec("1350.45")) {
		t.Fatalf("unexpected final price %s", items[0].FinalPrice())
	}

	if err := types.Load(ctx); err != nil {
		t.Fatalf("reload types error: %v", err)
	}
	if types.Items()[0].NumberOfProducts != 1 {
		t.Fatalf("expected one product in type, got %d", types.Items()[0].NumberOfProducts)
	}

	if err := catalogs.Edit(items[0]); err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	_, err = catalogs.Submit(ctx, CatalogFields{Name: "Televisor", CatalogTypeID: 999, Cost: dec("1"), Discount: dec("0"), Active: true})
	if UserMessage(err, "") != "El tipo de catálogo no existe" {
		t.Fatalf("expected server validation message, got %v", err)
	}
	if _, ok := catalogs.Form(); !ok {
		t.Fatalf("form should stay open after a server rejection")
	}
	catalogs.Cancel()

	confirmed := false
	ok, err := catalogs.Delete(ctx, tv, ConfirmFunc(func(string) bool { confirmed = true; return true }))
	if err != nil || !ok || !confirmed {
		t.Fatalf("Delete error: %v ok=%v confirmed=%v", err, ok, confirmed)
	}
	if catalogs.Items()[0].Active {
		t.Fatalf("catalog should be inactive after delete")
	}
	if _, err := catalogs.Delete(ctx, catalogs.Items()[0], ConfirmFunc(func(string) bool { return true })); !errors.Is(err, ErrAlreadyInactive) {
		t.Fatalf("expected ErrAlreadyInactive, got %v", err)
	}
}

func TestLiveRejectedSessionLogsOut(t *testing.T) {
	f := newLiveFixture(t)
	ctx := context.Background()
	f.register(t)

	// A token the server did not sign but that looks locally valid.
	if err := f.store.Set(ctx, Session{Token: "forged"}); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	screen := NewCatalogTypeScreen(f.api.CatalogTypes(), f.auth)
	defer screen.Close()

	if err := screen.Load(ctx); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, ok := f.store.Get(); ok {
		t.Fatalf("rejected session must be cleared")
	}
	if nav, _ := f.nav.last(); nav != (navCall{RouteLogin, true}) {
		t.Fatalf("unexpected navigation %+v", nav)
	}
}

func TestGatewayWithoutSession(t *testing.T) {
	f := newLiveFixture(t)
	if _, err := f.api.CatalogTypes().GetAll(context.Background()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestGatewayErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION_ERROR","message":"La descripción es requerida"}}`))
	}))
	defer srv.Close()

	store := NewCredentialStore(nil)
	if err := store.Set(context.Background(), Session{Token: "tok"}); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	api := NewAPIClient(srv.URL+"/", 0, store)
	_, err := api.CatalogTypes().Create(context.Background(), CatalogTypeFields{})
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gerr.Status != http.StatusBadRequest || gerr.Code != "VALIDATION_ERROR" || gerr.Message != "La descripción es requerida" {
		t.Fatalf("unexpected gateway error %+v", gerr)
	}
}
