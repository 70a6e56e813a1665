package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Paths of the remote API.
const (
	pathLogin        = "/api/auth/login"
	pathRegister     = "/api/auth/register"
	pathValidate     = "/api/auth/validate"
	pathLogout       = "/api/auth/logout"
	pathCatalogTypes = "/api/catalog-types"
	pathCatalogs     = "/api/catalogs"
	pathStatus       = "/api/status"
)

// APIClient calls the catalog management HTTP API. Authenticated calls carry
// the current session token as a bearer credential.
type APIClient struct {
	client  *http.Client
	base    string
	origin  string
	session SessionReader
}

func NewAPIClient(baseURL string, timeout time.Duration, session SessionReader) *APIClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &APIClient{
		client:  &http.Client{Timeout: timeout},
		base:    strings.TrimRight(baseURL, "/"),
		session: session,
	}
}

// SetOrigin sets the Origin header sent with every request.
func (c *APIClient) SetOrigin(origin string) { c.origin = origin }

type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Login implements AuthAPI.
func (c *APIClient) Login(ctx context.Context, email, password string) (Session, error) {
	var sess Session
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, http.MethodPost, pathLogin, "", body, &sess)
	var gerr *GatewayError
	if errors.As(err, &gerr) && gerr.Status == http.StatusUnauthorized {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Register implements AuthAPI.
func (c *APIClient) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	var sess Session
	err := c.do(ctx, http.MethodPost, pathRegister, "", req, &sess)
	var gerr *GatewayError
	if errors.As(err, &gerr) && gerr.Status == http.StatusConflict {
		return Session{}, ErrEmailAlreadyRegistered
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// CheckToken implements TokenChecker. A rejected token yields ErrSessionExpired.
func (c *APIClient) CheckToken(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, pathValidate, token, nil, nil)
}

// Logout implements Revoker.
func (c *APIClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, pathLogout, token, nil, nil)
}

// ServerStatus is the dashboard summary reported by the API.
type ServerStatus struct {
	CatalogTypes struct {
		Active int `json:"active"`
		Total  int `json:"total"`
	} `json:"catalog_types"`
	Catalogs struct {
		Active int `json:"active"`
		Total  int `json:"total"`
	} `json:"catalogs"`
	Memory struct {
		UsedBytes  uint64 `json:"used_bytes"`
		TotalBytes uint64 `json:"total_bytes"`
	} `json:"memory"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// Status fetches the dashboard summary with the current session.
func (c *APIClient) Status(ctx context.Context) (ServerStatus, error) {
	var st ServerStatus
	token := c.token()
	if token == "" {
		return st, ErrSessionExpired
	}
	err := c.do(ctx, http.MethodGet, pathStatus, token, nil, &st)
	return st, err
}

// CatalogTypes returns the catalog types gateway.
func (c *APIClient) CatalogTypes() *RESTGateway[CatalogType, CatalogTypeFields] {
	return NewRESTGateway[CatalogType, CatalogTypeFields](c, pathCatalogTypes, "")
}

// Catalogs returns the catalogs gateway. The list comes wrapped as
// {"catalogs": [...]}.
func (c *APIClient) Catalogs() *RESTGateway[Catalog, CatalogFields] {
	return NewRESTGateway[Catalog, CatalogFields](c, pathCatalogs, "catalogs")
}

func (c *APIClient) token() string {
	if c.session == nil {
		return ""
	}
	s, ok := c.session.Get()
	if !ok {
		return ""
	}
	return s.Token
}

// do sends one JSON request. When token is non-empty the call is
// authenticated and a 401 becomes ErrSessionExpired.
func (c *APIClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			log.Printf("[api] %s %s rejected the session", method, path)
			return ErrSessionExpired
		}
		return &GatewayError{Status: resp.StatusCode, Code: apiErr.Error.Code, Message: apiErr.Error.Message}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// RESTGateway is the Gateway of one resource collection under path. When
// envelope is set, list responses are objects holding the array under that key.
type RESTGateway[T any, F any] struct {
	api      *APIClient
	path     string
	envelope string
}

func NewRESTGateway[T any, F any](api *APIClient, path, envelope string) *RESTGateway[T, F] {
	return &RESTGateway[T, F]{api: api, path: path, envelope: envelope}
}

func (g *RESTGateway[T, F]) GetAll(ctx context.Context) ([]T, error) {
	token, err := g.authToken()
	if err != nil {
		return nil, err
	}
	if g.envelope == "" {
		var items []T
		if err := g.api.do(ctx, http.MethodGet, g.path, token, nil, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapped map[string]json.RawMessage
	if err := g.api.do(ctx, http.MethodGet, g.path, token, nil, &wrapped); err != nil {
		return nil, err
	}
	raw, ok := wrapped[g.envelope]
	if !ok {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", g.envelope, err)
	}
	return items, nil
}

func (g *RESTGateway[T, F]) Create(ctx context.Context, fields F) (T, error) {
	var out T
	token, err := g.authToken()
	if err != nil {
		return out, err
	}
	err = g.api.do(ctx, http.MethodPost, g.path, token, fields, &out)
	return out, err
}

func (g *RESTGateway[T, F]) Update(ctx context.Context, id int64, fields F) (T, error) {
	var out T
	token, err := g.authToken()
	if err != nil {
		return out, err
	}
	err = g.api.do(ctx, http.MethodPut, g.itemPath(id), token, fields, &out)
	return out, err
}

func (g *RESTGateway[T, F]) Deactivate(ctx context.Context, id int64) error {
	token, err := g.authToken()
	if err != nil {
		return err
	}
	return g.api.do(ctx, http.MethodPatch, g.itemPath(id)+"/deactivate", token, nil, nil)
}

func (g *RESTGateway[T, F]) itemPath(id int64) string {
	return g.path + "/" + strconv.FormatInt(id, 10)
}

// authToken refuses to call the API without a session.
func (g *RESTGateway[T, F]) authToken() (string, error) {
	token := g.api.token()
	if token == "" {
		return "", ErrSessionExpired
	}
	return token, nil
}
