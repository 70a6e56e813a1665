package devapi

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	sessionName     = "kakariko_session"
	sessionTokenKey = "token"
	sessionCSRFKey  = "csrf_token"

	ctxSession = "session"
	ctxUser    = "user"
	ctxClaims  = "claims"
)

// SessionMiddleware loads the browser session cookie. Browser clients keep
// their access token there; API clients send it as a bearer header instead.
func SessionMiddleware(cfg Config, store sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := store.Get(c.Request, sessionName)
		if err != nil {
			// A cookie signed with an old key: start over with a fresh session.
			log.Printf("[session] discarding unreadable cookie: %v", err)
		}
		applySessionOptions(cfg, session)
		c.Set(ctxSession, session)
		c.Next()
	}
}

// OriginMiddleware validates Origin/Referer against the allowed list and sets CORS headers.
func OriginMiddleware(cfg Config) gin.HandlerFunc {
	allowAny := false
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAny = true
			continue
		}
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" || allowAny {
			return true
		}
		_, ok := allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		referer := c.GetHeader("Referer")
		if origin == "" && referer != "" {
			if u, err := url.Parse(referer); err == nil {
				origin = u.Scheme + "://" + u.Host
			}
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origen no permitido")
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-CSRF-Token")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
	c.Header("Access-Control-Expose-Headers", "X-CSRF-Token")
}

// CSRFMiddleware issues a per-session CSRF token and, for cookie-authenticated
// requests, requires it on unsafe methods. Bearer requests are exempt.
func CSRFMiddleware(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessionFrom(c)
		if session == nil {
			c.Next()
			return
		}

		token, _ := session.Values[sessionCSRFKey].(string)
		if token == "" {
			var err error
			token, err = generateCSRFToken()
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to issue csrf token")
				c.Abort()
				return
			}
			session.Values[sessionCSRFKey] = token
			if err := session.Save(c.Request, c.Writer); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to persist session")
				c.Abort()
				return
			}
		}

		cookieAuth := bearerToken(c) == "" && sessionToken(c) != ""
		if cookieAuth && !isSafeMethod(c.Request.Method) && !csrfExemptPath(c.Request.URL.Path) {
			if header := c.GetHeader("X-CSRF-Token"); header == "" || header != token {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "invalid csrf token")
				c.Abort()
				return
			}
		}

		c.Writer.Header().Set("X-CSRF-Token", token)
		c.Next()
	}
}

// RequireAuth accepts a bearer token or the token kept in the session cookie,
// rejects revoked or expired tokens and loads the operator.
func RequireAuth(tokens *TokenIssuer, revoked Revocations, users UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = sessionToken(c)
		}
		if token == "" {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Debes iniciar sesión.")
			c.Abort()
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "La sesión expiró. Inicia sesión nuevamente.")
			c.Abort()
			return
		}
		ctx := c.Request.Context()
		isRevoked, err := revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to check token")
			c.Abort()
			return
		}
		if isRevoked {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "La sesión fue cerrada.")
			c.Abort()
			return
		}

		uid, err := claims.UserID()
		if err != nil {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "token inválido")
			c.Abort()
			return
		}
		u, err := users.FindByID(ctx, uid)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "El usuario no existe.")
			} else {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load user")
			}
			c.Abort()
			return
		}

		c.Set(ctxUser, u.User())
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func sessionFrom(c *gin.Context) *sessions.Session {
	v, _ := c.Get(ctxSession)
	s, _ := v.(*sessions.Session)
	return s
}

func sessionToken(c *gin.Context) string {
	s := sessionFrom(c)
	if s == nil {
		return ""
	}
	token, _ := s.Values[sessionTokenKey].(string)
	return token
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// Paths that intentionally skip CSRF validation.
func csrfExemptPath(path string) bool {
	switch path {
	case "/api/auth/login", "/api/auth/register":
		return true
	default:
		return false
	}
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func applySessionOptions(cfg Config, session *sessions.Session) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	session.Options.Path = "/"
	session.Options.MaxAge = int(cfg.TokenTTL.Seconds())
	session.Options.HttpOnly = true
	session.Options.Secure = cfg.CookieSecure
	session.Options.SameSite = sameSiteFromString(cfg.CookieSameSite)
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}
