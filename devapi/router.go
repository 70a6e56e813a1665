package devapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Deps are the collaborators the router is wired with.
type Deps struct {
	Auth        AuthService
	Users       UserRepository
	Types       CatalogTypeRepository
	Catalogs    CatalogRepository
	Tokens      *TokenIssuer
	Revocations Revocations
	Sessions    sessions.Store
	StartedAt   time.Time
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(), gin.Recovery())

	// Global middleware: origin/CORS -> session -> CSRF
	r.Use(OriginMiddleware(cfg))
	r.Use(SessionMiddleware(cfg, d.Sessions))
	r.Use(CSRFMiddleware(cfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/auth/login", func(c *gin.Context) {
			var req struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}

			user, err := d.Auth.Authenticate(c.Request.Context(), req.Email, req.Password)
			if err != nil {
				respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Credenciales inválidas")
				return
			}
			issueSession(c, cfg, d, user, http.StatusOK)
		})

		api.POST("/auth/register", func(c *gin.Context) {
			var req struct {
				Name     string `json:"name"`
				Lastname string `json:"lastname"`
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			in := RegisterInput{
				Name:     strings.TrimSpace(req.Name),
				Lastname: strings.TrimSpace(req.Lastname),
				Email:    strings.TrimSpace(req.Email),
				Password: req.Password,
			}
			if msg := validateRegister(in); msg != "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", msg)
				return
			}

			user, err := d.Auth.Register(c.Request.Context(), in)
			if err != nil {
				if errors.Is(err, ErrEmailTaken) {
					respondError(c, http.StatusConflict, "EMAIL_ALREADY_REGISTERED", "El email ya está registrado")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to register")
				return
			}
			issueSession(c, cfg, d, user, http.StatusCreated)
		})

		authed := api.Group("")
		authed.Use(RequireAuth(d.Tokens, d.Revocations, d.Users))

		authed.GET("/auth/validate", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
		})

		authed.POST("/auth/logout", func(c *gin.Context) {
			claims := currentClaims(c)
			if claims != nil && claims.ExpiresAt != nil {
				if err := d.Revocations.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to revoke token")
					return
				}
			}
			if sess := sessionFrom(c); sess != nil {
				sess.Values = map[interface{}]interface{}{}
				applySessionOptions(cfg, sess)
				sess.Options.MaxAge = -1 // Must be set AFTER applySessionOptions to properly delete cookie
				if err := sess.Save(c.Request, c.Writer); err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to clear session")
					return
				}
			}
			c.Status(http.StatusNoContent)
		})

		authed.GET("/status", func(c *gin.Context) {
			st, err := CollectSystemStatus(c.Request.Context(), d.Types, d.Catalogs, d.StartedAt)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to collect status")
				return
			}
			c.JSON(http.StatusOK, st)
		})

		registerCatalogTypeRoutes(authed, d)
		registerCatalogRoutes(authed, d)
	}

	return r
}

// issueSession signs a token for user, keeps it in the browser session and
// answers {token, expires_at, user}.
func issueSession(c *gin.Context, cfg Config, d Deps, user User, status int) {
	token, exp, err := d.Tokens.Issue(user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to issue token")
		return
	}

	if sess := sessionFrom(c); sess != nil {
		// reset session values (simple rotation)
		sess.Values = map[interface{}]interface{}{}
		sess.Values[sessionTokenKey] = token
		applySessionOptions(cfg, sess)
		if err := sess.Save(c.Request, c.Writer); err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to set session")
			return
		}
	}

	c.JSON(status, gin.H{"token": token, "expires_at": exp, "user": user})
}

func registerCatalogTypeRoutes(g *gin.RouterGroup, d Deps) {
	type typeRequest struct {
		Description string `json:"description"`
		Active      *bool  `json:"active"`
	}

	g.GET("/catalog-types", func(c *gin.Context) {
		items, err := d.Types.List(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch catalog types")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	g.POST("/catalog-types", func(c *gin.Context) {
		var req typeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		if strings.TrimSpace(req.Description) == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "La descripción es requerida")
			return
		}
		t, err := d.Types.Create(c.Request.Context(), req.Description, boolOr(req.Active, true))
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create catalog type")
			return
		}
		c.JSON(http.StatusCreated, t)
	})

	g.PUT("/catalog-types/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req typeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		if strings.TrimSpace(req.Description) == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "La descripción es requerida")
			return
		}
		ctx := c.Request.Context()
		current, err := d.Types.Get(ctx, id)
		if err != nil {
			respondRepoError(c, err, "catalog type")
			return
		}
		t, err := d.Types.Update(ctx, id, req.Description, boolOr(req.Active, current.Active))
		if err != nil {
			respondRepoError(c, err, "catalog type")
			return
		}
		c.JSON(http.StatusOK, t)
	})

	g.PATCH("/catalog-types/:id/deactivate", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := d.Types.Deactivate(c.Request.Context(), id); err != nil {
			respondRepoError(c, err, "catalog type")
			return
		}
		c.Status(http.StatusNoContent)
	})
}

type catalogRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	CatalogTypeID int64           `json:"catalog_type_id"`
	Cost          decimal.Decimal `json:"cost"`
	Discount      decimal.Decimal `json:"discount"`
	Active        *bool           `json:"active"`
}

func registerCatalogRoutes(g *gin.RouterGroup, d Deps) {
	// bindCatalog decodes and validates the body; it answers the error itself.
	bindCatalog := func(c *gin.Context, defaultActive bool) (CatalogInput, bool) {
		var req catalogRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return CatalogInput{}, false
		}
		in := CatalogInput{
			Name:          req.Name,
			Description:   req.Description,
			CatalogTypeID: req.CatalogTypeID,
			Cost:          req.Cost,
			Discount:      req.Discount,
			Active:        boolOr(req.Active, defaultActive),
		}
		if msg := validateCatalogInput(in); msg != "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", msg)
			return CatalogInput{}, false
		}
		if _, err := d.Types.Get(c.Request.Context(), in.CatalogTypeID); err != nil {
			if errors.Is(err, ErrNotFound) {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "El tipo de catálogo no existe")
			} else {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch catalog type")
			}
			return CatalogInput{}, false
		}
		return in, true
	}

	g.GET("/catalogs", func(c *gin.Context) {
		items, err := d.Catalogs.List(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch catalogs")
			return
		}
		c.JSON(http.StatusOK, gin.H{"catalogs": items})
	})

	g.POST("/catalogs", func(c *gin.Context) {
		in, ok := bindCatalog(c, true)
		if !ok {
			return
		}
		item, err := d.Catalogs.Create(c.Request.Context(), in)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create catalog")
			return
		}
		c.JSON(http.StatusCreated, item)
	})

	g.PUT("/catalogs/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		current, err := d.Catalogs.Get(c.Request.Context(), id)
		if err != nil {
			respondRepoError(c, err, "catalog")
			return
		}
		in, ok := bindCatalog(c, current.Active)
		if !ok {
			return
		}
		item, err := d.Catalogs.Update(c.Request.Context(), id, in)
		if err != nil {
			respondRepoError(c, err, "catalog")
			return
		}
		c.JSON(http.StatusOK, item)
	})

	g.PATCH("/catalogs/:id/deactivate", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := d.Catalogs.Deactivate(c.Request.Context(), id); err != nil {
			respondRepoError(c, err, "catalog")
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func respondRepoError(c *gin.Context, err error, what string) {
	if errors.Is(err, ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", what+" not found")
		return
	}
	respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to save "+what)
}

func validateRegister(in RegisterInput) string {
	switch {
	case in.Name == "":
		return "El nombre es requerido"
	case in.Lastname == "":
		return "El apellido es requerido"
	case in.Email == "":
		return "El email es requerido"
	case !strings.Contains(in.Email, "@") || !strings.Contains(in.Email, "."):
		return "Por favor ingresa un email válido"
	case len(in.Password) < 8:
		return "La contraseña debe tener al menos 8 caracteres"
	}
	return ""
}

func validateCatalogInput(in CatalogInput) string {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return "El nombre es requerido"
	case in.Cost.IsNegative():
		return "El costo no puede ser negativo"
	case in.Discount.IsNegative() || in.Discount.GreaterThan(hundred):
		return "El descuento debe estar entre 0 y 100"
	}
	return ""
}
