package core

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CatalogType groups catalogs. NumberOfProducts is computed by the API and
// never sent back.
type CatalogType struct {
	ID               int64  `json:"id"`
	Description      string `json:"description"`
	Active           bool   `json:"active"`
	NumberOfProducts int    `json:"number_of_products"`
}

// CatalogTypeFields is the editable part of a CatalogType.
type CatalogTypeFields struct {
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

func (f CatalogTypeFields) Validate() error {
	if strings.TrimSpace(f.Description) == "" {
		return invalid("description", "La descripción es requerida")
	}
	return nil
}

// Catalog is a sellable entry of a catalog type.
type Catalog struct {
	ID                     int64           `json:"id"`
	Name                   string          `json:"name"`
	Description            string          `json:"description"`
	CatalogTypeID          int64           `json:"catalog_type_id"`
	CatalogTypeDescription string          `json:"catalog_type_description,omitempty"`
	Cost                   decimal.Decimal `json:"cost"`
	Discount               decimal.Decimal `json:"discount"`
	Active                 bool            `json:"active"`
}

// FinalPrice is Cost minus Discount percent of it.
func (c Catalog) FinalPrice() decimal.Decimal {
	return FinalPrice(c.Cost, c.Discount)
}

// TypeName is the catalog type label, with a placeholder when the API did not
// resolve it.
func (c Catalog) TypeName() string {
	if c.CatalogTypeDescription == "" {
		return "Tipo no encontrado"
	}
	return c.CatalogTypeDescription
}

// FinalPrice computes cost - cost*discount/100.
func FinalPrice(cost, discount decimal.Decimal) decimal.Decimal {
	return cost.Sub(cost.Mul(discount).Div(hundred))
}

// CatalogFields is the editable part of a Catalog.
type CatalogFields struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	CatalogTypeID int64           `json:"catalog_type_id"`
	Cost          decimal.Decimal `json:"cost"`
	Discount      decimal.Decimal `json:"discount"`
	Active        bool            `json:"active"`
}

func (f CatalogFields) Validate() error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return invalid("name", "El nombre es requerido")
	case f.CatalogTypeID <= 0:
		return invalid("catalog_type_id", "El tipo de catálogo es requerido")
	case f.Cost.IsNegative():
		return invalid("cost", "El costo no puede ser negativo")
	case f.Discount.IsNegative() || f.Discount.GreaterThan(hundred):
		return invalid("discount", "El descuento debe estar entre 0 y 100")
	}
	return nil
}

// CatalogTypeResource describes catalog types to the generic screen.
var CatalogTypeResource = Resource[CatalogType]{
	ID:     func(t CatalogType) int64 { return t.ID },
	Label:  func(t CatalogType) string { return t.Description },
	Active: func(t CatalogType) bool { return t.Active },
	SearchFields: func(t CatalogType) []string {
		return []string{t.Description}
	},
	Texts: Texts{
		Created:       "Tipo de catálogo creado exitosamente",
		Updated:       "Tipo de catálogo actualizado exitosamente",
		Deleted:       "Tipo de catálogo eliminado exitosamente",
		LoadFailed:    "Error al cargar",
		SaveFailed:    "Error al guardar el tipo de catálogo",
		DeleteFailed:  "Error al eliminar el tipo de catálogo",
		ConfirmDelete: "Eliminar %s?",
	},
}

// CatalogResource describes catalogs to the generic screen.
var CatalogResource = Resource[Catalog]{
	ID:     func(c Catalog) int64 { return c.ID },
	Label:  func(c Catalog) string { return c.Name },
	Active: func(c Catalog) bool { return c.Active },
	SearchFields: func(c Catalog) []string {
		return []string{c.Name, c.Description}
	},
	Texts: Texts{
		Created:       "Catálogo creado exitosamente",
		Updated:       "Catálogo actualizado exitosamente",
		Deleted:       "Catálogo eliminado exitosamente",
		LoadFailed:    "Error al cargar los catálogos",
		SaveFailed:    "Error al guardar el catálogo",
		DeleteFailed:  "Error al eliminar el catálogo",
		ConfirmDelete: "¿Estás seguro de eliminar el catálogo \"%s\"?\n\nEsta acción no se puede deshacer.",
	},
}

type CatalogTypeScreen = Orchestrator[CatalogType, CatalogTypeFields]

func NewCatalogTypeScreen(gw Gateway[CatalogType, CatalogTypeFields], guard SessionGuard, opts ...Option) *CatalogTypeScreen {
	return NewOrchestrator(CatalogTypeResource, gw, guard, opts...)
}

// TypeLister fetches the catalog types offered by the catalog form.
type TypeLister interface {
	GetAll(ctx context.Context) ([]CatalogType, error)
}

// CatalogScreen is the catalogs screen plus the catalog types its form
// offers.
type CatalogScreen struct {
	*Orchestrator[Catalog, CatalogFields]

	types TypeLister

	mu          sync.Mutex
	typeOptions []CatalogType
}

func NewCatalogScreen(gw Gateway[Catalog, CatalogFields], types TypeLister, guard SessionGuard, opts ...Option) *CatalogScreen {
	s := &CatalogScreen{types: types}
	opts = append(opts, WithAuxiliary(s.loadTypes))
	s.Orchestrator = NewOrchestrator(CatalogResource, gw, guard, opts...)
	return s
}

func (s *CatalogScreen) loadTypes(ctx context.Context) error {
	types, err := s.types.GetAll(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.typeOptions = nil
		return err
	}
	s.typeOptions = types
	return nil
}

// TypeOptions returns the catalog types loaded with the last successful
// catalog load; empty when that auxiliary load failed.
func (s *CatalogScreen) TypeOptions() []CatalogType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CatalogType{}, s.typeOptions...)
}
