package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFinalPrice(t *testing.T) {
	tests := []struct {
		cost, discount, want string
	}{
		{"100", "15", "85"},
		{"19.99", "0", "19.99"},
		{"200", "100", "0"},
		{"1500.50", "10", "1350.45"},
		{"0", "50", "0"},
	}
	for _, tt := range tests {
		got := FinalPrice(dec(tt.cost), dec(tt.discount))
		if !got.Equal(dec(tt.want)) {
			t.Errorf("FinalPrice(%s, %s) = %s, want %s", tt.cost, tt.discount, got, tt.want)
		}
	}

	c := Catalog{Cost: dec("80"), Discount: dec("25")}
	if !c.FinalPrice().Equal(dec("60")) {
		t.Fatalf("Catalog.FinalPrice = %s", c.FinalPrice())
	}
}

func TestCatalogTypeName(t *testing.T) {
	if got := (Catalog{}).TypeName(); got != "Tipo no encontrado" {
		t.Fatalf("unexpected placeholder %q", got)
	}
	if got := (Catalog{CatalogTypeDescription: "Hogar"}).TypeName(); got != "Hogar" {
		t.Fatalf("unexpected type name %q", got)
	}
}

func TestCatalogFieldsValidate(t *testing.T) {
	valid := CatalogFields{Name: "Televisor", CatalogTypeID: 1, Cost: dec("100"), Discount: dec("10")}
	tests := []struct {
		name    string
		mutate  func(*CatalogFields)
		field   string
		message string
	}{
		{"valid", func(*CatalogFields) {}, "", ""},
		{"missing name", func(f *CatalogFields) { f.Name = " " }, "name", "El nombre es requerido"},
		{"missing type", func(f *CatalogFields) { f.CatalogTypeID = 0 }, "catalog_type_id", "El tipo de catálogo es requerido"},
		{"negative cost", func(f *CatalogFields) { f.Cost = dec("-1") }, "cost", "El costo no puede ser negativo"},
		{"negative discount", func(f *CatalogFields) { f.Discount = dec("-0.5") }, "discount", "El descuento debe estar entre 0 y 100"},
		{"discount over 100", func(f *CatalogFields) { f.Discount = dec("100.01") }, "discount", "El descuento debe estar entre 0 y 100"},
		{"discount exactly 100", func(f *CatalogFields) { f.Discount = dec("100") }, "", ""},
		{"name checked first", func(f *CatalogFields) { f.Name = ""; f.Cost = dec("-1") }, "name", "El nombre es requerido"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			err := f.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field || verr.Message != tt.message {
				t.Fatalf("got %v, want %s/%q", err, tt.field, tt.message)
			}
		})
	}
}

func TestCatalogTypeFieldsValidate(t *testing.T) {
	if err := (CatalogTypeFields{Description: "Hogar"}).Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	err := CatalogTypeFields{Description: "\t"}.Validate()
	if UserMessage(err, "") != "La descripción es requerida" {
		t.Fatalf("unexpected error %v", err)
	}
}

type catalogGateway struct {
	mu    sync.Mutex
	items []Catalog
}

func (g *catalogGateway) GetAll(ctx context.Context) ([]Catalog, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Catalog(nil), g.items...), nil
}

func (g *catalogGateway) Create(ctx context.Context, f CatalogFields) (Catalog, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := Catalog{ID: int64(len(g.items) + 1), Name: f.Name, CatalogTypeID: f.CatalogTypeID, Cost: f.Cost, Discount: f.Discount, Active: f.Active}
	g.items = append(g.items, c)
	return c, nil
}

func (g *catalogGateway) Update(ctx context.Context, id int64, f CatalogFields) (Catalog, error) {
	return Catalog{}, errors.New("not implemented")
}

func (g *catalogGateway) Deactivate(ctx context.Context, id int64) error {
	return errors.New("not implemented")
}

type typeLister struct {
	mu    sync.Mutex
	types []CatalogType
	err   error
}

func (l *typeLister) GetAll(ctx context.Context) ([]CatalogType, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.types, l.err
}

func TestCatalogScreenLoadsTypeOptions(t *testing.T) {
	f := newAuthFixture(t)
	f.signIn(t, "tok-1")
	gw := &catalogGateway{items: []Catalog{{ID: 1, Name: "Televisor", CatalogTypeID: 1, Active: true}}}
	types := &typeLister{types: []CatalogType{{ID: 1, Description: "Electrónica", Active: true}}}
	screen := NewCatalogScreen(gw, types, f.auth, WithClock(f.clock))
	defer screen.Close()
	ctx := context.Background()

	if err := screen.Load(ctx); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if opts := screen.TypeOptions(); len(opts) != 1 || opts[0].Description != "Electrónica" {
		t.Fatalf("unexpected type options %v", opts)
	}

	types.mu.Lock()
	types.err = errors.New("boom")
	types.mu.Unlock()
	if err := screen.Load(ctx); err != nil {
		t.Fatalf("auxiliary failure must not fail the load: %v", err)
	}
	if opts := screen.TypeOptions(); len(opts) != 0 {
		t.Fatalf("failed auxiliary load should leave no options, got %v", opts)
	}
	if len(screen.Items()) != 1 {
		t.Fatalf("primary collection should be loaded")
	}
	if _, ok := screen.Message(); ok {
		t.Fatalf("auxiliary failure shows no message")
	}
}

func TestCatalogScreenValidatesBeforeSaving(t *testing.T) {
	f := newAuthFixture(t)
	f.signIn(t, "tok-1")
	gw := &catalogGateway{}
	screen := NewCatalogScreen(gw, &typeLister{}, f.auth, WithClock(f.clock))
	defer screen.Close()
	ctx := context.Background()

	if err := screen.Create(); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	_, err := screen.Submit(ctx, CatalogFields{Name: "Radio", CatalogTypeID: 1, Cost: dec("10"), Discount: dec("120")})
	if UserMessage(err, "") != "El descuento debe estar entre 0 y 100" {
		t.Fatalf("unexpected error %v", err)
	}
	if msg, _ := screen.Message(); msg.Text != "El descuento debe estar entre 0 y 100" {
		t.Fatalf("unexpected message %q", msg.Text)
	}

	saved, err := screen.Submit(ctx, CatalogFields{Name: "Radio", CatalogTypeID: 1, Cost: dec("10"), Discount: dec("20"), Active: true})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if !saved.FinalPrice().Equal(dec("8")) {
		t.Fatalf("unexpected final price %s", saved.FinalPrice())
	}
	if msg, _ := screen.Message(); msg.Text != "Catálogo creado exitosamente" {
		t.Fatalf("unexpected message %q", msg.Text)
	}
}
