package devapi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const sampleSeed = `
catalog_types:
  - description: Electrónica
    catalogs:
      - name: Televisor
        description: Pantalla 55 pulgadas
        cost: "1500.00"
        discount: "10"
      - name: Radio
        cost: "45.5"
        active: false
  - description: Descontinuado
    active: false
`

func TestParseSeed(t *testing.T) {
	doc, err := ParseSeed([]byte(sampleSeed))
	if err != nil {
		t.Fatalf("ParseSeed error: %v", err)
	}
	if len(doc.CatalogTypes) != 2 || len(doc.CatalogTypes[0].Catalogs) != 2 {
		t.Fatalf("unexpected doc %+v", doc)
	}

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing description", "catalog_types:\n  - description: ' '\n", "description es requerido"},
		{"bad cost", "catalog_types:\n  - description: A\n    catalogs:\n      - name: X\n        cost: abc\n", "cost"},
		{"discount out of range", "catalog_types:\n  - description: A\n    catalogs:\n      - name: X\n        discount: '101'\n", "El descuento debe estar entre 0 y 100"},
		{"missing name", "catalog_types:\n  - description: A\n    catalogs:\n      - cost: '1'\n", "El nombre es requerido"},
		{"not yaml", "catalog_types: [", "seed inválido"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestApplySeedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(sampleSeed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	doc, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile error: %v", err)
	}

	mem := NewMemoryStore()
	types, catalogs := mem.CatalogTypes(), mem.Catalogs()
	if err := ApplySeed(ctx, doc, types, catalogs); err != nil {
		t.Fatalf("ApplySeed error: %v", err)
	}
	if err := ApplySeed(ctx, doc, types, catalogs); err != nil {
		t.Fatalf("second ApplySeed error: %v", err)
	}

	ts, _ := types.List(ctx)
	cs, _ := catalogs.List(ctx)
	if len(ts) != 2 || len(cs) != 2 {
		t.Fatalf("seed applied more than once: types=%d catalogs=%d", len(ts), len(cs))
	}
	if ts[0].NumberOfProducts != 1 || ts[1].Active {
		t.Fatalf("unexpected types %+v", ts)
	}
	if cs[0].CatalogTypeDescription != "Electrónica" || !cs[0].Cost.Equal(decimal.RequireFromString("1500")) {
		t.Fatalf("unexpected catalog %+v", cs[0])
	}
	if cs[1].Active || !cs[1].Discount.IsZero() {
		t.Fatalf("unexpected catalog %+v", cs[1])
	}

	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing seed file must fail")
	}
}

func TestBootstrapOperator(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	auth := NewRepositoryAuthService(mem.Users())
	pwPath := filepath.Join(t.TempDir(), "initial-password")
	cfg := Config{
		BootstrapOperatorEnabled:    true,
		BootstrapOperatorEmail:      "admin@kakariko.local",
		InitialOperatorPasswordPath: pwPath,
	}

	if err := BootstrapOperator(ctx, auth, mem.Users(), cfg); err != nil {
		t.Fatalf("BootstrapOperator error: %v", err)
	}
	raw, err := os.ReadFile(pwPath)
	if err != nil {
		t.Fatalf("read password file: %v", err)
	}
	password := strings.TrimSpace(string(raw))
	if len(password) != 24 {
		t.Fatalf("unexpected password length %d", len(password))
	}
	if _, err := auth.Authenticate(ctx, "admin@kakariko.local", password); err != nil {
		t.Fatalf("generated password should authenticate: %v", err)
	}

	if err := os.Remove(pwPath); err != nil {
		t.Fatalf("remove password file: %v", err)
	}
	if err := BootstrapOperator(ctx, auth, mem.Users(), cfg); err != nil {
		t.Fatalf("second BootstrapOperator error: %v", err)
	}
	if _, err := os.Stat(pwPath); !os.IsNotExist(err) {
		t.Fatalf("bootstrap must not run once an account exists")
	}
}
