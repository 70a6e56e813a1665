package devapi

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedDoc is the YAML layout of a seed file:
//
//	catalog_types:
//	  - description: Electrónica
//	    catalogs:
//	      - name: Televisor
//	        cost: "1500.00"
//	        discount: "10"
type SeedDoc struct {
	CatalogTypes []seedType `yaml:"catalog_types"`
}

type seedType struct {
	Description string        `yaml:"description"`
	Active      *bool         `yaml:"active"`
	Catalogs    []seedCatalog `yaml:"catalogs"`
}

type seedCatalog struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Cost        string `yaml:"cost"`
	Discount    string `yaml:"discount"`
	Active      *bool  `yaml:"active"`
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(b []byte) (SeedDoc, error) {
	var doc SeedDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("seed inválido: %w", err)
	}
	for i, t := range doc.CatalogTypes {
		if strings.TrimSpace(t.Description) == "" {
			return doc, fmt.Errorf("catalog_types[%d]: description es requerido", i)
		}
		for j, c := range t.Catalogs {
			if _, err := seedInput(0, c); err != nil {
				return doc, fmt.Errorf("catalog_types[%d].catalogs[%d]: %w", i, j, err)
			}
		}
	}
	return doc, nil
}

// LoadSeedFile reads and parses the seed file at path.
func LoadSeedFile(path string) (SeedDoc, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return SeedDoc{}, err
	}
	return ParseSeed(b)
}

// ApplySeed inserts the seed when no catalog type exists yet.
func ApplySeed(ctx context.Context, doc SeedDoc, types CatalogTypeRepository, catalogs CatalogRepository) error {
	existing, err := types.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	var nTypes, nCatalogs int
	for _, st := range doc.CatalogTypes {
		t, err := types.Create(ctx, st.Description, boolOr(st.Active, true))
		if err != nil {
			return err
		}
		nTypes++
		for _, sc := range st.Catalogs {
			in, err := seedInput(t.ID, sc)
			if err != nil {
				return err
			}
			if _, err := catalogs.Create(ctx, in); err != nil {
				return err
			}
			nCatalogs++
		}
	}
	log.Printf("seeded catalog_types=%d catalogs=%d", nTypes, nCatalogs)
	return nil
}

func seedInput(typeID int64, c seedCatalog) (CatalogInput, error) {
	in := CatalogInput{
		Name:          c.Name,
		Description:   c.Description,
		CatalogTypeID: typeID,
		Active:        boolOr(c.Active, true),
	}
	var err error
	if in.Cost, err = parseMoney(c.Cost); err != nil {
		return in, fmt.Errorf("cost: %w", err)
	}
	if in.Discount, err = parseMoney(c.Discount); err != nil {
		return in, fmt.Errorf("discount: %w", err)
	}
	if msg := validateCatalogInput(in); msg != "" {
		return in, fmt.Errorf("%s", msg)
	}
	return in, nil
}

func parseMoney(v string) (decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
