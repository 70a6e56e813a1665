package devapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CatalogType groups catalogs. NumberOfProducts counts its active catalogs.
type CatalogType struct {
	ID               int64  `json:"id"`
	Description      string `json:"description"`
	Active           bool   `json:"active"`
	NumberOfProducts int    `json:"number_of_products"`
}

// Catalog is a sellable entry of a catalog type.
type Catalog struct {
	ID                     int64           `json:"id"`
	Name                   string          `json:"name"`
	Description            string          `json:"description"`
	CatalogTypeID          int64           `json:"catalog_type_id"`
	CatalogTypeDescription string          `json:"catalog_type_description"`
	Cost                   decimal.Decimal `json:"cost"`
	Discount               decimal.Decimal `json:"discount"`
	Active                 bool            `json:"active"`
}

// CatalogInput is the writable part of a Catalog.
type CatalogInput struct {
	Name          string
	Description   string
	CatalogTypeID int64
	Cost          decimal.Decimal
	Discount      decimal.Decimal
	Active        bool
}

type CatalogTypeRepository interface {
	List(ctx context.Context) ([]CatalogType, error)
	Get(ctx context.Context, id int64) (*CatalogType, error)
	Create(ctx context.Context, description string, active bool) (*CatalogType, error)
	Update(ctx context.Context, id int64, description string, active bool) (*CatalogType, error)
	Deactivate(ctx context.Context, id int64) error
}

type CatalogRepository interface {
	List(ctx context.Context) ([]Catalog, error)
	Get(ctx context.Context, id int64) (*Catalog, error)
	Create(ctx context.Context, in CatalogInput) (*Catalog, error)
	Update(ctx context.Context, id int64, in CatalogInput) (*Catalog, error)
	Deactivate(ctx context.Context, id int64) error
}

// PgCatalogTypeRepository implements CatalogTypeRepository using pgxpool.
type PgCatalogTypeRepository struct {
	db *pgxpool.Pool
}

func NewPgCatalogTypeRepository(db *pgxpool.Pool) *PgCatalogTypeRepository {
	return &PgCatalogTypeRepository{db: db}
}

const catalogTypeSelect = `
SELECT t.id, t.description, t.active, COUNT(c.id)
FROM catalog_types t
LEFT JOIN catalogs c ON c.catalog_type_id = t.id AND c.active
`

func (r *PgCatalogTypeRepository) List(ctx context.Context) ([]CatalogType, error) {
	rows, err := r.db.Query(ctx, catalogTypeSelect+`GROUP BY t.id ORDER BY t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]CatalogType, 0)
	for rows.Next() {
		var t CatalogType
		if err := rows.Scan(&t.ID, &t.Description, &t.Active, &t.NumberOfProducts); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *PgCatalogTypeRepository) Get(ctx context.Context, id int64) (*CatalogType, error) {
	var t CatalogType
	err := r.db.QueryRow(ctx, catalogTypeSelect+`WHERE t.id=$1 GROUP BY t.id`, id).
		Scan(&t.ID, &t.Description, &t.Active, &t.NumberOfProducts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PgCatalogTypeRepository) Create(ctx context.Context, description string, active bool) (*CatalogType, error) {
	description = strings.TrimSpace(description)
	const q = `INSERT INTO catalog_types (description, active) VALUES ($1,$2) RETURNING id`
	t := CatalogType{Description: description, Active: active}
	if err := r.db.QueryRow(ctx, q, description, active).Scan(&t.ID); err != nil {
		return nil, fmt.Errorf("insert catalog type: %w", err)
	}
	return &t, nil
}

func (r *PgCatalogTypeRepository) Update(ctx context.Context, id int64, description string, active bool) (*CatalogType, error) {
	description = strings.TrimSpace(description)
	const q = `UPDATE catalog_types SET description=$1, active=$2, updated_at=now() WHERE id=$3`
	tag, err := r.db.Exec(ctx, q, description, active, id)
	if err != nil {
		return nil, fmt.Errorf("update catalog type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *PgCatalogTypeRepository) Deactivate(ctx context.Context, id int64) error {
	const q = `UPDATE catalog_types SET active=FALSE, updated_at=now() WHERE id=$1`
	tag, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PgCatalogRepository implements CatalogRepository using pgxpool. Money
// columns travel as text so decimals round-trip exactly.
type PgCatalogRepository struct {
	db *pgxpool.Pool
}

func NewPgCatalogRepository(db *pgxpool.Pool) *PgCatalogRepository {
	return &PgCatalogRepository{db: db}
}

const catalogSelect = `
SELECT c.id, c.name, c.description, c.catalog_type_id, t.description, c.cost::text, c.discount::text, c.active
FROM catalogs c
JOIN catalog_types t ON t.id = c.catalog_type_id
`

func scanCatalog(row pgx.Row) (*Catalog, error) {
	var (
		c              Catalog
		cost, discount string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CatalogTypeID, &c.CatalogTypeDescription, &cost, &discount, &c.Active); err != nil {
		return nil, err
	}
	var err error
	if c.Cost, err = decimal.NewFromString(cost); err != nil {
		return nil, fmt.Errorf("catalog %d cost: %w", c.ID, err)
	}
	if c.Discount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("catalog %d discount: %w", c.ID, err)
	}
	return &c, nil
}

func (r *PgCatalogRepository) List(ctx context.Context) ([]Catalog, error) {
	rows, err := r.db.Query(ctx, catalogSelect+`ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Catalog, 0)
	for rows.Next() {
		c, err := scanCatalog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

func (r *PgCatalogRepository) Get(ctx context.Context, id int64) (*Catalog, error) {
	c, err := scanCatalog(r.db.QueryRow(ctx, catalogSelect+`WHERE c.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *PgCatalogRepository) Create(ctx context.Context, in CatalogInput) (*Catalog, error) {
	const q = `
INSERT INTO catalogs (name, description, catalog_type_id, cost, discount, active)
VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6)
RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, q, strings.TrimSpace(in.Name), strings.TrimSpace(in.Description),
		in.CatalogTypeID, in.Cost.String(), in.Discount.String(), in.Active).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert catalog: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *PgCatalogRepository) Update(ctx context.Context, id int64, in CatalogInput) (*Catalog, error) {
	const q = `
UPDATE catalogs
SET name=$1, description=$2, catalog_type_id=$3, cost=$4::numeric, discount=$5::numeric, active=$6, updated_at=now()
WHERE id=$7`
	tag, err := r.db.Exec(ctx, q, strings.TrimSpace(in.Name), strings.TrimSpace(in.Description),
		in.CatalogTypeID, in.Cost.String(), in.Discount.String(), in.Active, id)
	if err != nil {
		return nil, fmt.Errorf("update catalog: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *PgCatalogRepository) Deactivate(ctx context.Context, id int64) error {
	const q = `UPDATE catalogs SET active=FALSE, updated_at=now() WHERE id=$1`
	tag, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
