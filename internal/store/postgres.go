package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/pharmagician/pharma-engine/pkg/types"
)

// PostgresStore reads the catalog from the scraper-maintained schema. Table
// and column names are quoted because the schema uses mixed case.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const listQuery = `
	SELECT p.id, p.title, p.price, p."vendorId", v.name AS vendor_name, b.id AS brand_id, b.name AS brand_name, p.description
	  FROM "Product" p
	  JOIN "Vendor" v ON v.id = p."vendorId"
	  LEFT JOIN "Brand" b ON b.id = p."brandId"
	 ORDER BY p.id`

func (s *PostgresStore) ListAll(ctx context.Context) ([]types.RawProduct, error) {
	rows, err := s.db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []types.RawProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (types.RawProduct, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.title, p.price, p."vendorId", v.name AS vendor_name, b.id AS brand_id, b.name AS brand_name, p.description
		  FROM "Product" p
		  JOIN "Vendor" v ON v.id = p."vendorId"
		  LEFT JOIN "Brand" b ON b.id = p."brandId"
		 WHERE p.id = $1`, id)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.RawProduct{}, false, nil
	}
	if err != nil {
		return types.RawProduct{}, false, err
	}
	return p, true, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProduct(row scannable) (types.RawProduct, error) {
	var (
		p           types.RawProduct
		price       sql.NullFloat64
		brandID     sql.NullString
		brandName   sql.NullString
		description sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Title, &price, &p.VendorID, &p.VendorName, &brandID, &brandName, &description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RawProduct{}, err
		}
		return types.RawProduct{}, fmt.Errorf("scan product: %w", err)
	}
	if price.Valid {
		p.Price = price.Float64
	}
	p.BrandID = brandID.String
	p.BrandName = brandName.String
	p.Description = description.String
	return p, nil
}
