// Package products provides product identity lookups; the cross-product
// aggregator groups by product display name.
package products

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gralix-technologies/loanlens/internal/domain"
)

// Repository handles product database operations.
// Database: portfolio.db (products table).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new product repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "products").Logger(),
	}
}

// GetByID returns a product, nil when it does not exist.
func (r *Repository) GetByID(id int64) (*domain.Product, error) {
	var p domain.Product
	var description sql.NullString
	var createdAtUnix sql.NullInt64

	err := r.db.QueryRow(
		"SELECT id, name, description, created_at FROM products WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &description, &createdAtUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product %d: %w", id, err)
	}

	p.Description = description.String
	if createdAtUnix.Valid {
		p.CreatedAt = time.Unix(createdAtUnix.Int64, 0).UTC()
	}

	return &p, nil
}

// NamesByID resolves a batch of product IDs to display names.
func (r *Repository) NamesByID(ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Query("SELECT id, name FROM products WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return names, nil
}

// Create stores a product and backfills the generated row ID.
func (r *Repository) Create(p *domain.Product) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(
		"INSERT INTO products (name, description, created_at) VALUES (?, ?, ?)",
		p.Name, p.Description, p.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create product %s: %w", p.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read product id: %w", err)
	}
	p.ID = id

	return nil
}
