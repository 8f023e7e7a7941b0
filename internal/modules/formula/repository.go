package formula

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gralix-technologies/loanlens/internal/domain"
)

// Repository handles formula persistence.
// Database: portfolio.db (formulas table).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new formula repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "formula").Logger(),
	}
}

const formulaColumns = "id, name, expression, return_type, product_id, is_active, created_at, updated_at"

// FindByName returns the active formula with the given name for a product.
// Product-specific formulas take precedence over global ones (NULL
// product_id); nil is returned when no match exists.
func (r *Repository) FindByName(name string, productID int64) (*domain.Formula, error) {
	query := "SELECT " + formulaColumns + ` FROM formulas
		WHERE name = ? AND is_active = 1 AND (product_id = ? OR product_id IS NULL)
		ORDER BY product_id IS NULL LIMIT 1`
	return r.findOne(query, name, productID)
}

// FindByExpression returns the active formula whose expression text matches
// exactly, with the same product-over-global precedence as FindByName.
func (r *Repository) FindByExpression(expression string, productID int64) (*domain.Formula, error) {
	query := "SELECT " + formulaColumns + ` FROM formulas
		WHERE expression = ? AND is_active = 1 AND (product_id = ? OR product_id IS NULL)
		ORDER BY product_id IS NULL LIMIT 1`
	return r.findOne(query, expression, productID)
}

func (r *Repository) findOne(query string, args ...interface{}) (*domain.Formula, error) {
	row := r.db.QueryRow(query, args...)

	var f domain.Formula
	var productID sql.NullInt64
	var createdAtUnix, updatedAtUnix sql.NullInt64

	err := row.Scan(
		&f.ID,
		&f.Name,
		&f.Expression,
		&f.ReturnType,
		&productID,
		&f.IsActive,
		&createdAtUnix,
		&updatedAtUnix,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan formula: %w", err)
	}

	if productID.Valid {
		f.ProductID = &productID.Int64
	}
	if createdAtUnix.Valid {
		f.CreatedAt = time.Unix(createdAtUnix.Int64, 0).UTC()
	}
	if updatedAtUnix.Valid {
		f.UpdatedAt = time.Unix(updatedAtUnix.Int64, 0).UTC()
	}

	return &f, nil
}

// ListByProduct returns all active formulas usable for a product
// (product-specific plus global), ordered by name.
func (r *Repository) ListByProduct(productID int64) ([]domain.Formula, error) {
	query := "SELECT " + formulaColumns + ` FROM formulas
		WHERE is_active = 1 AND (product_id = ? OR product_id IS NULL)
		ORDER BY name`

	rows, err := r.db.Query(query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query formulas: %w", err)
	}
	defer rows.Close()

	var formulas []domain.Formula
	for rows.Next() {
		var f domain.Formula
		var pid sql.NullInt64
		var createdAtUnix, updatedAtUnix sql.NullInt64

		if err := rows.Scan(
			&f.ID,
			&f.Name,
			&f.Expression,
			&f.ReturnType,
			&pid,
			&f.IsActive,
			&createdAtUnix,
			&updatedAtUnix,
		); err != nil {
			return nil, fmt.Errorf("failed to scan formula: %w", err)
		}

		if pid.Valid {
			f.ProductID = &pid.Int64
		}
		if createdAtUnix.Valid {
			f.CreatedAt = time.Unix(createdAtUnix.Int64, 0).UTC()
		}
		if updatedAtUnix.Valid {
			f.UpdatedAt = time.Unix(updatedAtUnix.Int64, 0).UTC()
		}

		formulas = append(formulas, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating formulas: %w", err)
	}

	return formulas, nil
}

// Save inserts or replaces a formula. A missing ID is generated; the
// updated_at timestamp is always refreshed.
func (r *Repository) Save(f *domain.Formula) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	if f.ReturnType == "" {
		f.ReturnType = domain.ReturnNumeric
	}

	var productID interface{}
	if f.ProductID != nil {
		productID = *f.ProductID
	}

	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO formulas (id, name, expression, return_type, product_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID,
		f.Name,
		f.Expression,
		string(f.ReturnType),
		productID,
		f.IsActive,
		f.CreatedAt.Unix(),
		f.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save formula %s: %w", f.Name, err)
	}

	return nil
}
