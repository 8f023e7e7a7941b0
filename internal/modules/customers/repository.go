// Package customers provides the customer lookup used to decorate
// row-level table results with display names.
package customers

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gralix-technologies/loanlens/internal/domain"
)

// Repository handles customer database operations.
// Database: portfolio.db (customers table).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new customer repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "customers").Logger(),
	}
}

// DisplayName returns the customer's display name, "" when unknown.
func (r *Repository) DisplayName(customerID string) (string, error) {
	var name string
	err := r.db.QueryRow("SELECT name FROM customers WHERE id = ?", customerID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up customer %s: %w", customerID, err)
	}
	return name, nil
}

// DisplayNames resolves a batch of customer IDs to names in one query.
// Unknown IDs are simply absent from the result.
func (r *Repository) DisplayNames(customerIDs []string) (map[string]string, error) {
	if len(customerIDs) == 0 {
		return map[string]string{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(customerIDs)), ",")
	args := make([]interface{}, len(customerIDs))
	for i, id := range customerIDs {
		args[i] = id
	}

	rows, err := r.db.Query("SELECT id, name FROM customers WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}

	return names, nil
}

// Create stores a customer, generating an ID when missing.
func (r *Repository) Create(c *domain.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		"INSERT INTO customers (id, name, created_at) VALUES (?, ?, ?)",
		c.ID, c.Name, c.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}
