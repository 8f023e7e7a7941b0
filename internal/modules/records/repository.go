// Package records provides the record store adapter: fetching and decoding
// the schema-less portfolio records the aggregation engine operates on.
package records

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gralix-technologies/loanlens/internal/domain"
)

// Repository handles record database operations.
// Database: portfolio.db (records table). The dynamic payload is stored as
// a JSON TEXT column and decoded into a domain.DataMap on fetch.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new record repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "records").Logger(),
	}
}

const recordColumns = "id, product_id, customer_id, amount, data, status, effective_date, created_at"

// Fetch returns all records for a product, optionally narrowed by filters.
// A record whose data payload cannot be decoded is kept with an empty map
// rather than aborting the whole fetch.
func (r *Repository) Fetch(productID int64, filters *FilterSpec) ([]domain.Record, error) {
	query := "SELECT " + recordColumns + " FROM records WHERE product_id = ?"
	args := []interface{}{productID}
	query, args = ApplyFilters(query, args, filters)

	return r.query(query, args)
}

// FetchMany returns the union of records across several products.
func (r *Repository) FetchMany(productIDs []int64) ([]domain.Record, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(productIDs)), ",")
	query := "SELECT " + recordColumns + " FROM records WHERE product_id IN (" + placeholders + ")"
	args := make([]interface{}, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}

	return r.query(query, args)
}

func (r *Repository) query(query string, args []interface{}) ([]domain.Record, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var result []domain.Record
	for rows.Next() {
		var rec domain.Record
		var customerID, status, effectiveDate sql.NullString
		var rawData sql.NullString
		var createdAtUnix sql.NullInt64

		if err := rows.Scan(
			&rec.ID,
			&rec.ProductID,
			&customerID,
			&rec.Amount,
			&rawData,
			&status,
			&effectiveDate,
			&createdAtUnix,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec.CustomerID = customerID.String
		rec.Status = status.String
		rec.EffectiveDate = effectiveDate.String
		if createdAtUnix.Valid {
			rec.CreatedAt = time.Unix(createdAtUnix.Int64, 0).UTC()
		}

		data, err := domain.DecodeData(rawData.String)
		if err != nil {
			// Undecodable payload degrades to an empty map; the record still
			// participates in COUNT(*) and amount-based aggregations.
			r.log.Warn().
				Err(err).
				Str("record_id", rec.ID).
				Msg("Failed to decode record data, treating as empty")
			data = domain.DataMap{}
		}
		rec.Data = data

		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return result, nil
}

// Insert stores a record. A missing ID is generated; the data map is
// serialized to JSON.
func (r *Repository) Insert(rec *domain.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	raw, err := encodeData(rec.Data)
	if err != nil {
		return fmt.Errorf("failed to encode record data: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO records (id, product_id, customer_id, amount, data, status, effective_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.ProductID,
		nullable(rec.CustomerID),
		rec.Amount,
		raw,
		nullable(rec.Status),
		nullable(rec.EffectiveDate),
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// CountByProduct returns the number of records stored for a product.
func (r *Repository) CountByProduct(productID int64) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM records WHERE product_id = ?", productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

func encodeData(data domain.DataMap) (string, error) {
	if len(data) == 0 {
		return "{}", nil
	}
	flat := make(map[string]interface{}, len(data))
	for key, value := range data {
		switch value.Kind {
		case domain.FieldNumber:
			flat[key] = value.Num
		case domain.FieldText:
			flat[key] = value.Text
		case domain.FieldBool:
			flat[key] = value.Bool
		default:
			flat[key] = nil
		}
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
