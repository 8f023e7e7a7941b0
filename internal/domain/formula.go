package domain

import "time"

// ReturnType describes what a formula is expected to produce
type ReturnType string

const (
	ReturnNumeric ReturnType = "numeric"
	ReturnText    ReturnType = "text"
	ReturnBoolean ReturnType = "boolean"
	ReturnDate    ReturnType = "date"
)

// Formula is a named, reusable expression authored by users.
// ProductID nil means the formula is global (usable for any product).
// Certain reserved names bypass expression evaluation entirely and run a
// hardcoded calculation instead (see the metrics registry).
type Formula struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Expression string     `json:"expression"`
	ReturnType ReturnType `json:"return_type"`
	ProductID  *int64     `json:"product_id,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Product is a configurable loan/deposit product that owns a dynamic field
// schema. The engine only needs its identity and display name.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Customer is referenced by records via customer_id; the engine only reads
// the display name for table decoration.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
