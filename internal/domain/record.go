// Package domain provides core domain models and types.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FieldKind identifies the variant held by a FieldValue.
type FieldKind int

const (
	// FieldNull represents an explicit JSON null or an absent value
	FieldNull FieldKind = iota
	// FieldNumber represents a numeric value
	FieldNumber
	// FieldText represents a string value
	FieldText
	// FieldBool represents a boolean value
	FieldBool
)

// FieldValue is a single dynamic field value: number, text, bool or null.
// Records carry a schema-less payload, so every field access goes through
// this variant instead of raw interface{} values.
type FieldValue struct {
	Kind FieldKind
	Num  float64
	Text string
	Bool bool
}

// Number creates a numeric FieldValue
func Number(v float64) FieldValue {
	return FieldValue{Kind: FieldNumber, Num: v}
}

// Text creates a string FieldValue
func Text(s string) FieldValue {
	return FieldValue{Kind: FieldText, Text: s}
}

// Bool creates a boolean FieldValue
func Bool(b bool) FieldValue {
	return FieldValue{Kind: FieldBool, Bool: b}
}

// Null creates a null FieldValue
func Null() FieldValue {
	return FieldValue{Kind: FieldNull}
}

// AsNumber returns the numeric value of the field.
// Text, bool and null all read as 0 - formulas over a dynamic schema must
// degrade to zero rather than fail on a type mismatch.
func (v FieldValue) AsNumber() float64 {
	if v.Kind == FieldNumber {
		return v.Num
	}
	return 0
}

// AsText returns the field rendered as a string.
// Numbers are formatted without a trailing ".0" for whole values so that
// group labels read naturally ("2024" not "2024.0").
func (v FieldValue) AsText() string {
	switch v.Kind {
	case FieldText:
		return v.Text
	case FieldNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case FieldBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// IsNull reports whether the field holds no usable value
func (v FieldValue) IsNull() bool {
	return v.Kind == FieldNull
}

// DataMap is the decoded dynamic payload of a record: field name -> value.
type DataMap map[string]FieldValue

// Number returns the numeric value of a field, 0 when absent or non-numeric.
func (d DataMap) Number(field string) float64 {
	return d[field].AsNumber()
}

// Text returns the string rendering of a field, "" when absent.
func (d DataMap) Text(field string) string {
	return d[field].AsText()
}

// Has reports whether the field is present and not null.
func (d DataMap) Has(field string) bool {
	v, ok := d[field]
	return ok && v.Kind != FieldNull
}

// DecodeData converts a raw record payload into a DataMap.
// Accepts an already-decoded map, a JSON-encoded string or raw JSON bytes.
// Nested objects and arrays are not supported by the evaluator and are
// flattened to their JSON string rendering (treated as opaque text).
func DecodeData(raw interface{}) (DataMap, error) {
	switch payload := raw.(type) {
	case nil:
		return DataMap{}, nil
	case DataMap:
		return payload, nil
	case map[string]interface{}:
		return fromFlatMap(payload), nil
	case string:
		if payload == "" {
			return DataMap{}, nil
		}
		return decodeJSON([]byte(payload))
	case []byte:
		if len(payload) == 0 {
			return DataMap{}, nil
		}
		return decodeJSON(payload)
	default:
		return nil, fmt.Errorf("unsupported data payload type %T", raw)
	}
}

func decodeJSON(raw []byte) (DataMap, error) {
	var flat map[string]interface{}
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("failed to decode record data: %w", err)
	}
	return fromFlatMap(flat), nil
}

func fromFlatMap(flat map[string]interface{}) DataMap {
	data := make(DataMap, len(flat))
	for key, value := range flat {
		switch v := value.(type) {
		case nil:
			data[key] = Null()
		case float64:
			data[key] = Number(v)
		case int:
			data[key] = Number(float64(v))
		case int64:
			data[key] = Number(float64(v))
		case string:
			data[key] = Text(v)
		case bool:
			data[key] = Bool(v)
		default:
			// Nested structure - serialize and carry as opaque text
			if encoded, err := json.Marshal(v); err == nil {
				data[key] = Text(string(encoded))
			} else {
				data[key] = Null()
			}
		}
	}
	return data
}

// Record is the atomic unit of portfolio data: a fixed amount column plus
// an open per-product payload of dynamic fields.
type Record struct {
	ID            string    `json:"id"`
	ProductID     int64     `json:"product_id"`
	CustomerID    string    `json:"customer_id,omitempty"`
	Amount        float64   `json:"amount"`
	Data          DataMap   `json:"-"`
	Status        string    `json:"status,omitempty"`
	EffectiveDate string    `json:"effective_date,omitempty"` // YYYY-MM-DD
	CreatedAt     time.Time `json:"created_at"`
}
