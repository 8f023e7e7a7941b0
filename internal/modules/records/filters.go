package records

// FilterSpec narrows a record fetch. All criteria are combined with AND;
// field filters apply to the dynamic JSON payload via json_extract.
type FilterSpec struct {
	Status   string            `json:"status,omitempty"`
	DateFrom string            `json:"date_from,omitempty"` // YYYY-MM-DD, inclusive
	DateTo   string            `json:"date_to,omitempty"`   // YYYY-MM-DD, inclusive
	Fields   map[string]string `json:"fields,omitempty"`
}

// IsEmpty reports whether the spec applies no filtering at all.
func (f *FilterSpec) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.Status == "" && f.DateFrom == "" && f.DateTo == "" && len(f.Fields) == 0
}

// ApplyFilters appends WHERE fragments for the spec to a base query that
// already contains at least one condition. The returned query and args are
// ready to execute.
func ApplyFilters(query string, args []interface{}, f *FilterSpec) (string, []interface{}) {
	if f.IsEmpty() {
		return query, args
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.DateFrom != "" {
		query += " AND effective_date >= ?"
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		query += " AND effective_date <= ?"
		args = append(args, f.DateTo)
	}
	for field, value := range f.Fields {
		// Field names are embedded in the JSON path, not bindable; they come
		// from widget configuration, not free-form user input, but are still
		// restricted to identifier characters before use.
		if !isIdentifier(field) {
			continue
		}
		query += " AND json_extract(data, '$." + field + "') = ?"
		args = append(args, value)
	}
	return query, args
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
