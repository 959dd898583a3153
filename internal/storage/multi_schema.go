// TableSpec types live here so the schema package and every backend can import
// them without circular deps.
package storage

// TableSpec describes one target table for backends that generate DDL.
type TableSpec struct {
	Name        string           `json:"name"`
	PrimaryKey  *PrimaryKeySpec  `json:"primary_key,omitempty"`
	Columns     []ColumnSpec     `json:"columns"`
	Constraints []ConstraintSpec `json:"constraints,omitempty"`
}

type PrimaryKeySpec struct {
	Name string `json:"name"`
	Type string `json:"type"` // portable type, e.g. BIGINT / VARCHAR(64)
}

// ColumnSpec uses portable type names (INTEGER, BIGINT, DOUBLE PRECISION,
// BOOLEAN, TIMESTAMP, VARCHAR(n)). Backends translate what their dialect lacks.
type ColumnSpec struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	References string `json:"references,omitempty"` // e.g. machines(machine_id)
	Nullable   *bool  `json:"nullable,omitempty"`
}

type ConstraintSpec struct {
	Kind    string   `json:"kind"` // "unique"
	Columns []string `json:"columns"`
}

// IsNullable reports the column's nullability (default true).
func (c ColumnSpec) IsNullable() bool {
	if c.Nullable == nil {
		return true
	}
	return *c.Nullable
}
