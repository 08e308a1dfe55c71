package core

// ColumnSchema describes one column of a tablet's schema. The metadata
// layer only cares about column count and order; names are carried for
// diagnostics and predicate printing.
type ColumnSchema struct {
	Name string
}

// Schema is the ordered set of columns for one tablet. Column block
// order in a rowset always matches schema order.
type Schema struct {
	Columns []ColumnSchema
}

func NewSchema(names ...string) *Schema {
	cols := make([]ColumnSchema, len(names))
	for i, name := range names {
		cols[i] = ColumnSchema{Name: name}
	}
	return &Schema{Columns: cols}
}

func (s *Schema) NumColumns() int {
	return len(s.Columns)
}

func (s *Schema) Column(idx int) ColumnSchema {
	return s.Columns[idx]
}
