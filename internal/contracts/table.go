package contracts

// Table is a generic tabular query result
type Table struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}
