package model

import "sort"

// Row is one canonical record. Values are int, float64, string or nil.
type Row map[string]any

// Table is an ordered sequence of rows plus the ordered union of columns.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Append adds rows, extending Columns with keys in first-seen order.
// Keys within a row are visited in the order given by order when present,
// then any remaining keys sorted, so column order is deterministic.
func (t *Table) Append(order []string, rows ...Row) {
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		seen[c] = struct{}{}
	}
	for _, r := range rows {
		for _, c := range order {
			if _, ok := r[c]; !ok {
				continue
			}
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				t.Columns = append(t.Columns, c)
			}
		}
		for _, c := range sortedKeys(r) {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				t.Columns = append(t.Columns, c)
			}
		}
		t.Rows = append(t.Rows, r)
	}
}

// Concat appends every row of other, keeping other's column order.
func (t *Table) Concat(other Table) {
	t.Append(other.Columns, other.Rows...)
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// HasColumn reports whether column c is present.
func (t Table) HasColumn(c string) bool {
	for _, col := range t.Columns {
		if col == c {
			return true
		}
	}
	return false
}

// Filter returns a table with the rows keep accepts, keeping the columns.
func (t Table) Filter(keep func(Row) bool) Table {
	out := Table{Columns: append([]string(nil), t.Columns...)}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
