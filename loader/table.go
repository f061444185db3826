// Package loader resolves a dataset key to an in-memory trajectory table.
//
// Tables come from a local CSV directory, an S3 bucket or an HTTP mirror.
// Sources compose: FallbackSource asks a second source only when the first
// one does not have the dataset.
package loader

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Source that does not hold the requested key.
var ErrNotFound = errors.New("dataset not found")

// Columns is the set of columns selected from every input file, in order.
var Columns = []string{"x", "y", "z", "t"}

// Source resolves a dataset key to a table.
type Source interface {
	Fetch(ctx context.Context, key string) (*Table, error)
}

// Row is one trajectory sample.
type Row struct {
	X, Y, Z, T float64
}

// Table is a column-oriented trajectory: positions x, y, z and elapsed time t.
// All columns have the same length and hold no missing values.
type Table struct {
	X []float64
	Y []float64
	Z []float64
	T []float64
}

// NewTable builds a table from rows.
func NewTable(rows []Row) *Table {
	tbl := &Table{
		X: make([]float64, len(rows)),
		Y: make([]float64, len(rows)),
		Z: make([]float64, len(rows)),
		T: make([]float64, len(rows)),
	}
	for i, r := range rows {
		tbl.X[i], tbl.Y[i], tbl.Z[i], tbl.T[i] = r.X, r.Y, r.Z, r.T
	}
	return tbl
}

// Len returns the number of samples.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.X)
}

// Row returns sample i.
func (t *Table) Row(i int) Row {
	return Row{X: t.X[i], Y: t.Y[i], Z: t.Z[i], T: t.T[i]}
}

// Rows returns samples [start, end) as rows.
func (t *Table) Rows(start, end int) []Row {
	rows := make([]Row, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, t.Row(i))
	}
	return rows
}

// Validate checks that all four columns have equal length.
func (t *Table) Validate() error {
	n := len(t.X)
	if len(t.Y) != n || len(t.Z) != n || len(t.T) != n {
		return fmt.Errorf("column length mismatch: x=%d y=%d z=%d t=%d", len(t.X), len(t.Y), len(t.Z), len(t.T))
	}
	return nil
}
