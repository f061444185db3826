package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/teranos/trajview/trip"
)

// CSVOptions controls how a trajectory CSV is read.
type CSVOptions struct {
	// Comment marks lines to skip when they start with it. Zero disables comments.
	Comment rune
}

// ParseCSV reads a header-having CSV and selects the x, y, z and t columns.
//
// Other columns are ignored. Empty and null-like cells ("null", "na", "nan",
// any case) become 0.0, as do cells missing from short rows. Every data row
// yields exactly one sample.
func ParseCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comment = opts.Comment
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, trip.NewFall(trip.Load, "missing header row", err, nil)
	}
	if err != nil {
		return nil, trip.NewFall(trip.Load, "read header", err, nil)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, trip.NewFall(trip.Load, "read record", err, trip.Context{"row": len(rows) + 1})
		}

		var vals [4]float64
		for c, col := range Columns {
			v, err := parseCell(record, index[col])
			if err != nil {
				return nil, trip.NewFall(trip.Convert, "parse cell", err, trip.Context{
					"row":    len(rows) + 1,
					"column": col,
				})
			}
			vals[c] = v
		}
		rows = append(rows, Row{X: vals[0], Y: vals[1], Z: vals[2], T: vals[3]})
	}

	return NewTable(rows), nil
}

// columnIndex maps each selected column to its position in the header.
func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(Columns))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	selected := make(map[string]int, len(Columns))
	for _, col := range Columns {
		i, ok := index[col]
		if !ok {
			return nil, trip.NewFall(trip.Load, "column not found", nil, trip.Context{
				"column": col,
				"header": strings.Join(header, ","),
			})
		}
		selected[col] = i
	}
	return selected, nil
}

func parseCell(record []string, i int) (float64, error) {
	if i >= len(record) {
		return 0, nil
	}
	cell := strings.TrimSpace(record[i])
	if isNull(cell) {
		return 0, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", cell)
	}
	return v, nil
}

func isNull(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "null", "na", "nan":
		return true
	}
	return false
}
