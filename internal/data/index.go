package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"
)

const (
	// IdentityColumn holds the molecule identity every spectrum is keyed by.
	IdentityColumn = "SMILES"
	// FunctionalGroupOffset is the first column position holding a functional
	// group indicator; earlier columns are metadata.
	FunctionalGroupOffset = 7
)

// IndexTable is the per-molecule index: ordered rows, named columns, string cells.
type IndexTable struct {
	columns  []string
	position map[string]int
	rows     [][]string
}

func NewIndexTable(columns []string, rows [][]string) (*IndexTable, error) {
	position := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := position[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		position[name] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(columns))
		}
	}
	return &IndexTable{columns: columns, position: position, rows: rows}, nil
}

// ReadIndexCSV reads an index table whose first column is an unnamed row
// label. The row label column is discarded.
func ReadIndexCSV(r io.Reader) (*IndexTable, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read index csv: %w", err)
	}

	if len(records) == 0 || len(records[0]) < 2 {
		return nil, fmt.Errorf("index csv has no data columns")
	}

	columns := records[0][1:]
	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		rows = append(rows, record[1:])
	}

	return NewIndexTable(columns, rows)
}

func (t *IndexTable) Len() int {
	return len(t.rows)
}

func (t *IndexTable) Columns() []string {
	return t.columns
}

func (t *IndexTable) Column(name string) ([]string, error) {
	pos, ok := t.position[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	values := make([]string, len(t.rows))
	for i, row := range t.rows {
		values[i] = row[pos]
	}
	return values, nil
}

// Indicator returns a 0/1 column as ints. Blank cells are rejected.
func (t *IndexTable) Indicator(name string) ([]int, error) {
	raw, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	values := make([]int, len(raw))
	for i, cell := range raw {
		if strings.TrimSpace(cell) == "" {
			return nil, fmt.Errorf("%w: %q row %d is blank", ErrNotIndicator, name, i)
		}
		v, err := cast.ToFloat64E(cell)
		if err != nil || (v != 0 && v != 1) {
			return nil, fmt.Errorf("%w: %q row %d holds %q", ErrNotIndicator, name, i, cell)
		}
		values[i] = int(v)
	}
	return values, nil
}

func (t *IndexTable) Identities() ([]string, error) {
	return t.Column(IdentityColumn)
}

// Select returns the rows at the given positions, in the given order.
func (t *IndexTable) Select(rows []int) *IndexTable {
	selected := make([][]string, len(rows))
	for i, pos := range rows {
		selected[i] = t.rows[pos]
	}
	return &IndexTable{columns: t.columns, position: t.position, rows: selected}
}

func (t *IndexTable) FunctionalGroupColumns() []string {
	if len(t.columns) <= FunctionalGroupOffset {
		return nil
	}
	return t.columns[FunctionalGroupOffset:]
}
