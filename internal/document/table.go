package document

import (
	"fmt"

	apperrors "github.com/mantavyam/pitch-note-pilot/internal/errors"
)

// Table editing helpers. Each returns a new table and leaves the receiver
// untouched; out-of-range positions return an unchanged copy, and every
// result keeps each row as wide as the header row.

func DefaultTable() Table {
	return Table{
		Headers: []string{"Column 1", "Column 2"},
		Rows:    [][]string{{"Row 1 Col 1", "Row 1 Col 2"}},
	}
}

// SetHeader renames column col.
func (t Table) SetHeader(col int, value string) Table {
	out := t.Clone()
	if col < 0 || col >= len(out.Headers) {
		return out
	}
	out.Headers[col] = value
	return out
}

// SetCell writes a single cell.
func (t Table) SetCell(row, col int, value string) Table {
	out := t.Clone()
	if row < 0 || row >= len(out.Rows) || col < 0 || col >= len(out.Rows[row]) {
		return out
	}
	out.Rows[row][col] = value
	return out
}

// AddColumn appends "Column N" and an empty cell to every row.
func (t Table) AddColumn() Table {
	out := t.Clone()
	out.Headers = append(out.Headers, fmt.Sprintf("Column %d", len(out.Headers)+1))
	for i := range out.Rows {
		out.Rows[i] = append(out.Rows[i], "")
	}
	return out
}

// RemoveColumn drops column col; the last remaining column is kept.
func (t Table) RemoveColumn(col int) Table {
	out := t.Clone()
	if len(out.Headers) <= 1 || col < 0 || col >= len(out.Headers) {
		return out
	}
	out.Headers = removeAt(out.Headers, col)
	for i := range out.Rows {
		if col < len(out.Rows[i]) {
			out.Rows[i] = removeAt(out.Rows[i], col)
		}
	}
	return out
}

// AddRow appends an empty row.
func (t Table) AddRow() Table {
	out := t.Clone()
	out.Rows = append(out.Rows, make([]string, len(out.Headers)))
	return out
}

// RemoveRow drops row; the last remaining row is kept.
func (t Table) RemoveRow(row int) Table {
	out := t.Clone()
	if len(out.Rows) <= 1 || row < 0 || row >= len(out.Rows) {
		return out
	}
	out.Rows = append(out.Rows[:row], out.Rows[row+1:]...)
	return out
}

// MoveColumn moves column from to position to, carrying its cells along.
func (t Table) MoveColumn(from, to int) Table {
	out := t.Clone()
	n := len(out.Headers)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return out
	}
	out.Headers = moveAt(out.Headers, from, to)
	for i := range out.Rows {
		if len(out.Rows[i]) == n {
			out.Rows[i] = moveAt(out.Rows[i], from, to)
		}
	}
	return out
}

// MoveRow moves row from to position to.
func (t Table) MoveRow(from, to int) Table {
	out := t.Clone()
	n := len(out.Rows)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return out
	}
	out.Rows = moveAt(out.Rows, from, to)
	return out
}

type TableOp string

const (
	TableSetHeader    TableOp = "set_header"
	TableSetCell      TableOp = "set_cell"
	TableAddColumn    TableOp = "add_column"
	TableRemoveColumn TableOp = "remove_column"
	TableAddRow       TableOp = "add_row"
	TableRemoveRow    TableOp = "remove_row"
	TableMoveColumn   TableOp = "move_column"
	TableMoveRow      TableOp = "move_row"
)

// TableEdit is one editing step. Which positions matter depends on Op:
// Col for headers and columns, Row and Col for cells, From and To for moves.
type TableEdit struct {
	Op    TableOp
	Row   int
	Col   int
	From  int
	To    int
	Value string
}

func (e TableEdit) Apply(t Table) (Table, error) {
	switch e.Op {
	case TableSetHeader:
		return t.SetHeader(e.Col, e.Value), nil
	case TableSetCell:
		return t.SetCell(e.Row, e.Col, e.Value), nil
	case TableAddColumn:
		return t.AddColumn(), nil
	case TableRemoveColumn:
		return t.RemoveColumn(e.Col), nil
	case TableAddRow:
		return t.AddRow(), nil
	case TableRemoveRow:
		return t.RemoveRow(e.Row), nil
	case TableMoveColumn:
		return t.MoveColumn(e.From, e.To), nil
	case TableMoveRow:
		return t.MoveRow(e.From, e.To), nil
	}
	return Table{}, apperrors.InvalidArgument(fmt.Sprintf("unknown table edit %q", e.Op), nil)
}

func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

func moveAt[T any](s []T, from, to int) []T {
	item := s[from]
	out := removeAt(s, from)
	out = append(out, item)
	copy(out[to+1:], out[to:len(out)-1])
	out[to] = item
	return out
}
