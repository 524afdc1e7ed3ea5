package layout

import (
	"fmt"

	"github.com/gompdf/jsonpdf/internal/style"
)

type tableRow struct {
	cells  []*TableCell
	header bool
}

// Table lays cells out in rows and columns. Every cell of a row gets the
// height of the tallest one. Columns share the inner width evenly unless
// the first row cells carry column-width ratios.
type Table struct {
	Box
	cellStyle  style.Style
	rows       []*tableRow
	colWidths  []float64
	rowHeights []float64
}

// NewTable creates an empty table. cellStyle is layered under the style of
// every cell added later.
func NewTable(s, cellStyle style.Style) *Table {
	t := &Table{cellStyle: cellStyle.Clone()}
	t.setup(KindTable, t, s)
	return t
}

// AddRow appends a row. Each cell style becomes the table cell style, then
// rowStyle, then the cell's own style, later wins.
func (t *Table) AddRow(cells []*TableCell, rowStyle style.Style) error {
	return t.addRow(cells, rowStyle, false)
}

// AddHeaderRow appends a row that is repeated at the top of every page the
// table continues on. Only header rows before the first body row repeat.
func (t *Table) AddHeaderRow(cells []*TableCell, rowStyle style.Style) error {
	return t.addRow(cells, rowStyle, true)
}

func (t *Table) addRow(cells []*TableCell, rowStyle style.Style, header bool) error {
	if t.initialized {
		return fmt.Errorf("%w: rows cannot be added to an initialized table", ErrStyleLocked)
	}
	if len(cells) == 0 {
		return fmt.Errorf("%w: row %d has no cells", ErrColumnMismatch, len(t.rows)+1)
	}
	if cols := t.Columns(); cols > 0 && len(cells) != cols {
		return fmt.Errorf("%w: row %d has %d cells, expected %d", ErrColumnMismatch, len(t.rows)+1, len(cells), cols)
	}
	for _, cell := range cells {
		cell.style = style.Layer(t.cellStyle, rowStyle, cell.style)
	}
	t.rows = append(t.rows, &tableRow{cells: cells, header: header})
	return nil
}

// Columns returns the column count fixed by the first row.
func (t *Table) Columns() int {
	if len(t.rows) == 0 {
		return 0
	}
	return len(t.rows[0].cells)
}

// Rows returns the cells row by row.
func (t *Table) Rows() [][]*TableCell {
	out := make([][]*TableCell, len(t.rows))
	for i, row := range t.rows {
		out[i] = row.cells
	}
	return out
}

// RowHeights returns the height of every row, available after PreRender.
func (t *Table) RowHeights() []float64 { return t.rowHeights }

// ColumnWidths returns the width of every column, available after PreRender.
func (t *Table) ColumnWidths() []float64 { return t.colWidths }

func (t *Table) headerCount() int {
	n := 0
	for n < len(t.rows) && t.rows[n].header {
		n++
	}
	return n
}

func (t *Table) initContent() error { return nil }

func (t *Table) children() []Element {
	var out []Element
	for _, row := range t.rows {
		for _, cell := range row.cells {
			out = append(out, cell)
		}
	}
	return out
}

func (t *Table) layoutContent(inner float64) error {
	ox, oy := t.startOrigin()
	t.laidX, t.laidY = ox, oy
	t.colWidths = t.columnWidths(inner)
	t.rowHeights = t.rowHeights[:0]

	cursor := oy
	for _, row := range t.rows {
		x, rowHeight := ox, 0.0
		for i, cell := range row.cells {
			if err := cell.PreRender(Placement{X: x, Y: cursor, MaxWidth: t.colWidths[i]}); err != nil {
				return err
			}
			rowHeight = max(rowHeight, cell.Height())
			x += t.colWidths[i]
		}
		for _, cell := range row.cells {
			cell.SetHeight(rowHeight)
		}
		t.rowHeights = append(t.rowHeights, rowHeight)
		cursor -= rowHeight
	}

	t.contentW = 0
	for _, w := range t.colWidths {
		t.contentW += w
	}
	t.contentH = oy - cursor
	return nil
}

// columnWidths splits inner evenly, or by the column-width ratios of the
// first row when any is set. Cells without a ratio then count as 1.
func (t *Table) columnWidths(inner float64) []float64 {
	cols := t.Columns()
	out := make([]float64, cols)
	if cols == 0 {
		return out
	}

	ratios, total, weighted := make([]float64, cols), 0.0, false
	for i, cell := range t.rows[0].cells {
		ratios[i] = 1
		if r := cell.Computed().ColumnWidth; r > 0 {
			ratios[i], weighted = r, true
		}
		total += ratios[i]
	}
	for i := range out {
		if weighted {
			out[i] = inner * ratios[i] / total
		} else {
			out[i] = inner / float64(cols)
		}
	}
	return out
}

func (t *Table) drawContent() error {
	for _, row := range t.rows {
		for _, cell := range row.cells {
			if err := cell.Render(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Table) Clone() Element {
	return t.withRows(t.rows)
}

func (t *Table) withRows(rows []*tableRow) *Table {
	out := NewTable(t.style, t.cellStyle)
	for _, row := range rows {
		cells := make([]*TableCell, len(row.cells))
		for i, cell := range row.cells {
			cells[i] = cell.Clone().(*TableCell)
		}
		out.rows = append(out.rows, &tableRow{cells: cells, header: row.header})
	}
	return out
}

// Split cuts the table between rows. The continuation repeats the leading
// header rows.
func (t *Table) Split(avail float64) (Element, Element, error) {
	if !t.prepared {
		return nil, nil, nil
	}
	budget := avail - t.vbox()
	headers := t.headerCount()

	k, used := 0, 0.0
	for k < len(t.rows) && used+t.rowHeights[k] <= budget+epsilon {
		used += t.rowHeights[k]
		k++
	}
	if k <= headers || k >= len(t.rows) {
		return nil, nil, nil
	}

	rest := make([]*tableRow, 0, headers+len(t.rows)-k)
	rest = append(rest, t.rows[:headers]...)
	rest = append(rest, t.rows[k:]...)
	return t.withRows(t.rows[:k]), t.withRows(rest), nil
}
