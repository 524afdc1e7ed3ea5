package jsondoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gompdf/jsonpdf/internal/layout"
	"github.com/gompdf/jsonpdf/internal/style"
	"github.com/gompdf/jsonpdf/internal/vars"
)

// rawCell is a table cell given as plain text or as {text, style}.
type rawCell struct {
	Text  flexString  `json:"text"`
	Style style.Style `json:"style"`
	ID    string      `json:"id"`
	Class string      `json:"class"`
}

func (c *rawCell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		type plain rawCell
		return json.Unmarshal(data, (*plain)(c))
	}
	return c.Text.UnmarshalJSON(data)
}

// tableBuilder collects rows and applies header and cell styles.
type tableBuilder struct {
	p           *parser
	path        string
	node        *selNode
	table       *layout.Table
	headerStyle style.Style
}

func (p *parser) newTableBuilder(e *rawElement, path string, parent *selNode) *tableBuilder {
	n := newSelNode("table", e.ID, e.Class, parent)
	return &tableBuilder{
		p:           p,
		path:        path,
		node:        n,
		table:       layout.NewTable(p.styleFor(n, e.Style), e.CellStyle),
		headerStyle: e.HeaderStyle,
	}
}

// cell builds a cell from finished text. Author-written text goes through
// authored first; record values are data and are placed verbatim.
func (b *tableBuilder) cell(text string, own style.Style, header bool, id, class string) *layout.TableCell {
	tag := "td"
	if header {
		tag = "th"
		own = style.Layer(b.headerStyle, own)
	}
	n := newSelNode(tag, id, class, b.node)
	return layout.NewTableCell(text, b.p.styleFor(n, own))
}

// authored resolves the placeholders of text written in the document.
func (b *tableBuilder) authored(text string) string {
	return b.p.resolve.Resolve(text)
}

func (b *tableBuilder) add(cells []*layout.TableCell, header bool, row int) error {
	var err error
	if header {
		err = b.table.AddHeaderRow(cells, nil)
	} else {
		err = b.table.AddRow(cells, nil)
	}
	if err != nil {
		return fmt.Errorf("%s.data[%d]: %w", b.path, row, err)
	}
	return nil
}

// applyColumnWidths turns column ratios into column-width styles of the
// first row cells.
func (b *tableBuilder) applyColumnWidths(ratios []float64) error {
	if len(ratios) == 0 {
		return nil
	}
	rows := b.table.Rows()
	if len(rows) == 0 {
		return nil
	}
	if len(ratios) != len(rows[0]) {
		b.p.log.Warn("Column widths do not match the column count", zap.String("path", b.path),
			zap.Int("widths", len(ratios)), zap.Int("columns", len(rows[0])))
	}
	for i, cell := range rows[0] {
		if i >= len(ratios) {
			break
		}
		if ratios[i] < 0 {
			return fmt.Errorf("%w: %s.columnWidths[%d] is negative", ErrInvalidField, b.path, i)
		}
		s := cell.Style().Clone()
		if s == nil {
			s = style.Style{}
		}
		s["column-width"] = strconv.FormatFloat(ratios[i], 'f', -1, 64)
		if err := cell.SetStyle(s); err != nil {
			return err
		}
	}
	return nil
}

// table builds a table from a grid of cells. The first headerRows rows are
// header rows, repeated when the table continues on the next page.
func (p *parser) table(e *rawElement, path string, parent *selNode) (layout.Element, error) {
	if len(e.Data) == 0 {
		return nil, fmt.Errorf("%w: %s.data", ErrMissingField, path)
	}
	var grid [][]rawCell
	if err := json.Unmarshal(e.Data, &grid); err != nil {
		return nil, fmt.Errorf("%s.data: %w", path, err)
	}
	if e.HeaderRows < 0 || e.HeaderRows > len(grid) {
		return nil, fmt.Errorf("%w: %s.headerRows %d", ErrInvalidField, path, e.HeaderRows)
	}

	b := p.newTableBuilder(e, path, parent)
	for r, row := range grid {
		header := r < e.HeaderRows
		cells := make([]*layout.TableCell, len(row))
		for c, raw := range row {
			cells[c] = b.cell(b.authored(raw.Text.value), raw.Style, header, raw.ID, raw.Class)
		}
		if err := b.add(cells, header, r); err != nil {
			return nil, err
		}
	}
	if err := b.applyColumnWidths(e.ColumnWidths); err != nil {
		return nil, err
	}
	return b.table, nil
}

// objectTable derives a grid from records. With headers placed in a row
// the keys form the first row and every record a row; placed in a column
// the keys form the first column and every record a column.
func (p *parser) objectTable(e *rawElement, path string, parent *selNode) (layout.Element, error) {
	if len(e.Data) == 0 {
		return nil, fmt.Errorf("%w: %s.data", ErrMissingField, path)
	}
	var data records
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("%s.data: %w", path, err)
	}
	keys := data.keys()
	b := p.newTableBuilder(e, path, parent)

	switch placement := strings.ToLower(strings.TrimSpace(e.HeadersPlacement)); placement {
	case "", "row":
		r := 0
		if !e.HideHeaders && len(keys) > 0 {
			cells := make([]*layout.TableCell, len(keys))
			for i, k := range keys {
				cells[i] = b.cell(b.authored(k), nil, true, "", "")
			}
			if err := b.add(cells, true, r); err != nil {
				return nil, err
			}
			r++
		}
		for _, rec := range data {
			if len(keys) == 0 {
				break
			}
			cells := make([]*layout.TableCell, len(keys))
			for i, k := range keys {
				cells[i] = b.cell(cellText(rec.values, k), nil, false, "", "")
			}
			if err := b.add(cells, false, r); err != nil {
				return nil, err
			}
			r++
		}
	case "column":
		for r, k := range keys {
			var cells []*layout.TableCell
			if !e.HideHeaders {
				cells = append(cells, b.cell(b.authored(k), nil, true, "", ""))
			}
			for _, rec := range data {
				cells = append(cells, b.cell(cellText(rec.values, k), nil, false, "", ""))
			}
			if len(cells) == 0 {
				break
			}
			if err := b.add(cells, false, r); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s.headersPlacement %q", ErrInvalidField, path, e.HeadersPlacement)
	}

	if err := b.applyColumnWidths(e.ColumnWidths); err != nil {
		return nil, err
	}
	return b.table, nil
}

func cellText(values map[string]any, key string) string {
	v, ok := values[key]
	if !ok {
		return ""
	}
	return vars.Stringify(v)
}

// autoTable builds a table from an array of records found in the document
// variables. The schema maps column titles to record keys; a key may carry
// pipes, e.g. "salary|number:1.2-2".
func (p *parser) autoTable(e *rawElement, path string, parent *selNode) (layout.Element, error) {
	if e.Schema == nil {
		return nil, fmt.Errorf("%w: %s.schema", ErrMissingField, path)
	}
	dataKey := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(e.TableDataKey), "{{"), "}}"))
	if dataKey == "" {
		return nil, fmt.Errorf("%w: %s.tableDataKey", ErrMissingField, path)
	}

	columns := make([]string, len(e.Schema.keys))
	for i, title := range e.Schema.keys {
		key, ok := e.Schema.values[title].(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.schema[%q] must be a string", ErrInvalidField, path, title)
		}
		columns[i] = p.resolve.Resolve(key)
	}

	b := p.newTableBuilder(e, path, parent)
	if len(columns) == 0 {
		return b.table, nil
	}

	header := make([]*layout.TableCell, len(columns))
	for i, title := range e.Schema.keys {
		header[i] = b.cell(b.authored(title), nil, true, "", "")
	}
	if err := b.add(header, true, 0); err != nil {
		return nil, err
	}

	for i, item := range p.tableData(dataKey, path) {
		rec, ok := item.(map[string]any)
		if !ok {
			p.log.Warn("Table data item is not a record, skipping", zap.String("path", path), zap.Int("index", i))
			continue
		}
		row := vars.NewResolver(rec, p.opts.pipes, p.log)
		cells := make([]*layout.TableCell, len(columns))
		for c, col := range columns {
			cells[c] = b.cell(rowValue(row, col), nil, false, "", "")
		}
		if err := b.add(cells, false, i+1); err != nil {
			return nil, err
		}
	}

	if err := b.applyColumnWidths(e.ColumnWidths); err != nil {
		return nil, err
	}
	return b.table, nil
}

// tableData looks up the array an auto-table iterates.
func (p *parser) tableData(key, path string) []any {
	v, ok := p.resolve.Lookup(key)
	if !ok {
		p.log.Error("Table data not found", zap.String("path", path), zap.String("key", key),
			zap.String("did_you_mean", p.resolve.Suggest(key)))
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		p.log.Error("Table data is not an array", zap.String("path", path), zap.String("key", key))
		return nil
	}
	return items
}

// rowValue resolves a schema column against one record. Missing fields
// give empty cells.
func rowValue(row *vars.Resolver, column string) string {
	name, _, _ := strings.Cut(column, "|")
	if _, ok := row.Lookup(strings.TrimSpace(name)); !ok {
		return ""
	}
	return row.Resolve("{{" + column + "}}")
}
