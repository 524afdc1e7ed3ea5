package layout

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gompdf/jsonpdf/internal/fonts"
	"github.com/gompdf/jsonpdf/internal/style"
)

const sentence = "Hello world this is a long sentence that should wrap"

func TestBoxModelInvariant(t *testing.T) {
	env, _ := newEnv(t)
	p := NewParagraph(sentence, style.Style{
		"font-size": "10",
		"margin":    "5",
		"padding":   "2 3",
		"border":    "1 #000000",
	})
	prepare(t, env, p, 118)

	require.Len(t, p.Lines(), 3)
	lineHeight := (0.718+0.207)*10 + lineSpacing
	assert.InDelta(t, 3*lineHeight, p.ContentHeight(), 1e-9)
	assert.InDelta(t, p.ContentHeight()+10+4+2, p.Height(), 1e-9)
	assert.InDelta(t, 100, p.ContentWidth(), 1e-9)
	assert.InDelta(t, 118, p.Width(), 1e-9)
	assert.GreaterOrEqual(t, p.Width(), p.ContentWidth())
	assert.GreaterOrEqual(t, p.Height(), p.ContentHeight())
}

func TestHeadingScalesWithLevel(t *testing.T) {
	env, _ := newEnv(t)
	for level, factor := range headingFactors {
		h := NewHeading(level+1, "Report", nil)
		prepare(t, env, h, 300)
		assert.InDelta(t, 12*factor, h.Computed().FontSize, 1e-9, "level %d", level+1)
		assert.True(t, h.Computed().Bold)
		assert.InDelta(t, h.ContentHeight()+8, h.Height(), 1e-9)
	}

	explicit := NewHeading(1, "Report", style.Style{"font-size": "30"})
	prepare(t, env, explicit, 300)
	assert.InDelta(t, 30, explicit.Computed().FontSize, 1e-9)
}

func TestTextInheritsFromParentAndDocument(t *testing.T) {
	env, _ := newEnv(t)
	env.Defaults = style.Style{"font-size": "9", "color": "#ff0000", "padding": "3"}
	p := NewParagraph("child", style.Style{"font-weight": "bold"})
	v := NewVerticalContainer(style.Style{"font-family": "Courier"}, p)
	prepare(t, env, v, 300)

	c := p.Computed()
	assert.Equal(t, "Courier", c.Face.Family)
	assert.True(t, c.Bold)
	assert.Equal(t, 9.0, c.FontSize)
	assert.Equal(t, style.RGB{R: 1}, c.Color)
	assert.Equal(t, style.Sides{Top: 3, Right: 3, Bottom: 3, Left: 3}, c.Padding, "document box styles apply to every element")
}

func TestHorizontalAlignmentPerLine(t *testing.T) {
	tests := []struct {
		align string
		wantX float64
	}{
		{"start", 10},
		{"center", 10 + (100-15)/2.0},
		{"end", 10 + 100 - 15},
	}
	for _, tt := range tests {
		t.Run(tt.align, func(t *testing.T) {
			env, s := newEnv(t)
			p := NewParagraph("abc", style.Style{"font-size": "10", "align-horizontal": tt.align})
			require.NoError(t, p.Init(env, nil))
			require.NoError(t, p.PreRender(Placement{X: 10, Y: 500, MaxWidth: 100}))
			require.NoError(t, p.Render())
			require.Len(t, s.texts, 1)
			assert.InDelta(t, tt.wantX, s.texts[0].x, 1e-9)
		})
	}
}

func TestRTLFlipsAlignment(t *testing.T) {
	env, s := newEnv(t)
	p := NewParagraph("abc", style.Style{"font-size": "10", "direction": "rtl"})
	require.NoError(t, p.Init(env, nil))
	require.NoError(t, p.PreRender(Placement{X: 0, Y: 500, MaxWidth: 100}))
	require.NoError(t, p.Render())
	assert.InDelta(t, 85, s.texts[0].x, 1e-9)
}

func TestCenterIsClampedToStart(t *testing.T) {
	assert.Equal(t, 5.0, alignOffset(style.AlignCenter, 5, 10, 30))
	assert.Equal(t, 15.0, alignOffset(style.AlignCenter, 5, 30, 10))
	assert.Equal(t, 25.0, alignOffset(style.AlignEnd, 5, 30, 10))
	assert.Equal(t, 5.0, alignOffset(style.AlignStart, 5, 30, 10))
}

func TestVerticalAlignmentAfterSetHeight(t *testing.T) {
	env, s := newEnv(t)
	p := NewParagraph("abc", style.Style{"align-vertical": "end"})
	require.NoError(t, p.Init(env, nil))
	require.NoError(t, p.PreRender(Placement{X: 0, Y: 500, MaxWidth: 100}))
	p.SetHeight(p.Height() + 20)
	require.NoError(t, p.Render())

	assert.InDelta(t, 500-20-0.718*12-1, s.texts[0].y, 1e-9)
	assert.InDelta(t, line12+20, p.Height(), 1e-9)
}

func TestSetHeightBelowNaturalIsLogged(t *testing.T) {
	env, _, logs := newObservedEnv()
	p := NewParagraph("abc", style.Style{"padding": "5"})
	require.NoError(t, p.Init(env, nil))
	require.NoError(t, p.PreRender(Placement{X: 0, Y: 500, MaxWidth: 100}))

	p.SetHeight(1)
	assert.Equal(t, 1, logs.FilterMessage("Element height set below its natural height").Len())
	assert.GreaterOrEqual(t, p.Height(), p.ContentHeight())
}

func TestRenderOrder(t *testing.T) {
	env, s := newEnv(t)
	p := NewParagraph("abc", style.Style{"background-color": "#ff0000", "border": "1 #0000ff"})
	prepare(t, env, p, 100)
	require.NoError(t, p.Render())
	assert.Equal(t, []string{"fill", "text", "fill", "fill", "fill", "fill"}, s.ops)
	assert.Equal(t, style.RGB{R: 1}, s.fills[0].color)

	env, s = newEnv(t)
	env.ShowBoxes = true
	white := NewParagraph("abc", style.Style{"background-color": "#ffffff"})
	prepare(t, env, white, 100)
	require.NoError(t, white.Render())
	assert.Equal(t, []string{"stroke", "stroke", "stroke", "stroke", "text"}, s.ops, "white backgrounds are skipped")
}

func TestLifecycleErrors(t *testing.T) {
	env, _ := newEnv(t)
	p := NewParagraph("abc", nil)

	assert.ErrorIs(t, p.PreRender(Placement{MaxWidth: 100}), ErrNotInitialized)
	require.NoError(t, p.SetStyle(style.Style{"color": "#000"}))
	require.NoError(t, p.Init(env, nil))
	assert.ErrorIs(t, p.Init(env, nil), ErrAlreadyInitialized)
	assert.ErrorIs(t, p.SetStyle(style.Style{}), ErrStyleLocked)
	assert.ErrorIs(t, p.Render(), ErrNotPrepared)

	padded := NewParagraph("abc", style.Style{"padding": "0 60"})
	require.NoError(t, padded.Init(env, nil))
	assert.ErrorIs(t, padded.PreRender(Placement{MaxWidth: 100}), ErrInvalidWidth)

	conflicting := NewParagraph("abc", style.Style{"position": "relative", "top": "1", "bottom": "2"})
	assert.ErrorIs(t, conflicting.Init(env, nil), style.ErrConflictingOffsets)
}

func TestPreRenderIsIdempotentForSamePlacement(t *testing.T) {
	env, _ := newEnv(t)
	p := NewParagraph(sentence, nil)
	require.NoError(t, p.Init(env, nil))
	at := Placement{X: 0, Y: 500, MaxWidth: 120}
	require.NoError(t, p.PreRender(at))
	p.SetHeight(p.Height() + 10)
	forced := p.Height()

	require.NoError(t, p.PreRender(at))
	assert.Equal(t, forced, p.Height())

	require.NoError(t, p.PreRender(Placement{X: 0, Y: 500, MaxWidth: 300}))
	assert.Less(t, p.Height(), forced)
}

func TestFallbackFontRetry(t *testing.T) {
	env, s, logs := newObservedEnv()
	p := NewParagraph("Привет мир", nil)
	prepare(t, env, p, 300)
	require.NoError(t, p.Render())

	assert.Equal(t, fonts.FallbackFamily, p.Computed().Face.Family)
	assert.True(t, p.Computed().FontSubstituted)
	assert.Equal(t, 1, logs.FilterMessage("Font cannot encode text, switching to fallback").Len())
	require.Len(t, s.texts, 1)
	assert.Equal(t, fonts.FallbackFamily, s.texts[0].family)
	assert.True(t, s.embedded[fonts.FallbackFamily+"/"])

	env, _, _ = newObservedEnv()
	hopeless := NewParagraph("\U0001F600", nil)
	require.NoError(t, hopeless.Init(env, nil))
	assert.ErrorIs(t, hopeless.PreRender(Placement{MaxWidth: 300}), fonts.ErrEncoding)
}

func TestUnknownFontFamilyUsesFallback(t *testing.T) {
	env, _, logs := newObservedEnv()
	p := NewParagraph("abc", style.Style{"font-family": "Nonexistent"})
	prepare(t, env, p, 300)
	assert.Equal(t, fonts.FallbackFamily, p.Computed().Face.Family)
	assert.Equal(t, 1, logs.FilterMessage("Font not found, using fallback").Len())
}

func TestTableUniformRowHeight(t *testing.T) {
	env, _ := newEnv(t)
	tbl := NewTable(nil, style.Style{"padding": "2"})
	require.NoError(t, tbl.AddRow([]*TableCell{
		NewTableCell("short", nil),
		NewTableCell("a much longer text that wraps onto several lines", nil),
	}, nil))
	require.NoError(t, tbl.AddRow([]*TableCell{NewTableCell("x", nil), NewTableCell("y", nil)}, nil))
	prepare(t, env, tbl, 208)

	rows := tbl.Rows()
	long := rows[0][1]
	require.Len(t, long.Lines(), 4)
	want := 4*line12 + 4
	for _, cell := range rows[0] {
		assert.InDelta(t, want, cell.Height(), 1e-9)
	}
	assert.InDelta(t, line12+4, rows[1][0].Height(), 1e-9)
	assert.Equal(t, rows[1][0].Height(), rows[1][1].Height())
	assert.InDelta(t, want+line12+4, tbl.Height(), 1e-9)

	assert.Equal(t, []float64{104, 104}, tbl.ColumnWidths())
	assert.InDelta(t, rows[0][0].X()+104, rows[0][1].X(), 1e-9)
	assert.InDelta(t, rows[0][0].Y()-want, rows[1][0].Y(), 1e-9)
}

func TestTableCellStylePrecedence(t *testing.T) {
	env, _ := newEnv(t)
	tbl := NewTable(nil, style.Style{"color": "#ff0000", "padding": "1", "font-size": "8"})
	require.NoError(t, tbl.AddRow([]*TableCell{
		NewTableCell("a", nil),
		NewTableCell("b", style.Style{"color": "#0000ff"}),
	}, style.Style{"color": "#00ff00", "padding": "2"}))
	prepare(t, env, tbl, 200)

	cells := tbl.Rows()[0]
	assert.Equal(t, style.RGB{G: 1}, cells[0].Computed().Color)
	assert.Equal(t, style.RGB{B: 1}, cells[1].Computed().Color)
	assert.Equal(t, 2.0, cells[1].Computed().Padding.Top)
	assert.Equal(t, 8.0, cells[1].Computed().FontSize)
}

func TestTableColumnMismatch(t *testing.T) {
	tbl := NewTable(nil, nil)
	require.NoError(t, tbl.AddRow([]*TableCell{NewTableCell("a", nil), NewTableCell("b", nil)}, nil))
	assert.ErrorIs(t, tbl.AddRow([]*TableCell{NewTableCell("c", nil)}, nil), ErrColumnMismatch)
	assert.ErrorIs(t, tbl.AddRow(nil, nil), ErrColumnMismatch)
	assert.Equal(t, 2, tbl.Columns())
}

func TestTableColumnRatios(t *testing.T) {
	env, _ := newEnv(t)
	tbl := NewTable(nil, nil)
	require.NoError(t, tbl.AddRow([]*TableCell{
		NewTableCell("a", style.Style{"column-width": "3"}),
		NewTableCell("b", style.Style{"column-width": "1"}),
	}, nil))
	require.NoError(t, tbl.AddRow([]*TableCell{NewTableCell("c", nil), NewTableCell("d", nil)}, nil))
	prepare(t, env, tbl, 400)
	assert.Equal(t, []float64{300, 100}, tbl.ColumnWidths())
}

func TestHorizontalContainer(t *testing.T) {
	env, _ := newEnv(t)
	full, err := ParseWidthSpec("100%-50")
	require.NoError(t, err)
	fixed, err := ParseWidthSpec("50")
	require.NoError(t, err)

	title := NewParagraph("Title", nil)
	page := NewParagraph("one two three", nil)
	h := NewHorizontalContainer(nil, []*WidthSpec{&full, &fixed}, title, page)
	require.NoError(t, h.Init(env, nil))
	require.NoError(t, h.PreRender(Placement{X: 20, Y: 700, MaxWidth: 300}))

	assert.Equal(t, []float64{250, 50}, h.Allocations())
	assert.Equal(t, 20.0, title.X())
	assert.Equal(t, 270.0, page.X())
	assert.Len(t, page.Lines(), 2)
	assert.InDelta(t, 2*line12, title.Height(), 1e-9)
	assert.Equal(t, title.Height(), page.Height())
	assert.InDelta(t, 2*line12, h.Height(), 1e-9)
}

func TestHorizontalContainerSharesRemainingWidth(t *testing.T) {
	env, _ := newEnv(t)
	fixed := WidthSpec{Points: 100}
	h := NewHorizontalContainer(nil, []*WidthSpec{nil, &fixed},
		NewParagraph("a", nil), NewParagraph("b", nil), NewParagraph("c", nil))
	prepare(t, env, h, 300)
	assert.Equal(t, []float64{100, 100, 100}, h.Allocations())
}

func TestVerticalContainerStacksChildren(t *testing.T) {
	env, _ := newEnv(t)
	first := NewParagraph("first", nil)
	footer := NewParagraph("footer", style.Style{"position": "fixed", "bottom": "10", "left": "20"})
	last := NewParagraph("last", nil)
	v := NewVerticalContainer(style.Style{"padding": "5"}, first, footer, last)
	require.NoError(t, v.Init(env, nil))
	require.NoError(t, v.PreRender(Placement{X: 40, Y: 700, MaxWidth: 300}))

	assert.Equal(t, 45.0, first.X())
	assert.Equal(t, 695.0, first.Y())
	assert.InDelta(t, 695-line12, last.Y(), 1e-9)
	assert.InDelta(t, 2*line12+10, v.Height(), 1e-9)
	assert.Equal(t, 290.0, first.Width())

	assert.Equal(t, 20.0, footer.X())
	assert.InDelta(t, 10+line12, footer.Y(), 1e-9)
	assert.True(t, IsFixed(footer))
}

func TestRelativePosition(t *testing.T) {
	env, _ := newEnv(t)
	p := NewParagraph("x", style.Style{"position": "relative", "top": "10", "left": "5"})
	require.NoError(t, p.Init(env, nil))
	require.NoError(t, p.PreRender(Placement{X: 100, Y: 500, MaxWidth: 100}))
	assert.Equal(t, 105.0, p.X())
	assert.Equal(t, 490.0, p.Y())
}

func TestMoveShiftsDescendants(t *testing.T) {
	env, _ := newEnv(t)
	cell := NewTableCell("c", nil)
	tbl := NewTable(nil, nil)
	require.NoError(t, tbl.AddRow([]*TableCell{cell}, nil))
	inner := NewParagraph("p", nil)
	v := NewVerticalContainer(nil, NewVerticalContainer(nil, inner), tbl)
	prepare(t, env, v, 200)

	px, py, cx, cy := inner.X(), inner.Y(), cell.X(), cell.Y()
	v.Move(7, -11)
	assert.InDelta(t, px+7, inner.X(), 1e-9)
	assert.InDelta(t, py-11, inner.Y(), 1e-9)
	assert.InDelta(t, cx+7, cell.X(), 1e-9)
	assert.InDelta(t, cy-11, cell.Y(), 1e-9)
}

func TestImageSizing(t *testing.T) {
	env, s := newEnv(t)
	bmp := &Bitmap{Name: "logo", Type: "png", Width: 400, Height: 200}

	natural := NewImage(bmp, nil, 0, 0)
	prepare(t, env, natural, 300)
	assert.Equal(t, 300.0, natural.ContentWidth())
	assert.Equal(t, 150.0, natural.ContentHeight())

	sized := NewImage(bmp, style.Style{"align-horizontal": "center"}, 0, 50)
	prepare(t, env, sized, 300)
	assert.Equal(t, 100.0, sized.ContentWidth())
	require.NoError(t, sized.Render())
	assert.Contains(t, s.ops, "image")

	head, tail, err := sized.Split(10)
	require.NoError(t, err)
	assert.Nil(t, head)
	assert.Nil(t, tail)
}

func TestVerticalContainerSplitKeepsSequence(t *testing.T) {
	env, _ := newEnv(t)
	var items []Element
	var want []string
	for i := range 10 {
		text := fmt.Sprintf("item %d", i)
		items = append(items, NewParagraph(text, nil))
		want = append(want, text)
	}
	v := NewVerticalContainer(nil, items...)
	prepare(t, env, v, 300)
	require.Greater(t, v.Height(), 50.0)

	head, tail, err := v.Split(50)
	require.NoError(t, err)
	require.NotNil(t, head)
	require.NotNil(t, tail)

	headV, tailV := head.(*VerticalContainer), tail.(*VerticalContainer)
	got := append(paragraphTexts(headV.Children()), paragraphTexts(tailV.Children())...)
	assert.Equal(t, want, got)

	env2, _ := newEnv(t)
	prepare(t, env2, head, 300)
	assert.LessOrEqual(t, head.Height(), 50.0)
	assert.Len(t, headV.Children(), 3)
}

func TestVerticalContainerSplitRecursesIntoBoundaryChild(t *testing.T) {
	env, _ := newEnv(t)
	long := strings.Repeat("word ", 40)
	long = strings.TrimSpace(long)
	v := NewVerticalContainer(nil, NewHeading(2, "Title", nil), NewParagraph(long, nil))
	prepare(t, env, v, 60)

	head, tail, err := v.Split(100)
	require.NoError(t, err)
	require.NotNil(t, head)

	headKids := head.(*VerticalContainer).Children()
	tailKids := tail.(*VerticalContainer).Children()
	require.Len(t, headKids, 2)
	require.Len(t, tailKids, 1)
	joined := headKids[1].(*Paragraph).Text() + " " + tailKids[0].(*Paragraph).Text()
	assert.Equal(t, long, joined)

	env2, _ := newEnv(t)
	prepare(t, env2, head, 60)
	assert.LessOrEqual(t, head.Height(), 100.0)
}

func TestVerticalContainerUnsplittable(t *testing.T) {
	env, _ := newEnv(t)
	v := NewVerticalContainer(nil, NewParagraph("single", nil))
	prepare(t, env, v, 300)
	head, tail, err := v.Split(5)
	require.NoError(t, err)
	assert.Nil(t, head)
	assert.Nil(t, tail)
}

func TestTableSplitRepeatsHeader(t *testing.T) {
	env, _ := newEnv(t)
	tbl := NewTable(nil, nil)
	require.NoError(t, tbl.AddHeaderRow([]*TableCell{NewTableCell("Name", nil)}, nil))
	for i := range 5 {
		require.NoError(t, tbl.AddRow([]*TableCell{NewTableCell(fmt.Sprintf("row %d", i), nil)}, nil))
	}
	prepare(t, env, tbl, 200)

	head, tail, err := tbl.Split(3*line12 + 1)
	require.NoError(t, err)
	require.NotNil(t, head)

	headRows, tailRows := head.(*Table).Rows(), tail.(*Table).Rows()
	require.Len(t, headRows, 3)
	require.Len(t, tailRows, 4)
	assert.Equal(t, "Name", tailRows[0][0].Text())
	assert.Equal(t, "row 2", tailRows[1][0].Text())

	head, _, err = tbl.Split(line12 + 1)
	require.NoError(t, err)
	assert.Nil(t, head, "a header alone is not a fragment")
}

func TestCloneIsUninitialized(t *testing.T) {
	env, _ := newEnv(t)
	v := NewVerticalContainer(style.Style{"padding": "3"}, NewParagraph("a ${pageNumber}", nil))
	prepare(t, env, v, 300)

	c := v.Clone()
	assert.Nil(t, c.Computed())
	MapText(c, func(s string) string { return strings.ReplaceAll(s, "${pageNumber}", "2") })
	assert.Equal(t, "a 2", c.(*VerticalContainer).Children()[0].(*Paragraph).Text())
	assert.Equal(t, "a ${pageNumber}", v.Children()[0].(*Paragraph).Text())

	env2, _ := newEnv(t)
	require.NoError(t, c.Init(env2, nil))
}

func TestWalkVisitsAllElements(t *testing.T) {
	tbl := NewTable(nil, nil)
	require.NoError(t, tbl.AddRow([]*TableCell{NewTableCell("a", nil), NewTableCell("b", nil)}, nil))
	root := NewVerticalContainer(nil, NewHorizontalContainer(nil, nil, NewParagraph("p", nil)), tbl)

	var kinds []string
	Walk(root, func(el Element) { kinds = append(kinds, el.Kind().String()) })
	assert.Equal(t, []string{"v-container", "h-container", "p", "table", "td", "td"}, kinds)
}

func TestParseWidthSpec(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"120", 120},
		{"50%", 100},
		{"100%-50", 150},
		{"10+20%", 50},
		{"50%+10", 110},
		{" 25% ", 50},
		{"12.5", 12.5},
	}
	for _, tt := range tests {
		spec, err := ParseWidthSpec(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, spec.Resolve(200), 1e-9, tt.in)
	}

	for _, in := range []string{"abc", "50%%", "", "-5", "10 20", "10%+20%", "10+20", "150%", "5px"} {
		_, err := ParseWidthSpec(in)
		assert.ErrorIs(t, err, ErrInvalidWidthFormat, in)
	}
}
