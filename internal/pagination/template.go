package pagination

import (
	"strconv"

	"github.com/gompdf/jsonpdf/internal/layout"
	"github.com/gompdf/jsonpdf/internal/vars"
)

// Decorate gives every page its own copy of the running template with
// ${pageNumber}, ${totalPages} and ${date} resolved. Template elements flow
// from the top edge of the page across the width between the side margins;
// fixed elements are placed against the page edges.
func (p *Paginator) Decorate(pages []*Page, template []layout.Element, date string) error {
	if len(template) == 0 {
		return nil
	}
	width := p.contentWidth()
	total := strconv.Itoa(len(pages))

	for _, page := range pages {
		values := map[string]string{
			"pageNumber": strconv.Itoa(page.Number),
			"totalPages": total,
			"date":       date,
		}
		cursor := page.Height
		for _, tmpl := range template {
			el := tmpl.Clone()
			layout.MapText(el, func(s string) string { return vars.ResolveSimple(s, values) })
			if err := el.Init(p.Env, nil); err != nil {
				return err
			}
			if err := el.PreRender(layout.Placement{X: p.Margins.Left, Y: cursor, MaxWidth: width}); err != nil {
				return err
			}
			if !layout.IsFixed(el) {
				cursor -= el.Height()
			}
			page.Template = append(page.Template, el)
		}
	}
	return nil
}
