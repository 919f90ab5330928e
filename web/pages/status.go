package pages

import (
	"html"
	"time"

	"notesync/models"
	"notesync/web/pages/comps"
	"notesync/web/pages/shared"

	"github.com/rohanthewiz/element"
)

// StatusPage is the hub's landing page: store counts and recent conflicts.
type StatusPage struct {
	shared.Page

	Status *models.SyncStatusResponse
	Err    string
}

func NewStatusPage(status *models.SyncStatusResponse, err error) StatusPage {
	p := StatusPage{Page: shared.Page{Title: "notesync hub"}, Status: status}
	if err != nil {
		p.Err = err.Error()
	}
	return p
}

func (p StatusPage) Render() string {
	b := element.NewBuilder()

	b.Html("lang", "en").R(
		b.Head().R(
			b.Meta("charset", "UTF-8"),
			b.Meta("name", "viewport", "content", "width=device-width, initial-scale=1.0"),
			b.Title().T(p.Title),
		),
		b.Body("style", "font-family:sans-serif; margin:0").R(
			element.RenderComponents(b, p.Banner()),
			b.Div("style", "padding:20px").R(
				p.renderBody(b),
			),
			element.RenderComponents(b, p.Footer()),
		),
	)

	return b.String()
}

func (p StatusPage) renderBody(b *element.Builder) any {
	if p.Status == nil {
		b.P("class", "error", "style", "color:maroon").T("Status unavailable: " + html.EscapeString(p.Err))
		return nil
	}

	s := p.Status
	element.RenderComponents(b,
		comps.Heading{Title: "Store", Note: "live totals"},
		comps.Stat{Label: "notes", Value: s.LiveNotes},
		comps.Stat{Label: "in trash", Value: s.DeletedNotes},
		comps.Stat{Label: "contents", Value: s.Contents},
		comps.Stat{Label: "pages", Value: s.Pages},
	)
	b.P("style", "color:gray").T("checksum " + s.Checksum + " at " + s.ServerTime.Format(time.RFC3339))

	element.RenderComponents(b, comps.Heading{Title: "Recent conflicts", Note: "latest 10"})
	if len(s.Conflicts) == 0 {
		b.P().T("None")
		return nil
	}

	b.Ul("class", "conflicts").R(
		b.Wrap(func() {
			for _, c := range s.Conflicts {
				b.Li().R(
					b.Span("style", "font-weight:bold").T(html.EscapeString(c.EntityType+" "+c.EntityKey)),
					b.Span().T(" "+c.Resolution+": stored "+c.StoredAt.Format(time.RFC3339)+
						", incoming "+c.IncomingAt.Format(time.RFC3339)),
				)
			}
		}),
	)
	return nil
}
