package comps

import "github.com/rohanthewiz/element"

// Heading titles a section of the status page. Note, when set, is shown
// muted after the title.
type Heading struct {
	Title string
	Note  string
}

func (h Heading) Render(b *element.Builder) any {
	b.H2("style", "color:#2c3e50; border-bottom:1px solid #ccc; font-size:18px").R(
		b.T(h.Title),
		b.Wrap(func() {
			if h.Note != "" {
				b.Span("style", "color:gray; font-weight:normal; margin-left:8px; font-size:13px").T(h.Note)
			}
		}),
	)
	return nil
}
