package shared

import "github.com/rohanthewiz/element"

type Footer struct{}

func (f Footer) Render(b *element.Builder) any {
	b.Div("style", "background-color:lightgray; padding:8px").R(
		b.P("style", "color:gray").T("notesync hub"),
	)

	return nil
}
