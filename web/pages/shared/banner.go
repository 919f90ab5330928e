package shared

import "github.com/rohanthewiz/element"

// Banner is the header strip shown on every hub page.
type Banner struct {
	Title string
}

func (b Banner) Render(builder *element.Builder) any {
	builder.Header("style", "background-color:#2c3e50; color:white; padding:20px").R(
		builder.H1().T(b.Title),
	)

	return nil
}
