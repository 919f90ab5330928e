package comps

import (
	"strconv"

	"github.com/rohanthewiz/element"
)

// Stat is one labelled counter on the status page.
type Stat struct {
	Label string
	Value int64
}

func (s Stat) Render(b *element.Builder) any {
	b.Div("class", "stat", "style", "display:inline-block; margin:8px 16px").R(
		b.Span("class", "stat-value", "style", "font-size:24px; font-weight:bold").T(strconv.FormatInt(s.Value, 10)),
		b.Span("class", "stat-label", "style", "display:block; color:gray").T(s.Label),
	)
	return nil
}
