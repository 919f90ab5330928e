package models

// NoteType is the logical type of a note. It selects the content shape.
type NoteType string

const (
	NoteTypeStructuredText NoteType = "structured-text"
	NoteTypeFreeformCanvas NoteType = "freeform-canvas"
)

// Valid reports whether t is one of the known note types.
func (t NoteType) Valid() bool {
	switch t {
	case NoteTypeStructuredText, NoteTypeFreeformCanvas:
		return true
	}
	return false
}

// Content is the typed payload of a note. The concrete types are
// StructuredText and FreeformCanvas; switch on them exhaustively.
type Content interface {
	NoteType() NoteType
}

// LineFormat is the formatting record carried by each text line.
type LineFormat struct {
	Font      string `json:"font" msgpack:"font"`
	Size      int    `json:"size" msgpack:"size"`
	Bold      bool   `json:"bold" msgpack:"bold"`
	Italic    bool   `json:"italic" msgpack:"italic"`
	Underline bool   `json:"underline" msgpack:"underline"`
	Align     string `json:"align" msgpack:"align"`
}

// DefaultLineFormat is applied to lines produced from delta input.
func DefaultLineFormat() LineFormat {
	return LineFormat{Font: "default", Size: 16, Align: "left"}
}

type TextLine struct {
	Text   string     `json:"text" msgpack:"text"`
	Format LineFormat `json:"format" msgpack:"format"`
}

type TextPage struct {
	Lines []TextLine `json:"lines" msgpack:"lines"`
}

// StructuredText is the canonical, paginated form of a text note.
type StructuredText struct {
	Pages []TextPage `json:"pages" msgpack:"pages"`
}

func (StructuredText) NoteType() NoteType { return NoteTypeStructuredText }

// PlainText joins every line of every page with newlines.
func (s StructuredText) PlainText() string {
	var out []byte
	for _, page := range s.Pages {
		for _, line := range page.Lines {
			out = append(out, line.Text...)
			out = append(out, '\n')
		}
	}
	return string(out)
}

type Point struct {
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	Pressure float64 `json:"pressure,omitempty" msgpack:"pressure"`
}

type Stroke struct {
	Tool   string  `json:"tool" msgpack:"tool"`
	Color  string  `json:"color" msgpack:"color"`
	Width  float64 `json:"width" msgpack:"width"`
	Points []Point `json:"points" msgpack:"points"`
}

// Layer is one stack of drawing primitives.
type Layer struct {
	ID      string   `json:"id" msgpack:"id"`
	Name    string   `json:"name,omitempty" msgpack:"name"`
	Visible bool     `json:"visible" msgpack:"visible"`
	Strokes []Stroke `json:"strokes" msgpack:"strokes"`
}

// FreeformCanvas is the layered drawing content of a canvas note.
type FreeformCanvas struct {
	Layers []Layer `json:"layers" msgpack:"layers"`
}

func (FreeformCanvas) NoteType() NoteType { return NoteTypeFreeformCanvas }
