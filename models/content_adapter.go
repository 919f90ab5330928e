package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rohanthewiz/serr"
)

// Delta is the rich-text editing format some editors emit for structured text.
type Delta struct {
	Ops []DeltaOp `json:"ops"`
}

// DeltaOp is one delta operation. Insert is a string for text and an object
// for embeds; embeds carry no line text and are skipped.
type DeltaOp struct {
	Insert     any            `json:"insert,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// contentShape detects which shape a structured-text payload uses.
type contentShape struct {
	Ops    json.RawMessage `json:"ops"`
	Pages  json.RawMessage `json:"pages"`
	Layers json.RawMessage `json:"layers"`
}

// DecodeContent turns a wire payload into typed content for noteType.
// Structured-text deltas are converted to the paginated form here; the
// original delta is not kept.
func DecodeContent(noteType NoteType, raw json.RawMessage) (Content, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, malformed("content data is required")
	}

	var shape contentShape
	if err := json.Unmarshal(trimmed, &shape); err != nil {
		return nil, malformed("content data must be a JSON object")
	}

	switch noteType {
	case NoteTypeStructuredText:
		switch {
		case shape.Ops != nil:
			var delta Delta
			if err := json.Unmarshal(trimmed, &delta); err != nil {
				return nil, malformed("invalid delta: " + err.Error())
			}
			return DeltaToPages(delta), nil
		case shape.Pages != nil:
			var text StructuredText
			if err := json.Unmarshal(trimmed, &text); err != nil {
				return nil, malformed("invalid structured text: " + err.Error())
			}
			if len(text.Pages) == 0 {
				text.Pages = []TextPage{{Lines: []TextLine{}}}
			}
			return text, nil
		default:
			return nil, malformed("structured text needs either ops or pages")
		}

	case NoteTypeFreeformCanvas:
		if shape.Layers == nil {
			return nil, malformed("freeform canvas needs layers")
		}
		var canvas FreeformCanvas
		if err := json.Unmarshal(trimmed, &canvas); err != nil {
			return nil, malformed("invalid canvas: " + err.Error())
		}
		if canvas.Layers == nil {
			canvas.Layers = []Layer{}
		}
		return canvas, nil

	default:
		return nil, malformed("unknown note type: " + string(noteType))
	}
}

// DeltaToPages flattens a delta to text, splits it on newlines and emits
// one page per non-blank line with the default format. The result always
// has at least one page.
func DeltaToPages(delta Delta) StructuredText {
	var sb strings.Builder
	for _, op := range delta.Ops {
		if s, ok := op.Insert.(string); ok {
			sb.WriteString(s)
		}
	}

	var pages []TextPage
	for _, line := range strings.Split(sb.String(), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		pages = append(pages, TextPage{
			Lines: []TextLine{{Text: line, Format: DefaultLineFormat()}},
		})
	}

	if len(pages) == 0 {
		pages = []TextPage{{Lines: []TextLine{}}}
	}
	return StructuredText{Pages: pages}
}

// EncodeContentJSON is the inverse of DecodeContent for the canonical forms.
func EncodeContentJSON(content Content) (json.RawMessage, error) {
	switch c := content.(type) {
	case StructuredText, FreeformCanvas:
		data, err := json.Marshal(c)
		if err != nil {
			return nil, serr.Wrap(err, "failed to encode content")
		}
		return data, nil
	default:
		return nil, serr.New("unsupported content type")
	}
}

func malformed(msg string) error {
	return &MalformedPayloadError{Msg: msg}
}
