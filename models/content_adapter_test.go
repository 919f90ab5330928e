package models

import (
	"encoding/json"
	"testing"
)

func TestDeltaToPages(t *testing.T) {
	tests := []struct {
		name      string
		delta     string
		wantPages []string // text of the single line on each page; "" means an empty page
	}{
		{"two lines", `{"ops":[{"insert":"line1\nline2\n"}]}`, []string{"line1", "line2"}},
		{"all whitespace", `{"ops":[{"insert":"  \n\t\n \n"}]}`, []string{""}},
		{"empty ops", `{"ops":[]}`, []string{""}},
		{"split across inserts", `{"ops":[{"insert":"hel"},{"insert":"lo\nwor","attributes":{"bold":true}},{"insert":"ld\n"}]}`, []string{"hello", "world"}},
		{"embeds skipped", `{"ops":[{"insert":"a\n"},{"insert":{"image":"x.png"}},{"insert":"b\n"}]}`, []string{"a", "b"}},
		{"crlf", `{"ops":[{"insert":"one\r\ntwo\r\n"}]}`, []string{"one", "two"}},
		{"blank lines dropped", `{"ops":[{"insert":"first\n\n\nsecond"}]}`, []string{"first", "second"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delta Delta
			if err := json.Unmarshal([]byte(tt.delta), &delta); err != nil {
				t.Fatalf("bad test delta: %v", err)
			}

			got := DeltaToPages(delta)
			if len(got.Pages) != len(tt.wantPages) {
				t.Fatalf("got %d pages, want %d", len(got.Pages), len(tt.wantPages))
			}

			for i, want := range tt.wantPages {
				lines := got.Pages[i].Lines
				if want == "" {
					if len(lines) != 0 {
						t.Errorf("page %d: expected no lines, got %d", i, len(lines))
					}
					continue
				}
				if len(lines) != 1 {
					t.Fatalf("page %d: expected 1 line, got %d", i, len(lines))
				}
				if lines[0].Text != want {
					t.Errorf("page %d text = %q, want %q", i, lines[0].Text, want)
				}
				if lines[0].Format != DefaultLineFormat() {
					t.Errorf("page %d format = %+v, want default", i, lines[0].Format)
				}
			}
		})
	}
}

func TestDecodeContent(t *testing.T) {
	tests := []struct {
		name      string
		noteType  NoteType
		raw       string
		wantErr   bool
		wantPages int
	}{
		{"delta", NoteTypeStructuredText, `{"ops":[{"insert":"a\nb\n"}]}`, false, 2},
		{"pages", NoteTypeStructuredText, `{"pages":[{"lines":[{"text":"x","format":{"font":"mono","size":12}}]}]}`, false, 1},
		{"empty pages", NoteTypeStructuredText, `{"pages":[]}`, false, 1},
		{"canvas", NoteTypeFreeformCanvas, `{"layers":[{"id":"l1","visible":true,"strokes":[]}]}`, false, 0},
		{"canvas without layers", NoteTypeFreeformCanvas, `{"pages":[]}`, true, 0},
		{"text without shape", NoteTypeStructuredText, `{"foo":1}`, true, 0},
		{"unknown type", NoteType("spreadsheet"), `{"cells":[]}`, true, 0},
		{"null data", NoteTypeStructuredText, `null`, true, 0},
		{"not an object", NoteTypeStructuredText, `"hello"`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := DecodeContent(tt.noteType, json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !IsMalformed(err) {
					t.Errorf("expected malformed payload error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if content.NoteType() != tt.noteType {
				t.Errorf("NoteType() = %q, want %q", content.NoteType(), tt.noteType)
			}
			if text, ok := content.(StructuredText); ok && len(text.Pages) != tt.wantPages {
				t.Errorf("got %d pages, want %d", len(text.Pages), tt.wantPages)
			}
		})
	}
}

func TestContentPayloadRoundTrip(t *testing.T) {
	canvas := FreeformCanvas{Layers: []Layer{{
		ID: "ink", Visible: true,
		Strokes: []Stroke{{Tool: "pen", Color: "#000", Width: 2, Points: []Point{{X: 1, Y: 2, Pressure: 0.5}}}},
	}}}

	data, err := EncodeContentPayload(canvas)
	if err != nil {
		t.Fatalf("EncodeContentPayload() error: %v", err)
	}
	again, err := EncodeContentPayload(canvas)
	if err != nil {
		t.Fatalf("EncodeContentPayload() error: %v", err)
	}
	if string(data) != string(again) {
		t.Error("encoding the same content twice should produce identical bytes")
	}

	decoded, err := DecodeContentPayload(NoteTypeFreeformCanvas, data)
	if err != nil {
		t.Fatalf("DecodeContentPayload() error: %v", err)
	}
	got := decoded.(FreeformCanvas)
	if len(got.Layers) != 1 || got.Layers[0].Strokes[0].Points[0].Pressure != 0.5 {
		t.Errorf("decoded canvas = %+v", got)
	}
}
