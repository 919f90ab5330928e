package models

import (
	"github.com/rohanthewiz/serr"
	"github.com/vmihailenco/msgpack/v5"
)

// Content and page layers are stored as msgpack BLOBs. The encoding of a
// struct is deterministic, so byte equality doubles as payload equality
// when deciding whether a same-timestamp write is a duplicate.

// EncodeContentPayload serializes typed content for storage.
func EncodeContentPayload(content Content) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch c := content.(type) {
	case StructuredText:
		data, err = msgpack.Marshal(&c)
	case FreeformCanvas:
		data, err = msgpack.Marshal(&c)
	default:
		return nil, serr.New("unsupported content type")
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to msgpack encode content")
	}
	return data, nil
}

// DecodeContentPayload restores typed content from storage.
func DecodeContentPayload(noteType NoteType, data []byte) (Content, error) {
	switch noteType {
	case NoteTypeStructuredText:
		var text StructuredText
		if err := msgpack.Unmarshal(data, &text); err != nil {
			return nil, serr.Wrap(err, "failed to msgpack decode structured text")
		}
		return text, nil
	case NoteTypeFreeformCanvas:
		var canvas FreeformCanvas
		if err := msgpack.Unmarshal(data, &canvas); err != nil {
			return nil, serr.Wrap(err, "failed to msgpack decode canvas")
		}
		return canvas, nil
	default:
		return nil, serr.New("unknown note type: " + string(noteType))
	}
}

// EncodeLayers serializes page layers for storage.
func EncodeLayers(layers []Layer) ([]byte, error) {
	if layers == nil {
		layers = []Layer{}
	}
	data, err := msgpack.Marshal(layers)
	if err != nil {
		return nil, serr.Wrap(err, "failed to msgpack encode layers")
	}
	return data, nil
}

// DecodeLayers restores page layers from storage.
func DecodeLayers(data []byte) ([]Layer, error) {
	layers := []Layer{}
	if len(data) == 0 {
		return layers, nil
	}
	if err := msgpack.Unmarshal(data, &layers); err != nil {
		return nil, serr.Wrap(err, "failed to msgpack decode layers")
	}
	return layers, nil
}
