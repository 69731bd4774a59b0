// Package format writes CLI payloads as JSON, EDN or human-readable text.
package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// Texter is implemented by payloads that have a text rendering.
type Texter interface {
	Text() string
}

// Write writes v in the requested format: json (default), edn or text.
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "edn":
		return WriteEDN(w, v, pretty)
	case "text":
		t, ok := v.(Texter)
		if !ok {
			return fmt.Errorf("text output not available for this command")
		}
		_, err := io.WriteString(w, t.Text())
		return err
	default:
		return fmt.Errorf("unknown format: %s (expected json|edn|text)", format)
	}
}

// WriteJSON writes v as a single JSON document followed by a newline.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
