package jsonx

import (
	"bytes"
	"io"

	"github.com/goccy/go-json"
)

// Single switch point for the JSON implementation used across the module.
var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
	NewDecoder    = json.NewDecoder
	NewEncoder    = json.NewEncoder
	Valid         = json.Valid
)

type RawMessage = json.RawMessage
type Number = json.Number

// EncodeIndent writes v to w as two-space indented JSON followed by a newline.
func EncodeIndent(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// DecodeNumbers unmarshals data keeping numbers as json.Number so callers can
// distinguish integers, floats and numeric strings.
func DecodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
