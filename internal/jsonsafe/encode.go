package jsonsafe

import (
	"bytes"
	"encoding/json"
)

// Marshal checks v and encodes it as an artifact document. Pretty output
// is indented by two spaces and ends with a newline; compact output has
// no trailing newline.
func Marshal(v any, pretty bool) ([]byte, error) {
	if err := Check(v); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	out := buf.Bytes()
	if !pretty {
		out = bytes.TrimSuffix(out, []byte{'\n'})
	}
	return out, nil
}
