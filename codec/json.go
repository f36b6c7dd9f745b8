package codec

import (
	"bytes"
	"encoding/json"
)

// JSON is the default codec. HTML escaping is off so cached pages are stored
// byte-for-byte; map keys come out sorted, which makes encodings stable.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (JSON) Unmarshal(b []byte, dst any) error { return json.Unmarshal(b, dst) }
