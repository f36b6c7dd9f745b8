// Package codec turns cache values into bytes and back.
package codec

import "fmt"

// Codec marshals arbitrary values for storage. Unmarshal must accept a pointer
// to an empty interface and produce a generic tree (maps, slices, scalars) so
// values can be read back without knowing their Go type.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, dst any) error
}

// ByName resolves the codecs selectable from configuration.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	case "cbor":
		return NewCBOR(true)
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
