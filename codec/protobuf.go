package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf stores proto messages. Values must implement proto.Message, and
// reads must go through a typed destination (GetInto/GetAs with a message
// pointer); untyped reads fall back to the raw bytes.
type Protobuf struct{}

func (Protobuf) Name() string { return "protobuf" }

func (Protobuf) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: protobuf cannot marshal %T", v)
	}
	return proto.Marshal(m)
}

func (Protobuf) Unmarshal(b []byte, dst any) error {
	m, ok := dst.(proto.Message)
	if !ok {
		return fmt.Errorf("codec: protobuf cannot unmarshal into %T", dst)
	}
	return proto.Unmarshal(b, m)
}
