package codec

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func sampleTree() map[string]any {
	return map[string]any{
		"message": "Hello <b>world</b>",
		"flag":    false,
		"count":   42,
		"ratio":   0.5,
		"nested": map[string]any{
			"list":  []any{1, "two", true, nil},
			"empty": "",
		},
	}
}

// encode(decode(encode(v))) must equal encode(v).
func TestStableReencode(t *testing.T) {
	for _, c := range []Codec{JSON{}, Msgpack{}, MustCBOR(true)} {
		first, err := c.Marshal(sampleTree())
		if err != nil {
			t.Fatalf("%s Marshal: %v", c.Name(), err)
		}
		var back any
		if err := c.Unmarshal(first, &back); err != nil {
			t.Fatalf("%s Unmarshal: %v", c.Name(), err)
		}
		second, err := c.Marshal(back)
		if err != nil {
			t.Fatalf("%s re-Marshal: %v", c.Name(), err)
		}
		if !bytes.Equal(first, second) {
			t.Fatalf("%s re-encode differs:\n%x\n%x", c.Name(), first, second)
		}
	}
}

func TestFalsyValuesSurvive(t *testing.T) {
	for _, c := range []Codec{JSON{}, Msgpack{}, MustCBOR(false)} {
		for _, v := range []any{false, "", 0} {
			b, err := c.Marshal(v)
			if err != nil {
				t.Fatalf("%s Marshal(%v): %v", c.Name(), v, err)
			}
			if len(b) == 0 {
				t.Fatalf("%s encoded %#v to empty bytes", c.Name(), v)
			}
		}
		var got bool
		b, _ := c.Marshal(false)
		if err := c.Unmarshal(b, &got); err != nil || got {
			t.Fatalf("%s false round trip: got=%v err=%v", c.Name(), got, err)
		}
	}
}

func TestJSONDoesNotEscapeHTML(t *testing.T) {
	b, err := JSON{}.Marshal("<html>&</html>")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"<html>&</html>"` {
		t.Fatalf("unexpected JSON: %s", b)
	}
}

func TestGenericMapsAreStringKeyed(t *testing.T) {
	for _, c := range []Codec{Msgpack{}, MustCBOR(true)} {
		b, err := c.Marshal(map[string]any{"a": map[string]any{"b": 1}})
		if err != nil {
			t.Fatal(err)
		}
		var out any
		if err := c.Unmarshal(b, &out); err != nil {
			t.Fatalf("%s Unmarshal: %v", c.Name(), err)
		}
		m, ok := out.(map[string]any)
		if !ok {
			t.Fatalf("%s top-level type %T", c.Name(), out)
		}
		if _, ok := m["a"].(map[string]any); !ok {
			t.Fatalf("%s nested type %T", c.Name(), m["a"])
		}
	}
}

func TestTypedStructRoundTrip(t *testing.T) {
	type user struct {
		ID   string `json:"id" msgpack:"id" cbor:"id"`
		Name string `json:"name" msgpack:"name" cbor:"name"`
	}
	in := user{ID: "1", Name: "Ada"}
	for _, c := range []Codec{JSON{}, Msgpack{}, MustCBOR(true)} {
		b, err := c.Marshal(in)
		if err != nil {
			t.Fatal(err)
		}
		var out user
		if err := c.Unmarshal(b, &out); err != nil {
			t.Fatalf("%s: %v", c.Name(), err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("%s: got %+v want %+v", c.Name(), out, in)
		}
	}
}

func TestProtobuf(t *testing.T) {
	msg, err := structpb.NewStruct(map[string]any{"k": "v", "n": 3})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Protobuf{}.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := &structpb.Struct{}
	if err := (Protobuf{}).Unmarshal(b, out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !proto.Equal(msg, out) {
		t.Fatalf("proto mismatch: %v vs %v", msg, out)
	}

	if _, err := (Protobuf{}).Marshal("not a message"); err == nil {
		t.Fatalf("expected error for non-message value")
	}
	var generic any
	if err := (Protobuf{}).Unmarshal(b, &generic); err == nil {
		t.Fatalf("expected error for non-message destination")
	}
}

func TestLimit(t *testing.T) {
	c := Limit{Inner: JSON{}, MaxDecode: 8}
	big, _ := c.Marshal(strings.Repeat("x", 32))
	var s string
	if err := c.Unmarshal(big, &s); err == nil {
		t.Fatalf("expected size error")
	}
	small, _ := c.Marshal("ok")
	if err := c.Unmarshal(small, &s); err != nil || s != "ok" {
		t.Fatalf("small payload: s=%q err=%v", s, err)
	}
	if c.Name() != "json" {
		t.Fatalf("Name=%q", c.Name())
	}
}

func TestByName(t *testing.T) {
	for name, want := range map[string]string{"": "json", "json": "json", "msgpack": "msgpack", "cbor": "cbor"} {
		c, err := ByName(name)
		if err != nil || c.Name() != want {
			t.Fatalf("ByName(%q)=%v,%v", name, c, err)
		}
	}
	if _, err := ByName("yaml"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}
