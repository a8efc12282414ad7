package tlv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/ragent/internal/testutil/testlog"
)

func TestEncodeDecodeFieldsPreservesUnknown(t *testing.T) {
	testlog.Start(t)
	in := []Field{
		String(1, "ragent-q1"),
		{ID: 9999, Type: TypeBytes, Value: []byte{0xAA, 0xBB}},
	}
	out, err := DecodeFields(EncodeFields(in))
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if out[1].ID != 9999 || out[1].Type != TypeBytes || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("unknown field not preserved: %+v", out[1])
	}
}

func TestNestedFields(t *testing.T) {
	testlog.Start(t)
	payload := EncodeFields([]Field{
		Nested(3, String(1, "prefix"), String(2, "q1")),
		Nested(3, String(1, "waypoint"), String(2, "true")),
		U32(4, 404),
	})
	fields, err := DecodeFields(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	attrs := GetAll(fields, 3)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 nested fields, got %d", len(attrs))
	}
	inner, err := attrs[1].AsFields()
	if err != nil {
		t.Fatalf("nested decode: %v", err)
	}
	if v, err := RequireString(inner, 2); err != nil || v != "true" {
		t.Fatalf("nested value: %q %v", v, err)
	}
	code, _ := GetField(fields, 4)
	if v, err := code.AsU32(); err != nil || v != 404 {
		t.Fatalf("u32 value: %d %v", v, err)
	}
}

func TestTypedAccessors(t *testing.T) {
	testlog.Start(t)
	if _, err := U32(1, 5).AsString(); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if _, err := RequireString(nil, 7); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	testlog.Start(t)
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	testlog.Start(t)
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}
