package mgmt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/danmuck/ragent/internal/protocol/tlv"
	"github.com/danmuck/ragent/internal/routerconfig"
)

type MessageType uint32

const (
	MsgQuery       MessageType = 1
	MsgQueryResult MessageType = 2
	MsgCreate      MessageType = 3
	MsgDelete      MessageType = 4
	MsgAck         MessageType = 5
	MsgError       MessageType = 6
)

func (t MessageType) String() string {
	switch t {
	case MsgQuery:
		return "query"
	case MsgQueryResult:
		return "query_result"
	case MsgCreate:
		return "create"
	case MsgDelete:
		return "delete"
	case MsgAck:
		return "ack"
	case MsgError:
		return "error"
	default:
		return fmt.Sprintf("message(%d)", uint32(t))
	}
}

// Payload field ids.
const (
	fieldTypeID  uint16 = 1
	fieldName    uint16 = 2
	fieldRecord  uint16 = 3
	fieldCode    uint16 = 4
	fieldMessage uint16 = 5

	// inside a record
	fieldAttribute uint16 = 1
	// inside an attribute
	fieldKey   uint16 = 1
	fieldValue uint16 = 2
)

// Request is a decoded agent->router message.
type Request struct {
	Type   MessageType
	TypeID string
	Name   string
	Record routerconfig.Record
}

func (r Request) Validate() error {
	switch r.Type {
	case MsgQuery, MsgCreate, MsgDelete:
	default:
		return fmt.Errorf("%w: %s is not a request", ErrMalformed, r.Type)
	}
	if strings.TrimSpace(r.TypeID) == "" {
		return fmt.Errorf("%w: %s missing type_id", ErrMalformed, r.Type)
	}
	if r.Type != MsgQuery && strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: %s missing name", ErrMalformed, r.Type)
	}
	return nil
}

// Response is a decoded router->agent message.
type Response struct {
	Type    MessageType
	Records []routerconfig.Record
	Code    uint32
	Message string
}

func EncodeRequest(r Request) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	fields := []tlv.Field{tlv.String(fieldTypeID, r.TypeID)}
	if r.Type != MsgQuery {
		fields = append(fields, tlv.String(fieldName, r.Name))
	}
	if r.Type == MsgCreate {
		fields = append(fields, encodeRecord(r.Record))
	}
	return tlv.EncodeFields(fields), nil
}

func DecodeRequest(t MessageType, payload []byte) (Request, error) {
	fields, err := tlv.DecodeFields(payload)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	req := Request{Type: t}
	if t != MsgQuery && t != MsgCreate && t != MsgDelete {
		return Request{}, fmt.Errorf("%w: %s is not a request", ErrMalformed, t)
	}
	if req.TypeID, err = tlv.RequireString(fields, fieldTypeID); err != nil {
		return Request{}, fmt.Errorf("%w: %s: %w", ErrMalformed, t, err)
	}
	if t == MsgCreate || t == MsgDelete {
		if req.Name, err = tlv.RequireString(fields, fieldName); err != nil {
			return Request{}, fmt.Errorf("%w: %s: %w", ErrMalformed, t, err)
		}
	}
	if t == MsgCreate {
		if f, ok := tlv.GetField(fields, fieldRecord); ok {
			if req.Record, err = decodeRecord(f); err != nil {
				return Request{}, err
			}
		}
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

func EncodeResponse(r Response) []byte {
	var fields []tlv.Field
	switch r.Type {
	case MsgQueryResult:
		fields = make([]tlv.Field, 0, len(r.Records))
		for _, rec := range r.Records {
			fields = append(fields, encodeRecord(rec))
		}
	case MsgError:
		fields = []tlv.Field{tlv.U32(fieldCode, r.Code), tlv.String(fieldMessage, r.Message)}
	}
	return tlv.EncodeFields(fields)
}

func DecodeResponse(t MessageType, payload []byte) (Response, error) {
	fields, err := tlv.DecodeFields(payload)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	resp := Response{Type: t}
	switch t {
	case MsgAck:
	case MsgQueryResult:
		for _, f := range tlv.GetAll(fields, fieldRecord) {
			rec, err := decodeRecord(f)
			if err != nil {
				return Response{}, err
			}
			resp.Records = append(resp.Records, rec)
		}
	case MsgError:
		if f, ok := tlv.GetField(fields, fieldCode); ok {
			if resp.Code, err = f.AsU32(); err != nil {
				return Response{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
		}
		if f, ok := tlv.GetField(fields, fieldMessage); ok {
			resp.Message, _ = f.AsString()
		}
	default:
		return Response{}, fmt.Errorf("%w: %s", ErrUnexpectedResponse, t)
	}
	return resp, nil
}

// encodeRecord writes attributes in key order so equal records encode equally.
func encodeRecord(rec routerconfig.Record) tlv.Field {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	attrs := make([]tlv.Field, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, tlv.Nested(fieldAttribute, tlv.String(fieldKey, k), tlv.String(fieldValue, rec[k])))
	}
	return tlv.Nested(fieldRecord, attrs...)
}

func decodeRecord(f tlv.Field) (routerconfig.Record, error) {
	attrs, err := f.AsFields()
	if err != nil {
		return nil, fmt.Errorf("%w: record: %w", ErrMalformed, err)
	}
	rec := make(routerconfig.Record, len(attrs))
	for _, a := range tlv.GetAll(attrs, fieldAttribute) {
		kv, err := a.AsFields()
		if err != nil {
			return nil, fmt.Errorf("%w: attribute: %w", ErrMalformed, err)
		}
		key, err := tlv.RequireString(kv, fieldKey)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute key: %w", ErrMalformed, err)
		}
		value, err := tlv.RequireString(kv, fieldValue)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %q: %w", ErrMalformed, key, err)
		}
		rec[key] = value
	}
	return rec, nil
}
