package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Member is one key/value pair of an object. Order is significant.
type Member struct {
	Key   string
	Value Value
}

// Value is a JSON value. Exactly one field besides Kind is meaningful.
// Numbers keep their source literal so re-serialization is lossless.
type Value struct {
	Kind    Kind
	Bool    bool
	Number  string
	String  string
	Array   []Value
	Members []Member
}

// Get returns the member value for key in an object.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Parse reads exactly one JSON document.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errors.New("webhook: trailing data after JSON document")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("webhook: invalid JSON: %w", err)
	}

	switch t := tok.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case json.Number:
		return Value{Kind: KindNumber, Number: t.String()}, nil
	case string:
		return Value{Kind: KindString, String: t}, nil
	case json.Delim:
		switch t {
		case '[':
			arr := Value{Kind: KindArray, Array: []Value{}}
			for dec.More() {
				elem, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr.Array = append(arr.Array, elem)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("webhook: invalid JSON: %w", err)
			}
			return arr, nil
		case '{':
			obj := Value{Kind: KindObject, Members: []Member{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, fmt.Errorf("webhook: invalid JSON: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("webhook: invalid object key %v", keyTok)
				}
				val, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Members = append(obj.Members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("webhook: invalid JSON: %w", err)
			}
			return obj, nil
		}
	}
	return Value{}, fmt.Errorf("webhook: unexpected JSON token %v", tok)
}

// SortKeys returns a copy of v with every object's members sorted by key,
// at every depth. Array element order is preserved.
func SortKeys(v Value) Value {
	switch v.Kind {
	case KindArray:
		arr := make([]Value, len(v.Array))
		for i, elem := range v.Array {
			arr[i] = SortKeys(elem)
		}
		return Value{Kind: KindArray, Array: arr}
	case KindObject:
		members := make([]Member, len(v.Members))
		for i, m := range v.Members {
			members[i] = Member{Key: m.Key, Value: SortKeys(m.Value)}
		}
		sort.SliceStable(members, func(i, j int) bool { return members[i].Key < members[j].Key })
		return Value{Kind: KindObject, Members: members}
	default:
		return v
	}
}

// Marshal serializes v compactly, keeping member order as given.
// Strings are escaped the way JavaScript's JSON.stringify escapes them, which
// is what signing providers hash.
func Marshal(v Value) []byte {
	var b strings.Builder
	writeValue(&b, v)
	return []byte(b.String())
}

// Canonicalize parses a payload and returns its sorted, compact serialization.
func Canonicalize(payload []byte) ([]byte, error) {
	v, err := Parse(payload)
	if err != nil {
		return nil, err
	}
	return Marshal(SortKeys(v)), nil
}

func writeValue(b *strings.Builder, v Value) {
	switch v.Kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		if v.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindNumber:
		b.WriteString(v.Number)
	case KindString:
		writeString(b, v.String)
	case KindArray:
		b.WriteByte('[')
		for i, elem := range v.Array {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, elem)
		}
		b.WriteByte(']')
	case KindObject:
		b.WriteByte('{')
		for i, m := range v.Members {
			if i > 0 {
				b.WriteByte(',')
			}
			writeString(b, m.Key)
			b.WriteByte(':')
			writeValue(b, m.Value)
		}
		b.WriteByte('}')
	}
}

const hexDigits = "0123456789abcdef"

func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[r>>4])
				b.WriteByte(hexDigits[r&0xF])
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}
