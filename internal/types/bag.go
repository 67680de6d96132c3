// Package types defines the shared value model for the conversation
// analytics engine: the external Conversation/Message shapes and the
// analytics entities the engine persists.
package types

import (
	"encoding/json"
	"fmt"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindSequence
	KindBag
)

// Value is a tagged union over the dynamic attribute types conversations,
// messages, and decisions may carry. It serializes to plain JSON at the
// storage boundary (see Value.MarshalJSON and Bag.MarshalText).
type Value struct {
	Kind     Kind
	Str      string
	Num      float64
	Bool     bool
	Sequence []string
	Nested   Bag
}

// Bag is a typed key-value attribute map, serialized as a JSON object at
// the storage boundary.
type Bag map[string]Value

func StringValue(s string) Value       { return Value{Kind: KindString, Str: s} }
func NumberValue(n float64) Value       { return Value{Kind: KindNumber, Num: n} }
func BoolValue(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func SequenceValue(s []string) Value    { return Value{Kind: KindSequence, Sequence: s} }
func BagValue(b Bag) Value              { return Value{Kind: KindBag, Nested: b} }

// MarshalJSON renders the Value as the JSON shape its Kind implies.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindSequence:
		return json.Marshal(v.Sequence)
	case KindBag:
		return json.Marshal(v.Nested)
	default:
		return nil, fmt.Errorf("types: unknown Value kind %d", v.Kind)
	}
}

// UnmarshalJSON infers the Kind from the JSON token shape.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = valueFromAny(raw)
	return nil
}

func valueFromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Value{Kind: KindNull}
	case string:
		return StringValue(t)
	case float64:
		return NumberValue(t)
	case bool:
		return BoolValue(t)
	case []any:
		seq := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				seq = append(seq, s)
				continue
			}
			b, _ := json.Marshal(e)
			seq = append(seq, string(b))
		}
		return SequenceValue(seq)
	case map[string]any:
		bag := make(Bag, len(t))
		for k, e := range t {
			bag[k] = valueFromAny(e)
		}
		return BagValue(bag)
	default:
		return Value{Kind: KindNull}
	}
}

// MarshalText renders the bag as a JSON text blob for a single TEXT column.
func (b Bag) MarshalText() ([]byte, error) {
	if len(b) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]Value(b))
}

// BagFromText parses a stored TEXT column back into a Bag. Empty and NULL
// (represented here as an empty string) both decode to an empty, non-nil
// Bag, satisfying the round-trip law in spec §8.
func BagFromText(text string) (Bag, error) {
	if text == "" {
		return Bag{}, nil
	}
	var b Bag
	if err := json.Unmarshal([]byte(text), &b); err != nil {
		return nil, fmt.Errorf("types: decode bag: %w", err)
	}
	if b == nil {
		b = Bag{}
	}
	return b, nil
}
