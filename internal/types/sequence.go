package types

import "encoding/json"

// StringSlice is a sequence-valued column (conversation_ids,
// success_factors, tags, related_entities, ...), encoded as a JSON text
// array at the storage boundary. NULL and "" both decode to an empty,
// non-nil slice.
type StringSlice []string

// MarshalText renders the slice as JSON for storage in a TEXT column.
func (s StringSlice) MarshalText() ([]byte, error) {
	if len(s) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// StringSliceFromText decodes a stored TEXT column into a StringSlice.
func StringSliceFromText(text string) (StringSlice, error) {
	if text == "" {
		return StringSlice{}, nil
	}
	var s []string
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = []string{}
	}
	return StringSlice(s), nil
}

// IntSet is a small set of small integers (peak_hours: 0-23), encoded as
// a JSON array of ints.
type IntSet []int

func (s IntSet) MarshalText() ([]byte, error) {
	if len(s) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(s))
}

func IntSetFromText(text string) (IntSet, error) {
	if text == "" {
		return IntSet{}, nil
	}
	var s []int
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = []int{}
	}
	return IntSet(s), nil
}

// Contains reports whether h is present in the set.
func (s IntSet) Contains(h int) bool {
	for _, v := range s {
		if v == h {
			return true
		}
	}
	return false
}
