package core

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// NullInt is an optional nullable int of a partial update:
// Set tells whether the field was sent at all, Valid whether it was not null.
type NullInt struct {
	Set   bool
	Valid bool
	Int   int
}

func (n *NullInt) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(data, []byte("null")) {
		n.Valid = false
		n.Int = 0
		return nil
	}
	if err := json.Unmarshal(data, &n.Int); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func (n NullInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Int)
}

// Ptr returns the value as a pointer, nil when null.
func (n NullInt) Ptr() *int {
	if !n.Valid {
		return nil
	}
	i := n.Int
	return &i
}

func NullIntFrom(i int) NullInt {
	return NullInt{Set: true, Valid: true, Int: i}
}

// NullBool is an optional filter flag, Set tells whether it was given at all.
type NullBool struct {
	Set  bool
	Bool bool
}

func (n *NullBool) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*n = NullBool{}
		return nil
	}
	if err := json.Unmarshal(data, &n.Bool); err != nil {
		return err
	}
	n.Set = true
	return nil
}

func (n NullBool) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Bool)
}

// UnmarshalParam lets echo bind the flag from query values.
func (n *NullBool) UnmarshalParam(param string) error {
	if param == "" {
		*n = NullBool{}
		return nil
	}
	b, err := strconv.ParseBool(param)
	if err != nil {
		return err
	}
	*n = NullBool{Set: true, Bool: b}
	return nil
}

func NullBoolFrom(b bool) NullBool {
	return NullBool{Set: true, Bool: b}
}
