// Package model contains the domain types passed between pipeline stages.
package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Value is a parameter value: a single scalar or an ordered list of scalars.
type Value struct {
	items []string
	list  bool
}

// Scalar builds a scalar Value.
func Scalar(s string) Value { return Value{items: []string{s}} }

// List builds a list Value. The slice is copied.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{items: cp, list: true}
}

// IsList reports whether the value was given as a list.
func (v Value) IsList() bool { return v.list }

// Values returns the scalars of v with blank entries removed.
func (v Value) Values() []string {
	out := make([]string, 0, len(v.items))
	for _, s := range v.items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// First returns the first non-blank scalar or "".
func (v Value) First() string {
	if vals := v.Values(); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Empty reports whether v carries no non-blank scalar.
func (v Value) Empty() bool { return len(v.Values()) == 0 }

// Map applies fn to every scalar, keeping the scalar/list shape.
func (v Value) Map(fn func(string) string) Value {
	out := Value{items: make([]string, len(v.items)), list: v.list}
	for i, s := range v.items {
		out.items[i] = fn(s)
	}
	return out
}

// String renders scalars joined by commas.
func (v Value) String() string { return strings.Join(v.items, ",") }

// MarshalJSON encodes scalars as strings and lists as arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.list {
		return json.Marshal(v.items)
	}
	return json.Marshal(v.First())
}

// UnmarshalJSON accepts strings, numbers, booleans, null and arrays of those.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return errors.Wrap(err, "decode list value")
		}
		items := make([]string, 0, len(raw))
		for _, r := range raw {
			s, err := scalarFromJSON(r)
			if err != nil {
				return err
			}
			if s != "" {
				items = append(items, s)
			}
		}
		*v = Value{items: items, list: true}
		return nil
	}
	s, err := scalarFromJSON(data)
	if err != nil {
		return err
	}
	if s == "" {
		*v = Value{}
		return nil
	}
	*v = Scalar(s)
	return nil
}

func scalarFromJSON(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return "", errors.Wrap(err, "decode scalar value")
	}
	switch t := x.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		f, err := t.Float64()
		if err != nil {
			return "", errors.Wrapf(err, "decode number %q", t.String())
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", errors.Newf("unsupported parameter value %s", string(data))
	}
}

// Params maps parameter keys to values.
type Params map[string]Value

// Clone returns a shallow copy of p; Values are immutable so this is safe.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the parameter keys in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Populated reports whether key is present with at least one scalar.
func (p Params) Populated(key string) bool {
	v, ok := p[key]
	return ok && !v.Empty()
}
