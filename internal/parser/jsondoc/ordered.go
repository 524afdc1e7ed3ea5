package jsondoc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gompdf/jsonpdf/internal/vars"
)

// record is a JSON object that remembers the order of its keys. Table
// headers follow that order.
type record struct {
	keys   []string
	values map[string]any
}

func (r *record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected an object, got %v", tok)
	}

	r.keys, r.values = nil, make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, dup := r.values[key]; !dup {
			r.keys = append(r.keys, key)
		}
		r.values[key] = v
	}
	_, err = dec.Token()
	return err
}

// records accepts a single object or an array of objects.
type records []record

func (rs *records) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []record
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*rs = list
		return nil
	}
	var one record
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*rs = records{one}
	return nil
}

// keys returns the union of the record keys in order of first appearance.
func (rs records) keys() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rs {
		for _, k := range r.keys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// flexString accepts a JSON string, number or boolean as text.
type flexString struct {
	value string
	set   bool
}

func (f *flexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch tv := v.(type) {
	case nil:
		*f = flexString{}
	case string, float64, bool:
		*f = flexString{value: vars.Stringify(tv), set: true}
	default:
		return fmt.Errorf("expected text, got %s", data)
	}
	return nil
}
