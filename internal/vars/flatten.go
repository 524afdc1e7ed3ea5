// Package vars resolves template placeholders in document text.
//
// Two syntaxes are supported. ${name} is a plain lookup used by running
// page templates; unknown names are left untouched. {{name|pipe:args}}
// looks a name up in the flattened document variables and passes the value
// through a chain of formatting pipes.
package vars

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Flatten turns nested records into a single level map with dotted keys.
// Arrays are kept whole under their own key and their elements are also
// flattened with numeric indices, so both "items" and "items.0.name" resolve.
func Flatten(in map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", in)
	return out
}

func flattenInto(out map[string]any, prefix string, v any) {
	switch tv := v.(type) {
	case map[string]any:
		if prefix != "" {
			out[prefix] = tv
		}
		for k, child := range tv {
			flattenInto(out, join(prefix, k), child)
		}
	case []any:
		out[prefix] = tv
		for i, child := range tv {
			flattenInto(out, join(prefix, strconv.Itoa(i)), child)
		}
	default:
		if prefix != "" {
			out[prefix] = tv
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Merge overlays src onto dst recursively and returns dst. Records are
// merged key by key; any other value in src replaces the one in dst.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		sv, sok := v.(map[string]any)
		dv, dok := dst[k].(map[string]any)
		if sok && dok {
			dst[k] = Merge(dv, sv)
			continue
		}
		dst[k] = v
	}
	return dst
}

// Stringify renders a variable value as text.
func Stringify(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(tv), 'f', -1, 32)
	case int:
		return strconv.Itoa(tv)
	case int64:
		return strconv.FormatInt(tv, 10)
	case json.Number:
		return tv.String()
	case bool:
		return strconv.FormatBool(tv)
	case time.Time:
		return tv.Format(time.RFC3339)
	case map[string]any, []any:
		data, err := json.Marshal(tv)
		if err != nil {
			return fmt.Sprint(tv)
		}
		return string(data)
	default:
		return fmt.Sprint(tv)
	}
}
