package source

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-report/internal/model"
)

// Flatten turns a decoded JSON value into dotted paths. Arrays contribute
// their index as a segment ("photo.0.url"). Nulls are omitted.
func Flatten(v any) map[model.Path]string {
	out := make(map[model.Path]string)
	flattenInto(out, "", v)
	return out
}

// FlattenJSON decodes data, preserving number text, and flattens it.
func FlattenJSON(data []byte) (map[model.Path]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, eris.Wrap(err, "source: decode json")
	}
	return Flatten(v), nil
}

func flattenInto(out map[model.Path]string, prefix string, v any) {
	join := func(seg string) string {
		if prefix == "" {
			return seg
		}
		return prefix + "." + seg
	}
	switch t := v.(type) {
	case nil:
	case map[string]any:
		for k, child := range t {
			flattenInto(out, join(k), child)
		}
	case []any:
		for i, child := range t {
			flattenInto(out, join(strconv.Itoa(i)), child)
		}
	case string:
		out[model.Path(prefix)] = t
	case json.Number:
		out[model.Path(prefix)] = t.String()
	case float64:
		out[model.Path(prefix)] = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		out[model.Path(prefix)] = strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err == nil {
			out[model.Path(prefix)] = string(b)
		}
	}
}
