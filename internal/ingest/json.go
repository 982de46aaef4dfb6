package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// JSONParser handles .json files, flattening them to "path: value" lines.
type JSONParser struct{}

func (j *JSONParser) CanHandle(filename, mimeType string) bool {
	if hasExt(filename, ".json") {
		return true
	}
	return baseMIME(mimeType) == "application/json"
}

func (j *JSONParser) Parse(_ context.Context, _ string, data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	return flattenToLines("", v), nil
}

func flattenToLines(prefix string, v any) string {
	out := make(map[string]string)
	flattenValue(prefix, v, out)
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			lines = append(lines, out[k])
			continue
		}
		lines = append(lines, k+": "+out[k])
	}
	return strings.Join(lines, "\n")
}

// flattenValue recursively flattens a decoded JSON or YAML value into
// dot-notation key-value pairs.
func flattenValue(prefix string, val any, out map[string]string) {
	join := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}
	switch v := val.(type) {
	case map[string]any:
		for k, inner := range v {
			flattenValue(join(k), inner, out)
		}
	case map[any]any:
		for k, inner := range v {
			flattenValue(join(fmt.Sprint(k)), inner, out)
		}
	case []any:
		for i, elem := range v {
			flattenValue(fmt.Sprintf("%s[%d]", prefix, i), elem, out)
		}
	case string:
		out[prefix] = v
	case float64:
		out[prefix] = fmt.Sprintf("%g", v)
	case nil:
		out[prefix] = "null"
	default:
		out[prefix] = fmt.Sprintf("%v", v)
	}
}
