package normalize

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Decode parses a gateway body keeping numbers as json.Number. A body that
// decodes to a JSON string holding JSON is decoded once more.
func Decode(raw []byte) (interface{}, error) {
	v, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		if inner, err := decode([]byte(s)); err == nil {
			return inner, nil
		}
	}
	return v, nil
}

func decode(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

// ExtractItems finds the record list in a decoded payload. Accepted shapes,
// first match wins: a bare array, {data: [...]}, {data: {<list key>: [...]}},
// {<list key>: [...]}. Anything else yields no items. Non-object elements are
// dropped.
func ExtractItems(v interface{}) []map[string]interface{} {
	if arr, ok := v.([]interface{}); ok {
		return objects(arr)
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}

	if arr, ok := obj["data"].([]interface{}); ok {
		return objects(arr)
	}
	if nested, ok := obj["data"].(map[string]interface{}); ok {
		if arr, ok := firstList(nested); ok {
			return objects(arr)
		}
	}
	if arr, ok := firstList(obj); ok {
		return objects(arr)
	}
	return nil
}

func firstList(obj map[string]interface{}) ([]interface{}, bool) {
	for _, k := range listKeys {
		if arr, ok := obj[k].([]interface{}); ok {
			return arr, true
		}
	}
	return nil, false
}

func objects(arr []interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(arr))
	for _, it := range arr {
		if m, ok := it.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// DescribeShape summarises a decoded payload for debug logs.
func DescribeShape(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case []interface{}:
		return fmt.Sprintf("array(len=%d)", len(t))
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		suffix := ""
		if len(keys) > 20 {
			keys, suffix = keys[:20], ", ..."
		}
		return fmt.Sprintf("object(keys=[%s]%s)", strings.Join(keys, ", "), suffix)
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Snippet returns at most n characters of s.
func Snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
