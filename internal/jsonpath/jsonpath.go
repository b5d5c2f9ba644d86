// Package jsonpath reads values out of decoded JSON documents by dotted
// property paths such as "data.session.token".
package jsonpath

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// gjson treats these characters as path syntax. Property names are taken
// literally, so they are escaped before lookup.
var pathReplacer = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`#`, `\#`,
	`|`, `\|`,
	`@`, `\@`,
	`!`, `\!`,
	`=`, `\=`,
	`<`, `\<`,
	`>`, `\>`,
	`%`, `\%`,
)

// Get walks value along path, one level per dot-separated segment. Numeric
// segments index arrays. The second return value is false when any segment
// is missing; a malformed path is never an error.
//
// value may be raw JSON ([]byte or json.RawMessage) or any value that
// encoding/json can marshal. An empty path returns value itself.
func Get(value any, path string) (any, bool) {
	if path == "" {
		return value, true
	}

	var raw []byte
	switch v := value.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, false
		}
		raw = encoded
	}
	if !gjson.ValidBytes(raw) {
		return nil, false
	}

	result := gjson.GetBytes(raw, escape(path))
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// Raw is Get for a raw JSON document, returning the value's text as it
// appears in data, compacted. Key order and escaping are preserved.
func Raw(data []byte, path string) ([]byte, bool) {
	if !gjson.ValidBytes(data) {
		return nil, false
	}
	text := data
	if path != "" {
		result := gjson.GetBytes(data, escape(path))
		if !result.Exists() {
			return nil, false
		}
		text = []byte(result.Raw)
	}
	var out bytes.Buffer
	if err := json.Compact(&out, text); err != nil {
		return nil, false
	}
	return out.Bytes(), true
}

func escape(path string) string {
	segments := strings.Split(path, ".")
	for i, segment := range segments {
		segments[i] = pathReplacer.Replace(segment)
	}
	return strings.Join(segments, ".")
}
