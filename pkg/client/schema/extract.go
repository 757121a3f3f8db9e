package schema

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")

// ExtractJSON pulls a JSON value out of generated text. The model rarely
// answers with bare JSON, so three shapes are tried in order: the whole text,
// fenced code blocks, and a balanced-brace scan over the surrounding prose.
func ExtractJSON(text string) (any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, true
	}

	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &v); err == nil {
			return v, true
		}
	}

	return findObject(text)
}

// findObject scans for top-level {...} candidates and parses the first one
// that is valid JSON.
func findObject(text string) (any, bool) {
	depth := 0
	start := -1
	for i, ch := range text {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				var v any
				if err := json.Unmarshal([]byte(text[start:i+1]), &v); err == nil {
					return v, true
				}
				start = -1
			}
		}
	}
	return nil, false
}

// trimToJSON cuts any prose before the first and after the last JSON bracket,
// e.g. "Sure, here you go: {...}".
func trimToJSON(bs []byte) []byte {
	startObject := bytes.IndexByte(bs, '{')
	startArray := bytes.IndexByte(bs, '[')

	var start int
	if startObject == -1 && startArray == -1 {
		return bs
	} else if startObject == -1 {
		start = startArray
	} else if startArray == -1 {
		start = startObject
	} else {
		start = min(startObject, startArray)
	}
	bs = bs[start:]

	endObject := bytes.LastIndexByte(bs, '}')
	endArray := bytes.LastIndexByte(bs, ']')

	var end int
	if endObject == -1 && endArray == -1 {
		return bs
	} else if endObject == -1 {
		end = endArray
	} else if endArray == -1 {
		end = endObject
	} else {
		end = max(endObject, endArray)
	}
	return bs[:end+1]
}
