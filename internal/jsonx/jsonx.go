// Package jsonx extracts structured JSON payloads from raw model output.
// Models frequently wrap JSON in markdown code fences or surround it with
// prose; the helpers here normalize those shapes before decoding.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedError reports model output that could not be decoded into the
// expected JSON shape. It is classified as retryable by the base agent until
// the attempt budget is exhausted.
type MalformedError struct {
	Raw string
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed model output: %v", e.Err)
}

// Unwrap exposes the underlying decode error.
func (e *MalformedError) Unwrap() error { return e.Err }

// Decode extracts a JSON document from raw model text and unmarshals it into v.
// Extraction order: fenced ```json block, any fenced block, the earliest
// balanced top-level object or array, then the raw text as-is.
func Decode(raw string, v any) error {
	candidate := Extract(raw)
	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return &MalformedError{Raw: raw, Err: err}
	}
	return nil
}

// Extract returns the most plausible JSON document within raw without
// decoding it. If nothing better is found the trimmed input is returned.
func Extract(raw string) string {
	trimmed := strings.TrimSpace(raw)

	if fenced, ok := fencedBlock(trimmed, "```json"); ok {
		return fenced
	}
	if fenced, ok := fencedBlock(trimmed, "```"); ok {
		return fenced
	}
	// Whichever document opens first wins, so an array of objects is not
	// mistaken for its first element.
	obj, objStart, objOK := balanced(trimmed, '{', '}')
	arr, arrStart, arrOK := balanced(trimmed, '[', ']')
	switch {
	case objOK && arrOK:
		if arrStart < objStart {
			return arr
		}
		return obj
	case objOK:
		return obj
	case arrOK:
		return arr
	}
	return trimmed
}

// fencedBlock returns the content of the first code fence opened by marker.
func fencedBlock(s, marker string) (string, bool) {
	start := strings.Index(s, marker)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(marker):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// balanced scans for the first balanced open..close region, respecting
// string literals and escapes so braces inside values do not confuse it.
// The second return value is the region's start offset in s.
func balanced(s string, open, close byte) (string, int, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", 0, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], start, true
			}
		}
	}
	return "", 0, false
}
