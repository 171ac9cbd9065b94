package jsonx

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Extract recovers the first well-formed JSON value (object or array) embedded
// in arbitrary model output. Surrounding prose is ignored. The boundary is
// found by walking a bracket stack from the first opening bracket, skipping
// brackets inside string literals, so nested values and trailing text do not
// confuse it.
//
// Returns (nil, false) when no value is present or nothing parseable can be
// recovered. Callers must treat that as a recoverable condition.
func Extract(text string) (json.RawMessage, bool) {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return nil, false
	}

	end := matchBracket(text, start)
	if end == -1 {
		// Unbalanced output (e.g. truncated completion): take everything from
		// the opening bracket and let the repair pass close it.
		end = len(text)
	}

	candidate := text[start:end]
	if json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate), true
	}

	// Model emitted something almost-JSON (trailing commas, unquoted keys,
	// unterminated strings). Run one repair pass before giving up.
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil || !json.Valid([]byte(repaired)) {
		return nil, false
	}
	return json.RawMessage(repaired), true
}

// ExtractInto extracts the embedded JSON value and unmarshals it into v.
func ExtractInto(text string, v any) bool {
	raw, ok := Extract(text)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// matchBracket returns the index just past the bracket closing the one at
// start, or -1 if the text ends before the stack unwinds.
func matchBracket(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
