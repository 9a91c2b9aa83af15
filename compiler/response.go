package compiler

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Parse failure reasons.
const (
	ReasonEmpty       = "empty response"
	ReasonNoJSON      = "no JSON object found"
	ReasonInvalidJSON = "invalid JSON"
)

const excerptRunes = 120

// ParseFailure reports a completion response with no usable JSON. It is a
// plain value: the same input always produces an equal ParseFailure.
type ParseFailure struct {
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
	Excerpt string `json:"excerpt"`
}

func (f *ParseFailure) Error() string {
	if f.Detail != "" {
		return fmt.Sprintf("%s: %s (response starts %q)", f.Reason, f.Detail, f.Excerpt)
	}
	return fmt.Sprintf("%s (response starts %q)", f.Reason, f.Excerpt)
}

// ParseResponse extracts the JSON object from a completion response. Fenced
// code blocks (optionally tagged, e.g. ```json) are tried first, in order;
// then balanced {...} spans in the text. The first candidate that parses to
// an object wins. A fenced array is also accepted, since the planning stages
// may answer with a bare step list; scalars and null never are. Otherwise a
// *ParseFailure is returned.
func ParseResponse(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ParseFailure{Reason: ReasonEmpty}
	}

	var firstErr error
	try := func(candidate string) json.RawMessage {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			return nil
		}
		var v any
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return nil
		}
		switch v.(type) {
		case map[string]any, []any:
			return json.RawMessage(candidate)
		}
		return nil
	}

	for _, block := range fencedBlocks(trimmed) {
		if raw := try(block); raw != nil {
			return raw, nil
		}
	}
	for _, span := range braceSpans(trimmed) {
		if raw := try(span); raw != nil {
			return raw, nil
		}
	}

	f := &ParseFailure{Reason: ReasonNoJSON, Excerpt: excerpt(trimmed)}
	if firstErr != nil {
		f.Reason = ReasonInvalidJSON
		f.Detail = firstErr.Error()
	}
	return nil, f
}

// fencedBlocks returns the bodies of ``` fenced blocks with any language tag
// removed. An unterminated fence is ignored.
func fencedBlocks(text string) []string {
	var blocks []string
	rest := text
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			return blocks
		}
		body := rest[open+3:]
		end := strings.Index(body, "```")
		if end < 0 {
			return blocks
		}
		blocks = append(blocks, stripLanguageTag(body[:end]))
		rest = body[end+3:]
	}
}

func stripLanguageTag(body string) string {
	i := 0
	for i < len(body) {
		r, size := utf8.DecodeRuneInString(body[i:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			break
		}
		i += size
	}
	return body[i:]
}

// braceSpans returns every balanced top-level {...} span, left to right.
// Braces inside JSON strings are ignored.
func braceSpans(text string) []string {
	var spans []string
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := matchBrace(text, i)
		if end < 0 {
			return spans
		}
		spans = append(spans, text[i:end+1])
		i = end
	}
	return spans
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for j := start; j < len(text); j++ {
		c := text[j]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptRunes {
		return s
	}
	return string(r[:excerptRunes]) + "..."
}
