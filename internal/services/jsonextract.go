package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSONShape is the top-level JSON value a caller expects from the model.
type JSONShape int

const (
	ShapeArray JSONShape = iota
	ShapeObject
)

func (s JSONShape) delimiters() (byte, byte) {
	if s == ShapeObject {
		return '{', '}'
	}
	return '[', ']'
}

func (s JSONShape) String() string {
	if s == ShapeObject {
		return "object"
	}
	return "array"
}

// ParseFailure is returned when no JSON value of the expected shape could be recovered.
type ParseFailure struct {
	Shape JSONShape
	Err   error
}

func (p *ParseFailure) Error() string {
	return fmt.Sprintf("no parsable JSON %s in model output: %v", p.Shape, p.Err)
}

func (p *ParseFailure) Unwrap() error { return p.Err }

// ExtractJSON decodes model output into T. The whole text is tried first, then
// every balanced candidate of the expected shape from left to right. On failure
// the error is always a *ParseFailure.
func ExtractJSON[T any](raw string, shape JSONShape) (T, error) {
	var zero T
	cleaned := stripCodeFences(raw)
	if cleaned == "" {
		return zero, &ParseFailure{Shape: shape, Err: fmt.Errorf("empty output")}
	}

	// null decodes into the zero value without error; it is not a result.
	if strings.TrimSpace(cleaned) == "null" {
		return zero, &ParseFailure{Shape: shape, Err: fmt.Errorf("null value")}
	}

	var direct T
	firstErr := json.Unmarshal([]byte(cleaned), &direct)
	if firstErr == nil {
		return direct, nil
	}

	openDelim, closeDelim := shape.delimiters()
	for start := strings.IndexByte(cleaned, openDelim); start >= 0; {
		end := balancedEnd(cleaned, start, openDelim, closeDelim)
		if end > start {
			var candidate T
			if err := json.Unmarshal([]byte(cleaned[start:end+1]), &candidate); err == nil {
				return candidate, nil
			}
		}

		next := strings.IndexByte(cleaned[start+1:], openDelim)
		if next < 0 {
			break
		}
		start += next + 1
	}

	return zero, &ParseFailure{Shape: shape, Err: firstErr}
}

// JSONOrDefault is ExtractJSON for callers that only need the fallback.
func JSONOrDefault[T any](raw string, shape JSONShape, def T) T {
	v, err := ExtractJSON[T](raw, shape)
	if err != nil {
		return def
	}
	return v
}

// balancedEnd returns the index of the delimiter closing the one at start, or -1.
// Delimiters inside JSON strings are ignored.
func balancedEnd(s string, start int, openDelim, closeDelim byte) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
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
		case openDelim:
			depth++
		case closeDelim:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. ```json
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
