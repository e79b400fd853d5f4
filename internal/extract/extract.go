// Package extract recovers a JSON object or array embedded in free-form
// oracle output.
//
// Two span strategies are provided. Extract uses a depth-aware scanner that
// pairs brackets and skips string literals, so braces in surrounding prose or
// inside strings do not distort the span. ExtractNaive takes the first opening
// and last closing bracket of each kind. Both prefer an object over an array
// and neither attempts to repair malformed JSON.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	aerrors "github.com/p-blackswan/autodev/internal/errors"
)

// Shape discriminates the two JSON shapes the extractor can return.
type Shape string

const (
	ShapeObject Shape = "object"
	ShapeArray  Shape = "array"
)

// ReasonNotFound is the diagnostic when no candidate span exists.
const ReasonNotFound = "no JSON object or array found"

// Result is a successfully parsed JSON value.
type Result struct {
	Shape Shape
	Raw   json.RawMessage
}

// Decode unmarshals the extracted value into v.
func (r *Result) Decode(v any) error {
	return json.Unmarshal(r.Raw, v)
}

// Strings decodes an array whose elements are all strings.
func (r *Result) Strings() ([]string, error) {
	if r.Shape != ShapeArray {
		return nil, fmt.Errorf("expected array, got %s", r.Shape)
	}
	var out []string
	if err := json.Unmarshal(r.Raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var openingFence = regexp.MustCompile("```[A-Za-z0-9_+.#-]*")

// StripFences removes markdown code fences, whatever language tag follows the
// opening fence. It is a literal replacement, not a balanced parse.
func StripFences(text string) string {
	text = openingFence.ReplaceAllString(text, "")
	return strings.ReplaceAll(text, "```", "")
}

// ExtractNaive locates the first '{' and last '}' and, failing that, the
// first '[' and last ']', then parses the span. Text holding several
// unrelated objects, or braces in prose, yields a wrong span that surfaces as
// a parse failure.
func ExtractNaive(text string) (*Result, error) {
	text = StripFences(text)

	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		return parse(text[start:end+1], ShapeObject)
	}
	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		return parse(text[start:end+1], ShapeArray)
	}
	return nil, &aerrors.ExtractionError{Reason: ReasonNotFound}
}

// Extract scans text for balanced top-level spans and returns the largest
// object candidate that parses, else the largest array candidate that parses.
// Earlier spans win ties. Small bracketed asides in prose ("returns {} on a
// miss", "see [1]") lose to the payload they precede.
// Code fences never contain brackets, so they fall outside every candidate
// and need no stripping; fences quoted inside string values are preserved.
func Extract(text string) (*Result, error) {
	candidates := scan(text)
	if len(candidates) == 0 {
		return nil, &aerrors.ExtractionError{Reason: ReasonNotFound}
	}

	var firstErr error
	for _, shape := range []Shape{ShapeObject, ShapeArray} {
		var best *Result
		for _, c := range candidates {
			if c.shape != shape {
				continue
			}
			if best != nil && len(c.text) <= len(best.Raw) {
				continue
			}
			res, err := parse(c.text, shape)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			best = res
		}
		if best != nil {
			return best, nil
		}
	}
	return nil, firstErr
}

func parse(span string, shape Shape) (*Result, error) {
	var probe any
	if err := json.Unmarshal([]byte(span), &probe); err != nil {
		return nil, &aerrors.ExtractionError{Reason: err.Error()}
	}
	return &Result{Shape: shape, Raw: json.RawMessage(span)}, nil
}
