// Package danger grades how well a route protects against a fall, either
// with a lexical heuristic or by asking a language model.
package danger

import (
	"errors"

	"github.com/TobiSchelling/RouteFinder/internal/grade"
)

// Fixed reasoning strings.
const (
	ReasonDescription = "(Route description)"
	ReasonNoComments  = "No comments"
	ReasonUnparsable  = "AI model returned unparsable data"
	ReasonNoResponse  = "AI model returned no response"
	ReasonNoReasoning = "AI model gave no reasoning"
)

// ErrClassifierUnavailable means the model produced no usable answer. The
// caller decides what to emit instead.
var ErrClassifierUnavailable = errors.New("classifier returned no choices")

// Result is a grade with its justification. Notes is empty when absent.
type Result struct {
	Grade     grade.Grade
	Reasoning string
	Notes     string
}

// Unavailable is the result callers emit for ErrClassifierUnavailable.
func Unavailable() Result {
	return Result{Grade: grade.Unknown, Reasoning: ReasonNoResponse}
}
