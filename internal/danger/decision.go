package danger

import (
	"github.com/TobiSchelling/RouteFinder/internal/beta"
	"github.com/TobiSchelling/RouteFinder/internal/grade"
)

// Kind names the path a route takes through classification.
type Kind int

const (
	// DescriptionRating: the route page published a rating; no classifier runs.
	DescriptionRating Kind = iota
	// NoBeta: no comments and no ticks; no classifier runs.
	NoBeta
	// LexicalOnly: no model is configured, the heuristic decides.
	LexicalOnly
	// ModelRequired: the language model decides.
	ModelRequired
)

func (k Kind) String() string {
	switch k {
	case DescriptionRating:
		return "description"
	case NoBeta:
		return "no_beta"
	case LexicalOnly:
		return "lexical"
	case ModelRequired:
		return "model"
	}
	return "unknown"
}

// Decision is the classification path for a record. Result is set for the
// kinds that need no classifier.
type Decision struct {
	Kind   Kind
	Result Result
}

// Decide picks the classification path for rec.
func Decide(rec *beta.Record, modelAvailable bool) Decision {
	switch {
	case rec.HasRating():
		return Decision{Kind: DescriptionRating, Result: Result{Grade: rec.MaturityRating, Reasoning: ReasonDescription}}
	case rec.Empty():
		return Decision{Kind: NoBeta, Result: Result{Grade: grade.Unknown, Reasoning: ReasonNoComments}}
	case modelAvailable:
		return Decision{Kind: ModelRequired}
	default:
		return Decision{Kind: LexicalOnly}
	}
}
