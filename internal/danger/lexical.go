package danger

import (
	"fmt"
	"regexp"

	"github.com/TobiSchelling/RouteFinder/internal/beta"
	"github.com/TobiSchelling/RouteFinder/internal/grade"
)

// ReasonNoLexicalSignal is the reasoning when no pattern matches.
const ReasonNoLexicalSignal = "No lexical signal"

var patterns = map[grade.Grade]*regexp.Regexp{
	grade.G:    regexp.MustCompile(`(?i)(great|good|well) (gear|protect(ed|ion))|protects well`),
	grade.PG13: regexp.MustCompile(`(?i)spicy|scary|run[ -]?out`),
	grade.R:    regexp.MustCompile(`(?i)long run[ -]?out|unprotected`),
	grade.X:    regexp.MustCompile(`(?i)very long run[ -]?out|suicidal`),
}

// match returns the most severe grade whose pattern matches fragment and the
// matching phrase.
func match(fragment string) (grade.Grade, string) {
	for _, g := range grade.Severe {
		if m := patterns[g].FindString(fragment); m != "" {
			return g, m
		}
	}
	return grade.Unknown, ""
}

// Lexical returns the most severe grade matched in any fragment, or Unknown.
// Every fragment is scanned; a later fragment can raise the result.
func Lexical(fragments []string) grade.Grade {
	g, _ := lexical(fragments)
	return g
}

func lexical(fragments []string) (grade.Grade, string) {
	worst, phrase := grade.Unknown, ""
	for _, f := range fragments {
		g, m := match(f)
		if next := grade.Max(worst, g); next != worst {
			worst, phrase = next, m
		}
	}
	return worst, phrase
}

// LexicalClassifier grades a route from its beta with regular expressions.
type LexicalClassifier struct{}

// Classify grades the description, comments and ticks of rec.
func (LexicalClassifier) Classify(rec *beta.Record) Result {
	g, phrase := lexical(rec.Fragments())
	if g == grade.Unknown {
		return Result{Grade: grade.Unknown, Reasoning: ReasonNoLexicalSignal}
	}
	return Result{Grade: g, Reasoning: fmt.Sprintf("Beta mentions %q", phrase)}
}
