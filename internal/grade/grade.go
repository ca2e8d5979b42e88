package grade

import "strings"

// Grade is a route danger rating. Values are ordered by severity, with
// Unknown meaning "no signal" rather than the safest real grade.
type Grade int

const (
	Unknown Grade = iota
	G
	PG13
	R
	X
)

// Severe lists the real grades from most to least dangerous.
var Severe = []Grade{X, R, PG13, G}

var names = map[Grade]string{
	Unknown: "UNKNOWN",
	G:       "G",
	PG13:    "PG13",
	R:       "R",
	X:       "X",
}

// String returns the token used in CSV output and model prompts.
func (g Grade) String() string {
	if s, ok := names[g]; ok {
		return s
	}
	return names[Unknown]
}

// Known reports whether g carries a real rating.
func (g Grade) Known() bool {
	return g > Unknown && g <= X
}

// Parse maps a rating token to a Grade. It accepts the spellings seen on
// route pages and in model output ("PG13", "PG-13", "pg 13", ...).
// The second return value is false for anything else.
func Parse(s string) (Grade, bool) {
	token := strings.ToUpper(strings.TrimSpace(s))
	token = strings.NewReplacer("-", "", " ", "", "_", "").Replace(token)
	switch token {
	case "G":
		return G, true
	case "PG13":
		return PG13, true
	case "R":
		return R, true
	case "X":
		return X, true
	case "UNKNOWN":
		return Unknown, true
	}
	return Unknown, false
}

// Max returns the more severe of a and b.
func Max(a, b Grade) Grade {
	if b > a {
		return b
	}
	return a
}
