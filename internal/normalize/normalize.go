// Package normalize turns raw comment and tick fragments into plain sentences.
package normalize

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// tickBoilerplate matches the leading clause the route database prepends to
// tick notes: "· 6 pitches · Lead. " and similar.
var tickBoilerplate = regexp.MustCompile(
	`(?i)^[·•]\s*(?:\d+\s*pitch(?:es)?\s*[·•]?\s*)?(?:(?:lead|follow|solo|tr|top[ -]?rope|fell/hung)\b)?[^.]*\.\s*`,
)

// Comment cleans a single comment body.
func Comment(s string) string {
	return clean(s)
}

// Tick cleans a single tick note and strips its boilerplate prefix.
// The result may be empty.
func Tick(s string) string {
	s = clean(s)
	for {
		loc := tickBoilerplate.FindStringIndex(s)
		if loc == nil {
			break
		}
		s = strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// Comments cleans every comment, dropping the ones that end up empty.
func Comments(raw []string) []string {
	return mapNonEmpty(raw, Comment)
}

// Ticks cleans every tick note, dropping the ones that end up empty.
func Ticks(raw []string) []string {
	return mapNonEmpty(raw, Tick)
}

func mapNonEmpty(raw []string, fn func(string) string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s := fn(r); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clean(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = norm.NFKC.String(s)
	for {
		u := html.UnescapeString(s)
		if u == s {
			break
		}
		s = norm.NFKC.String(u)
	}
	return strings.Join(strings.Fields(s), " ")
}
