package session

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize lowercases, trims and collapses inner whitespace so candidate
// comparison ignores rendering differences.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return whitespaceRegex.ReplaceAllString(name, " ")
}

// stripQualifier drops trailing brand or form qualifiers from a
// suggestion entry, e.g. "lisinopril (Prinivil)" -> "lisinopril".
func stripQualifier(s string) string {
	if i := strings.IndexAny(s, "(["); i > 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// minSimilarity is the floor below which a Levenshtein match is not
// trusted and the policy falls through to first-candidate selection.
const minSimilarity = 0.5

// Match is the outcome of candidate selection.
type Match struct {
	Index int
	Text  string
	// LowConfidence marks a selection that had no exact, prefix or
	// containment justification.
	LowConfidence bool
}

// SelectCandidate picks which suggestion to click for a drug name. The
// policy is deterministic for a given name and candidate list, so a
// retried item resolves identically:
//
//  1. candidate whose normalized text equals the normalized name;
//  2. shortest candidate with the name as a prefix;
//  3. shortest candidate containing the name;
//  4. closest candidate by Levenshtein distance, if similar enough;
//  5. the first candidate, flagged low-confidence.
//
// Ties prefer the earliest candidate. Returns false only for an empty
// candidate list.
func SelectCandidate(name string, candidates []string) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}

	target := Normalize(name)

	for i, c := range candidates {
		if Normalize(c) == target {
			return Match{Index: i, Text: c}, true
		}
	}

	best := -1
	for i, c := range candidates {
		norm := Normalize(c)
		if !strings.HasPrefix(norm, target) {
			continue
		}
		if best < 0 || len(Normalize(candidates[best])) > len(norm) {
			best = i
		}
	}
	if best >= 0 {
		return Match{Index: best, Text: candidates[best]}, true
	}

	for i, c := range candidates {
		norm := Normalize(c)
		if !strings.Contains(norm, target) {
			continue
		}
		if best < 0 || len(Normalize(candidates[best])) > len(norm) {
			best = i
		}
	}
	if best >= 0 {
		return Match{Index: best, Text: candidates[best]}, true
	}

	bestSim := 0.0
	for i, c := range candidates {
		sim := similarity(target, stripQualifier(Normalize(c)))
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	if best >= 0 && bestSim >= minSimilarity {
		return Match{Index: best, Text: candidates[best]}, true
	}

	return Match{Index: 0, Text: candidates[0], LowConfidence: true}, true
}

// similarity maps Levenshtein distance onto [0,1], where 1 is identical.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	dist := matchr.Levenshtein(a, b)
	return 1.0 - float64(dist)/float64(longest)
}
