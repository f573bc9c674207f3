package planner

import (
	"regexp"
	"strings"
)

// stopwords excluded from keyword sets before comparing topics.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "to": true, "of": true, "in": true, "on": true,
	"for": true, "with": true, "and": true, "or": true, "what": true,
	"which": true, "who": true, "how": true, "why": true, "when": true,
	"where": true, "do": true, "does": true, "did": true, "can": true,
	"could": true, "would": true, "should": true, "i": true, "you": true,
	"me": true, "my": true, "it": true, "this": true, "that": true,
	"about": true, "tell": true, "please": true,
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

func keywords(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		if len(w) < 2 || stopwords[w] {
			continue
		}
		set[w] = true
	}
	return set
}

// KeywordJaccard is the default topic similarity: Jaccard index over
// lowercased keyword sets with stopwords removed.
func KeywordJaccard(a, b string) float64 {
	ka, kb := keywords(a), keywords(b)
	if len(ka) == 0 || len(kb) == 0 {
		return 1.0 // nothing to compare; do not suggest a new chat
	}

	intersection := 0
	for w := range ka {
		if kb[w] {
			intersection++
		}
	}
	union := len(ka) + len(kb) - intersection
	return float64(intersection) / float64(union)
}
