package answercache

import (
	"regexp"
	"strings"
)

// simplePatterns matches utterances that are direct math or lookup-style fact
// questions with answers stable over the cache TTL. The table is deliberately
// small and literal so tests can enumerate the accepted set.
var simplePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*what('?s| is)\s+[\d\s+\-*/x×÷.()]+\??\s*$`),          // "what's 2+2"
	regexp.MustCompile(`^\s*(calculate|compute)\s+[\d\s+\-*/x×÷.()]+\??\s*$`),    // "calculate 12*7"
	regexp.MustCompile(`^\s*how (much|many) is\s+[\d\s+\-*/x×÷.()]+\??\s*$`),     // "how much is 9-4"
	regexp.MustCompile(`^\s*what('?s| is) the capital of\s+[\w\s]+\??\s*$`),      // "what is the capital of France"
	regexp.MustCompile(`^\s*who (wrote|invented|discovered)\s+[\w\s']+\??\s*$`),  // "who wrote Hamlet"
	regexp.MustCompile(`^\s*what year (was|did)\s+[\w\s']+\??\s*$`),              // "what year was 1066... "
	regexp.MustCompile(`^\s*how many (days|hours|minutes|seconds) in\s+[\w\s]+\??\s*$`),
}

// Simple reports whether text is a direct math/fact question whose answer is
// safe to serve from cache. Calendar-dependent questions never match.
func Simple(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, p := range simplePatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}
