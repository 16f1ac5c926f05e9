package llm

import (
	"regexp"
	"strings"
)

// scrubRule is a labeled best-effort text repair applied before reparsing
// model output that failed to decode as JSON.
type scrubRule struct {
	Label       string
	Re          *regexp.Regexp
	Replacement string
}

var scrubRules = []scrubRule{
	{Label: "code_fence", Re: regexp.MustCompile("```[a-zA-Z]*"), Replacement: ""},
	{Label: "smart_double_quote", Re: regexp.MustCompile("[“”]"), Replacement: `"`},
	{Label: "smart_single_quote", Re: regexp.MustCompile("[‘’]"), Replacement: "'"},
	{Label: "trailing_comma", Re: regexp.MustCompile(`,\s*([}\]])`), Replacement: "$1"},
	{Label: "control_char", Re: regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f]"), Replacement: ""},
}

// SanitizeJSONText applies the scrub rules in order and reports which ones
// fired. The repairs are lossy on purpose; callers only reach for them after
// a straight parse has already failed.
func SanitizeJSONText(s string) (string, []string) {
	var hits []string
	for _, rule := range scrubRules {
		if rule.Re.MatchString(s) {
			s = rule.Re.ReplaceAllString(s, rule.Replacement)
			hits = append(hits, rule.Label)
		}
	}
	return strings.TrimSpace(s), hits
}

// ExtractBalancedJSON scans for the first '{' or '[' and returns the
// substring up to its balanced closer. Brackets inside string literals are
// skipped (escape-aware), unmatched closing brackets are ignored, and any
// brackets still open at end of input are closed so the fragment decodes.
// ok is false when the text contains no opener at all.
func ExtractBalancedJSON(s string) (fragment string, ok bool) {
	start := -1
	for i, r := range s {
		if r == '{' || r == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	var stack []byte
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
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					return s[start : i+1], true
				}
			}
			// unmatched closer: skip
		}
	}

	// Ran off the end inside the structure; close what is still open.
	frag := s[start:]
	if inString {
		frag += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		frag += string(stack[i])
	}
	return frag, true
}
