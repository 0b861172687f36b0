package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tkingovr/postguard/api"
)

// maxDetailLen bounds how much matched text is echoed back in a reason.
const maxDetailLen = 64

// Predicate inspects content and reports whether a rule matches.
//
// normalized is the lowercased content; raw is the content as submitted.
// detail is substituted into the rule's reason when the reason contains a
// single %s verb.
type Predicate func(normalized, raw string) (detail string, ok bool)

// Rule is a single named check inside a Group.
type Rule struct {
	Name   string
	Reason string
	Match  Predicate
}

// Group is an ordered set of rules sharing one category.
type Group struct {
	Category api.Category
	Rules    []Rule
}

// Pattern builds a rule from a regular expression evaluated against the
// normalized (lowercased) content. The expression must therefore be written
// in lowercase. It panics if expr does not compile; built-in catalogs are
// compile-time constants.
func Pattern(name, reason, expr string) Rule {
	return Rule{Name: name, Reason: reason, Match: regexpPredicate(regexp.MustCompile(expr))}
}

// CompilePattern is like Pattern but returns an error for an invalid
// expression. Use it for operator-supplied rules.
func CompilePattern(name, reason, expr string) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", name, err)
	}
	return Rule{Name: name, Reason: reason, Match: regexpPredicate(re)}, nil
}

func regexpPredicate(re *regexp.Regexp) Predicate {
	return func(normalized, _ string) (string, bool) {
		loc := re.FindStringIndex(normalized)
		if loc == nil {
			return "", false
		}
		return normalized[loc[0]:loc[1]], true
	}
}

// result renders the blocked result for this rule.
func (r Rule) result(category api.Category, detail string) api.FilterResult {
	reason := r.Reason
	if strings.Count(reason, "%s") == 1 {
		reason = fmt.Sprintf(reason, truncate(detail, maxDetailLen))
	}
	return api.FilterResult{
		Blocked:  true,
		Reason:   reason,
		Category: category,
		Rule:     r.Name,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Avoid splitting a multi-byte rune.
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
