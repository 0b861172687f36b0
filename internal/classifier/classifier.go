package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tkingovr/postguard/api"
)

// ErrUnknownCategory is returned when extra rules name a category that is
// not part of the catalog.
var ErrUnknownCategory = errors.New("unknown category")

// Classifier evaluates content against an ordered catalog of pattern groups.
// It is immutable and safe for concurrent use.
type Classifier struct {
	groups    []Group
	allowlist *Allowlist
}

// Option configures a Classifier at construction time.
type Option func(*Classifier) error

// WithExtraRules appends rules to the end of the group for category. Extra
// rules never change group order and never introduce new categories.
func WithExtraRules(category api.Category, rules ...Rule) Option {
	return func(c *Classifier) error {
		for i := range c.groups {
			if c.groups[i].Category == category {
				c.groups[i].Rules = append(c.groups[i].Rules, rules...)
				return nil
			}
		}
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
}

// New builds a Classifier over the default catalog. allow may be nil, in which
// case every transaction target is treated as unknown.
func New(allow *Allowlist, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		groups:    DefaultGroups(allow),
		allowlist: allow,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	for _, g := range c.groups {
		for _, r := range g.Rules {
			if r.Name == "" || r.Match == nil {
				return nil, fmt.Errorf("category %s: rule must have a name and a predicate", g.Category)
			}
		}
	}
	return c, nil
}

// Classify returns the decision for content. It never fails: any string,
// including the empty string, yields a result.
func (c *Classifier) Classify(content string) api.FilterResult {
	if strings.TrimSpace(content) == "" {
		return api.Allowed()
	}
	normalized := strings.ToLower(content)
	for _, g := range c.groups {
		for _, r := range g.Rules {
			if detail, ok := r.Match(normalized, content); ok {
				return r.result(g.Category, detail)
			}
		}
	}
	return api.Allowed()
}

// Groups returns a copy of the catalog in evaluation order.
func (c *Classifier) Groups() []Group {
	out := make([]Group, len(c.groups))
	for i, g := range c.groups {
		out[i] = Group{Category: g.Category, Rules: append([]Rule(nil), g.Rules...)}
	}
	return out
}

// Allowlist returns the contract allowlist the classifier was built with.
func (c *Classifier) Allowlist() *Allowlist {
	return c.allowlist
}

// RuleCount returns the total number of rules across all groups.
func (c *Classifier) RuleCount() int {
	n := 0
	for _, g := range c.groups {
		n += len(g.Rules)
	}
	return n
}
