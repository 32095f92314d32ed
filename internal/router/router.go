package router

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/alertgate/gateway/internal/models"
)

// metaChars mirrors the source's regex-vs-exact heuristic: a pattern is
// compiled as a regex iff it contains any of these characters, otherwise
// it is compared for exact equality.
const metaChars = `.*+?^$()[]{}|\`

func looksLikeRegex(pattern string) bool {
	return strings.ContainsAny(pattern, metaChars)
}

// Router evaluates alerts against an ordered rule list, caching compiled
// regex matchers across calls. The cache is guarded by a read-mostly
// lock: lookups take the read lock, compile-on-miss takes the write
// lock, mirroring the teacher's RuleEvaluator state-cache pattern.
type Router struct {
	rules []models.Rule

	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

// New validates every rule's patterns at construction time (compiling
// the regex branch) and returns an error if any pattern is invalid,
// satisfying the "invalid pattern fails configuration load" requirement.
func New(rules []models.Rule) (*Router, error) {
	r := &Router{
		rules: rules,
		cache: make(map[string]*regexp.Regexp),
	}
	for i, rule := range rules {
		if rule.Default {
			continue
		}
		if len(rule.SendTo) == 0 {
			return nil, fmt.Errorf("rule %d: send_to must be non-empty", i)
		}
		for key, pattern := range rule.Match {
			if !looksLikeRegex(pattern) {
				continue
			}
			if _, err := r.compile(pattern); err != nil {
				return nil, fmt.Errorf("rule %d: label %q: invalid pattern %q: %w", i, key, pattern, err)
			}
		}
	}
	return r, nil
}

func (r *Router) compile(pattern string) (*regexp.Regexp, error) {
	r.mu.RLock()
	if re, ok := r.cache[pattern]; ok {
		r.mu.RUnlock()
		return re, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if re, ok := r.cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	r.cache[pattern] = re
	return re, nil
}

// Route evaluates alert against every rule in declaration order and
// returns the union of every matching rule's send_to entries, in
// rule-declaration order, deduplicated. An empty result means no rule
// matched ("unrouted").
func (r *Router) Route(alert *models.Alert) []string {
	seen := make(map[string]bool)
	var out []string

	for _, rule := range r.rules {
		if !r.matches(rule, alert) {
			continue
		}
		for _, ch := range rule.SendTo {
			if seen[ch] {
				continue
			}
			seen[ch] = true
			out = append(out, ch)
		}
	}
	return out
}

func (r *Router) matches(rule models.Rule, alert *models.Alert) bool {
	if rule.Default {
		return true
	}
	if len(rule.Match) == 0 {
		return false
	}
	for key, pattern := range rule.Match {
		value, ok := alert.Labels.Get(key)
		if !ok {
			return false
		}
		if looksLikeRegex(pattern) {
			re, err := r.compile(pattern)
			if err != nil || !re.MatchString(value) {
				return false
			}
		} else if value != pattern {
			return false
		}
	}
	return true
}
