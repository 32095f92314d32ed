package dedup

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alertgate/gateway/internal/models"
)

// BuildSystemMatcher decides whether an alert is subject to build-system
// deduplication at all; by default this is "_receiver contains jenkins
// OR alertname matches .*[Jj]enkins.*" per the spec's default predicate.
type BuildSystemMatcher struct {
	receiverSubstr string
	alertNameRe    *regexp.Regexp
}

// DefaultBuildSystemMatcher returns the spec's default predicate.
func DefaultBuildSystemMatcher() *BuildSystemMatcher {
	return &BuildSystemMatcher{
		receiverSubstr: "jenkins",
		alertNameRe:    regexp.MustCompile(`.*[Jj]enkins.*`),
	}
}

// Matches reports whether alert is a build-system alert under this
// predicate.
func (m *BuildSystemMatcher) Matches(alert *models.Alert) bool {
	if m == nil {
		return false
	}
	if recv := alert.Receiver(); recv != "" && strings.Contains(strings.ToLower(recv), m.receiverSubstr) {
		return true
	}
	return m.alertNameRe.MatchString(alert.Name())
}

// entityLabelKeys are the labels, in priority order, folded into the
// dedup fingerprint alongside alertname and job.
var entityLabelKeys = []string{"pod", "instance", "service_name", "container", "host"}

// Fingerprint computes a deterministic key for alert: the producer's own
// fingerprint when present, else a SHA-1 over alertname plus the first
// present entity label plus a job label, serialized order-invariantly.
func Fingerprint(alert *models.Alert) string {
	if alert.Fingerprint != "" {
		return alert.Fingerprint
	}

	parts := []string{"alertname=" + alert.Name()}
	for _, key := range entityLabelKeys {
		if v, ok := alert.Labels.Get(key); ok && v != "" {
			parts = append(parts, key+"="+v)
			break
		}
	}
	if job, ok := alert.Labels.Get("job"); ok && job != "" {
		parts = append(parts, "job="+job)
	}
	sort.Strings(parts)

	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache is the process-wide dedup table. All mutations are serialized by
// a single mutex; critical sections are pure map operations only, no
// suspension points, preserving the "at-most-one admit per window"
// invariant under concurrency.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	ttl        time.Duration
	clearOnRes bool
	matcher    *BuildSystemMatcher
	now        func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a Cache with the given TTL, clear-on-resolved policy, and
// build-system predicate.
func New(ttl time.Duration, clearOnResolved bool, matcher *BuildSystemMatcher, opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]time.Time),
		ttl:        ttl,
		clearOnRes: clearOnResolved,
		matcher:    matcher,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Outcome is the result of Admit.
type Outcome string

const (
	Admitted      Outcome = "admitted"
	Duplicate     Outcome = "duplicate"
	NotApplicable Outcome = "not_applicable"
)

// Admit applies the dedup policy to alert. Only build-system alerts (per
// the configured matcher) are subject to suppression; everything else is
// NotApplicable and always forwarded.
func (c *Cache) Admit(alert *models.Alert) Outcome {
	if !c.matcher.Matches(alert) {
		return NotApplicable
	}

	key := Fingerprint(alert)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeLocked(now)

	if alert.Status == models.StatusResolved {
		if c.clearOnRes {
			delete(c.entries, key)
		}
		return Admitted
	}

	if first, ok := c.entries[key]; ok && now.Sub(first) < c.ttl {
		return Duplicate
	}
	c.entries[key] = now
	return Admitted
}

// Forget removes an entry outright, regardless of TTL.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// purgeLocked drops entries whose TTL has elapsed; caller holds c.mu.
func (c *Cache) purgeLocked(now time.Time) {
	for k, first := range c.entries {
		if now.Sub(first) >= c.ttl {
			delete(c.entries, k)
		}
	}
}
