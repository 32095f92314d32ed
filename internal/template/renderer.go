package template

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/alertgate/gateway/internal/models"
)

// cst is the presentation zone for all rendered timestamps.
var cst = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}()

// Context is the data handed to a template: the canonical alert fields
// plus the derived helpers the spec names (status_text, *_cst,
// merged_entities, url_to_link).
type Context struct {
	Status         string
	StatusText     string
	Labels         []models.Pair
	Annotations    []models.Pair
	StartsAtCST    string
	EndsAtCST      string
	GeneratorURL   string
	Fingerprint    string
	MergedEntities []string
	ValueString    string
	HasImage       bool
}

// NewContext builds a render Context from a canonical alert.
func NewContext(alert *models.Alert, hasImage bool) Context {
	statusText := "恢复"
	if alert.Status == models.StatusFiring {
		statusText = "告警"
	}

	endsAt := ""
	if !alert.EndsAt.IsZero() {
		endsAt = alert.EndsAt.In(cst).Format("2006-01-02 15:04:05")
	}

	return Context{
		Status:         string(alert.Status),
		StatusText:     statusText,
		Labels:         alert.Labels.Pairs(),
		Annotations:    alert.Annotations.Pairs(),
		StartsAtCST:    alert.StartsAt.In(cst).Format("2006-01-02 15:04:05"),
		EndsAtCST:      endsAt,
		GeneratorURL:   alert.GeneratorURL,
		Fingerprint:    alert.Fingerprint,
		MergedEntities: alert.MergedEntities,
		ValueString:    alert.ValueString,
		HasImage:       hasImage,
	}
}

// label/annotation lookups are exposed as Context methods, callable as
// {{.Label "key"}}, instead of direct map indexing, so that an unknown
// key evaluates to "" rather than template's zero-Value "<no value>"
// rendering.
func lookup(pairs []models.Pair, key string) string {
	for _, p := range pairs {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// Label returns the value of a label, or "" if unset.
func (c Context) Label(key string) string { return lookup(c.Labels, key) }

// Annotation returns the value of an annotation, or "" if unset.
func (c Context) Annotation(key string) string { return lookup(c.Annotations, key) }

func defaultFilter(fallback string, v string) string {
	if v == "" {
		return fallback
	}
	return v
}

var isoTimestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`)

// rewriteTimestamps rewrites RFC-3339-looking substrings embedded in a
// rendered payload to the CST presentation form, without touching any
// other byte (including backslash escapes) per the side-effect policy.
func rewriteTimestamps(s string) string {
	return isoTimestamp.ReplaceAllStringFunc(s, func(match string) string {
		t, err := time.Parse(time.RFC3339Nano, match)
		if err != nil {
			t, err = time.Parse(time.RFC3339, match)
			if err != nil {
				return match
			}
		}
		return t.In(cst).Format("2006-01-02 15:04:05")
	})
}

// urlToLink wraps a bare http(s) URL as a chat-client anchor tag.
func urlToLink(s string) string {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return fmt.Sprintf(`<a href="%s">%s</a>`, s, s)
	}
	return s
}

// staticFuncMap holds every template function whose behavior doesn't
// depend on the alert being rendered; it must be registered before
// Parse, since text/template resolves function names at parse time.
var staticFuncMap = template.FuncMap{
	"default":     defaultFilter,
	"upper":       strings.ToUpper,
	"lower":       strings.ToLower,
	"title":       strings.Title, //nolint:staticcheck // matches the filter set described by the spec
	"length":      templateLen,
	"url_to_link": urlToLink,
}

func templateLen(v interface{}) int {
	switch t := v.(type) {
	case string:
		return len(t)
	case []models.Pair:
		return len(t)
	case []string:
		return len(t)
	default:
		return 0
	}
}

// Store resolves template names within a flat directory and caches
// parsed templates, mirroring the router's compile-on-miss regex cache.
type Store struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*template.Template
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, cache: make(map[string]*template.Template)}
}

func (s *Store) parsed(name string) (*template.Template, error) {
	s.mu.RLock()
	if t, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return t, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.cache[name]; ok {
		return t, nil
	}

	path := filepath.Join(s.dir, name)
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("TemplateError: %w", err)
	}

	t, err := template.New(name).Funcs(staticFuncMap).Parse(string(body))
	if err != nil {
		return nil, fmt.Errorf("TemplateError: %w", err)
	}
	s.cache[name] = t
	return t, nil
}

// Render expands template name against ctx, then rewrites any embedded
// ISO-8601 timestamps to their CST presentation form.
func (s *Store) Render(name string, ctx Context) (string, error) {
	t, err := s.parsed(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("TemplateError: %w", err)
	}
	return rewriteTimestamps(buf.String()), nil
}
