package imagepipeline

import (
	"errors"
	"net/url"
	"regexp"
	"sort"
	"strconv"

	"github.com/alertgate/gateway/internal/models"
)

// ErrNoQuery is returned when generatorURL carries no extractable
// expression.
var ErrNoQuery = errors.New("NoQuery")

var promExprKey = regexp.MustCompile(`^g(\d+)\.expr$`)

// Query is an extracted expression plus the metrics-backend authority to
// query it against (derived from generatorURL when the config doesn't
// pin an explicit prometheus_url).
type Query struct {
	Authority string
	Primary   string
	Overlays  []string
}

// Extract pulls the query expression(s) out of alert.GeneratorURL
// according to the producing source's URL convention.
func Extract(alert *models.Alert) (*Query, error) {
	if alert.GeneratorURL == "" {
		return nil, ErrNoQuery
	}
	u, err := url.Parse(alert.GeneratorURL)
	if err != nil || !u.IsAbs() {
		return nil, ErrNoQuery
	}

	switch alert.Source() {
	case models.SourceProm:
		return extractPrometheus(u)
	case models.SourceGrafana:
		return extractGrafana(u)
	default:
		return nil, ErrNoQuery
	}
}

func extractPrometheus(u *url.URL) (*Query, error) {
	q := u.Query()

	type indexed struct {
		idx  int
		expr string
	}
	var found []indexed
	for key, vals := range q {
		m := promExprKey.FindStringSubmatch(key)
		if m == nil || len(vals) == 0 || vals[0] == "" {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, indexed{idx: idx, expr: vals[0]})
	}
	if len(found) == 0 {
		return nil, ErrNoQuery
	}
	sort.Slice(found, func(i, j int) bool { return found[i].idx < found[j].idx })

	out := &Query{Authority: u.Scheme + "://" + u.Host, Primary: found[0].expr}
	for _, f := range found[1:] {
		out.Overlays = append(out.Overlays, f.expr)
	}
	return out, nil
}

func extractGrafana(u *url.URL) (*Query, error) {
	q := u.Query()
	expr := q.Get("expr")
	if expr == "" {
		return nil, ErrNoQuery
	}
	return &Query{Authority: u.Scheme + "://" + u.Host, Primary: expr}, nil
}
