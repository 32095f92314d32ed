package router

import (
	"testing"

	"github.com/alertgate/gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlert(labels map[string]string) *models.Alert {
	return &models.Alert{Labels: models.FromMap(labels)}
}

func TestRouteExactAndRegex(t *testing.T) {
	rules := []models.Rule{
		{Match: map[string]string{"_source": "prometheus"}, SendTo: []string{"chat_default"}},
		{Match: map[string]string{"alertname": "^High.*"}, SendTo: []string{"paging"}},
	}
	rt, err := New(rules)
	require.NoError(t, err)

	a := newAlert(map[string]string{"_source": "prometheus", "alertname": "HighCPU"})
	got := rt.Route(a)
	assert.Equal(t, []string{"chat_default", "paging"}, got)
}

func TestRouteOrderPreservingDedup(t *testing.T) {
	rules := []models.Rule{
		{Match: map[string]string{"a": "1"}, SendTo: []string{"x", "y"}},
		{Match: map[string]string{"b": "2"}, SendTo: []string{"y", "z"}},
	}
	rt, err := New(rules)
	require.NoError(t, err)

	a := newAlert(map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, []string{"x", "y", "z"}, rt.Route(a))
}

func TestRouteDefaultRule(t *testing.T) {
	rules := []models.Rule{
		{Match: map[string]string{"a": "1"}, SendTo: []string{"x"}},
		{Default: true, SendTo: []string{"fallback"}},
	}
	rt, err := New(rules)
	require.NoError(t, err)

	a := newAlert(map[string]string{"a": "nomatch"})
	assert.Equal(t, []string{"fallback"}, rt.Route(a))
}

func TestRouteUnrouted(t *testing.T) {
	rules := []models.Rule{
		{Match: map[string]string{"a": "1"}, SendTo: []string{"x"}},
	}
	rt, err := New(rules)
	require.NoError(t, err)

	a := newAlert(map[string]string{"a": "2"})
	assert.Empty(t, rt.Route(a))
}

func TestRouteMissingLabelNoMatch(t *testing.T) {
	rules := []models.Rule{
		{Match: map[string]string{"missing": "x"}, SendTo: []string{"x"}},
	}
	rt, err := New(rules)
	require.NoError(t, err)

	a := newAlert(map[string]string{"a": "1"})
	assert.Empty(t, rt.Route(a))
}

func TestNewRejectsInvalidPattern(t *testing.T) {
	rules := []models.Rule{
		{Match: map[string]string{"a": "(unclosed"}, SendTo: []string{"x"}},
	}
	_, err := New(rules)
	assert.Error(t, err)
}

func TestNewRejectsEmptySendTo(t *testing.T) {
	rules := []models.Rule{
		{Match: map[string]string{"a": "1"}},
	}
	_, err := New(rules)
	assert.Error(t, err)
}
