package normalize

import (
	"testing"

	"github.com/alertgate/gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Kind
	}{
		{"grafana orgId", `{"orgId":1,"alerts":[]}`, KindGrafana},
		{"grafana v1", `{"version":"1","state":"alerting","alerts":[]}`, KindGrafana},
		{"prometheus v4", `{"version":"4","groupKey":"{}","alerts":[]}`, KindPrometheus},
		{"lenient alerts", `{"alerts":[]}`, KindPrometheus},
		{"single", `{"labels":{"alertname":"X"},"status":"firing"}`, KindSingle},
		{"unknown", `{"hello":"world"}`, KindUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Identify([]byte(c.body))
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestNormalizePrometheusFiring(t *testing.T) {
	body := `{
		"version": "4",
		"groupKey": "{}",
		"status": "firing",
		"receiver": "default",
		"commonLabels": {"team": "sre"},
		"alerts": [
			{
				"status": "firing",
				"labels": {"alertname": "HighCPU", "severity": "critical"},
				"annotations": {"summary": "cpu hot"},
				"startsAt": "2024-01-15T10:00:00Z",
				"endsAt": "0001-01-01T00:00:00Z",
				"generatorURL": "http://p:9090/graph?g0.expr=cpu"
			}
		]
	}`

	res, err := Normalize([]byte(body))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)

	a := res.Alerts[0]
	assert.Equal(t, models.StatusFiring, a.Status)
	assert.Equal(t, models.SourceProm, a.Source())
	assert.Equal(t, "default", a.Receiver())
	assert.True(t, a.Open())
	team, ok := a.Labels.Get("team")
	assert.True(t, ok)
	assert.Equal(t, "sre", team)
}

func TestNormalizeGrafanaResolved(t *testing.T) {
	body := `{
		"orgId": 1,
		"version": "1",
		"status": "resolved",
		"alerts": [
			{
				"status": "resolved",
				"labels": {"alertname": "X"},
				"endsAt": "2024-01-15T10:35:00Z"
			}
		]
	}`

	res, err := Normalize([]byte(body))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, models.SourceGrafana, res.Alerts[0].Source())
	assert.Equal(t, models.StatusResolved, res.Alerts[0].Status)
	assert.False(t, res.Alerts[0].Open())
}

func TestNormalizeUnrecognized(t *testing.T) {
	_, err := Normalize([]byte(`{"hello":"world"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnrecognizedPayload)
}

func TestNormalizeSkipsMalformedAlert(t *testing.T) {
	body := `{
		"version": "4",
		"groupKey": "{}",
		"alerts": [
			{"status": "firing", "labels": {}},
			{"status": "firing", "labels": {"alertname": "Good"}}
		]
	}`

	res, err := Normalize([]byte(body))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "Good", res.Alerts[0].Name())
}

func TestNormalizeEntityMerge(t *testing.T) {
	body := `{
		"version": "4",
		"groupKey": "{}",
		"alerts": [
			{"status": "firing", "labels": {"alertname": "Down", "pod": "a-1"}},
			{"status": "firing", "labels": {"alertname": "Down", "pod": "a-2"}}
		]
	}`

	res, err := Normalize([]byte(body))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.ElementsMatch(t, []string{"a-1", "a-2"}, res.Alerts[0].MergedEntities)
}

func TestIdempotence(t *testing.T) {
	body := `{"version":"4","groupKey":"{}","alerts":[{"status":"firing","labels":{"alertname":"X"}}]}`
	r1, err := Normalize([]byte(body))
	require.NoError(t, err)

	reserialized := `{"version":"4","groupKey":"{}","alerts":[{"status":"firing","labels":{"alertname":"X","_source":"prometheus"}}]}`
	r2, err := Normalize([]byte(reserialized))
	require.NoError(t, err)

	require.Len(t, r1.Alerts, 1)
	require.Len(t, r2.Alerts, 1)
	assert.Equal(t, r1.Alerts[0].Name(), r2.Alerts[0].Name())
	assert.Equal(t, r1.Alerts[0].Source(), r2.Alerts[0].Source())
}
