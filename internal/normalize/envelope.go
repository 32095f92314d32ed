package normalize

import "time"

// rawAlert is the per-alert shape shared, structurally, by both upstream
// producers. Grafana-only fields are simply left zero-valued when the
// producer is Prometheus.
type rawAlert struct {
	Status       string             `json:"status"`
	Labels       map[string]string  `json:"labels"`
	Annotations  map[string]string  `json:"annotations"`
	StartsAt     time.Time          `json:"startsAt"`
	EndsAt       time.Time          `json:"endsAt"`
	GeneratorURL string             `json:"generatorURL"`
	Fingerprint  string             `json:"fingerprint"`
	SilenceURL   string             `json:"silenceURL"`
	DashboardURL string             `json:"dashboardURL"`
	PanelURL     string             `json:"panelURL"`
	Values       map[string]float64 `json:"values"`
	ValueString  string             `json:"valueString"`
}

// rawEnvelope covers both the Prometheus Alertmanager webhook shape and
// the Grafana unified-alerting shape; the two producers share almost all
// of their top-level fields (they both descend from the Alertmanager
// webhook_config contract), differing in OrgID/State/Title/Message and
// per-alert Grafana extras captured in rawAlert.
type rawEnvelope struct {
	Version           string            `json:"version"`
	GroupKey          string            `json:"groupKey"`
	Status            string            `json:"status"`
	Receiver          string            `json:"receiver"`
	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`
	Alerts            []rawAlert        `json:"alerts"`

	// Grafana-only.
	OrgID   *int   `json:"orgId"`
	State   string `json:"state"`
	Title   string `json:"title"`
	Message string `json:"message"`

	// Present only for a "single" inline-alert payload (the payload IS
	// the alert).
	Labels       map[string]string  `json:"labels"`
	Annotations  map[string]string  `json:"annotations"`
	StartsAt     time.Time          `json:"startsAt"`
	EndsAt       time.Time          `json:"endsAt"`
	GeneratorURL string             `json:"generatorURL"`
	Fingerprint  string             `json:"fingerprint"`
	DashboardURL string             `json:"dashboardURL"`
	PanelURL     string             `json:"panelURL"`
	SilenceURL   string             `json:"silenceURL"`
	Values       map[string]float64 `json:"values"`
	ValueString  string             `json:"valueString"`
}
