package models

import "time"

// Status is the canonical alert status.
type Status string

const (
	StatusFiring   Status = "firing"
	StatusResolved Status = "resolved"
)

// Source identifies which upstream producer emitted an alert.
type Source string

const (
	SourceProm    Source = "prometheus"
	SourceGrafana Source = "grafana"
)

// Reserved label keys the normalizer sets; producers may not set these
// (invariant 3 of the canonical alert).
const (
	LabelSource     = "_source"
	LabelReceiver   = "_receiver"
	LabelAlertName  = "alertname"
)

// Alert is the canonical, producer-agnostic record the rest of the
// gateway operates on. It is immutable after construction except for the
// lazy ImageBytes attachment computed once per alert by the image
// pipeline and reused across channels.
type Alert struct {
	Status       Status
	Labels       *LabelSet
	Annotations  *LabelSet
	StartsAt     time.Time
	EndsAt       time.Time
	GeneratorURL string
	Fingerprint  string
	Values       map[string]float64
	ValueString  string

	// MergedEntities lists the per-entity label values collapsed into
	// this alert by the normalizer's optional entity-merge step.
	MergedEntities []string

	// ImageBytes holds the rendered PNG for this alert, computed at
	// most once and shared across every channel that wants one. Nil
	// until the image pipeline runs (or decides not to).
	ImageBytes []byte
}

// Name returns the alertname label, or "" if unset.
func (a *Alert) Name() string {
	if a.Labels == nil {
		return ""
	}
	v, _ := a.Labels.Get(LabelAlertName)
	return v
}

// Source returns the _source label as a Source, or "" if unset.
func (a *Alert) Source() Source {
	if a.Labels == nil {
		return ""
	}
	v, _ := a.Labels.Get(LabelSource)
	return Source(v)
}

// Receiver returns the _receiver label, or "" if unset.
func (a *Alert) Receiver() string {
	if a.Labels == nil {
		return ""
	}
	v, _ := a.Labels.Get(LabelReceiver)
	return v
}

// Open reports whether EndsAt is still the zero-value sentinel, i.e. the
// alert has not ended.
func (a *Alert) Open() bool {
	return a.EndsAt.IsZero()
}
