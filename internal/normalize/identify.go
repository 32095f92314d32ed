package normalize

import (
	"encoding/json"
	"errors"
)

// Kind is the discriminated envelope variant selected by Identify.
type Kind string

const (
	KindPrometheus Kind = "prometheus"
	KindGrafana    Kind = "grafana"
	KindSingle     Kind = "single"
	KindUnknown    Kind = "unknown"
)

// ErrUnrecognizedPayload is returned when no producer shape matches.
var ErrUnrecognizedPayload = errors.New("UnrecognizedPayload")

// Identify inspects the top-level JSON object and returns the producer
// kind, applying the discrimination rules in declaration order:
//
//  1. numeric top-level orgId present -> grafana
//  2. version == "1" AND (state present OR title present) -> grafana
//  3. version present AND != "1" AND groupKey present AND alerts present -> prometheus
//  4. alerts present (lenient) -> prometheus
//  5. top-level labels AND status present -> single
//  6. otherwise -> unknown
func Identify(body []byte) (Kind, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return KindUnknown, err
	}

	if raw, ok := probe["orgId"]; ok {
		var n float64
		if json.Unmarshal(raw, &n) == nil {
			return KindGrafana, nil
		}
	}

	version, hasVersion := stringField(probe, "version")
	_, hasState := probe["state"]
	_, hasTitle := probe["title"]
	_, hasGroupKey := probe["groupKey"]
	_, hasAlerts := probe["alerts"]
	_, hasLabels := probe["labels"]
	_, hasStatus := probe["status"]

	if hasVersion && version == "1" && (hasState || hasTitle) {
		return KindGrafana, nil
	}

	if hasVersion && version != "1" && hasGroupKey && hasAlerts {
		return KindPrometheus, nil
	}

	if hasAlerts {
		return KindPrometheus, nil
	}

	if hasLabels && hasStatus {
		return KindSingle, nil
	}

	return KindUnknown, nil
}

func stringField(probe map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := probe[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", true
	}
	return s, true
}
