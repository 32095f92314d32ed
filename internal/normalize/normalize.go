package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/alertgate/gateway/internal/models"
)

// Result is the output of a single Normalize call: the canonical alerts
// in envelope order plus any non-fatal per-alert parse warnings.
type Result struct {
	Alerts   []*models.Alert
	Warnings []string
}

// Normalize identifies the producer and parses body into canonical
// alerts. It fails only when the envelope cannot be identified at all,
// or identifies as a known shape but yields zero usable alerts.
func Normalize(body []byte) (*Result, error) {
	kind, err := Identify(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}

	switch kind {
	case KindGrafana:
		return parseEnvelope(body, models.SourceGrafana)
	case KindPrometheus:
		return parseEnvelope(body, models.SourceProm)
	case KindSingle:
		return parseSingle(body)
	default:
		return nil, ErrUnrecognizedPayload
	}
}

func parseEnvelope(body []byte, source models.Source) (*Result, error) {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}

	common := models.FromMap(env.CommonLabels)
	commonAnn := models.FromMap(env.CommonAnnotations)

	res := &Result{}
	for i, ra := range env.Alerts {
		alert, err := buildAlert(ra, source, env.Receiver, common, commonAnn)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("AlertParseSkipped: entry %d: %v", i, err))
			continue
		}
		res.Alerts = append(res.Alerts, alert)
	}

	if len(res.Alerts) == 0 {
		return nil, fmt.Errorf("%w: no usable alerts in envelope", ErrUnrecognizedPayload)
	}

	res.Alerts = mergeEntities(res.Alerts)
	return res, nil
}

// parseSingle handles the inline single-alert shape: the payload itself
// carries labels/status/etc. Source is inferred from the presence of
// Grafana-only fields, since a lone alert carries no envelope-level
// discriminator.
func parseSingle(body []byte) (*Result, error) {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}

	source := models.SourceProm
	if env.Fingerprint != "" || env.DashboardURL != "" || env.PanelURL != "" ||
		env.ValueString != "" || len(env.Values) > 0 {
		source = models.SourceGrafana
	}

	ra := rawAlert{
		Status:       env.Status,
		Labels:       env.Labels,
		Annotations:  env.Annotations,
		StartsAt:     env.StartsAt,
		EndsAt:       env.EndsAt,
		GeneratorURL: env.GeneratorURL,
		Fingerprint:  env.Fingerprint,
		SilenceURL:   env.SilenceURL,
		DashboardURL: env.DashboardURL,
		PanelURL:     env.PanelURL,
		Values:       env.Values,
		ValueString:  env.ValueString,
	}

	alert, err := buildAlert(ra, source, "", models.NewLabelSet(), models.NewLabelSet())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}

	return &Result{Alerts: []*models.Alert{alert}}, nil
}

func buildAlert(ra rawAlert, source models.Source, receiver string, common, commonAnn *models.LabelSet) (*models.Alert, error) {
	status := models.Status(ra.Status)
	if status != models.StatusFiring && status != models.StatusResolved {
		return nil, fmt.Errorf("invalid status %q", ra.Status)
	}
	if len(ra.Labels) == 0 || ra.Labels[models.LabelAlertName] == "" {
		return nil, fmt.Errorf("missing alertname label")
	}
	if status == models.StatusResolved && ra.EndsAt.IsZero() {
		return nil, fmt.Errorf("resolved alert missing endsAt")
	}

	labels := models.FromMap(ra.Labels)
	labels.MergeFrom(common)
	labels.Set(models.LabelSource, string(source))
	if receiver != "" {
		labels.Set(models.LabelReceiver, receiver)
	}

	ann := models.FromMap(ra.Annotations)
	ann.MergeFrom(commonAnn)

	return &models.Alert{
		Status:       status,
		Labels:       labels,
		Annotations:  ann,
		StartsAt:     ra.StartsAt,
		EndsAt:       ra.EndsAt,
		GeneratorURL: ra.GeneratorURL,
		Fingerprint:  ra.Fingerprint,
		Values:       ra.Values,
		ValueString:  ra.ValueString,
	}, nil
}
