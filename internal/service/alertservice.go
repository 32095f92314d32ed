package service

import (
	"context"
	"errors"
	"sync"

	"github.com/alertgate/gateway/internal/channelfilter"
	"github.com/alertgate/gateway/internal/dedup"
	"github.com/alertgate/gateway/internal/imagepipeline"
	"github.com/alertgate/gateway/internal/models"
	"github.com/alertgate/gateway/internal/normalize"
	"github.com/alertgate/gateway/internal/obsmetrics"
	"github.com/alertgate/gateway/internal/router"
	"github.com/alertgate/gateway/internal/sender"
	"github.com/alertgate/gateway/internal/template"
	"github.com/rs/zerolog"
)

// SendStatus classifies one channel delivery attempt's outcome.
type SendStatus string

const (
	SendOK      SendStatus = "sent"
	SendSkipped SendStatus = "skipped"
	SendFailed  SendStatus = "failed"
)

// SendOutcome is the result of delivering one alert to one channel.
type SendOutcome struct {
	ChannelID    string
	Status       SendStatus
	Reason       string
	UsedImage    bool
	HTMLFallback bool // true if the chat send succeeded only after retrying without HTML parse_mode
}

// AlertOutcome is the per-alert record the Alert Service produces: its
// dedup disposition plus every channel send attempted on its behalf.
type AlertOutcome struct {
	Alert *models.Alert
	Dedup dedup.Outcome
	Sends []SendOutcome
}

// Result is what Process returns for one inbound webhook body.
type Result struct {
	Warnings []string
	Outcomes []AlertOutcome
}

// Deps bundles every collaborator the Alert Service orchestrates; all
// fields except Metrics are required.
type Deps struct {
	Router    *router.Router
	Dedup     *dedup.Cache
	Templates *template.Store
	Images    *imagepipeline.Pipeline

	PrometheusImageCfg imagepipeline.Config
	GrafanaImageCfg    imagepipeline.Config

	Channels map[string]models.Channel

	Chat    *sender.ChatSender
	Webhook *sender.WebhookSender

	// Metrics is optional; a nil value disables self-observability
	// counters without affecting delivery behavior.
	Metrics *obsmetrics.Metrics

	Log zerolog.Logger
}

// Service implements the normalize -> dedup -> route -> filter ->
// render -> send pipeline, fanning the per-channel sends of one alert
// out in parallel and joining before moving to the next alert; alerts
// within one webhook body are processed one after another in the order
// the normalizer returned them.
type Service struct {
	deps Deps
}

// New builds a Service over deps.
func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// Process normalizes body into zero or more canonical alerts and drives
// each one through the full delivery pipeline.
func (s *Service) Process(ctx context.Context, body []byte) (*Result, error) {
	norm, err := normalize.Normalize(body)
	if err != nil {
		return nil, err
	}

	outcomes := make([]AlertOutcome, len(norm.Alerts))
	for i, alert := range norm.Alerts {
		if s.deps.Metrics != nil {
			s.deps.Metrics.AlertsReceived.Inc()
		}
		func() {
			defer s.recoverAlert(alert, &outcomes[i])
			outcomes[i] = s.processAlert(ctx, alert)
		}()
	}

	return &Result{Warnings: norm.Warnings, Outcomes: outcomes}, nil
}

func (s *Service) processAlert(ctx context.Context, alert *models.Alert) AlertOutcome {
	outcome := AlertOutcome{Alert: alert}

	ddOutcome := s.deps.Dedup.Admit(alert)
	outcome.Dedup = ddOutcome
	if ddOutcome == dedup.Duplicate {
		if s.deps.Metrics != nil {
			s.deps.Metrics.DedupSuppressed.Inc()
		}
		s.deps.Log.Info().
			Str("alertname", alert.Name()).
			Str("fingerprint", dedup.Fingerprint(alert)).
			Msg("suppressed duplicate build-system alert")
		return outcome
	}

	candidateIDs := s.deps.Router.Route(alert)
	if len(candidateIDs) == 0 {
		if s.deps.Metrics != nil {
			s.deps.Metrics.Unrouted.Inc()
		}
		s.deps.Log.Warn().Str("alertname", alert.Name()).Msg("alert matched no routing rule")
		return outcome
	}

	decisions := channelfilter.Apply(alert, candidateIDs, s.deps.Channels)

	var imageOnce sync.Once
	var imageBytes []byte
	computeImage := func() []byte {
		imageOnce.Do(func() {
			cfg, ok := s.imageConfigFor(alert)
			if !ok || !cfg.Enabled {
				return
			}
			png, err := s.deps.Images.Generate(ctx, alert, cfg)
			s.recordImageOutcome(err)
			if err != nil {
				s.deps.Log.Debug().Err(err).Str("alertname", alert.Name()).Msg("image generation skipped")
				return
			}
			imageBytes = png
			alert.ImageBytes = png
		})
		return imageBytes
	}

	outcome.Sends = make([]SendOutcome, len(decisions))
	var wg sync.WaitGroup
	for i, d := range decisions {
		i, d := i, d
		if !d.Send {
			outcome.Sends[i] = SendOutcome{ChannelID: d.ChannelID, Status: SendSkipped, Reason: d.Reason}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.recoverSend(alert, d.ChannelID, &outcome.Sends[i])
			outcome.Sends[i] = s.deliver(ctx, alert, d.ChannelID, computeImage)
		}()
	}
	wg.Wait()

	return outcome
}

// recoverAlert converts a panic anywhere in processAlert into a logged,
// all-failed AlertOutcome for that alert only, so the remaining alerts of
// the same webhook body are still processed instead of the whole request
// failing.
func (s *Service) recoverAlert(alert *models.Alert, outcome *AlertOutcome) {
	if r := recover(); r != nil {
		s.deps.Log.Error().
			Interface("panic", r).
			Str("alertname", alert.Name()).
			Msg("recovered panic while processing alert")
		*outcome = AlertOutcome{
			Alert: alert,
			Sends: []SendOutcome{{Status: SendFailed, Reason: "internal_error"}},
		}
	}
}

// recoverSend converts a panic in one channel's delivery goroutine into a
// SendFailed outcome for that channel only, leaving sibling channel sends
// unaffected.
func (s *Service) recoverSend(alert *models.Alert, channelID string, outcome *SendOutcome) {
	if r := recover(); r != nil {
		s.deps.Log.Error().
			Interface("panic", r).
			Str("channel", channelID).
			Str("alertname", alert.Name()).
			Msg("recovered panic while delivering to channel")
		s.recordSend(string(s.deps.Channels[channelID].Type), string(SendFailed))
		*outcome = SendOutcome{ChannelID: channelID, Status: SendFailed, Reason: "internal_error"}
	}
}

func (s *Service) imageConfigFor(alert *models.Alert) (imagepipeline.Config, bool) {
	switch alert.Source() {
	case models.SourceProm:
		return s.deps.PrometheusImageCfg, true
	case models.SourceGrafana:
		return s.deps.GrafanaImageCfg, true
	default:
		return imagepipeline.Config{}, false
	}
}

func (s *Service) deliver(ctx context.Context, alert *models.Alert, channelID string, computeImage func() []byte) SendOutcome {
	ch, ok := s.deps.Channels[channelID]
	if !ok {
		return SendOutcome{ChannelID: channelID, Status: SendFailed, Reason: "unknown_channel"}
	}

	var image []byte
	if ch.SupportsImage() && ch.ImageEnabled {
		image = computeImage()
	}

	hasImage := len(image) > 0
	rendered, err := s.deps.Templates.Render(ch.Template, template.NewContext(alert, hasImage))
	if err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.RenderFailures.Inc()
		}
		s.deps.Log.Error().Err(err).Str("channel", channelID).Str("alertname", alert.Name()).Msg("template render failed")
		return SendOutcome{ChannelID: channelID, Status: SendFailed, Reason: err.Error()}
	}

	switch ch.Type {
	case models.ChannelChat:
		res := s.deps.Chat.Send(ctx, ch, rendered, image)
		if res.Err != nil {
			s.recordSend(string(ch.Type), string(SendFailed))
			s.deps.Log.Error().Err(res.Err).Str("channel", channelID).Str("alertname", alert.Name()).Msg("chat send failed")
			return SendOutcome{ChannelID: channelID, Status: SendFailed, Reason: res.Err.Error()}
		}
		s.recordSend(string(ch.Type), string(SendOK))
		event := s.deps.Log.Info().Str("channel", channelID).Str("alertname", alert.Name()).Bool("used_image", res.UsedImage)
		if res.HTMLFallback {
			event = event.Str("note", "html-fallback")
		}
		event.Msg("chat send ok")
		return SendOutcome{ChannelID: channelID, Status: SendOK, UsedImage: res.UsedImage, HTMLFallback: res.HTMLFallback}
	case models.ChannelWebhook:
		res := s.deps.Webhook.Send(ctx, ch, rendered)
		if res.Err != nil {
			s.recordSend(string(ch.Type), string(SendFailed))
			s.deps.Log.Error().Err(res.Err).Str("channel", channelID).Str("alertname", alert.Name()).Msg("webhook send failed")
			return SendOutcome{ChannelID: channelID, Status: SendFailed, Reason: res.Err.Error()}
		}
		s.recordSend(string(ch.Type), string(SendOK))
		s.deps.Log.Info().Str("channel", channelID).Str("alertname", alert.Name()).Msg("webhook send ok")
		return SendOutcome{ChannelID: channelID, Status: SendOK}
	default:
		return SendOutcome{ChannelID: channelID, Status: SendFailed, Reason: "unknown_channel_type"}
	}
}

func (s *Service) recordSend(channelType, status string) {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.Sends.WithLabelValues(channelType, status).Inc()
}

// recordImageOutcome classifies an image pipeline result into one of the
// outcomes named by the self-observability design (ok|empty|query_failed|
// invalid_image|timeout) and increments the matching counter.
func (s *Service) recordImageOutcome(err error) {
	if s.deps.Metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
		outcome = "ok"
	case errors.Is(err, imagepipeline.ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, imagepipeline.ErrQueryFailed):
		outcome = "query_failed"
	case errors.Is(err, imagepipeline.ErrInvalidImage):
		outcome = "invalid_image"
	case errors.Is(err, imagepipeline.ErrEmptySeries), errors.Is(err, imagepipeline.ErrNoQuery):
		outcome = "empty"
	default:
		outcome = "empty"
	}
	s.deps.Metrics.ImageOutcomes.WithLabelValues(outcome).Inc()
}
