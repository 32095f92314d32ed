package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alertgate/gateway/internal/dedup"
	"github.com/alertgate/gateway/internal/imagepipeline"
	"github.com/alertgate/gateway/internal/models"
	"github.com/alertgate/gateway/internal/router"
	"github.com/alertgate/gateway/internal/sender"
	"github.com/alertgate/gateway/internal/template"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, rules []models.Rule, channels map[string]models.Channel) (*Service, *httptest.Server, *httptest.Server) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat.tmpl"), []byte(`{{.StatusText}} {{.Label "alertname"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "webhook.tmpl"), []byte(`{"alertname":"{{.Label "alertname"}}"}`), 0o644))

	chatCalls := 0
	chatSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	webhookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for id, ch := range channels {
		if ch.Type == models.ChannelChat {
			ch.BotBaseURL = chatSrv.URL
			ch.BotToken = "tok"
			channels[id] = ch
		}
		if ch.Type == models.ChannelWebhook {
			ch.URL = webhookSrv.URL
			channels[id] = ch
		}
	}

	rt, err := router.New(rules)
	require.NoError(t, err)

	pool := sender.NewClientPool()
	deps := Deps{
		Router:    rt,
		Dedup:     dedup.New(time.Hour, true, dedup.DefaultBuildSystemMatcher()),
		Templates: template.NewStore(dir),
		Images:    imagepipeline.New(),
		Channels:  channels,
		Chat:      sender.NewChatSender(pool),
		Webhook:   sender.NewWebhookSender(pool),
		Log:       zerolog.Nop(),
	}
	return New(deps), chatSrv, webhookSrv
}

func firingAlertBody(alertname, receiver string) []byte {
	return []byte(`{
		"status": "firing",
		"receiver": "` + receiver + `",
		"groupKey": "k1",
		"commonLabels": {},
		"commonAnnotations": {},
		"alerts": [{
			"status": "firing",
			"labels": {"alertname": "` + alertname + `"},
			"annotations": {},
			"startsAt": "2024-01-15T02:00:00Z",
			"endsAt": "0001-01-01T00:00:00Z",
			"generatorURL": "http://prom/graph?g0.expr=up"
		}]
	}`)
}

func TestProcessRoutesAndSendsToChatChannel(t *testing.T) {
	rules := []models.Rule{{Default: true, SendTo: []string{"chat1"}}}
	channels := map[string]models.Channel{
		"chat1": {Type: models.ChannelChat, Enabled: true, SendResolved: true, Template: "chat.tmpl"},
	}
	svc, chatSrv, webhookSrv := newTestService(t, rules, channels)
	defer chatSrv.Close()
	defer webhookSrv.Close()

	result, err := svc.Process(context.Background(), firingAlertBody("HighCPU", "default"))
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)

	oc := result.Outcomes[0]
	assert.Equal(t, dedup.NotApplicable, oc.Dedup)
	require.Len(t, oc.Sends, 1)
	assert.Equal(t, SendOK, oc.Sends[0].Status)
	assert.Equal(t, "chat1", oc.Sends[0].ChannelID)
}

func TestProcessUnroutedAlertHasNoSends(t *testing.T) {
	rules := []models.Rule{{Match: map[string]string{"alertname": "Nope"}, SendTo: []string{"chat1"}}}
	channels := map[string]models.Channel{
		"chat1": {Type: models.ChannelChat, Enabled: true, SendResolved: true, Template: "chat.tmpl"},
	}
	svc, chatSrv, webhookSrv := newTestService(t, rules, channels)
	defer chatSrv.Close()
	defer webhookSrv.Close()

	result, err := svc.Process(context.Background(), firingAlertBody("HighCPU", "default"))
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Empty(t, result.Outcomes[0].Sends)
}

func TestProcessSkipsDisabledChannel(t *testing.T) {
	rules := []models.Rule{{Default: true, SendTo: []string{"chat1"}}}
	channels := map[string]models.Channel{
		"chat1": {Type: models.ChannelChat, Enabled: false, SendResolved: true, Template: "chat.tmpl"},
	}
	svc, chatSrv, webhookSrv := newTestService(t, rules, channels)
	defer chatSrv.Close()
	defer webhookSrv.Close()

	result, err := svc.Process(context.Background(), firingAlertBody("HighCPU", "default"))
	require.NoError(t, err)
	require.Len(t, result.Outcomes[0].Sends, 1)
	assert.Equal(t, SendSkipped, result.Outcomes[0].Sends[0].Status)
	assert.Equal(t, "disabled", result.Outcomes[0].Sends[0].Reason)
}

func TestProcessDeduplicatesRepeatedJenkinsFiring(t *testing.T) {
	rules := []models.Rule{{Default: true, SendTo: []string{"webhook1"}}}
	channels := map[string]models.Channel{
		"webhook1": {Type: models.ChannelWebhook, Enabled: true, SendResolved: true, Template: "webhook.tmpl"},
	}
	svc, chatSrv, webhookSrv := newTestService(t, rules, channels)
	defer chatSrv.Close()
	defer webhookSrv.Close()

	body := firingAlertBody("JenkinsBuildFailed", "jenkins-notify")

	first, err := svc.Process(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, dedup.Admitted, first.Outcomes[0].Dedup)
	assert.Equal(t, SendOK, first.Outcomes[0].Sends[0].Status)

	second, err := svc.Process(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, dedup.Duplicate, second.Outcomes[0].Dedup)
	assert.Empty(t, second.Outcomes[0].Sends)
}

func TestProcessFansOutToMultipleChannelsConcurrently(t *testing.T) {
	rules := []models.Rule{{Default: true, SendTo: []string{"chat1", "webhook1"}}}
	channels := map[string]models.Channel{
		"chat1":    {Type: models.ChannelChat, Enabled: true, SendResolved: true, Template: "chat.tmpl"},
		"webhook1": {Type: models.ChannelWebhook, Enabled: true, SendResolved: true, Template: "webhook.tmpl"},
	}
	svc, chatSrv, webhookSrv := newTestService(t, rules, channels)
	defer chatSrv.Close()
	defer webhookSrv.Close()

	result, err := svc.Process(context.Background(), firingAlertBody("HighCPU", "default"))
	require.NoError(t, err)
	require.Len(t, result.Outcomes[0].Sends, 2)
	for _, s := range result.Outcomes[0].Sends {
		assert.Equal(t, SendOK, s.Status)
	}
}

func TestProcessUnrecognizedPayloadErrors(t *testing.T) {
	rules := []models.Rule{{Default: true, SendTo: []string{"chat1"}}}
	channels := map[string]models.Channel{
		"chat1": {Type: models.ChannelChat, Enabled: true, SendResolved: true, Template: "chat.tmpl"},
	}
	svc, chatSrv, webhookSrv := newTestService(t, rules, channels)
	defer chatSrv.Close()
	defer webhookSrv.Close()

	_, err := svc.Process(context.Background(), []byte(`{"foo":"bar"}`))
	assert.Error(t, err)
}

func TestProcessRecoversFromPanicInOneChannelSend(t *testing.T) {
	rules := []models.Rule{{Default: true, SendTo: []string{"chat1", "webhook1"}}}
	channels := map[string]models.Channel{
		"chat1":    {Type: models.ChannelChat, Enabled: true, SendResolved: true, Template: "chat.tmpl"},
		"webhook1": {Type: models.ChannelWebhook, Enabled: true, SendResolved: true, Template: "webhook.tmpl"},
	}
	svc, chatSrv, webhookSrv := newTestService(t, rules, channels)
	defer chatSrv.Close()
	defer webhookSrv.Close()

	// A nil Templates store makes deliver() panic for every channel; this
	// exercises recoverSend rather than asserting on a healthy send.
	svc.deps.Templates = nil

	result, err := svc.Process(context.Background(), firingAlertBody("HighCPU", "default"))
	require.NoError(t, err)
	require.Len(t, result.Outcomes[0].Sends, 2)
	for _, s := range result.Outcomes[0].Sends {
		assert.Equal(t, SendFailed, s.Status)
		assert.Equal(t, "internal_error", s.Reason)
	}
}

func TestProcessRecoversFromPanicProcessingOneAlert(t *testing.T) {
	rules := []models.Rule{{Default: true, SendTo: []string{"chat1"}}}
	channels := map[string]models.Channel{
		"chat1": {Type: models.ChannelChat, Enabled: true, SendResolved: true, Template: "chat.tmpl"},
	}
	svc, chatSrv, webhookSrv := newTestService(t, rules, channels)
	defer chatSrv.Close()
	defer webhookSrv.Close()

	// A nil Dedup cache makes processAlert panic immediately; this exercises
	// recoverAlert and confirms Process itself returns cleanly rather than
	// crashing the caller's goroutine.
	svc.deps.Dedup = nil

	result, err := svc.Process(context.Background(), firingAlertBody("HighCPU", "default"))
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	require.Len(t, result.Outcomes[0].Sends, 1)
	assert.Equal(t, SendFailed, result.Outcomes[0].Sends[0].Status)
}
