package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/alertgate/gateway/internal/normalize"
	"github.com/alertgate/gateway/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the gateway's HTTP front door: a single ingest endpoint plus
// the usual operational surface (/healthz, /metrics).
type Server struct {
	svc    *service.Service
	log    zerolog.Logger
	router *gin.Engine
}

// NewServer wires svc behind a gin.Default() router, which already
// carries the stock Logger and Recovery middleware, so a panicking
// handler yields a 500 instead of crashing the process.
func NewServer(svc *service.Service, log zerolog.Logger) *Server {
	s := &Server{svc: svc, log: log, router: gin.Default()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.POST("/webhook", s.handleWebhook)
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Start blocks serving on addr (e.g. ":8080").
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the underlying http.Handler, for tests that want to
// drive the server with httptest without binding a real port.
func (s *Server) Handler() http.Handler {
	return s.router
}

type sendResult struct {
	ChannelID string `json:"channel_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Note      string `json:"note,omitempty"`
}

type alertResult struct {
	AlertName string       `json:"alertname"`
	Dedup     string       `json:"dedup"`
	Sends     []sendResult `json:"sends"`
}

func (s *Server) handleWebhook(c *gin.Context) {
	requestID := uuid.NewString()
	logger := s.log.With().Str("request_id", requestID).Logger()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"request_id": requestID, "error": "failed to read body"})
		return
	}

	result, err := s.svc.Process(c.Request.Context(), body)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, normalize.ErrUnrecognizedPayload) {
			status = http.StatusBadRequest
		}
		logger.Error().Err(err).Msg("webhook processing failed")
		c.JSON(status, gin.H{"request_id": requestID, "error": err.Error()})
		return
	}

	alerts := make([]alertResult, 0, len(result.Outcomes))
	for _, oc := range result.Outcomes {
		sends := make([]sendResult, 0, len(oc.Sends))
		for _, snd := range oc.Sends {
			note := ""
			if snd.HTMLFallback {
				note = "html-fallback"
			}
			sends = append(sends, sendResult{ChannelID: snd.ChannelID, Status: string(snd.Status), Reason: snd.Reason, Note: note})
		}
		alerts = append(alerts, alertResult{
			AlertName: oc.Alert.Name(),
			Dedup:     string(oc.Dedup),
			Sends:     sends,
		})
	}

	logger.Info().Int("alert_count", len(alerts)).Msg("webhook processed")
	c.JSON(http.StatusOK, gin.H{
		"request_id": requestID,
		"warnings":   result.Warnings,
		"alerts":     alerts,
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
