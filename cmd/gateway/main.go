package main

import (
	"time"

	"github.com/alertgate/gateway/internal/config"
	"github.com/alertgate/gateway/internal/dedup"
	"github.com/alertgate/gateway/internal/httpapi"
	"github.com/alertgate/gateway/internal/imagepipeline"
	"github.com/alertgate/gateway/internal/logging"
	"github.com/alertgate/gateway/internal/obsmetrics"
	"github.com/alertgate/gateway/internal/router"
	"github.com/alertgate/gateway/internal/sender"
	"github.com/alertgate/gateway/internal/service"
	"github.com/alertgate/gateway/internal/template"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New(cfg.Logging)

	rt, err := router.New(cfg.Routing)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build router")
	}

	var matcher *dedup.BuildSystemMatcher
	if cfg.JenkinsDedup.Enabled {
		matcher = dedup.DefaultBuildSystemMatcher()
	}
	dedupCache := dedup.New(
		time.Duration(cfg.JenkinsDedup.TTLSeconds)*time.Second,
		cfg.JenkinsDedup.ClearOnResolved,
		matcher,
	)

	templatesDir := cfg.TemplatesDir
	if templatesDir == "" {
		templatesDir = "./templates"
	}

	pool := sender.NewClientPool()
	deps := service.Deps{
		Router:             rt,
		Dedup:              dedupCache,
		Templates:          template.NewStore(templatesDir),
		Images:             imagepipeline.New(),
		PrometheusImageCfg: cfg.PrometheusImage,
		GrafanaImageCfg:    cfg.GrafanaImage,
		Channels:           cfg.Channels,
		Chat:               sender.NewChatSender(pool),
		Webhook:            sender.NewWebhookSender(pool),
		Metrics:            obsmetrics.New(),
		Log:                logger,
	}

	svc := service.New(deps)
	srv := httpapi.NewServer(svc, logger)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	logger.Info().Str("addr", addr).Msg("starting alert gateway")
	if err := srv.Start(addr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
