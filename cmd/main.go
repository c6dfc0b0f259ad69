package main

import (
	"os"

	"github.com/adwatch/internal/alert"
	"github.com/adwatch/internal/api"
	"github.com/adwatch/internal/auth"
	"github.com/adwatch/internal/config"
	"github.com/adwatch/internal/database"
	"github.com/adwatch/internal/insights"
	"github.com/adwatch/internal/notify"
	"github.com/adwatch/internal/obs"
	"github.com/adwatch/internal/report"
	"github.com/adwatch/internal/schedule"
	"github.com/adwatch/internal/trigger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close(db)

	registry := prometheus.NewRegistry()
	sink := obs.NewPrometheusSink(registry)

	emailer := notify.NewEmailNotifier(notify.EmailConfig{
		SMTPHost: cfg.Email.SMTPHost,
		SMTPPort: cfg.Email.SMTPPort,
		From:     cfg.Email.From,
		Password: cfg.Email.Password,
	})

	var messenger alert.Messenger
	if cfg.Slack.Token != "" {
		messenger = notify.NewSlackMessenger(cfg.Slack.Token, cfg.Slack.Channel)
	}

	pipeline := schedule.NewPipeline(db, report.NewBuilder(db), emailer, sink,
		cfg.Engine.CollaboratorTimeout, logger)
	runner := alert.NewRunner(db, insights.NewSource(db, 7), emailer, messenger, sink,
		cfg.Engine.CollaboratorTimeout, logger)

	trig, err := trigger.New(trigger.Config{
		ScheduleCadence: cfg.Engine.ScheduleCadence,
		AlertCadence:    cfg.Engine.AlertCadence,
	}, pipeline, runner, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure trigger")
	}

	trig.Start()
	defer trig.Stop()

	server := api.NewServer(db, trig, auth.NewService(db, cfg.Server.JWTSecret), registry)
	logger.Info().Int("port", cfg.Server.Port).Msg("starting server")
	if err := server.Start(cfg.Server.Port); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
