package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/snarg/meetbrief/internal/api"
	"github.com/snarg/meetbrief/internal/config"
	"github.com/snarg/meetbrief/internal/digest"
	"github.com/snarg/meetbrief/internal/media"
	"github.com/snarg/meetbrief/internal/metrics"
	"github.com/snarg/meetbrief/internal/mqttclient"
	"github.com/snarg/meetbrief/internal/summarize"
	"github.com/snarg/meetbrief/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("meetbrief starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, bin := range []string{cfg.FFprobePath, cfg.FFmpegPath} {
		if !media.ToolAvailable(bin) {
			log.Warn().Str("tool", bin).Msg("media tool not found in PATH; submissions will fail")
		}
	}

	// AI services share one client, built once from the credential.
	aiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		aiCfg.BaseURL = cfg.OpenAIBaseURL
	}
	ai := openai.NewClientWithConfig(aiCfg)

	runner := media.NewExecRunner()
	chunker := media.NewChunker(runner, cfg.FFmpegPath, cfg.TempDir, log)

	transcriber := transcribe.NewClient(transcribe.Options{
		API:           ai,
		Splitter:      chunker,
		Model:         cfg.TranscriptionModel,
		MaxFileSize:   cfg.MaxTranscriptionFileSize,
		ChunkDuration: cfg.ChunkDuration,
		Log:           log,
	})
	summarizer := summarize.NewClient(summarize.Options{
		API:         ai,
		Model:       cfg.SummaryModel,
		Temperature: cfg.SummaryTemperature,
		MaxTokens:   cfg.SummaryMaxTokens,
		Log:         log,
	})

	// MQTT (optional)
	var mqttStatus api.MQTTStatus
	var publish digest.EventPublishFunc
	if cfg.MQTTEnabled() {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mq, err := mqttclient.Connect(mqttclient.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			Log:         mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mq.Close()
		mqttStatus = mq
		publish = mq.Publish
	}

	pipeline := digest.New(digest.Options{
		Prober:        media.NewProber(runner, cfg.FFprobePath),
		Transcriber:   transcriber,
		Summarizer:    summarizer,
		FreeTierLimit: cfg.FreeTierLimit,
		TempDir:       cfg.TempDir,
		PublishEvent:  publish,
		Log:           log,
	})

	prometheus.MustRegister(metrics.NewCollector(pipeline, map[string]string{
		"ffprobe": cfg.FFprobePath,
		"ffmpeg":  cfg.FFmpegPath,
	}))

	log.Info().
		Str("transcription_model", transcriber.Model()).
		Str("summary_model", summarizer.Model()).
		Dur("free_tier_limit", cfg.FreeTierLimit).
		Int64("max_upload_bytes", cfg.MaxUploadBytes).
		Bool("mqtt", cfg.MQTTEnabled()).
		Msg("pipeline configured")

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, pipeline, mqttStatus, version, startTime, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("meetbrief stopped")
}
