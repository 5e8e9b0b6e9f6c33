// Package main wires together the curation service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/inbix/curator/internal/api"
	"github.com/inbix/curator/internal/clock/system"
	"github.com/inbix/curator/internal/collect"
	"github.com/inbix/curator/internal/config"
	"github.com/inbix/curator/internal/connector/forum"
	"github.com/inbix/curator/internal/connector/microblog"
	"github.com/inbix/curator/internal/connector/newsletter"
	"github.com/inbix/curator/internal/connector/video"
	"github.com/inbix/curator/internal/curation"
	"github.com/inbix/curator/internal/curator"
	"github.com/inbix/curator/internal/fetch"
	"github.com/inbix/curator/internal/job"
	"github.com/inbix/curator/internal/logging"
	"github.com/inbix/curator/internal/metrics"
	"github.com/inbix/curator/internal/publisher/notion"
	"github.com/inbix/curator/internal/storage"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := fetch.New(fetch.Config{
		UserAgent:  cfg.HTTP.UserAgent,
		Timeout:    cfg.Timeout(),
		MaxRetries: cfg.HTTP.MaxRetries,
		BaseDelay:  time.Duration(cfg.HTTP.BaseDelayMs) * time.Millisecond,
		Throttle:   time.Duration(cfg.HTTP.ThrottleMs) * time.Millisecond,
	}, logger.Named("fetch"))

	connectors := []curator.Connector{
		newsletter.New(client, cfg.Sources.Newsletters, logger.Named("newsletter")),
		forum.New(forum.Config{
			ClientID:     cfg.Sources.Forum.ClientID,
			ClientSecret: cfg.Sources.Forum.ClientSecret,
			Mirrors:      cfg.Sources.Forum.Mirrors,
			Subforums:    cfg.Sources.Forum.Subforums,
			TopTotal:     cfg.Sources.Forum.TopTotal,
		}, client, logger.Named("forum")),
		video.New(video.Config{
			Channels:      cfg.Sources.Video.Channels,
			Keywords:      cfg.Sources.Video.Keywords,
			MaxResults:    cfg.Sources.Video.MaxResults,
			PerChannelCap: cfg.Sources.Video.PerChannelCap,
		}, client, logger.Named("video")),
		microblog.New(microblog.Config{
			Profiles:    cfg.Sources.Microblog.Profiles,
			Hashtags:    cfg.Sources.Microblog.Hashtags,
			Mirrors:     cfg.Sources.Microblog.Mirrors,
			TestProfile: cfg.Sources.Microblog.TestProfile,
			MaxPerQuery: cfg.Sources.Microblog.MaxPerQuery,
		}, client, logger.Named("microblog")),
	}

	orchestrator := collect.New(
		connectors,
		cfg.ConnectorBudget(),
		cfg.Pipeline.Concurrency,
		logger.Named("collect"),
	)
	engine := curation.New(curation.Config{
		MaxItems:         cfg.Pipeline.MaxItems,
		PositiveKeywords: cfg.Curation.PositiveKeywords,
		NegativeKeywords: cfg.Curation.NegativeKeywords,
		SpamPatterns:     cfg.Curation.SpamPatterns,
	}, logger.Named("curation"))

	store, err := storage.New(storage.Config{
		DataDir:  cfg.Storage.DataDir,
		Filename: cfg.Storage.SnapshotFile,
	})
	if err != nil {
		logger.Fatal("snapshot store init failed", zap.Error(err))
	}

	var publisher curator.Publisher
	if cfg.Publisher.Token != "" && cfg.Publisher.PageID != "" {
		notionPublisher := notion.New(notion.Config{
			Token:      cfg.Publisher.Token,
			PageID:     cfg.Publisher.PageID,
			BaseURL:    cfg.Publisher.BaseURL,
			APIVersion: cfg.Publisher.APIVersion,
			BatchSize:  cfg.Publisher.BatchSize,
		}, logger)
		if !notionPublisher.TestConnection(ctx) {
			logger.Warn("publisher connection test failed; publishing stays enabled")
		}
		publisher = notionPublisher
	} else {
		logger.Info("publisher not configured, runs will only persist locally")
	}

	clock := system.New()
	runner := job.New(
		orchestrator,
		engine,
		store,
		publisher,
		clock,
		cfg.RunBudget(),
		logger,
	)

	apiServer := api.NewServer(runner, store, clock, cfg, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
