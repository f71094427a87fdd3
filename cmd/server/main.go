// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

// Command server runs the recommendation service: dataset ingestion,
// asynchronous model training, recommendation retrieval, and reward email
// dispatch, all behind a single HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmarceau/rewardly/internal/api"
	"github.com/dmarceau/rewardly/internal/config"
	"github.com/dmarceau/rewardly/internal/logging"
	"github.com/dmarceau/rewardly/internal/mailer"
	"github.com/dmarceau/rewardly/internal/models"
	"github.com/dmarceau/rewardly/internal/recommend"
	"github.com/dmarceau/rewardly/internal/recommend/storage"
	"github.com/dmarceau/rewardly/internal/store"
	"github.com/dmarceau/rewardly/internal/supervisor"
	"github.com/dmarceau/rewardly/internal/trainer"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open recommendation store: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logging.Error().Err(cerr).Msg("closing badger")
		}
	}()
	sets := store.NewRecommendationStore(db)

	artifacts, err := storage.NewStore(cfg.Store.ModelDir)
	if err != nil {
		return fmt.Errorf("open model artifact store: %w", err)
	}

	engine := recommend.NewEngine(recommend.Config{
		Factors:        cfg.Training.Factors,
		Epochs:         cfg.Training.Epochs,
		LearningRate:   cfg.Training.LearningRate,
		Regularization: cfg.Training.Regularization,
		MaxUsers:       cfg.Training.MaxUsers,
		DefaultRewards: cfg.Training.DefaultRewards,
		ExcludeSeen:    cfg.Training.ExcludeSeen,
	}, recommend.NewFactorTrainer(), artifacts, sets, logger)

	pool := trainer.NewPool(engine, trainer.Config{
		Workers:    cfg.Training.Workers,
		QueueSize:  cfg.Training.QueueSize,
		RunTimeout: cfg.Training.Timeout,
	}, logger)

	var dispatcher *mailer.Dispatcher
	if cfg.SMTP.Enabled {
		dispatcher = mailer.NewDispatcher(mailer.Config{
			Host:          cfg.SMTP.Host,
			Port:          cfg.SMTP.Port,
			Username:      cfg.SMTP.Username,
			Password:      cfg.SMTP.Password,
			From:          cfg.SMTP.From,
			FromName:      cfg.SMTP.FromName,
			UseTLS:        cfg.SMTP.UseTLS,
			RatePerSecond: cfg.SMTP.RatePerSecond,
		}, logger)
	}

	holder := models.NewSnapshotHolder()
	handler := api.NewHandler(holder, pool, sets, dispatcher, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
		CORSOrigins:     cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.AddWorkerService(pool)
	tree.AddAPIService(supervisor.NewHTTPService(server, treeCfg.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("addr", server.Addr).
		Int("workers", cfg.Training.Workers).
		Bool("smtp_enabled", cfg.SMTP.Enabled).
		Msg("starting rewardly")

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	logging.Info().Msg("shutdown complete")
	return nil
}
