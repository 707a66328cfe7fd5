package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"atenda/internal/bookings/repository"
	"atenda/internal/outbox"
	"atenda/pkg/config"
	"atenda/pkg/kafka"
	kafka_config "atenda/pkg/kafka/config"
	"atenda/pkg/model"
)

const ServiceName = "outbox"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.ConnectMongo()

	kafkaCfg := kafka_config.Load()

	notifications, err := kafka.NewProducer(kafkaCfg, kafkaCfg.NotificationsTopic, kafkaCfg.DLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create notifications producer", "error", err)
	}
	defer notifications.Close()

	workflow, err := kafka.NewProducer(kafkaCfg, kafkaCfg.WorkflowTopic, kafkaCfg.DLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create workflow producer", "error", err)
	}
	defer workflow.Close()

	store := repository.NewMongoOutboxRepository(cfg)
	dispatcher := outbox.NewDispatcher(
		store,
		map[model.OutboxKind]outbox.Publisher{
			model.OutboxNotification: notifications,
			model.OutboxWorkflow:     workflow,
		},
		outbox.DefaultRetryPolicy(cfg.OutboxMaxAttempts),
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.Log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		sig := <-shutdown
		cfg.Log.Info("Shutdown signal received", "signal", sig)
		cancel()
	}()

	cfg.Log.Info("Starting outbox dispatcher",
		"poll_interval", cfg.OutboxPollInterval,
		"batch_size", cfg.OutboxBatchSize,
		"notifications_topic", kafkaCfg.NotificationsTopic,
		"workflow_topic", kafkaCfg.WorkflowTopic,
	)
	if err := dispatcher.Run(ctx); err != nil && err != context.Canceled {
		cfg.Log.Fatal("Dispatcher stopped", "error", err)
	}

	if err := cfg.Client.Disconnect(context.Background()); err != nil {
		cfg.Log.Error("Mongo disconnect failed", "error", err)
	}
	cfg.Log.Info("Outbox dispatcher stopped gracefully")
}
