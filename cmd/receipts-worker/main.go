package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"receipts/internal/amqp"
	"receipts/internal/category"
	"receipts/internal/cli"
	"receipts/internal/handler"
	"receipts/internal/images"
	"receipts/internal/services"
	"receipts/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting receipts-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required for the ingest worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.DBPath)
	defer repo.Close()

	imgs, err := images.NewStore(cfg.ImageDir)
	if err != nil {
		logger.Error("Failed to initialize image store", "error", err, "dir", cfg.ImageDir)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The broker may come up after us; keep retrying until it does.
	dialCtx, dialCancel := context.WithTimeout(ctx, 2*time.Minute)
	amqpClient, err := amqp.Dial(dialCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPIngestQueue, cfg.AMQPEventsQueue)
	dialCancel()
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}

	svc := services.NewReceiptService(repo, imgs, category.NewClassifier(category.DefaultRules()), amqpClient, cfg.HomeCurrency)
	ingestWorker := worker.NewIngestWorker(handler.NewHandler(svc))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return ingestWorker.Run(groupCtx, amqpClient)
	})

	logger.Info("Consuming ingest queue",
		"queue", cfg.AMQPIngestQueue,
		"exchange", cfg.AMQPExchange)

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		svc.Close()
		os.Exit(1)
	}

	logger.Info("Shutting down worker...")
	if err := svc.Close(); err != nil {
		logger.Error("Failed to close service", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
