package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"receipts/internal/amqp"
	"receipts/internal/category"
	"receipts/internal/config"
	"receipts/internal/handler"
	"receipts/internal/images"
	"receipts/internal/nlp"
	"receipts/internal/query"
	"receipts/internal/services"
	"receipts/internal/storage"
)

// App bundles the wired components behind the commands. It is built once
// per invocation and closed when the command finishes.
type App struct {
	Config      *config.Config
	Store       *storage.SQLiteRepository
	Service     *services.ReceiptService
	Handler     *handler.Handler
	Engine      *query.Engine
	Interpreter *nlp.Interpreter
}

// BuildApp wires storage, image store, classifier and the optional AMQP
// publisher from configuration. A broker that is configured but down does
// not block local use; events are skipped with a warning.
func BuildApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open receipt store: %w", err)
	}

	imgs, err := images.NewStore(cfg.ImageDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open image store: %w", err)
	}

	var events services.EventPublisher
	if cfg.EventsEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPIngestQueue, cfg.AMQPEventsQueue)
		if err != nil {
			slog.Warn("AMQP unavailable, continuing without events", "error", err)
		} else {
			events = client
		}
	}

	svc := services.NewReceiptService(store, imgs, category.NewClassifier(category.DefaultRules()), events, cfg.HomeCurrency)

	return &App{
		Config:      cfg,
		Store:       store,
		Service:     svc,
		Handler:     handler.NewHandler(svc),
		Engine:      query.NewEngine(store),
		Interpreter: nlp.NewInterpreter(nlp.DefaultVocabulary()),
	}, nil
}

func (a *App) Close() {
	if err := a.Service.Close(); err != nil {
		slog.Error("Failed to close service", "error", err)
	}
}

// NewRootCmd builds the receipts command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "receipts",
		Short:         "Local-first receipt archive",
		Long:          "Archive receipts locally and query them by vendor, category, month or free text.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newInitCmd(),
		newAddCmd(),
		newShowCmd(),
		newSearchCmd(),
		newListCmd(),
		newSummaryCmd(),
		newNLPCmd(),
		newDeleteCmd(),
		newHandleCmd(),
		newServeCmd(),
	)

	return root
}
