// Package server initializes and runs the account backend. It connects the
// document store, wires the account service with its mail collaborator, handles
// graceful shutdown, and starts the HTTP server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/winds-n/member-api/internal/logging"
	"github.com/winds-n/member-api/internal/server/accounts"
	"github.com/winds-n/member-api/internal/server/config"
	"github.com/winds-n/member-api/internal/server/httpapi"
	"github.com/winds-n/member-api/internal/server/mail"

	"go.mongodb.org/mongo-driver/mongo"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	mongoClient *mongo.Client
	server      *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	client, err := accounts.NewMongoClient(ctx, cfg.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repo := accounts.NewMongoRepository(client, cfg.MongoDatabase)
	mailer := mail.NewSMTPSender(cfg, logger)
	svc := accounts.NewService(repo, mailer, cfg, logger)
	srv := httpapi.NewServer(svc, cfg, logger)

	return &App{config: cfg, logger: logger, mongoClient: client, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.mongoClient.Disconnect(context.Background()); err != nil {
		app.logger.Error(ctx, "disconnecting from store", "err", err)
	}
}
