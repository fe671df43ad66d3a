// Package server initializes and runs the transfer server. It opens the
// database, runs migrations, wires the object store and services, and
// starts the HTTP endpoint with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/secureshare/secureshare/internal/logging"
	"github.com/secureshare/secureshare/internal/server/blob"
	"github.com/secureshare/secureshare/internal/server/config"
	"github.com/secureshare/secureshare/internal/server/httpapi"
	"github.com/secureshare/secureshare/internal/server/repositories/repomanager"
	"github.com/secureshare/secureshare/internal/server/services"
)

type App struct {
	config          *config.Config
	logger          logging.Logger
	db              *sql.DB
	transferService *services.TransferService
	downloadService *services.DownloadService
	paymentService  *services.PaymentService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := blob.NewS3Store(ctx, blob.S3Config{
		User:         c.S3User,
		Password:     c.S3Password,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	ts := services.NewTransferService(db, rm, blobs, logger, c.RetentionPeriod, c.Currency)
	ds := services.NewDownloadService(db, rm, blobs, logger)
	ps := services.NewPaymentService(db, rm, logger)

	return &App{
		config:          c,
		logger:          logger,
		db:              db,
		transferService: ts,
		downloadService: ds,
		paymentService:  ps,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewServer(app.config.EndpointAddr, app.logger,
		app.transferService, app.downloadService, app.paymentService,
		app.config.SecretKey, app.config.MaxUploadBytes)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
