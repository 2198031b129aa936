package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peerscan/adapters/db"
	"peerscan/adapters/excel"
	"peerscan/app"
	"peerscan/internal"
	"peerscan/internal/api"
	"peerscan/internal/config"
	"peerscan/internal/errors"
	"peerscan/internal/migration"
	"peerscan/internal/worker"
	"peerscan/ports"
	"peerscan/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// initDatabase opens the run store and applies the schema
func initDatabase(ctx context.Context, appConfig *config.Config) (*sqlx.DB, error) {
	conn, err := db.Connect(ctx, appConfig.Database.Driver, appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, conn); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}

	return conn, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, ok := internal.ParseLogLevel(appConfig.LogLevel)
	if !ok {
		log.Printf("Unknown LOG_LEVEL %q, using INFO", appConfig.LogLevel)
	}
	logger := internal.NewLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runs ports.RunRepository
	if appConfig.Database.Enabled() {
		conn, err := initDatabase(ctx, appConfig)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer conn.Close()
		runs = db.NewRunRepository(conn)
		logger.Info("run history stored via %s", appConfig.Database.Driver)
	} else {
		logger.Info("DATABASE_URL not set, runs are not stored")
	}

	w := worker.NewDefault(appConfig.Worker.MaxRequestRows, logger)
	service := app.NewUnusualCaseService(w, appConfig.Worker.MaxConcurrentRuns, runs, excel.NewExporter(), logger)

	uiApp, err := ui.NewApp(service, ui.Config{}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize UI: %v", err)
	}

	servers := []*http.Server{
		{Addr: ":" + appConfig.Server.Port, Handler: api.NewRouter(api.NewHandler(service, logger), appConfig.Server.GinMode)},
		{Addr: ":" + appConfig.Server.UIPort, Handler: uiApp},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown %s: %v", srv.Addr, err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	logger.Info("stopped")
}
