package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/certstudio/apps/api/echo"
	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
	appfs "github.com/trezcool/certstudio/fs"
	emailsvc "github.com/trezcool/certstudio/services/email"
	logsvc "github.com/trezcool/certstudio/services/logger"
	rastersvc "github.com/trezcool/certstudio/services/raster"
	blobstore "github.com/trezcool/certstudio/storage/blob"
	"github.com/trezcool/certstudio/storage/cache"
	"github.com/trezcool/certstudio/storage/database"
	inmemdb "github.com/trezcool/certstudio/storage/database/inmem"
	sqlxrepos "github.com/trezcool/certstudio/storage/database/sqlx"
)

const shutdownTimeout = 20 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.LoadConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	logger := logsvc.New(log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	dbLogger := logsvc.New(log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	defer func() {
		if l, ok := logger.(*logsvc.RollbarLogger); ok {
			l.Close()
		}
	}()

	// set up DB
	repo, closeDB, err := setUpRepository(conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if err := closeDB(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	blobs, err := blobstore.NewLocalStoreFromConfig(conf)
	if err != nil {
		return errors.Wrap(err, "setting up artifact storage")
	}
	rasterCache, closeCache, err := cache.New(conf)
	if err != nil {
		return errors.Wrap(err, "setting up export cache")
	}
	defer func() { _ = closeCache() }()

	// set up services
	templates := core.NewMailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.Debug)
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, templates, os.Stdout, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, templates, logger)
	}
	designs := certificate.NewService(repo, blobs, mailSvc, logger, conf.FrontendBaseURL)

	loader := rastersvc.NewDefaultLoader(conf)
	rasterizer := rastersvc.NewRasterizer(conf, loader, logger)
	defer rasterizer.Close()
	exporter := certificate.NewExporter(rasterizer, rasterCache, conf.Export.Ratio, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	certificate.InitValidators(validate, translator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := echoapi.NewSessionRegistry(0, logger)
	defer sessions.Close()
	go sessions.Run(ctx)

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Designs:    designs,
		Sessions:   sessions,
		Session: certificate.SessionOptions{
			Loader:       loader,
			Exporter:     exporter,
			Gateway:      designs,
			Logger:       logger,
			HistoryLimit: conf.History.Limit,
		},
	}, func() { shutdown <- syscall.SIGTERM })

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening on " + conf.Server.Address)
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server error")

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}
	return nil
}

// setUpRepository opens the configured database and brings its schema up to date.
func setUpRepository(conf *core.Config) (certificate.Repository, func() error, error) {
	if conf.Database.Engine == database.EngineMemory {
		return inmemdb.NewDesignRepository(inmemdb.Open()), func() error { return nil }, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return sqlxrepos.NewDesignRepository(db), db.Close, nil
}

func migrate(db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return database.Migrate(ctx, db, "up")
}
