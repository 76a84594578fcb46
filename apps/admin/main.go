package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
	logsvc "github.com/trezcool/certstudio/services/logger"
	rastersvc "github.com/trezcool/certstudio/services/raster"
	blobstore "github.com/trezcool/certstudio/storage/blob"
	"github.com/trezcool/certstudio/storage/cache"
	"github.com/trezcool/certstudio/storage/database"
	inmemdb "github.com/trezcool/certstudio/storage/database/inmem"
	sqlxrepos "github.com/trezcool/certstudio/storage/database/sqlx"
)

func main() {
	cli, cleanup, err := setUp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}

	err = newRootCommand(cli).Execute()
	cleanup()
	if err != nil {
		os.Exit(1)
	}
}

func setUp() (*commandLine, func(), error) {
	conf, err := core.LoadConfig()
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading config")
	}
	logger := logsvc.New(log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	var db *sqlx.DB
	var repo certificate.Repository
	if conf.Database.Engine == database.EngineMemory {
		repo = inmemdb.NewDesignRepository(inmemdb.Open())
	} else {
		if db, err = database.Open(conf); err != nil {
			return nil, nil, errors.Wrap(err, "opening database")
		}
		repo = sqlxrepos.NewDesignRepository(db)
	}

	blobs, err := blobstore.NewLocalStoreFromConfig(conf)
	if err != nil {
		return nil, nil, err
	}
	rasterCache, closeCache, err := cache.New(conf)
	if err != nil {
		return nil, nil, err
	}
	rasterizer := rastersvc.NewRasterizer(conf, rastersvc.NewDefaultLoader(conf), logger)

	cli := &commandLine{
		conf:     conf,
		db:       db,
		designs:  certificate.NewService(repo, blobs, nil /* no emails from the CLI */, logger, conf.FrontendBaseURL),
		exporter: certificate.NewExporter(rasterizer, rasterCache, conf.Export.Ratio, logger),
	}
	cleanup := func() {
		rasterizer.Close()
		_ = closeCache()
		if db != nil {
			_ = db.Close()
		}
	}
	return cli, cleanup, nil
}

// stdoutIsTerminal is mockable.
var stdoutIsTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(int(f.Fd()))
}
