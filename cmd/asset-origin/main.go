package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	assetorigin "github.com/asset-origin/asset-origin"
	"github.com/asset-origin/asset-origin/blob"
	"github.com/asset-origin/asset-origin/cdn"
	"github.com/asset-origin/asset-origin/registry"
	"github.com/asset-origin/asset-origin/token"
)

var (
	// CLI flags
	configFlag         string
	listenFlag         string
	dbFilenameFlag     string
	blobDirFlag        string
	baseURLFlag        string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFlag, "config", "", "Configuration file (yaml)")
	flag.StringVar(&listenFlag, "listen", ":8080", "Address to listen on")
	flag.StringVar(&dbFilenameFlag, "db", "origin.db", "Metadata DB file name (use 'memory' for in-memory db)")
	flag.StringVar(&blobDirFlag, "blob-dir", "blobs", "Directory for content objects")
	flag.StringVar(&baseURLFlag, "base-url", "http://localhost:8080", "Externally visible base URL")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	// flags are the defaults, the config file overrides them
	fileConfig := assetorigin.FileConfig{
		Listen:        listenFlag,
		DBFile:        dbFilenameFlag,
		BlobDir:       blobDirFlag,
		PublicBaseURL: baseURLFlag,
	}
	if configFlag != "" {
		loaded, err := assetorigin.LoadConfig(configFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not load config file")
		}
		if loaded.Listen == "" {
			loaded.Listen = listenFlag
		}
		if loaded.DBFile == "" {
			loaded.DBFile = dbFilenameFlag
		}
		if loaded.BlobDir == "" {
			loaded.BlobDir = blobDirFlag
		}
		if loaded.PublicBaseURL == "" {
			loaded.PublicBaseURL = baseURLFlag
		}
		fileConfig = loaded
	}

	dbFilename := fileConfig.DBFile
	if dbFilename == "memory" {
		dbFilename = ""
	}
	repo, err := registry.NewSQLiteRepository(dbFilename)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open metadata database")
	}

	blobs, err := blob.NewDiskStore(fileConfig.BlobDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open blob store")
	}

	var purger cdn.Purger = cdn.NopPurger{}
	if fileConfig.Purge.Enabled {
		purger = &cdn.HTTPPurger{
			Endpoint: fileConfig.Purge.Endpoint,
			APIToken: fileConfig.Purge.APIToken,
			Log:      log.Logger,
		}
	}

	origin := assetorigin.CreateOrigin(assetorigin.Config{
		Repository:               repo,
		Blobs:                    blobs,
		Purger:                   purger,
		Logger:                   &log.Logger,
		PublicBaseURL:            fileConfig.PublicBaseURL,
		DefaultTokenTTL:          time.Duration(fileConfig.DefaultTokenTTLSeconds) * time.Second,
		MaxUploadBytes:           fileConfig.MaxUploadBytes,
		AllowReplaceAfterPublish: fileConfig.AllowReplaceAfterPublish,
	})

	// sweep long-expired tokens in the background; validation never
	// depends on this
	sweeper := token.NewSweeper(origin.Tokens(), time.Hour, 24*time.Hour, log.Logger)
	go sweeper.Run(context.Background())

	log.Info().Msgf("Serving assets on %s (base URL '%s')", fileConfig.Listen, fileConfig.PublicBaseURL)
	if err := http.ListenAndServe(fileConfig.Listen, origin); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
