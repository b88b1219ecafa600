package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	cfgpkg "github.com/Trust-in-depth/BAYKUS/internal/config"
	"github.com/Trust-in-depth/BAYKUS/internal/metrics"
	"github.com/Trust-in-depth/BAYKUS/internal/runtime"
	httpserver "github.com/Trust-in-depth/BAYKUS/internal/server/http"
	pebblestore "github.com/Trust-in-depth/BAYKUS/internal/storage/pebble"
)

// Options configures a server run.
type Options struct {
	DataDir       string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// BuildLogger constructs the process logger from the configured level and
// format. Unknown levels fall back to info, unknown formats to JSON.
func BuildLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if format == "console" || format == "text" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers without
	// signal-aware contexts still shut down cleanly.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	if opts.HTTPAddr == "" {
		opts.HTTPAddr = opts.Config.HTTPAddr
	}

	logger := BuildLogger(opts.Config.LogLevel, opts.Config.LogFormat)

	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Logger:        logger,
		Metrics:       metrics.StorageHook{},
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info().
		Str("http", opts.HTTPAddr).
		Str("data_dir", opts.DataDir).
		Int("retention_limit", opts.Config.RetentionLimit).
		Dur("rate_limit_interval", opts.Config.RateLimitInterval()).
		Msg("starting baykus server")

	hsrv := httpserver.New(rt, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	<-sctx.Done()
	// Shut the server down before closing the runtime so in-flight handlers
	// never see a closed store.
	hsrv.Close()
	wg.Wait()
	return nil
}
