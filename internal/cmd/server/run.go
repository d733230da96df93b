package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cfgpkg "github.com/Talhamuhammadali/event-driven-mircorservice/internal/config"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/producer"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/runtime"
	httpserver "github.com/Talhamuhammadali/event-driven-mircorservice/internal/server/http"
	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
	logpkg "github.com/Talhamuhammadali/event-driven-mircorservice/pkg/log"
)

// getenv is swapped out by tests.
var getenv = os.Getenv

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

type Options struct {
	DataDir       string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Run starts the worker pool and the HTTP gateway and blocks until ctx is
// cancelled, a termination signal arrives, or the server fails.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	// Container deployments tag each instance through the environment
	// rather than flags.
	if v := getenv("FEATURE_ID"); v != "" {
		opts.Config.FeatureID = v
	}

	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{DataDir: storeDir, Fsync: opts.Fsync, FsyncInterval: opts.FsyncInterval, Config: opts.Config})
	if err != nil {
		return err
	}
	defer rt.Close()

	logCfg := &logpkg.Config{
		Level:  getenvDefault("STREAMD_LOG_LEVEL", "info"),
		Format: getenvDefault("STREAMD_LOG_FORMAT", "text"),
	}
	procLogger, err := logpkg.ApplyConfig(logCfg)
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(logCfg.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	// Pebble and net/http log through the standard library.
	logpkg.RedirectStdLog(procLogger)

	procLogger.Info("streamd.starting",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("feature_id", opts.Config.FeatureID),
		logpkg.Str("namespace", opts.Config.Namespace),
		logpkg.Str("log_level", logCfg.Level),
		logpkg.Int("messages", opts.Config.Produce.MessageCount),
		logpkg.Int("workers", opts.Config.Queue.MaxConcurrent),
	)

	// Reclaim expired session logs in the background. The sweeper is
	// stopped by rt.Close.
	rt.StartExpirySweeper(opts.Config.Namespace, time.Second)

	pool := producer.NewPoolWithLogger(rt, procLogger.With(logpkg.Component("producer")))
	if err := pool.Start(); err != nil {
		return err
	}
	defer pool.Stop()

	// Serve until the signal context ends or the listener fails. Deferred
	// teardown stops the workers before the runtime closes underneath them.
	hsrv := httpserver.New(rt, procLogger)
	return hsrv.ListenAndServe(sctx, opts.HTTPAddr)
}
