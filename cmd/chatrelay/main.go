// Command chatrelay runs the chat relay as a local HTTP server, for
// development and for deployments outside Lambda.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teilomillet/chatrelay/config"
	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/server"
	"github.com/teilomillet/chatrelay/server/handlers"
	"github.com/teilomillet/chatrelay/server/metrics"
	"github.com/teilomillet/chatrelay/server/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configFile = flag.String("config", "", "Path to configuration file (reloaded on change); empty uses the environment only")
	validate   = flag.Bool("validate", false, "Validate configuration and exit")
	version    = flag.Bool("version", false, "Print version and exit")
)

const Version = "v0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("chatrelay %s\n", Version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *validate {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Critical error: Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	errors.SetLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("Starting chatrelay",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("generation_url", cfg.Generation.BaseURL),
	)
	if err := run(ctx, cfg, *configFile, logger); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv(os.LookupEnv)
	}
	return config.LoadFile(path)
}

// run serves until ctx is done. When path is set the file is watched and
// generation settings are swapped in as it changes.
func run(ctx context.Context, cfg *config.Config, path string, logger *zap.Logger) error {
	m := metrics.NewMetrics()
	chat := handlers.NewChatHandler(cfg.Generation, logger, m)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, m)
	srv := server.NewServer(cfg.Server, server.NewRouter(chat, m, limiter, logger), logger)

	var watcher config.Watcher
	if path != "" {
		cw, err := config.NewConfigWatcher(path, logger)
		if err != nil {
			return err
		}
		defer cw.Close()
		watcher = cw
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if watcher != nil {
		g.Go(func() error {
			return server.WatchConfig(gctx, watcher, chat, logger)
		})
	}

	return g.Wait()
}
