package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/config"
)

func runInit(args []string) error {
	fs := newFlagSet("init", "[flags]")
	configPath := fs.String("config", "", "Path of the file to write (default: "+config.GetDefaultConfigPath()+")")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *configPath
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

// loadConfig loads the configuration and applies its logging section.
func loadConfig(path string) (*config.Config, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	closer, err := config.ConfigureLogging(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, func() { _ = closer.Close() }, nil
}

func runServe(args []string) error {
	fs := newFlagSet("serve", "[flags]")
	configPath := fs.String("config", "", "Path to the configuration file")
	port := fs.Int("port", 0, "Override api.port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, closeLog, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer closeLog()
	if *port != 0 {
		cfg.API.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("DittoVault %s starting", version)
	logger.Info("Metadata store: %s, content store: %s (compression=%s)",
		cfg.Metadata.Type, cfg.Content.Type, cfg.Content.Compression)

	vault, err := config.InitializeVault(ctx, cfg)
	if err != nil {
		return err
	}

	// Only the log level is applied live; everything else needs a restart
	if *configPath != "" || config.ConfigExists() {
		path := *configPath
		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		if err := config.Watch(path, func(next *config.Config) {
			logger.SetLevel(next.Logging.Level)
		}); err != nil {
			logger.Warn("Configuration reload disabled: %v", err)
		}
	}

	vault.Collector.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return vault.API.Start(gctx)
	})
	if vault.Metrics.Server != nil {
		g.Go(func() error {
			return vault.Metrics.Server.Start(gctx)
		})
	}

	serveErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	if err := vault.Close(shutdownCtx); err != nil {
		logger.Error("Shutdown error: %v", err)
	}

	if serveErr != nil {
		return serveErr
	}
	logger.Info("DittoVault stopped")
	return nil
}

func runGC(args []string) error {
	fs := newFlagSet("gc", "[flags]")
	configPath := fs.String("config", "", "Path to the configuration file")
	dryRun := fs.Bool("dry-run", false, "Report reclaimable chunks without deleting them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, closeLog, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg.GC.DryRun = cfg.GC.DryRun || *dryRun
	cfg.Metrics.Enabled = false

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vault, err := config.InitializeVault(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = vault.Close(closeCtx)
	}()

	stats, err := vault.Collector.RunNow(ctx)
	if err != nil {
		return err
	}
	fmt.Println(stats.Summary())
	return nil
}
