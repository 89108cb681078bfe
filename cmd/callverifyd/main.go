package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	callverify "github.com/goliatone/go-callverify"
	"github.com/goliatone/go-callverify/adapters/zerologger"
	"github.com/goliatone/go-callverify/config"
	"github.com/goliatone/go-callverify/core"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML config file")
	envFiles := flag.String("env", ".env", "Comma separated dotenv files")
	logLevel := flag.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	console := flag.Bool("console", false, "Human readable log output")
	flag.Parse()

	level := zerologger.ParseLevel(*logLevel)
	logger := zerologger.NewJSON(os.Stdout, "callverify", level)
	if *console {
		logger = zerologger.NewConsole(os.Stdout, "callverify", level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, splitList(*envFiles)); err != nil {
		logger.Error("callverifyd stopped", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zerologger.Logger, configPath string, envFiles []string) error {
	loader := config.NewLoader(configPath, envFiles...)
	cfg, err := core.ResolveConfig(ctx, core.Config{}, core.NewCfgxConfigProvider(loader), nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := []callverify.FacadeOption{
		callverify.WithLoggerProvider(zerologger.NewProvider(logger)),
	}

	if cfg.Database.Enabled() {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		storeOpts, err := db.facadeOptions(cfg.Webhook.DedupeTTL)
		if err != nil {
			return err
		}
		opts = append(opts, storeOpts...)
		logger.Info("call archive enabled", "driver", cfg.Database.Driver)
	}

	facade, err := callverify.NewFacade(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer facade.Close()

	connectors := facade.Connectors()
	logger.Info("callverifyd listening",
		"addr", cfg.HTTP.Addr,
		"hubspot", connectors.HubSpot != nil,
		"sheets", connectors.Sheets != nil,
		"livekit", connectors.Rooms != nil,
	)
	if strings.TrimSpace(cfg.Webhook.Secret) == "" {
		logger.Warn("webhook secret is empty, signatures are not checked")
	}
	return facade.Run(ctx)
}

func splitList(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
