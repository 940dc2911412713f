package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vantage-tools/vantage/internal/config"
	"github.com/vantage-tools/vantage/internal/maintenance"
	"github.com/vantage-tools/vantage/internal/models"
	"github.com/vantage-tools/vantage/internal/notify"
	"github.com/vantage-tools/vantage/internal/notify/discord"
	"github.com/vantage-tools/vantage/internal/notify/slack"
	"github.com/vantage-tools/vantage/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion and query server",
		Long:  "Starts the HTTP server that receives captured log batches from the browser extension and serves queries. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Vantage config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	st, gormDB, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var observer func([]models.LogRecord)
	if cfg.Notify.Platform != "" {
		watcher, closeAdapter, err := buildNotifier(ctx, cfg.Notify)
		if err != nil {
			return err
		}
		defer closeAdapter()
		observer = watcher.Observe
	}

	job, err := maintenance.NewJob(maintenance.Opts{Store: st, DB: gormDB, Driver: cfg.Storage.Driver})
	if err != nil {
		return err
	}
	stopJob, err := job.Schedule(cfg.Maintenance.Schedule)
	if err != nil {
		return err
	}
	defer stopJob()

	return server.Start(ctx, server.StartOpts{
		Store:    st,
		Port:     cfg.Server.Port,
		Out:      cmd.OutOrStdout(),
		Observer: observer,
	})
}

// buildNotifier creates and connects the configured chat adapter.
func buildNotifier(ctx context.Context, cfg config.NotifyConfig) (*notify.Watcher, func(), error) {
	var (
		adapter notify.Adapter
		err     error
	)
	switch cfg.Platform {
	case "slack":
		adapter, err = slack.New(slack.AdapterOpts{BotToken: cfg.Token, ChannelID: cfg.ChannelID})
	case "discord":
		adapter, err = discord.New(discord.AdapterOpts{BotToken: cfg.Token, ChannelID: cfg.ChannelID})
	default:
		return nil, nil, fmt.Errorf("unsupported notify platform %q", cfg.Platform)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := adapter.Connect(ctx); err != nil {
		return nil, nil, err
	}
	closeAdapter := func() {
		if err := adapter.Close(); err != nil {
			log.Printf("serve: close notifier: %v", err)
		}
	}
	return notify.NewWatcher(adapter, cfg.MinLevel), closeAdapter, nil
}
