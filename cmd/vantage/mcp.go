package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vantage-tools/vantage/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the stdio tool server",
		Long:  "Speaks JSON-RPC 2.0 over stdin/stdout, exposing the stored logs as callable tools for an AI assistant client. Intended to be spawned by the client, not run interactively.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Vantage config file")
	return cmd
}

func runMCP(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	st, _, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcp.NewServer(mcp.NewAdapter(st), os.Stdin, os.Stdout)
	return srv.Run(ctx)
}
