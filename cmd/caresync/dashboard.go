package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avellora/caresync/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Start the local web dashboard",
		Long:  "Launches a local web view of conversations and upcoming appointments with live updates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, configPath, host, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "address to bind")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	return cmd
}

func runDashboard(cmd *cobra.Command, configPath, host string, port int) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:   gormDB,
		Host: host,
		Port: port,
		Out:  cmd.OutOrStdout(),
	})
}
