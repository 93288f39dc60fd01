package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/supplychain-copilot/copilot/dashboard"
	"github.com/supplychain-copilot/copilot/dashboard/auth"
)

var addr string // Overrides server.addr

// serveCmd runs the web dashboard and its JSON API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard and JSON API",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := appConfig
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = addr
		}
		a, err := newApp(cfg)
		if err != nil {
			logrus.Fatalf("Failed to initialise: %v", err)
		}
		defer a.close()

		if dataPath != "" {
			if _, err := a.loadDataset(dataPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}

		var authSvc *auth.Service
		if a.store != nil {
			authSvc = auth.NewService(a.store)
		}
		srv, err := dashboard.New(cfg.Server, a.planner, a.copilot(), authSvc)
		if err != nil {
			logrus.Fatalf("Failed to build dashboard: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := srv.Run(ctx); err != nil {
			logrus.Fatalf("Dashboard stopped: %v", err)
		}
		logrus.Info("Dashboard stopped.")
	},
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&dataPath, "data", "", "Order CSV to preload")
}
