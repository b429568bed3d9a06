package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chirpnet/chirp/pkg/appserver"
	"github.com/chirpnet/chirp/pkg/broker"
	"github.com/chirpnet/chirp/pkg/config"
	"github.com/chirpnet/chirp/pkg/datastore"
	"github.com/chirpnet/chirp/pkg/log"
	"github.com/chirpnet/chirp/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chirp",
	Short: "Chirp - distributed social messaging service",
	Long: `Chirp is a small distributed social-messaging service: clients
publish timeline posts, follow other users, exchange private messages
and receive real-time notifications, backed by a broker that
load-balances requests across a dynamic set of app servers.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Chirp version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")

	// Initialize logging before command execution
	cobra.OnInitialize(initLogging)

	// Add subcommands
	rootCmd.AddCommand(datastoreCmd)
	rootCmd.AddCommand(brokerCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level: logLevel,
		JSON:  logJSON,
	})
}

func loadConfig() (*config.Config, error) {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	return config.Load(path)
}

// waitForInterrupt blocks until SIGINT or SIGTERM.
func waitForInterrupt() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\nShutting down...")
}

var datastoreCmd = &cobra.Command{
	Use:   "datastore",
	Short: "Run the central data store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		srv := datastore.NewServer(cfg.Endpoints.DataStore, datastore.NewStore())
		if err := srv.Start(); err != nil {
			return err
		}

		fmt.Printf("Data store running on %s. Press Ctrl+C to stop.\n", cfg.Endpoints.DataStore)
		waitForInterrupt()
		srv.Stop()
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Run the broker (load balancer and control plane)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		b := broker.New(cfg)
		if err := b.Start(); err != nil {
			return err
		}

		if cfg.MetricsAddr != "" {
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
					log.Errorf("Metrics server failed", err)
				}
			}()
			fmt.Printf("Metrics on http://%s/metrics\n", cfg.MetricsAddr)
		}

		fmt.Printf("Broker running: frontend %s, backend %s, control %s, notify %s, heartbeats %s\n",
			cfg.Endpoints.Frontend, cfg.Endpoints.Backend, cfg.Endpoints.Control,
			cfg.Endpoints.Notify, cfg.Endpoints.Heartbeat)
		fmt.Println("Press Ctrl+C to stop.")
		waitForInterrupt()
		b.Stop()
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run one app server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := appserver.NewStoreClient(context.Background(), cfg.Endpoints.DataStore, cfg.RequestTimeout.Std())
		control := appserver.NewControlClient(context.Background(), cfg.Endpoints.Control, cfg.RequestTimeout.Std())
		srv := appserver.New(cfg, store, control)
		if err := srv.Start(); err != nil {
			return err
		}

		fmt.Printf("App server %d running. Press Ctrl+C to stop.\n", srv.ID())
		waitForInterrupt()
		srv.Stop()
		store.Close()
		control.Close()
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Run the interactive end-user client",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runClientMenu(cfg)
	},
}
