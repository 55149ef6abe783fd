// Package main implements the leadflow command line tool.
//
// It runs the contact webhook server and imports or exports contacts as CSV
// against a NATS JetStream KV bucket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/arloliu/leadflow"
	"github.com/arloliu/leadflow/internal/logging"
	"github.com/arloliu/leadflow/internal/natsutil"
	"github.com/arloliu/leadflow/strategy"
)

var (
	// Global flags
	configPath string
	natsURL    string
	embedDir   string
	logLevel   string
	logFormat  string
	verbose    bool

	cfg    leadflow.Config
	logger logging.SyncLogger
)

var rootCmd = &cobra.Command{
	Use:   "leadflow",
	Short: "Sales CRM core on NATS JetStream",
	Long: `leadflow stores contacts, lists, agents and pipeline stages in a NATS
JetStream KV bucket and distributes new contacts to sales agents.

Commands:
  serve   - Run the contact webhook, stage move routes and the metrics endpoint
  import  - Import contacts from a CSV file
  export  - Export all contacts as CSV`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if verbose {
			level = "debug"
		}

		built, err := logging.New(logFormat, level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = built

		if configPath == "" {
			cfg = leadflow.DefaultConfig()
			return nil
		}
		cfg, err = leadflow.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", nats.DefaultURL, "NATS server URL")
	rootCmd.PersistentFlags().StringVar(&embedDir, "embedded-nats", "",
		"Run an in-process NATS server storing JetStream data in this directory (ignores --nats-url)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatJSON, "Log format (json, text)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Shorthand for --log-level=debug")

	rootCmd.AddCommand(serveCmd, importCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect returns a JetStream context for the configured NATS server, starting an
// embedded server first when --embedded-nats is set. The returned func closes both.
func connect() (jetstream.JetStream, func(), error) {
	url := natsURL
	var embedded *server.Server

	if embedDir != "" {
		ns, err := server.NewServer(&server.Options{
			Host:      "127.0.0.1",
			Port:      server.RANDOM_PORT,
			JetStream: true,
			StoreDir:  embedDir,
			NoLog:     true,
			NoSigs:    true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
		}
		go ns.Start()
		if !ns.ReadyForConnections(10 * time.Second) {
			ns.Shutdown()
			return nil, nil, errors.New("embedded NATS server not ready within timeout")
		}
		embedded = ns
		url = ns.ClientURL()
		logger.Info("embedded NATS server started", "url", url, "store_dir", embedDir)
	}

	nc, err := nats.Connect(url,
		nats.Name("leadflow"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", "error", err, "class", natsutil.Classify(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}

		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		if embedded != nil {
			embedded.Shutdown()
		}

		return nil, nil, fmt.Errorf("failed to get JetStream: %w", err)
	}

	return js, func() {
		nc.Close()
		if embedded != nil {
			embedded.Shutdown()
			embedded.WaitForShutdown()
		}
	}, nil
}

// startService connects to NATS and starts a Service. A nil collector disables metrics.
// The returned func stops the service and closes the connection.
func startService(ctx context.Context, collector leadflow.MetricsCollector) (*leadflow.Service, func(), error) {
	js, closeConn, err := connect()
	if err != nil {
		return nil, nil, err
	}

	opts := []leadflow.Option{leadflow.WithLogger(logger)}
	strategyOpts := []strategy.ProportionalOption{strategy.WithProportionalLogger(logger)}
	if collector != nil {
		opts = append(opts, leadflow.WithMetrics(collector))
		strategyOpts = append(strategyOpts, strategy.WithProportionalMetrics(collector))
	}

	svc, err := leadflow.NewService(&cfg, js, strategy.NewProportional(strategyOpts...), opts...)
	if err != nil {
		closeConn()
		return nil, nil, err
	}

	if err := svc.Start(ctx); err != nil {
		closeConn()
		if natsutil.IsConnectivityError(err) {
			return nil, nil, fmt.Errorf("NATS JetStream unreachable: %w", err)
		}

		return nil, nil, err
	}

	return svc, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			logger.Warn("service stop failed", "error", err)
		}
		closeConn()
	}, nil
}
