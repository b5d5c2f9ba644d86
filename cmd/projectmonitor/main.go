package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"projectmonitor/internal/check"
	"projectmonitor/internal/config"
	"projectmonitor/internal/logging"
	"projectmonitor/internal/metrics"
	"projectmonitor/internal/monitor"
	"projectmonitor/internal/server"
	"projectmonitor/internal/storage"
	"projectmonitor/internal/token"
	"projectmonitor/internal/transport"
	"projectmonitor/internal/tree"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logging.Get().WithError(err).Error("projectmonitor failed")
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	addr        string
	monitorFile string
	autostart   bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "projectmonitor",
		Short: "Monitor the health of projects and their dependencies",
		Long: `projectmonitor periodically runs the HTTP health checks of a tree of
projects and streams a consolidated status overview to websocket clients.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to configuration file (YAML)")

	cmd.AddCommand(newServeCommand(opts), newOnceCommand(opts), newValidateCommand(opts))
	return cmd
}

func newServeCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the websocket gateway and REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "address for the web server (overrides listen_address)")
	cmd.Flags().StringVar(&opts.monitorFile, "monitor", "", "monitor config file (overrides monitor_file)")
	cmd.Flags().BoolVar(&opts.autostart, "autostart", false, "start the monitor config at boot")
	return cmd
}

func newOnceCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single round and print the status overview as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			monitorCfg, err := config.LoadMonitorFile(opts.monitorFile)
			if err != nil {
				return err
			}

			client := transport.NewClient(cfg.RequestTimeout())
			scheduler := monitor.New(check.NewExecutor(client, nil), token.NewProvider(client))
			overview := scheduler.RunOnce(cmd.Context(), monitorCfg)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(overview)
		},
	}
	cmd.Flags().StringVar(&opts.monitorFile, "monitor", "", "monitor config file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("monitor")
	return cmd
}

func newValidateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a monitor config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			monitorCfg, err := config.LoadMonitorFile(opts.monitorFile)
			if err != nil {
				return err
			}
			idx, err := tree.NewIndex(monitorCfg.Projects)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "monitor config is valid: %d project(s), %d health check(s), interval %ds\n",
				idx.Len(), idx.CheckCount(), monitorCfg.IntervalLength)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.monitorFile, "monitor", "", "monitor config file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("monitor")
	return cmd
}

func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.ListenAddress = opts.addr
	}
	if opts.monitorFile != "" {
		cfg.MonitorFile = opts.monitorFile
	}
	if opts.autostart {
		cfg.Autostart = true
	}
	log := logging.WithPrefix("main")

	collector := metrics.NewCollector()
	store := storage.NewSnapshotStore()
	client := transport.NewClient(cfg.RequestTimeout())
	scheduler := monitor.New(
		check.NewExecutor(client, collector),
		token.NewProvider(client),
		monitor.WithMinInterval(cfg.MinInterval()),
		monitor.WithRecorder(collector),
		monitor.WithListener(store.Observe),
	)
	defer scheduler.Stop()

	srv := server.New(cfg.ListenAddress, scheduler, store, collector)

	if cfg.Autostart {
		if cfg.MonitorFile == "" {
			return errors.New("autostart requires a monitor file")
		}
		monitorCfg, err := config.LoadMonitorFile(cfg.MonitorFile)
		if err != nil {
			return err
		}
		if _, _, err := srv.StartMonitor(monitorCfg); err != nil {
			return fmt.Errorf("autostart: %w", err)
		}
	}

	ctx := cmd.Context()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("server shutdown")
		}
	}()

	return srv.Run()
}
