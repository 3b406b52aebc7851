// Package main provides the entry point for clusterinspect.
//
// clusterinspect is an operator-facing diagnostic tool: it runs the
// topology manager against a configured seed list, using a simulated
// per-node pool in place of a production one, and reports what the
// manager discovers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/tokshard/clustermap-go/internal/buildinfo"
	"github.com/tokshard/clustermap-go/internal/cluster/manager"
	"github.com/tokshard/clustermap-go/internal/cluster/partition"
	"github.com/tokshard/clustermap-go/internal/config"
	"github.com/tokshard/clustermap-go/internal/shutdown"
	"github.com/tokshard/clustermap-go/internal/telemetry/logger"
	"github.com/tokshard/clustermap-go/internal/telemetry/metric"
	"github.com/tokshard/clustermap-go/natmap"
	"github.com/tokshard/clustermap-go/pool"
	"github.com/tokshard/clustermap-go/resolver"
	"github.com/tokshard/clustermap-go/subscribe"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "clusterinspect",
		Usage:   "inspect and monitor a cluster's slot topology",
		Version: buildinfo.String(),
		Commands: []*cli.Command{
			runCommand(),
			slotCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "bootstrap against the configured seeds and watch topology changes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a YAML config file"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "address to serve Prometheus metrics on", Value: ":9121"},
		},
		Action: func(c *cli.Context) error {
			return runInspect(c.String("config"), c.String("metrics-addr"))
		},
	}
}

func slotCommand() *cli.Command {
	return &cli.Command{
		Name:      "slot",
		Usage:     "print the hash slot a key maps to",
		ArgsUsage: "<key>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("slot requires exactly one key argument", 1)
			}
			m := manager.New(manager.DefaultConfig(), simulatedPoolFactory, subscribe.NoOp{}, resolver.NewNetResolver(nil))
			fmt.Println(m.CalcSlot([]byte(c.Args().First())))
			return nil
		},
	}
}

func simulatedPoolFactory(partition.NodeID) pool.Pool {
	return pool.NewSimulated()
}

func runInspect(configPath, metricsAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stdout})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	seeds, err := cfg.SeedAddresses()
	if err != nil {
		return fmt.Errorf("resolve seed addresses: %w", err)
	}

	var natMapper natmap.Mapper = natmap.Identity{}
	if len(cfg.NAT.Map) > 0 {
		table, err := cfg.NATTable()
		if err != nil {
			return fmt.Errorf("build nat table: %w", err)
		}
		natMapper = natmap.NewStatic(table)
	}

	tlsConfig, err := cfg.TLSConfig()
	if err != nil {
		return fmt.Errorf("build tls config: %w", err)
	}

	mgrCfg := manager.DefaultConfig()
	mgrCfg.SeedAddresses = seeds
	mgrCfg.ScanInterval = time.Duration(cfg.Manager.ScanIntervalMS) * time.Millisecond
	mgrCfg.DialTimeout = time.Duration(cfg.Manager.DialTimeoutMS) * time.Millisecond
	mgrCfg.CheckSlotsCoverage = cfg.Manager.CheckSlotsCoverage
	mgrCfg.CheckSkipSlavesInit = cfg.Manager.CheckSkipSlavesInit
	mgrCfg.NATMapper = natMapper
	mgrCfg.TLSConfig = tlsConfig

	metrics := metric.NewRegistry()

	mgr := manager.New(mgrCfg, simulatedPoolFactory, subscribe.NoOp{}, resolver.NewNetResolver(nil)).
		WithLogger(log).
		WithMetrics(metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}
	log.Info("manager started", "last_cluster_node", mgr.LastClusterNode())

	metricsServer := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
	go func() {
		log.Info("metrics server listening", "addr", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	shutdownHandler := shutdown.NewHandler(10 * time.Second)
	shutdownHandler.OnShutdown("metrics_server", func(ctx context.Context) error {
		log.Info("shutting down metrics server")
		return metricsServer.Shutdown(ctx)
	})
	shutdownHandler.OnShutdown("cluster_manager", func(ctx context.Context) error {
		log.Info("shutting down cluster manager")
		mgr.Shutdown()
		return nil
	})

	if configPath != "" {
		configWatcher, err := config.Watch(configPath, func(reloaded config.Config, err error) {
			if err != nil {
				log.Warn("config reload failed, keeping last known good log level", "error", err)
				return
			}
			logger.SetLevel(reloaded.Log.Level)
			log.Info("log level reloaded from config", "level", reloaded.Log.Level)
		})
		if err != nil {
			log.Warn("config hot-reload disabled", "error", err)
		} else {
			configWatcher.StartAsync()
			shutdownHandler.OnShutdown("config_watcher", func(ctx context.Context) error {
				return configWatcher.Stop()
			})
		}
	}

	log.Info("watching cluster topology, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("stopped gracefully")
	return nil
}
