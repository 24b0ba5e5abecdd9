// govcore runs the agent trust and promotion governance engine.
//
// Usage:
//
//	govcore serve                          # Run the engine daemon
//	govcore check <agent-id> <pkg> <ver>   # One-shot permission check
//	govcore audit <agent-id>               # Print an agent's audit trail
//	govcore readiness <agent-id> <tier>    # Evaluate promotion readiness
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/agentmesh/govcore/govengine/cache"
	"github.com/agentmesh/govcore/govengine/config"
	"github.com/agentmesh/govcore/govengine/graduation"
	"github.com/agentmesh/govcore/govengine/logging"
	"github.com/agentmesh/govcore/govengine/monitor"
	"github.com/agentmesh/govcore/govengine/observability"
	"github.com/agentmesh/govcore/govengine/permission"
	"github.com/agentmesh/govcore/govengine/storage"
	"github.com/agentmesh/govcore/govengine/trust"
)

// envConfig is the process-level configuration, read from the
// environment.
type envConfig struct {
	DBPath       string `env:"GOVCORE_DB_PATH" envDefault:"govcore.db"`
	MetricsAddr  string `env:"GOVCORE_METRICS_ADDR" envDefault:":9464"`
	OTLPEndpoint string `env:"GOVCORE_OTLP_ENDPOINT"`
	CriteriaFile string `env:"GOVCORE_CRITERIA_FILE"`
	LogLevel     string `env:"GOVCORE_LOG_LEVEL" envDefault:"info"`
	PollSeconds  int    `env:"GOVCORE_MONITOR_POLL_SECONDS" envDefault:"60"`
}

func main() {
	root := &cobra.Command{
		Use:           "govcore",
		Short:         "Agent trust and promotion governance engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), checkCmd(), auditCmd(), readinessCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads env config, opens storage, and builds a logger. The
// caller owns the returned store.
func bootstrap() (*envConfig, *storage.Store, logging.Logger, error) {
	cfg := &envConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("parse environment: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return cfg, store, logger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the governance engine daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, store, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer store.Close()

			engCfg := config.DefaultEngineConfig()
			engCfg.MonitorPollSeconds = cfg.PollSeconds
			engCfg.LogLevel = cfg.LogLevel
			if err := engCfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.OTLPEndpoint != "" {
				shutdown, err := observability.InitTracer("govcore", cfg.OTLPEndpoint)
				if err != nil {
					logger.Warn("tracing_init_failed", "error", err)
				} else {
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						defer cancel()
						_ = shutdown(shutdownCtx)
					}()
				}
			}

			evaluator := monitor.NewEvaluator(
				monitor.NewCounterSource(),
				monitor.NewCounterSource(),
				monitor.NewRollingStats(time.Duration(engCfg.RollingWindowSeconds)*time.Second),
				store,
				logger.Bind("component", "monitor"),
			)

			metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux()}
			go func() {
				logger.Info("metrics_listening", "addr", cfg.MetricsAddr)
				if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics_server_failed", "error", err)
				}
			}()

			logger.Info("govcore_ready", "db_path", cfg.DBPath, "poll_seconds", engCfg.MonitorPollSeconds)
			runMonitorLoop(ctx, store, evaluator, time.Duration(engCfg.MonitorPollSeconds)*time.Second, logger)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
			logger.Info("govcore_stopped")
			return nil
		},
	}
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// runMonitorLoop sweeps enabled condition monitors on a fixed interval
// until the context is cancelled.
func runMonitorLoop(ctx context.Context, monitors storage.MonitorStore, evaluator *monitor.Evaluator, interval time.Duration, logger logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			defs, err := monitors.ListMonitors(ctx, true)
			if err != nil {
				logger.Error("monitor_list_failed", "error", err)
				continue
			}
			for _, def := range defs {
				result := evaluator.Check(ctx, def)
				if result.Triggered {
					logger.Info("monitor_triggered",
						"monitor_id", def.ID,
						"monitor_name", def.Name,
						"agent_id", def.AgentID,
						"value", result.Value)
				}
			}
		}
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <agent-id> <package> <version>",
		Short: "Check whether an agent may run a package version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer store.Close()

			engCfg := config.DefaultEngineConfig()
			engine := permission.NewEngine(store, store, cache.New(engCfg.CacheMaxEntries), logger)
			decision := engine.Check(cmd.Context(), args[0], args[1], args[2])
			return printJSON(decision)
		},
	}
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <agent-id>",
		Short: "Print an agent's promotion audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer store.Close()

			mgr := graduation.NewPromotionManager(store, store, logger)
			trail, err := mgr.AuditTrail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(trail)
		},
	}
}

func readinessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "readiness <agent-id> <target-tier>",
		Short: "Evaluate an agent's readiness for promotion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer store.Close()

			target, err := trust.ParseMaturity(args[1])
			if err != nil {
				return err
			}

			var criteria storage.CriteriaStore = store
			if cfg.CriteriaFile != "" {
				table, err := config.LoadCriteriaTable(cfg.CriteriaFile)
				if err != nil {
					return err
				}
				criteria = table
			}

			engCfg := config.DefaultEngineConfig()
			eval := graduation.NewReadinessEvaluator(store, store, criteria, logger)
			report, err := eval.Evaluate(cmd.Context(), args[0], target,
				graduation.WithDefaultMinEpisodes(engCfg.DefaultMinEpisodes))
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
