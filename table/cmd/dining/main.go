//go:build !solution

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/OIS202/COMP346A3-Dining-Philosophers/table"
)

type options struct {
	configPath  string
	metricsAddr string
	logLevel    string
	cfg         table.Config
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	def := table.DefaultConfig()

	fs.StringVar(&o.configPath, "config", "", "путь к .yaml конфигу сессии")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "адрес для /metrics и /snapshot; пусто - не поднимать сервер")
	fs.StringVar(&o.logLevel, "log-level", "info", "уровень логирования")

	fs.IntVarP(&o.cfg.Philosophers, "philosophers", "n", def.Philosophers, "number of philosophers")
	fs.IntVarP(&o.cfg.Rounds, "rounds", "r", def.Rounds, "meals per philosopher")
	fs.DurationVar(&o.cfg.ThinkTime, "think", def.ThinkTime, "think time per round")
	fs.DurationVar(&o.cfg.EatTime, "eat", def.EatTime, "eat time per round")
	fs.DurationVar(&o.cfg.TalkTime, "talk", def.TalkTime, "talk time")
	fs.Float64Var(&o.cfg.TalkChance, "talk-chance", def.TalkChance, "probability to talk after a meal")
	fs.Int64Var(&o.cfg.Seed, "seed", def.Seed, "random seed")
	fs.BoolVar(&o.cfg.Verify, "verify", def.Verify, "audit mutual exclusion while eating")
}

// resolveConfig loads the config file, if any, and applies explicitly set flags on top.
func resolveConfig(fs *pflag.FlagSet, o *options) (table.Config, error) {
	if o.configPath == "" {
		return o.cfg, o.cfg.Validate()
	}

	cfg, err := table.LoadConfig(o.configPath)
	if err != nil {
		return table.Config{}, err
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "philosophers":
			cfg.Philosophers = o.cfg.Philosophers
		case "rounds":
			cfg.Rounds = o.cfg.Rounds
		case "think":
			cfg.ThinkTime = o.cfg.ThinkTime
		case "eat":
			cfg.EatTime = o.cfg.EatTime
		case "talk":
			cfg.TalkTime = o.cfg.TalkTime
		case "talk-chance":
			cfg.TalkChance = o.cfg.TalkChance
		case "seed":
			cfg.Seed = o.cfg.Seed
		case "verify":
			cfg.Verify = o.cfg.Verify
		}
	})
	return cfg, cfg.Validate()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:           "dining",
		Short:         "Run a dining philosophers session",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), o)
			if err != nil {
				return err
			}

			logger, err := newLogger(o.logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return run(cmd.Context(), cfg, o.metricsAddr, logger)
		},
	}
	bindFlags(cmd.Flags(), o)
	return cmd
}

func run(ctx context.Context, cfg table.Config, metricsAddr string, logger *zap.Logger) error {
	metrics := table.NewMetrics()
	tbl, err := table.New(cfg, table.WithLogger(logger), table.WithMetrics(metrics))
	if err != nil {
		return err
	}

	var probe *probeServer
	if metricsAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		router := newRouter(logger.Named("http"), tbl.Monitor(), metrics)
		probe = startProbeServer(metricsAddr, router, logger.Named("http"))
	}

	stats, err := tbl.Run()
	if err != nil {
		return err
	}
	for i := range stats.Meals {
		fmt.Printf("philosopher %d: meals=%d talks=%d waited=%s\n",
			i+1, stats.Meals[i], stats.Talks[i], stats.Waited[i])
	}

	if probe == nil {
		return nil
	}
	// Сессия закончилась, но метрики остаются доступны до сигнала
	logger.Info("session finished, serving probes until interrupted")
	return probe.shutdown(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
