package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-postfactum/infrastructure/cache"
	"github.com/ahrav/go-postfactum/infrastructure/metrics"
	"github.com/ahrav/go-postfactum/internal/application"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "postfactum",
		Short: "Post-factum analysis for TOPSIS rankings",
		Long: `postfactum answers "what would it take?" questions for TOPSIS rankings:
given an alternative's performances, the criteria weights and a desired
closeness coefficient, it finds the smallest change of the weighted
performances that reaches the target.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	pf.StringVar(&opts.logFormat, "log-format", "json", "log format: json or text")

	cmd.AddCommand(newSolveCmd(opts), newSweepCmd(opts), newServeCmd(opts))
	return cmd
}

// loadConfig reads --config, or returns the defaults when it is unset.
func (o *rootOptions) loadConfig() (application.Config, error) {
	if o.configPath == "" {
		return application.DefaultConfig(), nil
	}
	return application.LoadConfig(o.configPath)
}

// logger builds the structured logger that writes to w.
func (o *rootOptions) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", o.logLevel)
	}
	hopts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(o.logFormat) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q", o.logFormat)
	}
}

// app is everything a subcommand needs to run computations.
type app struct {
	cfg      application.Config
	logger   *slog.Logger
	engine   *application.Engine
	registry *prometheus.Registry
}

// newApp loads configuration, applies overrides and assembles the engine
// with its solver stack, cache and metrics.
func (o *rootOptions) newApp(cmd *cobra.Command, override func(*application.Config)) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(&cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logger, err := o.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewPrometheusMetrics(registry)

	opts := []application.EngineOption{
		application.WithLogger(logger),
		application.WithMetrics(collector),
	}
	if cfg.Cache.Enabled {
		lru, err := cache.NewLRUCache(cfg.Cache.Size)
		if err != nil {
			return nil, err
		}
		opts = append(opts, application.WithCache(lru))
	}

	stack := application.NewSolverStack(cfg, logger, collector)
	return &app{
		cfg:      cfg,
		logger:   logger,
		engine:   application.NewEngine(stack, cfg, opts...),
		registry: registry,
	}, nil
}
