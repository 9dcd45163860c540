package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/systemstart/many-assets/pkg/api"
	"github.com/systemstart/many-assets/pkg/logging"
	"github.com/systemstart/many-assets/pkg/metrics"
	"github.com/systemstart/many-assets/pkg/observability"
	"github.com/systemstart/many-assets/pkg/processing"
	"github.com/systemstart/many-assets/pkg/runner"
)

var version = "dev"

const (
	_ = iota
	exitInvalidLogging
	exitDotenvError
	exitLoadConfigurationFailed
	exitLoadContextFailed
	exitSourceError
	exitFilesystemError
	exitToolErrors
	exitInterrupted
)

var cli struct {
	Config      string `short:"c" help:"many-assets.yaml to use (default: discovered from the working directory upwards)" type:"path"`
	ContextFile string `help:"YAML file with template data for html steps" type:"path"`
	LoggingType string `help:"logging type: json, text or tint" default:"tint" enum:"json,text,tint"`
	LogLevel    string `help:"logging level: debug, info, warn, error" default:"info"`

	Dev     struct{} `cmd:"" help:"Compile sources, serve them with live reload and rebuild on change"`
	Prod    struct{} `cmd:"" help:"Clean the output root and build optimized assets into it"`
	Version struct{} `cmd:"" help:"Print version and exit"`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("many-assets"),
		kong.Description("Front-end asset pipeline: dev server with live reload and production builds."),
		kong.UsageOnError(),
	)

	if kctx.Command() == "version" {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := logging.Initialize(cli.LoggingType, cli.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInvalidLogging)
	}

	includeEnv()

	cfg := loadConfig()
	templateData := loadTemplateData()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, "many-assets", version)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(reg)

	task := api.TaskProd
	if kctx.Command() == "dev" {
		task = api.TaskDev
	}

	err = processing.RunTask(ctx, cfg, task, processing.Options{
		TemplateData:   templateData,
		Recorder:       recorder,
		MetricsHandler: recorder.Handler(),
	})

	if err := shutdownTracing(context.Background()); err != nil {
		slog.Warn("flushing traces", "error", err)
	}

	code := exitCode(task, err)
	switch {
	case err == nil:
		slog.Info("done", "task", task)
	case code == 0:
		slog.Info("interrupted", "task", task)
	case errors.Is(err, context.Canceled):
		slog.Error("task interrupted before finishing", "task", task, "error", err)
	default:
		slog.Error("task failed", "task", task, "error", err)
	}
	if code != 0 {
		stop()
		os.Exit(code)
	}
}

// exitCode maps the result of a task run to the process exit status.
// Interrupting dev is its normal way to stop; an interrupted prod run has
// left an incomplete output tree and fails.
func exitCode(task string, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		if task == api.TaskDev {
			return 0
		}
		return exitInterrupted
	}
	switch runner.Classify(err) {
	case runner.KindSource:
		return exitSourceError
	case runner.KindFilesystem:
		return exitFilesystemError
	default:
		return exitToolErrors
	}
}

func loadConfig() *api.Config {
	wd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to determine working directory", "error", err)
		os.Exit(exitLoadConfigurationFailed)
	}

	cfg, err := processing.LoadConfig(cli.Config, wd)
	if err != nil {
		slog.Error("failed to load configuration", "filename", cli.Config, "error", err)
		os.Exit(exitLoadConfigurationFailed)
	}

	if cfg.FilePath != "" {
		slog.Info("using configuration", "filename", cfg.FilePath)
	} else {
		slog.Info("no configuration file found, using defaults", "dir", cfg.Dir)
	}
	return cfg
}

func loadTemplateData() map[string]any {
	if cli.ContextFile == "" {
		return nil
	}

	data, err := processing.LoadContextFile(cli.ContextFile)
	if err != nil {
		slog.Error("failed to load context file", "filename", cli.ContextFile, "error", err)
		os.Exit(exitLoadContextFailed)
	}
	return data
}

func includeEnv() {
	err := godotenv.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to load .env", "error", err)
			os.Exit(exitDotenvError)
		}
		slog.Debug("no .env file found")
	} else {
		slog.Info("using .env file")
	}
}
