package main

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/xdrflow/internal/interceptor"
	"github.com/ajitpratap0/xdrflow/internal/pipeline"
	"github.com/ajitpratap0/xdrflow/pkg/config"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/logger"
	"github.com/ajitpratap0/xdrflow/pkg/mmap"
	"github.com/ajitpratap0/xdrflow/pkg/observability"
	"github.com/ajitpratap0/xdrflow/pkg/plan"
	"github.com/ajitpratap0/xdrflow/pkg/sql"
	"github.com/ajitpratap0/xdrflow/pkg/transport/kafka"
	"github.com/ajitpratap0/xdrflow/pkg/udf"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the interceptor pipeline",
		Long: `Run decodes records from the configured source, filters and projects
them with the configured SQL and writes encoded frames to the sink.

Settings come from the YAML file, then XDRFLOW_* environment variables,
then flags.

Example:
  xdrflow run --config xdr.yaml --workers 8 --sink-type file --sink-path out.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile, v)
			if err != nil {
				return err
			}
			return runPipeline(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to the YAML configuration file")
	flags.String("sql", "", "Filter and projection expression")
	flags.String("input-column-lengths", "", "Fixed or prefixed column layout, e.g. 2,1+[2]*N,4")
	flags.String("input-tlv-layout", "", "Tagged column layout, e.g. v1,tlv20,tlv21")
	flags.String("output-mode", "", "Frame encoding: text or binary")
	flags.Int("max-record-num", 0, "Rows per frame")
	flags.String("extra-header", "", "Headers added to every frame, e.g. topic=xdr,dc=east")
	flags.String("compression", "", "Frame compression: none, gzip, snappy, lz4, zstd or s2")
	flags.Int("workers", 0, "Number of interceptor workers")
	flags.Int("queue-size", 0, "Capacity of the record and frame queues")
	flags.String("source-type", "", "Record source: file or kafka")
	flags.String("source-path", "", "Input file for the file source")
	flags.String("framing", "", "Record framing for the file source: lv, fixed or line")
	flags.Int("record-size", 0, "Record size for fixed framing")
	flags.String("sink-type", "", "Frame sink: stdout, file or kafka")
	flags.String("sink-path", "", "Output file for the file sink")
	flags.StringSlice("brokers", nil, "Kafka brokers")
	flags.String("topic", "", "Kafka input topic")
	flags.String("group-id", "", "Kafka consumer group")
	flags.String("output-topic", "", "Kafka output topic")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("enable-metrics", false, "Serve Prometheus metrics")
	flags.String("metrics-address", "", "Metrics listen address")
	flags.Bool("enable-tracing", false, "Export OpenTelemetry spans")

	bindFlags(v, flags, map[string]string{
		"sql":                  "interceptor.sql",
		"input-column-lengths": "interceptor.input-column-lengths",
		"input-tlv-layout":     "interceptor.input-tlv-layout",
		"output-mode":          "interceptor.output-mode",
		"max-record-num":       "interceptor.max-record-num",
		"extra-header":         "interceptor.extra-header",
		"compression":          "interceptor.compression",
		"workers":              "pipeline.workers",
		"queue-size":           "pipeline.queue-size",
		"source-type":          "pipeline.source.type",
		"source-path":          "pipeline.source.path",
		"framing":              "pipeline.source.framing",
		"record-size":          "pipeline.source.record-size",
		"sink-type":            "pipeline.sink.type",
		"sink-path":            "pipeline.sink.path",
		"brokers":              "kafka.brokers",
		"topic":                "kafka.topic",
		"group-id":             "kafka.group-id",
		"output-topic":         "kafka.output-topic",
		"log-level":            "observability.logging.level",
		"enable-metrics":       "observability.metrics.enabled",
		"metrics-address":      "observability.metrics.address",
		"enable-tracing":       "observability.tracing.enabled",
	})
	return cmd
}

// loadConfig layers defaults, the optional file and overrides, then
// validates the result.
func loadConfig(path string, v *viper.Viper) (*config.Config, error) {
	cfg := config.NewConfig()
	if path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}
	cfg.ApplyOverrides(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPipeline(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	logCfg := cfg.Observability.Logging
	if err := logger.Init(logger.Config{
		Level:       logCfg.Level,
		Encoding:    logCfg.Encoding,
		Development: logCfg.Development,
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log := logger.With(
		zap.String("component", "xdrflow-cli"),
		zap.String("pipeline", cfg.Name),
		zap.String("source", cfg.Pipeline.Source.Type),
		zap.String("sink", cfg.Pipeline.Sink.Type),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithPipeline(ctx, cfg.Name)

	tracing := cfg.Observability.Tracing
	if tracing.ServiceName == "" {
		tracing.ServiceName = cfg.Name
	}
	tracing.ServiceVersion = version
	shutdown, err := observability.InitTracing(tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	if m := cfg.Observability.Metrics; m.Enabled {
		srv := serveMetrics(m, log)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	cache := plan.NewCache(sql.NewCompiler(udf.Default()),
		plan.WithLogger(log),
		plan.WithTracer(observability.Tracer("xdrflow/plan")),
	)
	builder, err := interceptor.NewBuilder(ctx, &cfg.Interceptor, cache)
	if err != nil {
		return err
	}

	source, err := newSource(cfg, log)
	if err != nil {
		return err
	}
	sink, err := newSink(cfg, stdout, log)
	if err != nil {
		_ = source.Close()
		return err
	}

	runner := pipeline.NewRunner(cfg.Name, source, sink, builder.Build,
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithQueueSize(cfg.Pipeline.QueueSize),
		pipeline.WithProgressInterval(cfg.Pipeline.ProgressInterval),
		pipeline.WithLogger(log),
		pipeline.WithTracer(observability.Tracer("xdrflow/pipeline")),
	)

	log.Info("starting pipeline",
		zap.String("layout", builder.Layout().String()),
		zap.Int("workers", cfg.Pipeline.Workers),
		zap.Int("max_record_num", cfg.Interceptor.MaxRecordNum))

	stats, err := runner.Run(ctx)
	if err != nil {
		return errors.Wrap(err, errors.GetType(err), "pipeline execution failed")
	}

	log.Info("pipeline completed successfully",
		zap.Duration("duration", stats.Duration),
		zap.Int64("records", stats.Records),
		zap.Int64("projected", stats.Projected),
		zap.Int64("filtered", stats.Filtered),
		zap.Int64("decode_errors", stats.DecodeErrors),
		zap.Int64("execute_errors", stats.ExecuteErrors),
		zap.Int64("frames", stats.Frames))
	return nil
}

func newSource(cfg *config.Config, log *zap.Logger) (pipeline.Source, error) {
	src := cfg.Pipeline.Source
	if src.Type == "kafka" {
		s, err := kafka.NewSource(cfg.Kafka, cfg.Pipeline.QueueSize, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return pipeline.NewFileSource(src.Path, mmap.Framing(src.Framing), src.RecordSize, cfg.Pipeline.QueueSize, log), nil
}

func newSink(cfg *config.Config, stdout io.Writer, log *zap.Logger) (pipeline.Sink, error) {
	switch cfg.Pipeline.Sink.Type {
	case "kafka":
		s, err := kafka.NewSink(cfg.Kafka, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "file":
		s, err := pipeline.NewFileSink(cfg.Pipeline.Sink.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return pipeline.NewWriterSink(stdout), nil
	}
}

func serveMetrics(cfg config.MetricsConfig, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("serving metrics", zap.String("address", cfg.Address), zap.String("path", cfg.Path))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
