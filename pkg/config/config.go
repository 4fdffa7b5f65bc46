package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/xdrflow/pkg/compression"
	"github.com/ajitpratap0/xdrflow/pkg/encoder"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/layout"
	"github.com/ajitpratap0/xdrflow/pkg/observability"
	"github.com/ajitpratap0/xdrflow/pkg/plan"
)

// Config is the root configuration document.
type Config struct {
	// Name identifies the pipeline in logs and metrics
	Name string `yaml:"name" json:"name"`

	Interceptor   InterceptorConfig   `yaml:"interceptor" json:"interceptor"`
	Pipeline      PipelineConfig      `yaml:"pipeline" json:"pipeline"`
	Kafka         KafkaConfig         `yaml:"kafka" json:"kafka"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// InterceptorConfig configures the decode, execute and encode chain. Key
// names follow the deployment descriptors the interceptor has always used.
type InterceptorConfig struct {
	// SQL is the filter and projection expression
	SQL string `yaml:"sql" json:"sql"`

	// Exactly one input layout applies: fixed/prefixed widths, a tag
	// layout, or delimited text.
	InputColumnLengths   string `yaml:"input-column-lengths" json:"input-column-lengths"`
	InputTLVLayout       string `yaml:"input-tlv-layout" json:"input-tlv-layout"`
	InputColumnNum       int    `yaml:"input-column-num" json:"input-column-num"`
	InputColumnDelimiter string `yaml:"input-column-delimiter" json:"input-column-delimiter"`

	// ColumnNames renames the input columns; empty means c1..cN.
	ColumnNames string `yaml:"column-names" json:"column-names"`

	// OutputMode is text or binary; empty picks text for delimited input
	// and binary otherwise.
	OutputMode      string `yaml:"output-mode" json:"output-mode"`
	Delimiter       string `yaml:"delimiter" json:"delimiter"`
	AppendHexPrefix bool   `yaml:"append-hex-prefix" json:"append-hex-prefix"`
	MaxRecordNum    int    `yaml:"max-record-num" json:"max-record-num"`
	BufferSize      int    `yaml:"buffer-size" json:"buffer-size"`
	ExtraHeader     string `yaml:"extra-header" json:"extra-header"`
	Compression     string `yaml:"compression" json:"compression"`
}

// PipelineConfig configures the runner.
type PipelineConfig struct {
	Workers   int          `yaml:"workers" json:"workers"`
	QueueSize int          `yaml:"queue-size" json:"queue-size"`
	Source    SourceConfig `yaml:"source" json:"source"`
	Sink      SinkConfig   `yaml:"sink" json:"sink"`
	// ProgressInterval controls how often throughput is logged
	ProgressInterval time.Duration `yaml:"progress-interval" json:"progress-interval"`
}

// SourceConfig selects where records come from.
type SourceConfig struct {
	Type string `yaml:"type" json:"type"` // file or kafka
	Path string `yaml:"path" json:"path"`
	// Framing splits a file into records: lv, fixed or line
	Framing    string `yaml:"framing" json:"framing"`
	RecordSize int    `yaml:"record-size" json:"record-size"`
}

// SinkConfig selects where frames go.
type SinkConfig struct {
	Type string `yaml:"type" json:"type"` // stdout, file or kafka
	Path string `yaml:"path" json:"path"`
}

// KafkaConfig configures the Kafka source and sink.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers" json:"brokers"`
	Topic         string   `yaml:"topic" json:"topic"`
	GroupID       string   `yaml:"group-id" json:"group-id"`
	OutputTopic   string   `yaml:"output-topic" json:"output-topic"`
	ClientID      string   `yaml:"client-id" json:"client-id"`
	Version       string   `yaml:"version" json:"version"`
	InitialOffset string   `yaml:"initial-offset" json:"initial-offset"` // oldest or newest
	RequiredAcks  string   `yaml:"required-acks" json:"required-acks"`   // none, local or all
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	Logging LoggingConfig               `yaml:"logging" json:"logging"`
	Metrics MetricsConfig               `yaml:"metrics" json:"metrics"`
	Tracing observability.TracingConfig `yaml:"tracing" json:"tracing"`
}

// LoggingConfig configures the global zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Encoding    string `yaml:"encoding" json:"encoding"`
	Development bool   `yaml:"development" json:"development"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
	Path    string `yaml:"path" json:"path"`
}

// NewConfig creates a configuration with defaults applied.
func NewConfig() *Config {
	enc := encoder.DefaultConfig()
	return &Config{
		Name: "xdrflow",
		Interceptor: InterceptorConfig{
			InputColumnDelimiter: ",",
			Delimiter:            enc.Delimiter,
			AppendHexPrefix:      enc.AppendHexPrefix,
			MaxRecordNum:         enc.MaxRecordNum,
			BufferSize:           enc.BufferSize,
			Compression:          string(compression.None),
		},
		Pipeline: PipelineConfig{
			Workers:          runtime.NumCPU(),
			QueueSize:        1024,
			Source:           SourceConfig{Type: "file", Framing: "lv"},
			Sink:             SinkConfig{Type: "stdout"},
			ProgressInterval: 30 * time.Second,
		},
		Kafka: KafkaConfig{
			ClientID:      "xdrflow",
			Version:       "2.8.0",
			InitialOffset: "newest",
			RequiredAcks:  "local",
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Encoding: "json"},
			Metrics: MetricsConfig{Address: ":9090", Path: "/metrics"},
			Tracing: observability.DefaultTracingConfig(),
		},
	}
}

// Validate checks the whole configuration, including the layout grammar
// and extra header.
func (c *Config) Validate() error {
	if err := c.Interceptor.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if c.Pipeline.Source.Type == "kafka" || c.Pipeline.Sink.Type == "kafka" {
		if err := c.Kafka.Validate(c.Pipeline.Source.Type == "kafka", c.Pipeline.Sink.Type == "kafka"); err != nil {
			return err
		}
	}
	switch c.Observability.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown log level %q", c.Observability.Logging.Level)
	}
	return nil
}

// Validate checks the interceptor section.
func (c *InterceptorConfig) Validate() error {
	if strings.TrimSpace(c.SQL) == "" {
		return errors.New(errors.ErrorTypeConfig, "sql is required")
	}
	if c.InputColumnLengths != "" && c.InputTLVLayout != "" {
		return errors.New(errors.ErrorTypeConfig, "input-column-lengths and input-tlv-layout are mutually exclusive")
	}
	desc, err := c.Layout()
	if err != nil {
		return err
	}
	if _, err := c.Schema(desc); err != nil {
		return err
	}
	if _, err := compression.ParseAlgorithm(c.Compression); err != nil {
		return err
	}
	return c.Encoder().Validate()
}

// Layout parses the configured input layout.
func (c *InterceptorConfig) Layout() (*layout.Descriptor, error) {
	switch {
	case c.InputColumnLengths != "":
		return layout.ParseFixed(c.InputColumnLengths)
	case c.InputTLVLayout != "":
		return layout.ParseTagged(c.InputTLVLayout)
	default:
		return layout.ParseDelimited(c.InputColumnNum, c.InputColumnDelimiter)
	}
}

// Schema returns the column names the expression is compiled against.
func (c *InterceptorConfig) Schema(desc *layout.Descriptor) (plan.Schema, error) {
	if c.ColumnNames == "" {
		return plan.PositionalSchema(desc.NumColumns()), nil
	}
	names := strings.Split(c.ColumnNames, ",")
	seen := make(map[string]struct{}, len(names))
	for i, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			return plan.Schema{}, errors.Newf(errors.ErrorTypeConfig, "column-names entry %d is empty", i)
		}
		if _, dup := seen[n]; dup {
			return plan.Schema{}, errors.Newf(errors.ErrorTypeConfig, "duplicate column name %q", n)
		}
		seen[n] = struct{}{}
		names[i] = n
	}
	if len(names) != desc.NumColumns() {
		return plan.Schema{}, errors.Newf(errors.ErrorTypeConfig,
			"column-names has %d entries but the layout has %d columns", len(names), desc.NumColumns())
	}
	return plan.Schema{Columns: names}, nil
}

// Encoder returns the batcher configuration.
func (c *InterceptorConfig) Encoder() *encoder.Config {
	mode := encoder.Mode(c.OutputMode)
	if mode == "" {
		mode = encoder.Binary
		if c.InputColumnLengths == "" && c.InputTLVLayout == "" {
			mode = encoder.Text
		}
	}
	return &encoder.Config{
		Mode:            mode,
		Delimiter:       c.Delimiter,
		AppendHexPrefix: c.AppendHexPrefix,
		MaxRecordNum:    c.MaxRecordNum,
		BufferSize:      c.BufferSize,
		ExtraHeader:     c.ExtraHeader,
	}
}

// Validate checks the pipeline section.
func (c *PipelineConfig) Validate() error {
	if c.Workers < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "workers must be positive, got %d", c.Workers)
	}
	if c.QueueSize < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "queue-size must not be negative, got %d", c.QueueSize)
	}
	switch c.Source.Type {
	case "file":
		if c.Source.Path == "" {
			return errors.New(errors.ErrorTypeConfig, "file source requires a path")
		}
		switch c.Source.Framing {
		case "lv", "line":
		case "fixed":
			if c.Source.RecordSize < 1 {
				return errors.Newf(errors.ErrorTypeConfig, "fixed framing requires a positive record-size, got %d", c.Source.RecordSize)
			}
		default:
			return errors.Newf(errors.ErrorTypeConfig, "unknown framing %q", c.Source.Framing)
		}
	case "kafka":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown source type %q", c.Source.Type)
	}
	switch c.Sink.Type {
	case "stdout", "kafka":
	case "file":
		if c.Sink.Path == "" {
			return errors.New(errors.ErrorTypeConfig, "file sink requires a path")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown sink type %q", c.Sink.Type)
	}
	return nil
}

// Validate checks the Kafka section for the roles in use.
func (c *KafkaConfig) Validate(source, sink bool) error {
	if len(c.Brokers) == 0 {
		return errors.New(errors.ErrorTypeConfig, "kafka brokers are required")
	}
	if source && (c.Topic == "" || c.GroupID == "") {
		return errors.New(errors.ErrorTypeConfig, "kafka source requires topic and group-id")
	}
	if sink && c.OutputTopic == "" {
		return errors.New(errors.ErrorTypeConfig, "kafka sink requires output-topic")
	}
	switch c.InitialOffset {
	case "oldest", "newest":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown initial-offset %q", c.InitialOffset)
	}
	switch c.RequiredAcks {
	case "none", "local", "all":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown required-acks %q", c.RequiredAcks)
	}
	return nil
}

// ApplyOverrides copies every key set in v onto the configuration. Keys
// use the dotted YAML path, e.g. "interceptor.sql" or
// "pipeline.workers"; viper resolves them from bound flags and from
// XDRFLOW_* environment variables.
func (c *Config) ApplyOverrides(v *viper.Viper) {
	setString(v, "name", &c.Name)

	setString(v, "interceptor.sql", &c.Interceptor.SQL)
	setString(v, "interceptor.input-column-lengths", &c.Interceptor.InputColumnLengths)
	setString(v, "interceptor.input-tlv-layout", &c.Interceptor.InputTLVLayout)
	setInt(v, "interceptor.input-column-num", &c.Interceptor.InputColumnNum)
	setString(v, "interceptor.input-column-delimiter", &c.Interceptor.InputColumnDelimiter)
	setString(v, "interceptor.column-names", &c.Interceptor.ColumnNames)
	setString(v, "interceptor.output-mode", &c.Interceptor.OutputMode)
	setString(v, "interceptor.delimiter", &c.Interceptor.Delimiter)
	if v.IsSet("interceptor.append-hex-prefix") {
		c.Interceptor.AppendHexPrefix = v.GetBool("interceptor.append-hex-prefix")
	}
	setInt(v, "interceptor.max-record-num", &c.Interceptor.MaxRecordNum)
	setInt(v, "interceptor.buffer-size", &c.Interceptor.BufferSize)
	setString(v, "interceptor.extra-header", &c.Interceptor.ExtraHeader)
	setString(v, "interceptor.compression", &c.Interceptor.Compression)

	setInt(v, "pipeline.workers", &c.Pipeline.Workers)
	setInt(v, "pipeline.queue-size", &c.Pipeline.QueueSize)
	setString(v, "pipeline.source.type", &c.Pipeline.Source.Type)
	setString(v, "pipeline.source.path", &c.Pipeline.Source.Path)
	setString(v, "pipeline.source.framing", &c.Pipeline.Source.Framing)
	setInt(v, "pipeline.source.record-size", &c.Pipeline.Source.RecordSize)
	setString(v, "pipeline.sink.type", &c.Pipeline.Sink.Type)
	setString(v, "pipeline.sink.path", &c.Pipeline.Sink.Path)

	if v.IsSet("kafka.brokers") {
		c.Kafka.Brokers = v.GetStringSlice("kafka.brokers")
	}
	setString(v, "kafka.topic", &c.Kafka.Topic)
	setString(v, "kafka.group-id", &c.Kafka.GroupID)
	setString(v, "kafka.output-topic", &c.Kafka.OutputTopic)

	setString(v, "observability.logging.level", &c.Observability.Logging.Level)
	setString(v, "observability.logging.encoding", &c.Observability.Logging.Encoding)
	if v.IsSet("observability.metrics.enabled") {
		c.Observability.Metrics.Enabled = v.GetBool("observability.metrics.enabled")
	}
	setString(v, "observability.metrics.address", &c.Observability.Metrics.Address)
	if v.IsSet("observability.tracing.enabled") {
		c.Observability.Tracing.Enabled = v.GetBool("observability.tracing.enabled")
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}
