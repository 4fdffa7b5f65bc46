package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/xdrflow/pkg/encoder"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/layout"
)

func validConfig() *Config {
	cfg := NewConfig()
	cfg.Interceptor.SQL = "select c1 from event"
	cfg.Interceptor.InputColumnLengths = "2,4"
	cfg.Pipeline.Source.Path = "/tmp/records.bin"
	cfg.Pipeline.Workers = 2
	return cfg
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("XDR_TEST_SET", "value")
	t.Setenv("XDR_TEST_EMPTY", "")

	tests := []struct {
		name, in, want string
	}{
		{"plain", "a: b", "a: b"},
		{"set", "a: ${XDR_TEST_SET}", "a: value"},
		{"unset", "a: ${XDR_TEST_UNSET}", "a: "},
		{"default unused", "a: ${XDR_TEST_SET:-other}", "a: value"},
		{"default unset", "a: ${XDR_TEST_UNSET:-other}", "a: other"},
		{"default empty", "a: ${XDR_TEST_EMPTY:-other}", "a: other"},
		{"multiple", "${XDR_TEST_SET}-${XDR_TEST_UNSET:-x}", "value-x"},
		{"unterminated", "a: ${XDR_TEST_SET", "a: ${XDR_TEST_SET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substituteEnvVars(tt.in))
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("XDR_SQL", "select c2 from event where c1 = 1")
	path := filepath.Join(t.TempDir(), "xdrflow.yaml")
	doc := `
name: gn
interceptor:
  sql: ${XDR_SQL}
  input-tlv-layout: v2,lv,tlv20,tlv21,tail
  extra-header: topic=xdr,dc=east
  max-record-num: 100
  compression: zstd
pipeline:
  workers: 4
  source:
    type: file
    path: ${XDR_INPUT:-/data/in.bin}
    framing: lv
kafka:
  brokers: ["${XDR_BROKER:-localhost:9092}"]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg := NewConfig()
	require.NoError(t, Load(path, cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "gn", cfg.Name)
	assert.Equal(t, "select c2 from event where c1 = 1", cfg.Interceptor.SQL)
	assert.Equal(t, 100, cfg.Interceptor.MaxRecordNum)
	assert.Equal(t, "|", cfg.Interceptor.Delimiter, "defaults survive")
	assert.True(t, cfg.Interceptor.AppendHexPrefix)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "/data/in.bin", cfg.Pipeline.Source.Path)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)

	desc, err := cfg.Interceptor.Layout()
	require.NoError(t, err)
	assert.Equal(t, layout.Tagged, desc.Mode())
	assert.Equal(t, 5, desc.NumColumns())
}

func TestLoadErrors(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "missing.yaml"), NewConfig())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	err = Parse([]byte("interceptor: [unclosed"), NewConfig())
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := validConfig()
	require.NoError(t, Save(path, cfg))

	loaded := NewConfig()
	require.NoError(t, Load(path, loaded))
	assert.Equal(t, cfg.Interceptor, loaded.Interceptor)
	assert.Equal(t, cfg.Pipeline.Source, loaded.Pipeline.Source)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing sql", func(c *Config) { c.Interceptor.SQL = " " }},
		{"two layouts", func(c *Config) { c.Interceptor.InputTLVLayout = "v2" }},
		{"bad width", func(c *Config) { c.Interceptor.InputColumnLengths = "2,x" }},
		{"delimited without columns", func(c *Config) { c.Interceptor.InputColumnLengths = "" }},
		{"column names mismatch", func(c *Config) { c.Interceptor.ColumnNames = "a" }},
		{"duplicate column names", func(c *Config) { c.Interceptor.ColumnNames = "a,A" }},
		{"bad output mode", func(c *Config) { c.Interceptor.OutputMode = "csv" }},
		{"bad record num", func(c *Config) { c.Interceptor.MaxRecordNum = 0 }},
		{"bad extra header", func(c *Config) { c.Interceptor.ExtraHeader = "novalue" }},
		{"bad compression", func(c *Config) { c.Interceptor.Compression = "brotli" }},
		{"no workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"no source path", func(c *Config) { c.Pipeline.Source.Path = "" }},
		{"bad framing", func(c *Config) { c.Pipeline.Source.Framing = "xml" }},
		{"fixed without size", func(c *Config) { c.Pipeline.Source.Framing = "fixed" }},
		{"bad source", func(c *Config) { c.Pipeline.Source.Type = "http" }},
		{"file sink without path", func(c *Config) { c.Pipeline.Sink.Type = "file" }},
		{"kafka without brokers", func(c *Config) { c.Pipeline.Sink.Type = "kafka" }},
		{"kafka sink without topic", func(c *Config) {
			c.Pipeline.Sink.Type = "kafka"
			c.Kafka.Brokers = []string{"b:9092"}
		}},
		{"kafka bad offset", func(c *Config) {
			c.Pipeline.Source.Type = "kafka"
			c.Kafka.Brokers = []string{"b:9092"}
			c.Kafka.Topic = "in"
			c.Kafka.GroupID = "g"
			c.Kafka.InitialOffset = "middle"
		}},
		{"bad log level", func(c *Config) { c.Observability.Logging.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsConfig(err), "got %v", err)
		})
	}
}

func TestEncoderModeDefaults(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, encoder.Binary, cfg.Interceptor.Encoder().Mode)

	cfg.Interceptor.InputColumnLengths = ""
	cfg.Interceptor.InputColumnNum = 3
	assert.Equal(t, encoder.Text, cfg.Interceptor.Encoder().Mode)

	cfg.Interceptor.OutputMode = "binary"
	assert.Equal(t, encoder.Binary, cfg.Interceptor.Encoder().Mode)
}

func TestSchema(t *testing.T) {
	cfg := validConfig()
	desc, err := cfg.Interceptor.Layout()
	require.NoError(t, err)

	s, err := cfg.Interceptor.Schema(desc)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, s.Columns)

	cfg.Interceptor.ColumnNames = "Msisdn, imsi"
	s, err = cfg.Interceptor.Schema(desc)
	require.NoError(t, err)
	assert.Equal(t, []string{"msisdn", "imsi"}, s.Columns)
}

func TestApplyOverrides(t *testing.T) {
	v := viper.New()
	v.Set("interceptor.sql", "select c2 from event")
	v.Set("interceptor.append-hex-prefix", false)
	v.Set("pipeline.workers", 7)
	v.Set("kafka.brokers", []string{"a:9092", "b:9092"})
	v.Set("observability.logging.level", "debug")

	cfg := validConfig()
	cfg.ApplyOverrides(v)

	assert.Equal(t, "select c2 from event", cfg.Interceptor.SQL)
	assert.False(t, cfg.Interceptor.AppendHexPrefix)
	assert.Equal(t, 7, cfg.Pipeline.Workers)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	assert.Equal(t, "2,4", cfg.Interceptor.InputColumnLengths, "unset keys untouched")
}
