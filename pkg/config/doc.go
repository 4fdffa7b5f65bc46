// Package config defines the xdrflow configuration: the interceptor chain
// (input layout, expression and output encoding), the pipeline that feeds
// it, the Kafka transport and the observability stack.
//
// # Sections
//
//   - interceptor: sql, the input layout (input-column-lengths,
//     input-tlv-layout or input-column-num with input-column-delimiter),
//     and the output encoding (output-mode, delimiter, append-hex-prefix,
//     max-record-num, buffer-size, extra-header, compression)
//   - pipeline: worker count, queue size, source and sink
//   - kafka: brokers, topics and producer/consumer settings
//   - observability: logging, metrics endpoint and tracing
//
// # Loading
//
//	cfg := config.NewConfig()
//	if err := config.Load("xdrflow.yaml", cfg); err != nil {
//		return err
//	}
//	cfg.ApplyOverrides(v) // flags and XDRFLOW_* environment
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//
// # Environment Variable Substitution
//
// Values may reference the environment as ${VAR} or ${VAR:-default}:
//
//	kafka:
//	  brokers: ["${KAFKA_BROKER:-localhost:9092}"]
//	interceptor:
//	  sql: ${XDR_SQL}
//
// Every validation failure is a config error (errors.IsConfig).
package config
