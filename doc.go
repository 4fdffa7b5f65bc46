// Package xdrflow filters and projects binary XDR (external data
// representation) records with SQL and batches the results into frames.
//
// Every record passes through the same chain:
//
//	bytes -> layout.Descriptor.Decode -> plan.Instance.Execute -> encoder.Batcher.Add -> frame
//
// # Layouts
//
// Fixed and prefixed layouts are comma separated column widths. A width
// of the form B+[U]*N is a B-byte count followed by that many U-byte
// units:
//
//	2,1+[2]*N,4
//
// Tagged layouts list fixed positional columns (v1) followed by the tags
// to extract (tlv20). Delimited text splits on a configurable delimiter.
//
// # Expressions
//
// Expressions are a single SELECT over the table "event" with an optional
// WHERE clause. Columns are c1..cN unless renamed:
//
//	select bytestoip(c3) as ip, normalize(c4) from event where c1 = 1
//
// plan.Cache compiles each (schema, text) pair once. Workers execute
// private clones of the shared prototype, so execution needs no locks.
//
// # Frames
//
// Projected rows are encoded as delimited text or binary length-value
// fields and emitted once MaxRecordNum rows are buffered. Frames carry the
// configured extra headers and may be compressed.
//
// # Running
//
// The xdrflow command wires a file or Kafka source through a worker pool
// into stdout, a file or Kafka:
//
//	xdrflow run --config xdr.yaml
//	xdrflow decode --file records.bin --layout 2,1+[2]*N,4
//	xdrflow explain --sql "select c2 from event where c1 = 1" --columns 3
package xdrflow
