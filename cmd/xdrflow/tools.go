package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/xdrflow/pkg/column"
	"github.com/ajitpratap0/xdrflow/pkg/config"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/json"
	"github.com/ajitpratap0/xdrflow/pkg/mmap"
	"github.com/ajitpratap0/xdrflow/pkg/plan"
	"github.com/ajitpratap0/xdrflow/pkg/sql"
	"github.com/ajitpratap0/xdrflow/pkg/udf"
)

type decodeOptions struct {
	layout     config.InterceptorConfig
	file       string
	framing    string
	recordSize int
	limit      int
	array      bool
}

func newDecodeCmd() *cobra.Command {
	var opts decodeOptions

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a record file to JSON",
		Long: `Decode splits a file into records and prints every decoded row as a JSON
object keyed by column name. Bytes columns print as 0x-prefixed hex.

Example:
  xdrflow decode --file records.bin --layout 2,1+[2]*N,4 --names kind,ids,ip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return decodeFile(cmd.OutOrStdout(), cmd.ErrOrStderr(), &opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.file, "file", "", "Record file (required)")
	flags.StringVar(&opts.layout.InputColumnLengths, "layout", "", "Fixed or prefixed column layout")
	flags.StringVar(&opts.layout.InputTLVLayout, "tlv", "", "Tagged column layout")
	flags.IntVar(&opts.layout.InputColumnNum, "columns", 0, "Column count for delimited text")
	flags.StringVar(&opts.layout.InputColumnDelimiter, "delimiter", ",", "Delimiter for delimited text")
	flags.StringVar(&opts.layout.ColumnNames, "names", "", "Comma separated column names")
	flags.StringVar(&opts.framing, "framing", string(mmap.LV), "Record framing: lv, fixed or line")
	flags.IntVar(&opts.recordSize, "record-size", 0, "Record size for fixed framing")
	flags.IntVar(&opts.limit, "limit", 0, "Stop after this many records (0 means all)")
	flags.BoolVar(&opts.array, "array", false, "Print one JSON array instead of JSON lines")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func decodeFile(stdout, stderr io.Writer, opts *decodeOptions) error {
	if opts.layout.InputColumnLengths != "" && opts.layout.InputTLVLayout != "" {
		return errors.New(errors.ErrorTypeConfig, "--layout and --tlv are mutually exclusive")
	}
	desc, err := opts.layout.Layout()
	if err != nil {
		return err
	}
	schema, err := opts.layout.Schema(desc)
	if err != nil {
		return err
	}

	rr, err := mmap.NewRecordReader(opts.file, mmap.Framing(opts.framing), opts.recordSize)
	if err != nil {
		return err
	}
	defer rr.Close()

	out := bufio.NewWriter(stdout)
	enc := json.NewStreamingEncoder(out, opts.array)

	var (
		row     column.Row
		buf     []byte
		decoded int
		failed  int
	)
	for opts.limit <= 0 || decoded+failed < opts.limit {
		rec, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		row, _, err = desc.Decode(rec, row)
		if err != nil {
			failed++
			fmt.Fprintf(stderr, "record %d: %v\n", rr.Count(), err)
			continue
		}
		if buf, err = json.AppendRow(buf[:0], schema.Columns, row); err != nil {
			return err
		}
		if err := enc.WriteRaw(buf); err != nil {
			return err
		}
		decoded++
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if failed > 0 {
		fmt.Fprintf(stderr, "%d decoded, %d failed\n", decoded, failed)
	}
	return out.Flush()
}

func newExplainCmd() *cobra.Command {
	var (
		text    string
		names   string
		columns int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Compile an expression and print its operator chain",
		Long: `Explain compiles the expression against the given columns and prints the
scan, filter, project and sink chain. Columns default to c1..cN.

Example:
  xdrflow explain --sql "select c2 from event where c1 = 1" --columns 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := plan.PositionalSchema(columns)
			if names != "" {
				schema = plan.Schema{Columns: splitNames(names)}
			}
			spec, err := sql.NewCompiler(udf.Default()).Compile(cmd.Context(), text, schema)
			if err != nil {
				return err
			}
			if err := spec.Validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !asJSON {
				_, err = fmt.Fprintln(out, spec.Explain())
				return err
			}
			data, err := json.MarshalIndent(spec, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&text, "sql", "", "Filter and projection expression (required)")
	flags.StringVar(&names, "names", "", "Comma separated column names")
	flags.IntVar(&columns, "columns", 0, "Number of positional columns")
	flags.BoolVar(&asJSON, "json", false, "Print the chain as JSON")
	_ = cmd.MarkFlagRequired("sql")
	return cmd
}

func splitNames(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return parts
}

func newFunctionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the functions available to expressions",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tARGS\tDESCRIPTION")
			for _, def := range udf.Definitions() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, arity(def.MinArgs, def.MaxArgs), def.Doc)
			}
			return w.Flush()
		},
	}
}

func arity(minArgs, maxArgs int) string {
	switch {
	case maxArgs < 0:
		return fmt.Sprintf("%d+", minArgs)
	case minArgs == maxArgs:
		return fmt.Sprint(minArgs)
	default:
		return fmt.Sprintf("%d-%d", minArgs, maxArgs)
	}
}
