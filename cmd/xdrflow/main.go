package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xdrflow",
		Short: "xdrflow - SQL filter and projection over binary XDR records",
		Long: `xdrflow decodes binary XDR records, applies a compiled SQL filter and
projection to every record and batches the projected rows into frames for
a file, stdout or Kafka.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "xdrflow v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newRunCmd(newViper()))
	root.AddCommand(newDecodeCmd())
	root.AddCommand(newExplainCmd())
	root.AddCommand(newFunctionsCmd())
	return root
}

// newViper resolves configuration keys from XDRFLOW_* variables, e.g.
// XDRFLOW_INTERCEPTOR_SQL or XDRFLOW_PIPELINE_SOURCE_RECORD_SIZE.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("XDRFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// bindFlags maps flag names to dotted configuration keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if f := flags.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}
