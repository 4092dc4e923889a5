// Command chipster generates Verilog designs from natural-language queries
// and drives them through a bounded generate → simulate → correct loop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wlmoi/chipster/internal/config"
	"github.com/wlmoi/chipster/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var debug bool

	cfg := config.Default()

	root := &cobra.Command{
		Use:           "chipster",
		Short:         "Self-correcting Verilog design pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			if debug {
				cfg.Logging.DebugMode = true
				cfg.Logging.Console = true
				cfg.Logging.Level = "debug"
			}
			return logging.Initialize(logging.Config{
				DebugMode:  cfg.Logging.DebugMode,
				Directory:  cfg.Logging.Directory,
				Level:      cfg.Logging.Level,
				Console:    cfg.Logging.Console,
				Categories: cfg.Logging.Categories,
			})
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "chipster.yaml", "path to the configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")

	root.AddCommand(newRunCmd(&cfg))
	root.AddCommand(newBatchCmd(&cfg))
	root.AddCommand(newRunsCmd(&cfg))
	return root
}
