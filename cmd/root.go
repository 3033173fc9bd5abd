package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ErrPartialSuccess signals that at least one page was written but at
// least one page or unit failed. Execute maps it to exit code 2 so
// scripts can tell a partial run from a dead one.
var ErrPartialSuccess = errors.New("finished with failures")

var (
	flagIgnoreConfig bool
	flagDebug        bool
)

var rootCmd = &cobra.Command{
	Use:           "piccomad",
	Short:         "Piccoma episode/volume downloader with CBZ output",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagIgnoreConfig, "ignore-config", false, "ignore config and use only CLI flags")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		if errors.Is(err, ErrPartialSuccess) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
