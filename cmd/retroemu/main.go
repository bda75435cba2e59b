// retroemu plays libretro wasm cores as character art in the terminal.
//
// Usage:
//
//	retroemu run <rom>       - Play a game
//	retroemu scan <dir>...   - Index ROM directories into the library
//	retroemu library         - List indexed games with play time
//	retroemu cores           - Show systems and their core modules
//
// Global flags:
//
//	--config <path>  - Config file (default: platform data dir)
//	--verbose        - Debug logging
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/monteslu/retroemu/config"
)

var (
	flagConfig  string
	flagVerbose bool

	cfg    config.Config
	logger *log.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "retroemu",
	Short: "Play libretro wasm cores in your terminal",
	Long: `retroemu runs sandboxed libretro cores compiled to WebAssembly and
draws their video output as colored character art, so console games play
over ssh, in tmux, or anywhere else a terminal reaches.

Examples:
  retroemu run game.sfc
  retroemu run game.zip --window
  retroemu run homebrew.bin --core ./cores/custom.wasm
  retroemu scan ~/roms
  retroemu library`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
		})
		if flagVerbose {
			logger.SetLevel(log.DebugLevel)
		}
		var err error
		cfg, err = config.Load(flagConfig)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(libraryCmd)
	rootCmd.AddCommand(coresCmd)
}
