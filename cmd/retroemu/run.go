package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/monteslu/retroemu/session"
)

var (
	flagCore       string
	flagWindow     bool
	flagNoTerminal bool
	flagFrameskip  int
	flagSymbols    string
	flagColors     string
	flagNoAudio    bool
	flagTurbo      float64
	flagResume     bool
)

var runCmd = &cobra.Command{
	Use:   "run <rom>",
	Short: "Play a ROM",
	Long: `Load a ROM, raw or inside a zip/7z/gz/rar archive, pick its core from
the system registry, and play it in the current terminal.

Controls:
  arrows      - D-pad
  z/x, a/s    - B/A, Y/X
  enter/tab   - Start/Select
  F1/F3       - Save/load state
  F2          - Next state slot
  F4          - Turbo
  q, Esc      - Quit

Examples:
  retroemu run game.sfc
  retroemu run game.zip --colors 256 --frameskip 3
  retroemu run homebrew.bin --core ./cores/custom.wasm
  retroemu run game.gba --window --no-terminal`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagCore, "core", "", "Core wasm module, bypassing the registry")
	runCmd.Flags().BoolVar(&flagWindow, "window", false, "Mirror video into a desktop window")
	runCmd.Flags().BoolVar(&flagNoTerminal, "no-terminal", false, "Skip terminal rendering")
	runCmd.Flags().IntVar(&flagFrameskip, "frameskip", 0, "Consider every Nth frame for terminal output")
	runCmd.Flags().StringVar(&flagSymbols, "symbols", "", "Glyph ramp, darkest to brightest")
	runCmd.Flags().StringVar(&flagColors, "colors", "", "Color mode: auto, true, 256, 16, mono")
	runCmd.Flags().BoolVar(&flagNoAudio, "no-audio", false, "Disable audio output")
	runCmd.Flags().Float64Var(&flagTurbo, "turbo", 2, "Fast-forward speed multiplier")
	runCmd.Flags().BoolVar(&flagResume, "resume", false, "Restore the exit snapshot before starting")
}

func runRun(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("frameskip") {
		cfg.Display.Frameskip = flagFrameskip
	}
	if cmd.Flags().Changed("symbols") {
		cfg.Display.Symbols = flagSymbols
	}
	if cmd.Flags().Changed("colors") {
		cfg.Display.Colors = flagColors
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	opts := session.Options{
		ROMPath:  args[0],
		CorePath: flagCore,
		Terminal: !flagNoTerminal,
		Window:   flagWindow,
		NoAudio:  flagNoAudio,
		Resume:   flagResume,
		Turbo:    flagTurbo,
	}

	if opts.Terminal {
		// Frames own stdout and raw mode owns stdin, so logs move to a
		// file for the duration.
		logPath := filepath.Join(cfg.Dirs.Data, "retroemu.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.Warn("log file unavailable", "err", err)
		} else {
			logger.SetOutput(f)
			defer f.Close()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return session.Run(ctx, logger, cfg, opts)
}
