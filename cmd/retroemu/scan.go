package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/monteslu/retroemu/library"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>...",
	Short: "Index ROM directories into the library",
	Long: `Walk the given directories, identify ROMs by extension (looking inside
zip/7z/gz/rar archives), and record them in the library database.

Examples:
  retroemu scan ~/roms
  retroemu scan ~/roms/snes ~/roms/gb`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	store, err := library.Open(filepath.Join(cfg.Dirs.Data, "library.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := library.NewScanner(logger, store).Scan(args)
	if err != nil {
		return err
	}
	fmt.Printf("scanned %d files: %d added, %d skipped\n", res.Scanned, res.Added, res.Skipped)
	return nil
}
