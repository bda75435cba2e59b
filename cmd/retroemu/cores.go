package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/monteslu/retroemu/coredb"
)

var coresCmd = &cobra.Command{
	Use:   "cores",
	Short: "Show systems and their core modules",
	Long: `List every system the registry knows, the wasm core module it resolves
to after config overrides, and whether that module is installed under the
cores directory.`,
	RunE: runCores,
}

func runCores(cmd *cobra.Command, args []string) error {
	resolver := coredb.Resolver{CoresDir: cfg.Dirs.Cores, Overrides: cfg.Cores}

	fmt.Println(headerStyle.Render(
		fmt.Sprintf("%-8s  %-32s  %-24s  %-9s  %s", "SYSTEM", "NAME", "EXTENSIONS", "INSTALLED", "MODULE")))
	for _, sys := range coredb.Systems() {
		path := resolver.ModulePath(sys)
		installed := "no"
		if _, err := os.Stat(path); err == nil {
			installed = "yes"
		}
		line := fmt.Sprintf("%-8s  %-32s  %-24s  %-9s  %s",
			sys.ID, sys.Name, strings.Join(sys.Extensions, " "), installed, path)
		if installed == "no" {
			line = dimStyle.Render(line)
		}
		fmt.Println(line)
	}
	return nil
}
