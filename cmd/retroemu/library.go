package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/monteslu/retroemu/library"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "List indexed games with play time",
	RunE:  runLibrary,
}

func runLibrary(cmd *cobra.Command, args []string) error {
	store, err := library.Open(filepath.Join(cfg.Dirs.Data, "library.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Games()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("library is empty; run 'retroemu scan <dir>' first")
		return nil
	}

	nameW := 20
	for _, e := range entries {
		if n := len([]rune(e.Name)); n > nameW {
			nameW = n
		}
	}
	if nameW > 40 {
		nameW = 40
	}

	fmt.Println(headerStyle.Render(
		fmt.Sprintf("%-*s  %-8s  %5s  %8s  %s", nameW, "NAME", "SYSTEM", "PLAYS", "TIME", "LAST PLAYED")))
	for _, e := range entries {
		last := "never"
		if !e.LastPlayed.IsZero() {
			last = e.LastPlayed.Format("2006-01-02")
		}
		line := fmt.Sprintf("%-*s  %-8s  %5d  %8s  %s",
			nameW, clipName(e.Name, nameW), e.System, e.Plays, formatPlayTime(e.PlayTime), last)
		if e.Plays == 0 {
			line = dimStyle.Render(line)
		}
		fmt.Println(line)
	}
	return nil
}

func clipName(name string, width int) string {
	r := []rune(name)
	if len(r) <= width {
		return name
	}
	return string(r[:width])
}

func formatPlayTime(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	}
	return "<1m"
}
