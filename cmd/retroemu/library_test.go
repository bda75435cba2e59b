package main

import (
	"testing"
	"time"
)

func TestFormatPlayTime(t *testing.T) {
	cases := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0m"},
		{"under a minute", 30 * time.Second, "<1m"},
		{"minutes", 5 * time.Minute, "5m"},
		{"hours", 90 * time.Minute, "1h 30m"},
		{"over a day", 26 * time.Hour, "26h 0m"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatPlayTime(tc.d); got != tc.want {
				t.Fatalf("formatPlayTime(%v) = %q, want %q", tc.d, got, tc.want)
			}
		})
	}
}

func TestClipName(t *testing.T) {
	if got := clipName("short", 10); got != "short" {
		t.Fatalf("clipName = %q, want unchanged", got)
	}
	if got := clipName("Pokémon Élite Edition", 7); got != "Pokémon" {
		t.Fatalf("clipName = %q, want rune-safe cut", got)
	}
}
