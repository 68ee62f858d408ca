package main

import (
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("a very long description indeed", 10); len([]rune(got)) != 10 {
		t.Errorf("truncate long = %q (len %d)", got, len([]rune(got)))
	}
}

func TestClassDisplay(t *testing.T) {
	cases := map[string]string{
		"":         "-",
		"local":    "Local",
		"cloud":    "Cloud",
		"external": "External",
	}
	for in, want := range cases {
		if got := classDisplay(in); got != want {
			t.Errorf("classDisplay(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Now()
	cases := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-50 * time.Hour), "2d ago"},
	}
	for _, c := range cases {
		if got := formatAge(c.at); got != c.want {
			t.Errorf("formatAge(%v) = %q, want %q", c.at, got, c.want)
		}
	}
}
