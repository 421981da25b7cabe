package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCoversDir(t *testing.T) {
	tests := []struct {
		line    string
		matches bool
	}{
		{".dv", true},
		{".dv/", true},
		{".dv/*", true},
		{".dv/**", true},
		{".dv/**/*", true},
		{"/.dv/", true},

		{"", false},
		{".dv2", false},
		{"dv/", false},
		{".dvignore", false},
		{"*.dv", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := coversDir(tt.line); got != tt.matches {
				t.Errorf("coversDir(%q) = %v, want %v", tt.line, got, tt.matches)
			}
		})
	}
}

func TestReadPatterns_SkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), IgnoreFile)
	content := "# header\n\nraw/**\n  scratch.json  \n# .dv/\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	lines, err := readPatterns(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(lines, "|") != "raw/**|scratch.json" {
		t.Errorf("patterns = %q", lines)
	}
}

func TestEnsureIgnored(t *testing.T) {
	tests := []struct {
		name     string
		existing *string
		want     string
	}{
		{"NoFile", nil, gitignoreComment + "\n.dv/\n"},
		{"EmptyFile", ptr(""), gitignoreComment + "\n.dv/\n"},
		{"TrailingNewline", ptr("node_modules/\n"), "node_modules/\n\n" + gitignoreComment + "\n.dv/\n"},
		{"NoTrailingNewline", ptr("node_modules/"), "node_modules/\n\n" + gitignoreComment + "\n.dv/\n"},
		{"AlreadyCovered", ptr("/.dv\n"), "/.dv\n"},
		{"CommentedOutIsNotCovered", ptr("# .dv/\n"), "# .dv/\n\n" + gitignoreComment + "\n.dv/\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, ".gitignore")
			if tt.existing != nil {
				if err := os.WriteFile(path, []byte(*tt.existing), 0644); err != nil {
					t.Fatal(err)
				}
			}
			if err := EnsureIgnored(dir); err != nil {
				t.Fatalf("EnsureIgnored: %v", err)
			}
			// Idempotent.
			if err := EnsureIgnored(dir); err != nil {
				t.Fatalf("second EnsureIgnored: %v", err)
			}
			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf(".gitignore = %q, want %q", got, tt.want)
			}
		})
	}
}

func ptr(s string) *string { return &s }
