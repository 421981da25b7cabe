package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFile lists discovery exclusions, one doublestar pattern per line.
const IgnoreFile = ".dvignore"

const gitignoreComment = "# dv local config and snapshots"

// EnsureIgnored makes sure .dv/ is listed in projectDir/.gitignore. It creates
// the file when missing and leaves it untouched when an entry already covers
// the directory.
func EnsureIgnored(projectDir string) error {
	if projectDir == "" {
		var err error
		if projectDir, err = os.Getwd(); err != nil {
			return err
		}
	}
	path := filepath.Join(projectDir, ".gitignore")

	lines, err := readPatterns(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, line := range lines {
		if coversDir(line) {
			return nil
		}
	}
	return appendPattern(path, Dir+"/")
}

// readPatterns returns the non-empty, non-comment lines of an ignore file.
func readPatterns(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// coversDir reports whether a gitignore line ignores the .dv directory.
func coversDir(line string) bool {
	switch strings.TrimPrefix(line, "/") {
	case Dir, Dir + "/", Dir + "/*", Dir + "/**", Dir + "/**/*":
		return true
	}
	return false
}

// appendPattern appends a pattern, separating it from existing content by a
// blank line.
func appendPattern(path, pattern string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	var toWrite string
	if len(content) == 0 {
		toWrite = gitignoreComment + "\n" + pattern + "\n"
	} else {
		if content[len(content)-1] != '\n' {
			toWrite = "\n"
		}
		toWrite += "\n" + gitignoreComment + "\n" + pattern + "\n"
	}
	_, err = file.WriteString(toWrite)
	return err
}
