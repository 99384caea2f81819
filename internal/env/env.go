// Package env loads KEY=VALUE files into the process environment, so that
// secrets such as the wallet PEM path can stay out of the YAML config.
package env

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultFile is read by Load when no path is given.
const DefaultFile = ".env"

// Load reads environment variables from path, or DefaultFile when path is
// empty, and sets them with os.Setenv. A missing file is not an error.
//
// File format:
//   - Each line contains KEY=VALUE, optionally prefixed with "export "
//   - Empty lines and lines starting with # are ignored
//   - Values can be quoted with single or double quotes (quotes are stripped)
//
// Variables already set in the environment are overwritten.
func Load(path string) error {
	if path == "" {
		path = DefaultFile
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("env: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		key, value, ok, err := parseLine(sc.Text())
		if err != nil {
			return fmt.Errorf("env: %s:%d: %w", path, n, err)
		}
		if !ok {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("env: %s:%d: %w", path, n, err)
		}
	}
	return sc.Err()
}

func parseLine(line string) (key, value string, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false, nil
	}
	line = strings.TrimPrefix(line, "export ")

	// Split on the first "=", values may contain more.
	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false, fmt.Errorf("missing '=' in %q", line)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false, errors.New("empty key")
	}
	value = strings.TrimSpace(value)
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		value = value[1 : len(value)-1]
	}
	return key, value, true, nil
}
