// Package report writes the merged domain set to the dated output file.
package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName embeds the literal st and et arguments with date separators
// removed, e.g. quad9_domains_01012023_08012023.txt.
func FileName(st, et string) string {
	return strings.ReplaceAll(fmt.Sprintf("quad9_domains_%s_%s.txt", st, et), "/", "")
}

// Write creates or truncates dir/name and writes domains one per line in the
// given order, without a trailing newline. It returns the written path.
func Write(dir, name string, domains []string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	w := bufio.NewWriter(f)
	for i, d := range domains {
		if i > 0 {
			if err := w.WriteByte('\n'); err != nil {
				f.Close()
				return "", fmt.Errorf("write report: %w", err)
			}
		}
		if _, err := w.WriteString(d); err != nil {
			f.Close()
			return "", fmt.Errorf("write report: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	return path, nil
}
