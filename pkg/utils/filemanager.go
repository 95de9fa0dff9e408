// =============================================================================
// CFDI Stamp Reconciler - File Manager Utility
// =============================================================================
//
// Small filesystem helpers shared by the reconciler and the CLI commands:
//   - listing a company's XML documents in a deterministic order
//   - writing the generated statement files
//   - existence checks for variant detection
//
// No file handle outlives the call that opened it; each document is read and
// released before the next one is touched.
//
// =============================================================================

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListXMLFiles returns the full paths of the .xml files directly inside dir,
// sorted by name. The extension check is case-insensitive; subdirectories
// are not descended into.
func ListXMLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".xml") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(files)
	return files, nil
}

// WriteLines writes the given lines to path, one per line with a trailing
// newline after the last. An empty slice produces an empty file, which is
// deliberate: a company with nothing resolvable still gets its output file.
func WriteLines(path string, lines []string) error {
	var content string
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
