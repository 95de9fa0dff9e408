// =============================================================================
// CFDI Stamp Reconciler - Index Ledger Loader
// =============================================================================
//
// This module parses the per-company index ledger: a two-column listing of
// database identifiers and RFCs that drives the indexed reconciliation
// variant. Two on-disk formats are supported:
//   - information.csv  - plain CSV, possibly in a legacy encoding
//   - information.xlsx - the same two columns exported straight from Excel
//
// COLUMN LAYOUT:
//   Column 1: the database row identifier (opaque string or integer)
//   Column 2: the RFC (taxpayer identifier), the correlation key
//
// HEADER DETECTION:
//   An optional header row is skipped. In "auto" mode the first row is
//   treated as a header when its second column is literally "rfc", or when
//   the first column is non-numeric and the second does not look like an RFC.
//
// INTEGRITY:
//   An RFC appearing twice within one ledger is an ambiguous index entry.
//   The first occurrence is kept; later ones are collected in Duplicates so
//   the caller can surface a warning. This never fails the load.
//
// =============================================================================

package index

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cfdi-tools/stamp-reconciler/internal/config"
	"github.com/cfdi-tools/stamp-reconciler/internal/textenc"
)

// =============================================================================
// LEDGER STRUCTURES
// =============================================================================

// Record is one ledger row.
type Record struct {
	// ID is the database row identifier from column 1.
	ID string

	// RFC is the taxpayer identifier from column 2.
	RFC string

	// Row is the 1-indexed source row, for warnings and error messages.
	Row int
}

// Ledger is the parsed index for one company.
type Ledger struct {
	// Records holds the usable rows in source order. Rows whose RFC repeats
	// an earlier row are excluded.
	Records []Record

	// Duplicates holds rows whose RFC already appeared earlier in the file.
	// The earlier occurrence stays in Records.
	Duplicates []Record

	// SourceFile is the path the ledger was loaded from.
	SourceFile string

	byRFC map[string]string
}

// Lookup returns the identifier mapped to the given RFC.
func (l *Ledger) Lookup(rfc string) (string, bool) {
	id, ok := l.byRFC[rfc]
	return id, ok
}

// =============================================================================
// RFC SHAPE
// =============================================================================

// rfcPattern matches the standard RFC shape: 3-4 letters, a 6-digit date,
// and a 3-character homoclave. Used only for header auto-detection; matching
// against XML documents stays exact and case-sensitive.
var rfcPattern = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)

// =============================================================================
// CSV LOADER
// =============================================================================

// LoadCSV reads a CSV ledger.
//
// PARAMETERS:
//   - path: The path to the CSV file.
//   - settings: Delimiter, encoding, and header handling.
//
// RETURNS:
//   - A pointer to the Ledger.
//   - An error if the file cannot be read or parsed.
func LoadCSV(path string, settings config.IndexSettings) (*Ledger, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	// Transcode legacy encodings before the CSV reader sees the bytes.
	decoded, err := textenc.Reader(bufio.NewReader(file), settings.Encoding)
	if err != nil {
		return nil, fmt.Errorf("index file %s: %w", path, err)
	}

	reader := csv.NewReader(decoded)
	configureReader(reader, settings)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read index file %s: %w", path, err)
	}

	return fromRows(rows, path, settings.HasHeader), nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.IndexSettings) {
	// Set the delimiter, handling the spelled-out forms.
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Ledgers come from ad-hoc exports; be lenient about shape.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// =============================================================================
// XLSX LOADER
// =============================================================================

// LoadXLSX reads an XLSX ledger. Only the first sheet is consulted; the
// column layout and header handling match the CSV loader.
func LoadXLSX(path string, settings config.IndexSettings) (*Ledger, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("index file %s has no sheets", path)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from %s: %w", path, err)
	}

	return fromRows(rows, path, settings.HasHeader), nil
}

// =============================================================================
// SHARED ROW HANDLING
// =============================================================================

// fromRows builds a Ledger from raw two-column rows.
func fromRows(rows [][]string, path, hasHeader string) *Ledger {
	ledger := &Ledger{
		SourceFile: path,
		byRFC:      make(map[string]string),
	}

	start := 0
	if len(rows) > 0 {
		switch hasHeader {
		case "yes":
			start = 1
		case "no":
			start = 0
		default: // auto
			if looksLikeHeader(rows[0]) {
				start = 1
			}
		}
	}

	for i := start; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 2 {
			continue
		}

		id := strings.TrimSpace(row[0])
		rfc := strings.TrimSpace(row[1])
		if id == "" || rfc == "" {
			continue
		}

		rec := Record{ID: id, RFC: rfc, Row: i + 1}
		if _, seen := ledger.byRFC[rfc]; seen {
			ledger.Duplicates = append(ledger.Duplicates, rec)
			continue
		}

		ledger.byRFC[rfc] = id
		ledger.Records = append(ledger.Records, rec)
	}

	return ledger
}

// looksLikeHeader reports whether the first row reads as column labels
// rather than data.
func looksLikeHeader(row []string) bool {
	if len(row) < 2 {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(row[1]), "rfc") {
		return true
	}
	if _, err := strconv.Atoi(strings.TrimSpace(row[0])); err == nil {
		return false
	}
	return !rfcPattern.MatchString(strings.TrimSpace(row[1]))
}
