// =============================================================================
// CFDI Stamp Reconciler - SQL Replay Checker
// =============================================================================
//
// This module proves that generated statements are syntactically valid SQL by
// actually executing them. It builds a throwaway in-memory SQLite database
// with the same table layout the remote console targets, then replays each
// statement through database/sql.
//
// An escaping mistake - an unescaped quote, a truncated literal - surfaces
// here as an execution error with the offending statement attached, instead
// of surfacing in production against the real database.
//
// The replayed UPDATEs affect zero rows (the tables are empty); only parsing
// and execution success is checked.
//
// =============================================================================

package sqlcheck

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// =============================================================================
// OPTIONS AND REPORT STRUCTURES
// =============================================================================

// Options names the tables the replayed statements address.
type Options struct {
	// AttemptsTable is the table the UPDATE statements target.
	AttemptsTable string

	// InvoicesTable is the table the folio lookup targets.
	InvoicesTable string
}

// Failure is one statement that did not execute.
type Failure struct {
	// Index is the 0-based position of the statement in the input.
	Index int

	// Statement is the SQL that failed.
	Statement string

	// Err is the execution error.
	Err error
}

// Report summarizes a replay.
type Report struct {
	// Executed is the number of statements that ran cleanly.
	Executed int

	// Failures lists the statements that errored.
	Failures []Failure
}

// OK reports whether every statement executed.
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

// =============================================================================
// REPLAY
// =============================================================================

// Run replays the given statements against a fresh in-memory database.
//
// PARAMETERS:
//   - statements: The plain SQL statements (console wrapping already removed).
//   - opts: The table layout to create before replaying.
//
// RETURNS:
//   - A Report with per-statement failures.
//   - An error only if the scratch database itself cannot be set up.
func Run(statements []string, opts Options) (*Report, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch database: %w", err)
	}
	defer db.Close()

	if err := createSchema(db, opts); err != nil {
		return nil, err
	}

	report := &Report{}
	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			report.Failures = append(report.Failures, Failure{
				Index:     i,
				Statement: stmt,
				Err:       err,
			})
			continue
		}
		report.Executed++
	}

	return report, nil
}

// createSchema creates empty tables mirroring the production layout.
func createSchema(db *sql.DB, opts Options) error {
	attempts := opts.AttemptsTable
	if attempts == "" {
		attempts = "invoice_invoice_attempts"
	}
	invoices := opts.InvoicesTable
	if invoices == "" {
		invoices = "invoice_invoices"
	}

	ddl := []string{
		fmt.Sprintf(`CREATE TABLE %s (
			id INTEGER PRIMARY KEY,
			invoice_id INTEGER,
			type INTEGER,
			status INTEGER,
			xml TEXT,
			tfd TEXT,
			raw_response TEXT,
			uuid TEXT
		)`, attempts),
		fmt.Sprintf(`CREATE TABLE %s (
			id INTEGER PRIMARY KEY,
			parent_id INTEGER
		)`, invoices),
	}

	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create scratch schema: %w", err)
		}
	}
	return nil
}
