// =============================================================================
// CFDI Stamp Reconciler - SQL Statement Builder
// =============================================================================
//
// This module renders the database statements for matched invoices. Each
// UPDATE is executed through the remote console as one double-quoted shell
// argument:
//
//   bin/console doctrine:query:sql "<STATEMENT>"
//
// ESCAPING CONTRACT:
//   Because the statement lives inside shell double quotes:
//   - SQL string literals use single quotes, never double quotes, so they
//     cannot collide with the outer quoting. Embedded single quotes are
//     doubled, standard SQL.
//   - The assembled statement is then escaped once for the shell: every
//     backslash becomes \\ FIRST, then every double quote becomes \".
//     Backslashes must go first or the quote substitution would be escaped
//     a second time.
//   The stamp fragment routinely contains double-quoted XML attributes, so
//   the double-quote substitution is exercised on every real document.
//
// Everything in this package is a pure string function; file layout and
// match discovery live elsewhere.
//
// =============================================================================

package sqlgen

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// BUILDER STRUCTURE
// =============================================================================

// Builder renders statements for a fixed table layout and console command.
type Builder struct {
	// AttemptsTable is the table receiving the stamp updates.
	AttemptsTable string

	// InvoicesTable is the table queried by the folio lookup.
	InvoicesTable string

	// ConsoleCommand is the remote console invocation prefix.
	ConsoleCommand string
}

// NewBuilder returns a Builder with the production table layout.
func NewBuilder() *Builder {
	return &Builder{
		AttemptsTable:  "invoice_invoice_attempts",
		InvoicesTable:  "invoice_invoices",
		ConsoleCommand: "bin/console doctrine:query:sql",
	}
}

// =============================================================================
// CONSOLE ESCAPING
// =============================================================================

// EscapeConsole escapes a string for embedding inside the console command's
// double-quoted shell argument. Backslashes are doubled before quotes are
// escaped so the escaping is not applied twice.
func EscapeConsole(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// UnescapeConsole is the exact inverse of EscapeConsole: each backslash
// escape collapses to the character it protects. Round-tripping any value
// through EscapeConsole and UnescapeConsole yields the original bytes.
func UnescapeConsole(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// =============================================================================
// STATEMENT RENDERING
// =============================================================================

// UpdateByID renders the UPDATE for an indexed (ledger-driven) match:
//
//	UPDATE <attempts> SET xml = '<filename>', tfd = '<tfd>',
//	  raw_response = NULL, uuid = '<uuid>' WHERE id = <id>
//
// Numeric identifiers are rendered bare, as the database column is integer
// in the common case; anything else is single-quoted like the other literals.
func (b *Builder) UpdateByID(id, filename, tfd, uuid string) string {
	key := id
	if _, err := strconv.Atoi(id); err != nil {
		key = quoteLiteral(id)
	}
	return fmt.Sprintf(
		"UPDATE %s SET xml = %s, tfd = %s, raw_response = NULL, uuid = %s WHERE id = %s",
		b.AttemptsTable,
		quoteLiteral(filename),
		quoteLiteral(tfd),
		quoteLiteral(uuid),
		key,
	)
}

// UpdateByFolio renders the UPDATE for a folio-keyed match. The attempt is
// addressed by invoice_id with the stamping-attempt type predicate, and the
// row is marked delivered via status = 1:
//
//	UPDATE <attempts> SET xml = '<filename>', tfd = '<tfd>',
//	  raw_response = NULL, uuid = '<uuid>', status = 1
//	  WHERE invoice_id = <folio> AND type = 2
func (b *Builder) UpdateByFolio(folio int, filename, tfd, uuid string) string {
	return fmt.Sprintf(
		"UPDATE %s SET xml = %s, tfd = %s, raw_response = NULL, uuid = %s, status = 1 WHERE invoice_id = %d AND type = 2",
		b.AttemptsTable,
		quoteLiteral(filename),
		quoteLiteral(tfd),
		quoteLiteral(uuid),
		folio,
	)
}

// Search renders the folio lookup statement:
//
//	SELECT parent_id FROM <invoices> WHERE id IN (<folio>, <folio>, ...)
//
// Folios are numeric, so no escaping is involved.
func (b *Builder) Search(folios []int) string {
	parts := make([]string, len(folios))
	for i, f := range folios {
		parts[i] = strconv.Itoa(f)
	}
	return fmt.Sprintf("SELECT parent_id FROM %s WHERE id IN (%s)", b.InvoicesTable, strings.Join(parts, ", "))
}

// ConsoleLine wraps an assembled statement in the console invocation. The
// result is exactly one output line, with no trailing characters.
func (b *Builder) ConsoleLine(sql string) string {
	return b.ConsoleCommand + ` "` + EscapeConsole(sql) + `"`
}

// UnwrapConsole strips the console invocation from a generated line and
// undoes the shell escaping, recovering the plain SQL statement. Used by the
// verify command to replay a querys.sql file.
func (b *Builder) UnwrapConsole(line string) (string, error) {
	prefix := b.ConsoleCommand + ` "`
	if !strings.HasPrefix(line, prefix) || !strings.HasSuffix(line, `"`) || len(line) < len(prefix)+1 {
		return "", fmt.Errorf("line is not a %s invocation", b.ConsoleCommand)
	}
	return UnescapeConsole(line[len(prefix) : len(line)-1]), nil
}

// quoteLiteral renders a single-quoted SQL string literal. Embedded single
// quotes are doubled.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
