// =============================================================================
// CFDI Stamp Reconciler - Matcher
// =============================================================================
//
// This module pairs extracted invoices with their database rows. Two policies
// exist, selected per company by whether an index ledger is present:
//
//   - ByRFC:   each ledger record is matched against the invoice whose RFC
//              equals the record's RFC, exactly and case-sensitively.
//   - ByFolio: no ledger; each invoice is its own unit and its folio number
//              is the correlation key directly.
//
// MATCHING POLICY:
//   At most one invoice may match a given key. Zero matches leave the record
//   unresolved; more than one is ambiguous. Both cases produce a Problem and
//   no output line - the matcher never guesses.
//
// The functions here are pure: slices in, slices out, no I/O. That keeps the
// matching policy unit-testable on its own.
//
// =============================================================================

package matcher

import (
	"fmt"
	"strings"

	"github.com/cfdi-tools/stamp-reconciler/internal/cfdi"
	"github.com/cfdi-tools/stamp-reconciler/internal/index"
)

// =============================================================================
// MATCH AND PROBLEM STRUCTURES
// =============================================================================

// Match associates one ledger record (or folio) with exactly one invoice.
type Match struct {
	// ID is the database identifier from the ledger. Empty for ByFolio
	// matches, where the invoice's own folio is the key.
	ID string

	// Invoice is the matched invoice.
	Invoice *cfdi.Invoice
}

// Kind classifies a matching problem.
type Kind string

const (
	// NoMatch means a ledger record has no corresponding invoice.
	NoMatch Kind = "no_match"

	// Ambiguous means more than one invoice shares the correlation key.
	Ambiguous Kind = "ambiguous_match"
)

// Problem is a record or invoice that could not be resolved.
// Problems are logged and counted; they never abort a company.
type Problem struct {
	// Kind classifies the problem.
	Kind Kind

	// Key is the RFC or folio that failed to resolve.
	Key string

	// Files lists the invoice files involved (empty for NoMatch).
	Files []string
}

// String renders the problem for logs.
func (p Problem) String() string {
	if len(p.Files) == 0 {
		return fmt.Sprintf("%s: key %s has no matching XML", p.Kind, p.Key)
	}
	return fmt.Sprintf("%s: key %s matches %d files (%s)", p.Kind, p.Key, len(p.Files), strings.Join(p.Files, ", "))
}

// =============================================================================
// MATCHING POLICIES
// =============================================================================

// ByRFC pairs ledger records with invoices by exact RFC equality.
//
// PARAMETERS:
//   - records: The ledger records, in source order.
//   - invoices: The extracted invoices, in discovery order.
//
// RETURNS:
//   - Matches, in ledger record order.
//   - Problems for unresolved and ambiguous records.
func ByRFC(records []index.Record, invoices []*cfdi.Invoice) ([]Match, []Problem) {
	byRFC := make(map[string][]*cfdi.Invoice)
	for _, inv := range invoices {
		byRFC[inv.RFC] = append(byRFC[inv.RFC], inv)
	}

	var matches []Match
	var problems []Problem

	for _, rec := range records {
		candidates := byRFC[rec.RFC]
		switch len(candidates) {
		case 0:
			problems = append(problems, Problem{Kind: NoMatch, Key: rec.RFC})
		case 1:
			matches = append(matches, Match{ID: rec.ID, Invoice: candidates[0]})
		default:
			problems = append(problems, Problem{
				Kind:  Ambiguous,
				Key:   rec.RFC,
				Files: filenames(candidates),
			})
		}
	}

	return matches, problems
}

// ByFolio treats each invoice as its own unit, keyed by its folio number.
// Invoices sharing a folio are all ambiguous and none is matched.
//
// PARAMETERS:
//   - invoices: The extracted invoices, in discovery order.
//
// RETURNS:
//   - Matches, in discovery order.
//   - One Problem per duplicated folio.
func ByFolio(invoices []*cfdi.Invoice) ([]Match, []Problem) {
	byFolio := make(map[int][]*cfdi.Invoice)
	for _, inv := range invoices {
		byFolio[inv.Folio] = append(byFolio[inv.Folio], inv)
	}

	var matches []Match
	var problems []Problem
	reported := make(map[int]bool)

	for _, inv := range invoices {
		carriers := byFolio[inv.Folio]
		if len(carriers) == 1 {
			matches = append(matches, Match{Invoice: inv})
			continue
		}
		if !reported[inv.Folio] {
			reported[inv.Folio] = true
			problems = append(problems, Problem{
				Kind:  Ambiguous,
				Key:   fmt.Sprintf("%d", inv.Folio),
				Files: filenames(carriers),
			})
		}
	}

	return matches, problems
}

// filenames lists the source files of the given invoices.
func filenames(invoices []*cfdi.Invoice) []string {
	names := make([]string, len(invoices))
	for i, inv := range invoices {
		names[i] = inv.Filename
	}
	return names
}
