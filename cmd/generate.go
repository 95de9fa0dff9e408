// =============================================================================
// CFDI Stamp Reconciler - Generate Command
// =============================================================================
//
// This file defines the 'generate' command, the main command of the tool. It
// walks the company folders and writes the per-company statement files.
//
// COMMAND USAGE:
//   stamp-reconciler generate [flags]
//
// FLAGS:
//   --root      : Root directory containing the company folders
//   --company   : Process only the named company folder
//   --dry-run   : Report what would be written without touching any file
//
// PROCESSING PIPELINE (per company, strictly sequential):
//   1. Extract stamp fields from every XML document
//   2. Detect the variant (index ledger present or not)
//   3. Match documents to database rows (by RFC or by folio)
//   4. Render console-wrapped UPDATE statements
//   5. Write querys.sql (and search.sql for the folio variant)
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cfdi-tools/stamp-reconciler/internal/reconciler"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// rootDir overrides the configured root directory.
var rootDir string

// companyName restricts processing to a single company folder.
var companyName string

// dryRun reports without writing output files.
var dryRun bool

// =============================================================================
// GENERATE COMMAND DEFINITION
// =============================================================================

// generateCmd represents the 'generate' command.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate querys.sql (and search.sql) for every company folder",
	Long: `The generate command scans the root directory for company folders (folders
containing an XMLS/ subfolder with at least one document), reconciles each
company's documents against its index, and writes the statement files into
the company folder.

Failures are scoped: a document that does not parse, a ledger record with no
matching document, or an ambiguous match is logged and skipped. A company
with nothing resolvable still gets an empty querys.sql. Only the offending
record is dropped; the batch always runs to completion.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate()
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init registers the generate command and its flags.
func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(
		&rootDir,
		"root",
		"",
		"Root directory containing the company folders (overrides the config)",
	)

	generateCmd.Flags().StringVar(
		&companyName,
		"company",
		"",
		"Process only the named company folder",
	)

	generateCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Report what would be written without touching any file",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runGenerate orchestrates a full generation run.
func runGenerate() error {
	startTime := time.Now()

	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}
	if rootDir != "" {
		cfg.RootDir = rootDir
	}

	fmt.Println("=== CFDI Stamp Reconciler ===")
	fmt.Printf("Scanning %s for company folders...\n", cfg.RootDir)

	rec := reconciler.New(cfg, log)
	rec.DryRun = dryRun

	companies, err := reconciler.DiscoverCompanies(cfg.RootDir, cfg.XMLSubdir)
	if err != nil {
		return err
	}
	if companyName != "" {
		companies = filterCompany(companies, companyName)
		if len(companies) == 0 {
			return fmt.Errorf("no company folder %q with a %s/ subfolder under %s", companyName, cfg.XMLSubdir, cfg.RootDir)
		}
	}
	if len(companies) == 0 {
		fmt.Printf("No company folders with a %s/ subfolder found.\n", cfg.XMLSubdir)
		return nil
	}

	fmt.Printf("Found %d company folder(s)\n\n", len(companies))

	var summary reconciler.Summary
	for _, company := range companies {
		result := rec.ProcessCompany(company)

		summary.Companies++
		summary.Statements += result.Stats.Statements
		summary.Unresolved += result.Stats.Unresolved
		summary.Ambiguous += result.Stats.Ambiguous
		summary.Skipped += result.Stats.SkippedFiles

		if result.Err != nil {
			summary.Failures++
			fmt.Printf("  ✗ %s: %v\n", result.Company, result.Err)
			continue
		}

		fmt.Printf("  ✓ %s -> %s (%d statement(s), %s)\n",
			result.Company,
			filepath.Base(result.OutputFile),
			result.Stats.Statements,
			result.Variant,
		)
	}

	elapsed := time.Since(startTime)
	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Companies:       %d\n", summary.Companies)
	fmt.Printf("Statements:      %d\n", summary.Statements)
	fmt.Printf("Unresolved:      %d\n", summary.Unresolved)
	fmt.Printf("Ambiguous:       %d\n", summary.Ambiguous)
	fmt.Printf("Skipped files:   %d\n", summary.Skipped)
	fmt.Printf("Failures:        %d\n", summary.Failures)
	fmt.Printf("Time elapsed:    %s\n", elapsed)

	if dryRun {
		fmt.Println("\nDry run: no files were written.")
	}

	return nil
}

// filterCompany keeps only the company with the given folder name.
func filterCompany(companies []reconciler.Company, name string) []reconciler.Company {
	var kept []reconciler.Company
	for _, c := range companies {
		if c.Name == name {
			kept = append(kept, c)
		}
	}
	return kept
}
