// =============================================================================
// CFDI Stamp Reconciler - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, a read-only pass over the same
// inputs the generate command consumes. Nothing is written; the command
// reports what generation would skip and why:
//   - documents that do not parse or are missing the stamp fields
//   - ledger rows with duplicate RFCs
//   - ledger records with no matching document, and ambiguous matches
//   - stamp UUIDs that are not canonical RFC-4122 strings (warning only;
//     generation never rejects a non-canonical UUID)
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cfdi-tools/stamp-reconciler/internal/cfdi"
	"github.com/cfdi-tools/stamp-reconciler/internal/index"
	"github.com/cfdi-tools/stamp-reconciler/internal/matcher"
	"github.com/cfdi-tools/stamp-reconciler/internal/reconciler"
	"github.com/cfdi-tools/stamp-reconciler/pkg/utils"
)

// validateRoot overrides the configured root directory.
var validateRoot string

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check company folders without writing any output",
	Long: `The validate command parses every company's XML documents and index ledger
and reports everything the generate command would skip: malformed documents,
missing stamp fields, duplicate ledger RFCs, unresolved records, ambiguous
matches, and stamp UUIDs that are not canonical.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(
		&validateRoot,
		"root",
		"",
		"Root directory containing the company folders (overrides the config)",
	)
}

// runValidate walks the companies and reports problems without writing.
func runValidate() error {
	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}
	if validateRoot != "" {
		cfg.RootDir = validateRoot
	}

	companies, err := reconciler.DiscoverCompanies(cfg.RootDir, cfg.XMLSubdir)
	if err != nil {
		return err
	}
	if len(companies) == 0 {
		fmt.Printf("No company folders with a %s/ subfolder found.\n", cfg.XMLSubdir)
		return nil
	}

	var totalProblems int

	for _, company := range companies {
		fmt.Printf("--- %s\n", company.Name)
		clog := log.WithField("company", company.Name)

		files, err := utils.ListXMLFiles(company.XMLDir)
		if err != nil {
			fmt.Printf("  ✗ %v\n", err)
			totalProblems++
			continue
		}

		var invoices []*cfdi.Invoice
		for _, file := range files {
			raw, err := os.ReadFile(file)
			if err != nil {
				fmt.Printf("  ✗ %s: %v\n", filepath.Base(file), err)
				totalProblems++
				continue
			}

			inv, err := cfdi.Extract(filepath.Base(file), raw)
			if err != nil {
				fmt.Printf("  ✗ %v\n", err)
				totalProblems++
				continue
			}

			if _, err := uuid.Parse(inv.UUID); err != nil {
				// Non-canonical stamps still generate; flag them anyway.
				fmt.Printf("  ! %s: UUID %q is not canonical\n", inv.Filename, inv.UUID)
			}

			invoices = append(invoices, inv)
		}

		csvPath := filepath.Join(company.Dir, cfg.IndexFile)
		xlsxPath := filepath.Join(company.Dir, cfg.XLSXIndexFile)

		var problems []matcher.Problem
		switch {
		case utils.FileExists(csvPath), utils.FileExists(xlsxPath):
			var ledger *index.Ledger
			if utils.FileExists(csvPath) {
				ledger, err = index.LoadCSV(csvPath, cfg.Index)
			} else {
				ledger, err = index.LoadXLSX(xlsxPath, cfg.Index)
			}
			if err != nil {
				fmt.Printf("  ✗ %v\n", err)
				totalProblems++
				continue
			}

			for _, dup := range ledger.Duplicates {
				fmt.Printf("  ! duplicate RFC %s at row %d (first occurrence kept)\n", dup.RFC, dup.Row)
				totalProblems++
			}

			_, problems = matcher.ByRFC(ledger.Records, invoices)
		default:
			_, problems = matcher.ByFolio(invoices)
		}

		for _, p := range problems {
			fmt.Printf("  ! %s\n", p)
			totalProblems++
		}

		if len(problems) == 0 {
			clog.Debug("company validated cleanly")
		}
	}

	fmt.Printf("\n%d company folder(s) checked, %d problem(s) found.\n", len(companies), totalProblems)
	return nil
}
