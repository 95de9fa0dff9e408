// =============================================================================
// CFDI Stamp Reconciler - Verify Command
// =============================================================================
//
// This file defines the 'verify' command, which replays previously generated
// statement files against a throwaway in-memory SQLite database. For each
// company it:
//   1. Reads querys.sql and strips the console wrapping from every line,
//      undoing the shell escaping
//   2. Reads search.sql when present
//   3. Executes every recovered statement against empty mirror tables
//
// A statement that fails to execute points at an escaping or rendering bug;
// the command reports it with the offending line and exits non-zero.
//
// =============================================================================

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cfdi-tools/stamp-reconciler/internal/reconciler"
	"github.com/cfdi-tools/stamp-reconciler/internal/sqlcheck"
	"github.com/cfdi-tools/stamp-reconciler/internal/sqlgen"
	"github.com/cfdi-tools/stamp-reconciler/pkg/utils"
)

// verifyRoot overrides the configured root directory.
var verifyRoot string

// verifyCmd represents the 'verify' command.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay generated statement files through an in-memory SQLite database",
	Long: `The verify command proves that previously generated querys.sql and
search.sql files contain syntactically valid SQL. Each console line is
unwrapped and unescaped, then executed against an empty in-memory SQLite
schema mirroring the production tables. Any statement that fails to execute
is reported with its file and line number.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify()
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(
		&verifyRoot,
		"root",
		"",
		"Root directory containing the company folders (overrides the config)",
	)
}

// runVerify replays every company's generated files.
func runVerify() error {
	cfg, _, err := initRuntime()
	if err != nil {
		return err
	}
	if verifyRoot != "" {
		cfg.RootDir = verifyRoot
	}

	builder := sqlgen.NewBuilder()
	builder.AttemptsTable = cfg.AttemptsTable
	builder.InvoicesTable = cfg.InvoicesTable
	builder.ConsoleCommand = cfg.ConsoleCommand

	companies, err := reconciler.DiscoverCompanies(cfg.RootDir, cfg.XMLSubdir)
	if err != nil {
		return err
	}

	var checked, failures int

	for _, company := range companies {
		queriesPath := filepath.Join(company.Dir, cfg.QueriesFile)
		if !utils.FileExists(queriesPath) {
			continue
		}

		statements, err := readStatements(queriesPath, builder)
		if err != nil {
			fmt.Printf("  ✗ %s: %v\n", company.Name, err)
			failures++
			continue
		}

		searchPath := filepath.Join(company.Dir, cfg.SearchFile)
		if utils.FileExists(searchPath) {
			raw, err := readLines(searchPath)
			if err != nil {
				fmt.Printf("  ✗ %s: %v\n", company.Name, err)
				failures++
				continue
			}
			// search.sql lines are plain SQL, no console wrapping.
			statements = append(statements, raw...)
		}

		report, err := sqlcheck.Run(statements, sqlcheck.Options{
			AttemptsTable: cfg.AttemptsTable,
			InvoicesTable: cfg.InvoicesTable,
		})
		if err != nil {
			return err
		}

		checked++
		if report.OK() {
			fmt.Printf("  ✓ %s: %d statement(s) executed\n", company.Name, report.Executed)
			continue
		}

		failures++
		for _, f := range report.Failures {
			fmt.Printf("  ✗ %s: statement %d: %v\n      %s\n", company.Name, f.Index+1, f.Err, f.Statement)
		}
	}

	fmt.Printf("\n%d company file(s) verified, %d with failures.\n", checked, failures)
	if failures > 0 {
		return fmt.Errorf("%d company file(s) failed verification", failures)
	}
	return nil
}

// readStatements reads a querys.sql file and unwraps every console line.
func readStatements(path string, builder *sqlgen.Builder) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	statements := make([]string, 0, len(lines))
	for i, line := range lines {
		stmt, err := builder.UnwrapConsole(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), i+1, err)
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

// readLines reads the non-empty lines of a file.
func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	// Statement lines embed whole stamp fragments; allow long lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
