// =============================================================================
// CFDI Stamp Reconciler - Orchestrator
// =============================================================================
//
// This module ties the pipeline together for each company folder:
//
//   1. List the company's XML documents in sorted order
//   2. Extract the stamp fields from each document (failures skip the file)
//   3. Detect the reconciliation variant:
//        - a CSV or XLSX ledger present  -> match ledger records by RFC
//        - no ledger                     -> each invoice keyed by its folio
//   4. Render one console-wrapped UPDATE per resolved match
//   5. Write querys.sql (and search.sql for the folio variant)
//
// PROCESSING MODEL:
//   Strictly sequential. Each company is processed to completion before the
//   next begins, and each file is opened, parsed, and closed before the next
//   is opened. A failure is scoped to the offending record, file, or company;
//   nothing aborts the batch.
//
// =============================================================================

package reconciler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cfdi-tools/stamp-reconciler/internal/cfdi"
	"github.com/cfdi-tools/stamp-reconciler/internal/config"
	"github.com/cfdi-tools/stamp-reconciler/internal/index"
	"github.com/cfdi-tools/stamp-reconciler/internal/matcher"
	"github.com/cfdi-tools/stamp-reconciler/internal/sqlgen"
	"github.com/cfdi-tools/stamp-reconciler/pkg/utils"
)

// =============================================================================
// VARIANT
// =============================================================================

// Variant identifies how a company is reconciled.
type Variant string

const (
	// VariantRFC means an index ledger is present and ledger records are
	// matched against invoices by RFC.
	VariantRFC Variant = "rfc-index"

	// VariantFolio means no ledger exists and each invoice's own folio is
	// the correlation key.
	VariantFolio Variant = "folio"
)

// =============================================================================
// COMPANY, RESULT AND SUMMARY STRUCTURES
// =============================================================================

// Company is one unit of work: a folder with an XML subfolder.
type Company struct {
	// Name is the folder name, used in logs and the summary.
	Name string

	// Dir is the company folder path.
	Dir string

	// XMLDir is the path of the XML subfolder.
	XMLDir string
}

// Result is the outcome of processing a single company.
type Result struct {
	// Company is the company name.
	Company string

	// Variant is the reconciliation variant that was applied.
	Variant Variant

	// OutputFile is the path of the written statement file.
	OutputFile string

	// SearchFile is the path of the written folio lookup file.
	// Empty for the indexed variant.
	SearchFile string

	// Err is a company-level failure (e.g. an unreadable ledger).
	// Per-file and per-record problems are counted in Stats instead.
	Err error

	// Stats contains processing statistics.
	Stats Stats
}

// Stats contains statistics about one company's processing.
type Stats struct {
	// XMLFiles is the number of XML documents found.
	XMLFiles int

	// SkippedFiles is the number of documents that failed extraction.
	SkippedFiles int

	// Statements is the number of UPDATE lines written.
	Statements int

	// Unresolved is the number of ledger records with no matching invoice.
	Unresolved int

	// Ambiguous is the number of keys matched by more than one invoice.
	Ambiguous int

	// DuplicateRFCs is the number of ledger rows dropped as duplicates.
	DuplicateRFCs int

	// ProcessingTime is the time taken to process the company.
	ProcessingTime time.Duration
}

// Summary aggregates the results of a whole run.
type Summary struct {
	Companies  int
	Failures   int
	Statements int
	Unresolved int
	Ambiguous  int
	Skipped    int
}

// =============================================================================
// COMPANY DISCOVERY
// =============================================================================

// DiscoverCompanies lists the company folders under root: the directories
// (sorted by name, hidden ones skipped) that contain an XML subfolder with at
// least one document.
func DiscoverCompanies(root, xmlSubdir string) ([]Company, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory %s: %w", root, err)
	}

	var companies []Company
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		xmlDir := filepath.Join(dir, xmlSubdir)
		if !utils.DirExists(xmlDir) {
			continue
		}

		files, err := utils.ListXMLFiles(xmlDir)
		if err != nil || len(files) == 0 {
			continue
		}

		companies = append(companies, Company{
			Name:   entry.Name(),
			Dir:    dir,
			XMLDir: xmlDir,
		})
	}

	sort.Slice(companies, func(i, j int) bool { return companies[i].Name < companies[j].Name })
	return companies, nil
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler runs the pipeline over company folders.
type Reconciler struct {
	cfg     *config.Config
	log     *logrus.Logger
	builder *sqlgen.Builder

	// DryRun reports what would be written without touching any file.
	DryRun bool
}

// New creates a Reconciler for the given configuration.
func New(cfg *config.Config, log *logrus.Logger) *Reconciler {
	builder := sqlgen.NewBuilder()
	builder.AttemptsTable = cfg.AttemptsTable
	builder.InvoicesTable = cfg.InvoicesTable
	builder.ConsoleCommand = cfg.ConsoleCommand

	return &Reconciler{
		cfg:     cfg,
		log:     log,
		builder: builder,
	}
}

// Run processes every company under the configured root, sequentially, and
// returns the aggregated summary alongside the per-company results.
func (r *Reconciler) Run() (*Summary, []Result, error) {
	companies, err := DiscoverCompanies(r.cfg.RootDir, r.cfg.XMLSubdir)
	if err != nil {
		return nil, nil, err
	}

	summary := &Summary{}
	results := make([]Result, 0, len(companies))

	for _, company := range companies {
		result := r.ProcessCompany(company)
		results = append(results, result)

		summary.Companies++
		summary.Statements += result.Stats.Statements
		summary.Unresolved += result.Stats.Unresolved
		summary.Ambiguous += result.Stats.Ambiguous
		summary.Skipped += result.Stats.SkippedFiles
		if result.Err != nil {
			summary.Failures++
		}
	}

	return summary, results, nil
}

// ProcessCompany runs the full pipeline for one company folder.
func (r *Reconciler) ProcessCompany(company Company) Result {
	start := time.Now()
	log := r.log.WithField("company", company.Name)

	result := Result{Company: company.Name}

	invoices, skipped := r.extractAll(company, log)
	result.Stats.XMLFiles = len(invoices) + skipped
	result.Stats.SkippedFiles = skipped

	var (
		lines    []string
		folios   []int
		problems []matcher.Problem
	)

	csvPath := filepath.Join(company.Dir, r.cfg.IndexFile)
	xlsxPath := filepath.Join(company.Dir, r.cfg.XLSXIndexFile)

	switch {
	case utils.FileExists(csvPath), utils.FileExists(xlsxPath):
		result.Variant = VariantRFC

		ledger, err := r.loadLedger(csvPath, xlsxPath)
		if err != nil {
			result.Err = err
			result.Stats.ProcessingTime = time.Since(start)
			log.WithError(err).Error("failed to load index ledger")
			return result
		}

		result.Stats.DuplicateRFCs = len(ledger.Duplicates)
		for _, dup := range ledger.Duplicates {
			log.WithFields(logrus.Fields{
				"rfc": dup.RFC,
				"row": dup.Row,
			}).Warn("duplicate RFC in index, keeping first occurrence")
		}

		var matches []matcher.Match
		matches, problems = matcher.ByRFC(ledger.Records, invoices)
		for _, m := range matches {
			sql := r.builder.UpdateByID(m.ID, m.Invoice.Filename, m.Invoice.TFD, m.Invoice.UUID)
			lines = append(lines, r.builder.ConsoleLine(sql))
		}

	default:
		result.Variant = VariantFolio

		var matches []matcher.Match
		matches, problems = matcher.ByFolio(invoices)
		for _, m := range matches {
			sql := r.builder.UpdateByFolio(m.Invoice.Folio, m.Invoice.Filename, m.Invoice.TFD, m.Invoice.UUID)
			lines = append(lines, r.builder.ConsoleLine(sql))
			folios = append(folios, m.Invoice.Folio)
		}
	}

	for _, p := range problems {
		switch p.Kind {
		case matcher.NoMatch:
			result.Stats.Unresolved++
		case matcher.Ambiguous:
			result.Stats.Ambiguous++
		}
		log.Warn(p.String())
	}

	result.Stats.Statements = len(lines)
	result.OutputFile = filepath.Join(company.Dir, r.cfg.QueriesFile)

	if !r.DryRun {
		if err := utils.WriteLines(result.OutputFile, lines); err != nil {
			result.Err = err
			result.Stats.ProcessingTime = time.Since(start)
			return result
		}
	}

	if result.Variant == VariantFolio {
		result.SearchFile = filepath.Join(company.Dir, r.cfg.SearchFile)
		var searchLines []string
		if len(folios) > 0 {
			searchLines = []string{r.builder.Search(folios)}
		}
		if !r.DryRun {
			if err := utils.WriteLines(result.SearchFile, searchLines); err != nil {
				result.Err = err
				result.Stats.ProcessingTime = time.Since(start)
				return result
			}
		}
	}

	result.Stats.ProcessingTime = time.Since(start)
	log.WithFields(logrus.Fields{
		"variant":    result.Variant,
		"statements": result.Stats.Statements,
		"skipped":    result.Stats.SkippedFiles,
		"unresolved": result.Stats.Unresolved,
		"ambiguous":  result.Stats.Ambiguous,
	}).Info("company processed")

	return result
}

// =============================================================================
// HELPERS
// =============================================================================

// extractAll reads and extracts every XML document of the company, in sorted
// file order. Documents that fail extraction are logged and counted, never
// fatal. Each file is fully read and released before the next is opened.
func (r *Reconciler) extractAll(company Company, log *logrus.Entry) ([]*cfdi.Invoice, int) {
	files, err := utils.ListXMLFiles(company.XMLDir)
	if err != nil {
		log.WithError(err).Error("failed to list XML files")
		return nil, 0
	}

	var invoices []*cfdi.Invoice
	skipped := 0

	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			log.WithError(err).WithField("file", filepath.Base(file)).Warn("failed to read XML file, skipping")
			skipped++
			continue
		}

		inv, err := cfdi.Extract(filepath.Base(file), raw)
		if err != nil {
			log.WithError(err).Warn("failed to extract invoice fields, skipping")
			skipped++
			continue
		}

		invoices = append(invoices, inv)
	}

	return invoices, skipped
}

// loadLedger loads whichever ledger file exists, preferring the CSV.
func (r *Reconciler) loadLedger(csvPath, xlsxPath string) (*index.Ledger, error) {
	if utils.FileExists(csvPath) {
		return index.LoadCSV(csvPath, r.cfg.Index)
	}
	return index.LoadXLSX(xlsxPath, r.cfg.Index)
}
