// =============================================================================
// CFDI Stamp Reconciler - Orchestrator Tests
// =============================================================================
//
// End-to-end tests over a temporary company tree: real files in, real
// querys.sql/search.sql out.
//
// =============================================================================

package reconciler

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cfdi-tools/stamp-reconciler/internal/config"
)

// testConfig returns a default configuration rooted at dir.
func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.RootDir = dir
	return cfg
}

// quietLogger returns a logger that swallows output.
func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// writeCompany creates a company folder with the given XML documents
// (filename -> content) and, when csv is non-empty, an information.csv.
func writeCompany(t *testing.T, root, name, csv string, xmls map[string]string) {
	t.Helper()

	xmlDir := filepath.Join(root, name, "XMLS")
	if err := os.MkdirAll(xmlDir, 0755); err != nil {
		t.Fatal(err)
	}
	for filename, content := range xmls {
		if err := os.WriteFile(filepath.Join(xmlDir, filename), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if csv != "" {
		if err := os.WriteFile(filepath.Join(root, name, "information.csv"), []byte(csv), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// cfdiDoc renders a minimal CFDI document.
func cfdiDoc(rfc string, folio, uuid string) string {
	return `<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" xmlns:tfd="http://www.sat.gob.mx/TimbreFiscalDigital" Rfc="` + rfc + `" Folio="` + folio + `">
  <cfdi:Complemento>
    <tfd:TimbreFiscalDigital Version="1.1" UUID="` + uuid + `"/>
  </cfdi:Complemento>
</cfdi:Comprobante>`
}

// =============================================================================
// DISCOVERY
// =============================================================================

func TestDiscoverCompanies(t *testing.T) {
	root := t.TempDir()
	writeCompany(t, root, "beta", "", map[string]string{"a.xml": cfdiDoc("AAA010101AAA", "1", "u")})
	writeCompany(t, root, "alpha", "", map[string]string{"a.xml": cfdiDoc("AAA010101AAA", "1", "u")})

	// Not companies: no XMLS subfolder, empty XMLS, hidden folder.
	if err := os.MkdirAll(filepath.Join(root, "no-xmls"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "empty", "XMLS"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, ".hidden", "XMLS"), 0755); err != nil {
		t.Fatal(err)
	}

	companies, err := DiscoverCompanies(root, "XMLS")
	if err != nil {
		t.Fatalf("DiscoverCompanies: %v", err)
	}

	if len(companies) != 2 {
		t.Fatalf("companies = %+v", companies)
	}
	if companies[0].Name != "alpha" || companies[1].Name != "beta" {
		t.Errorf("companies not sorted: %+v", companies)
	}
}

// =============================================================================
// INDEXED VARIANT
// =============================================================================

func TestProcessCompanyIndexedGoldenLine(t *testing.T) {
	root := t.TempDir()
	writeCompany(t, root, "acme",
		"5,AAA010101AAA\n",
		map[string]string{"invoice5.xml": cfdiDoc("AAA010101AAA", "100", "1234-5678")},
	)

	rec := New(testConfig(root), quietLogger())
	result := rec.ProcessCompany(Company{
		Name:   "acme",
		Dir:    filepath.Join(root, "acme"),
		XMLDir: filepath.Join(root, "acme", "XMLS"),
	})

	if result.Err != nil {
		t.Fatalf("ProcessCompany: %v", result.Err)
	}
	if result.Variant != VariantRFC {
		t.Errorf("Variant = %q", result.Variant)
	}
	if result.Stats.Statements != 1 {
		t.Errorf("Statements = %d", result.Stats.Statements)
	}
	if result.SearchFile != "" {
		t.Errorf("indexed variant wrote a search file: %q", result.SearchFile)
	}

	got, err := os.ReadFile(result.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	want := `bin/console doctrine:query:sql "UPDATE invoice_invoice_attempts SET xml = 'invoice5.xml', tfd = '<tfd:TimbreFiscalDigital Version=\"1.1\" UUID=\"1234-5678\"/>', raw_response = NULL, uuid = '1234-5678' WHERE id = 5"` + "\n"
	if string(got) != want {
		t.Errorf("querys.sql = %q, want %q", got, want)
	}
}

func TestProcessCompanyAmbiguousRFCEmitsNothing(t *testing.T) {
	root := t.TempDir()
	writeCompany(t, root, "acme",
		"5,AAA010101AAA\n",
		map[string]string{
			"a.xml": cfdiDoc("AAA010101AAA", "1", "u-a"),
			"b.xml": cfdiDoc("AAA010101AAA", "2", "u-b"),
		},
	)

	rec := New(testConfig(root), quietLogger())
	result := rec.ProcessCompany(Company{
		Name:   "acme",
		Dir:    filepath.Join(root, "acme"),
		XMLDir: filepath.Join(root, "acme", "XMLS"),
	})

	if result.Err != nil {
		t.Fatalf("ProcessCompany: %v", result.Err)
	}
	if result.Stats.Statements != 0 || result.Stats.Ambiguous != 1 {
		t.Errorf("Stats = %+v", result.Stats)
	}

	// The output file exists and is empty: ambiguity is skipped, not fatal.
	got, err := os.ReadFile(result.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("querys.sql = %q, want empty", got)
	}
}

func TestProcessCompanyUnresolvedAndSkipped(t *testing.T) {
	root := t.TempDir()
	writeCompany(t, root, "acme",
		"5,AAA010101AAA\n6,ZZZ999999ZZZ\n",
		map[string]string{
			"good.xml":   cfdiDoc("AAA010101AAA", "1", "u-a"),
			"broken.xml": "<cfdi:Comprobante",
		},
	)

	rec := New(testConfig(root), quietLogger())
	result := rec.ProcessCompany(Company{
		Name:   "acme",
		Dir:    filepath.Join(root, "acme"),
		XMLDir: filepath.Join(root, "acme", "XMLS"),
	})

	if result.Err != nil {
		t.Fatalf("ProcessCompany: %v", result.Err)
	}
	if result.Stats.Statements != 1 {
		t.Errorf("Statements = %d", result.Stats.Statements)
	}
	if result.Stats.SkippedFiles != 1 {
		t.Errorf("SkippedFiles = %d", result.Stats.SkippedFiles)
	}
	if result.Stats.Unresolved != 1 {
		t.Errorf("Unresolved = %d", result.Stats.Unresolved)
	}
}

func TestProcessCompanyDuplicateRFCKeepsFirst(t *testing.T) {
	root := t.TempDir()
	writeCompany(t, root, "acme",
		"5,AAA010101AAA\n9,AAA010101AAA\n",
		map[string]string{"a.xml": cfdiDoc("AAA010101AAA", "1", "u-a")},
	)

	rec := New(testConfig(root), quietLogger())
	result := rec.ProcessCompany(Company{
		Name:   "acme",
		Dir:    filepath.Join(root, "acme"),
		XMLDir: filepath.Join(root, "acme", "XMLS"),
	})

	if result.Stats.DuplicateRFCs != 1 {
		t.Errorf("DuplicateRFCs = %d", result.Stats.DuplicateRFCs)
	}

	got, err := os.ReadFile(result.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "WHERE id = 5") {
		t.Errorf("querys.sql = %q, want the first ledger occurrence", got)
	}
}

// =============================================================================
// FOLIO VARIANT
// =============================================================================

func TestProcessCompanyFolioVariant(t *testing.T) {
	root := t.TempDir()
	writeCompany(t, root, "acme", "", map[string]string{
		"a.xml": cfdiDoc("AAA010101AAA", "10", "u-a"),
		"b.xml": cfdiDoc("BBB020202BBB", "20", "u-b"),
		"c.xml": cfdiDoc("CCC030303CCC", "30", "u-c"),
	})

	rec := New(testConfig(root), quietLogger())
	result := rec.ProcessCompany(Company{
		Name:   "acme",
		Dir:    filepath.Join(root, "acme"),
		XMLDir: filepath.Join(root, "acme", "XMLS"),
	})

	if result.Err != nil {
		t.Fatalf("ProcessCompany: %v", result.Err)
	}
	if result.Variant != VariantFolio {
		t.Errorf("Variant = %q", result.Variant)
	}
	if result.Stats.Statements != 3 {
		t.Errorf("Statements = %d", result.Stats.Statements)
	}

	queries, err := os.ReadFile(result.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(queries), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("querys.sql lines = %d", len(lines))
	}
	if !strings.Contains(lines[0], "WHERE invoice_id = 10 AND type = 2") ||
		!strings.Contains(lines[0], "status = 1") {
		t.Errorf("first line = %q", lines[0])
	}

	search, err := os.ReadFile(result.SearchFile)
	if err != nil {
		t.Fatal(err)
	}
	wantSearch := "SELECT parent_id FROM invoice_invoices WHERE id IN (10, 20, 30)\n"
	if string(search) != wantSearch {
		t.Errorf("search.sql = %q, want %q", search, wantSearch)
	}
}

func TestProcessCompanyFolioDuplicatesSkipped(t *testing.T) {
	root := t.TempDir()
	writeCompany(t, root, "acme", "", map[string]string{
		"a.xml": cfdiDoc("AAA010101AAA", "10", "u-a"),
		"b.xml": cfdiDoc("BBB020202BBB", "10", "u-b"),
	})

	rec := New(testConfig(root), quietLogger())
	result := rec.ProcessCompany(Company{
		Name:   "acme",
		Dir:    filepath.Join(root, "acme"),
		XMLDir: filepath.Join(root, "acme", "XMLS"),
	})

	if result.Stats.Statements != 0 || result.Stats.Ambiguous != 1 {
		t.Errorf("Stats = %+v", result.Stats)
	}

	// Both output files exist and are empty.
	for _, path := range []string{result.OutputFile, result.SearchFile} {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("%s = %q, want empty", filepath.Base(path), got)
		}
	}
}

// =============================================================================
// FULL RUN
// =============================================================================

func TestRunProcessesAllCompaniesSequentially(t *testing.T) {
	root := t.TempDir()
	writeCompany(t, root, "one",
		"5,AAA010101AAA\n",
		map[string]string{"a.xml": cfdiDoc("AAA010101AAA", "1", "u-a")},
	)
	writeCompany(t, root, "two", "", map[string]string{
		"b.xml": cfdiDoc("BBB020202BBB", "20", "u-b"),
	})

	rec := New(testConfig(root), quietLogger())
	summary, results, err := rec.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Companies != 2 || summary.Statements != 2 || summary.Failures != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(results) != 2 || results[0].Company != "one" || results[1].Company != "two" {
		t.Errorf("results = %+v", results)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	root := t.TempDir()
	writeCompany(t, root, "acme",
		"5,AAA010101AAA\n",
		map[string]string{"a.xml": cfdiDoc("AAA010101AAA", "1", "u-a")},
	)

	rec := New(testConfig(root), quietLogger())
	rec.DryRun = true
	result := rec.ProcessCompany(Company{
		Name:   "acme",
		Dir:    filepath.Join(root, "acme"),
		XMLDir: filepath.Join(root, "acme", "XMLS"),
	})

	if result.Stats.Statements != 1 {
		t.Errorf("Statements = %d", result.Stats.Statements)
	}
	if _, err := os.Stat(result.OutputFile); !os.IsNotExist(err) {
		t.Errorf("dry run wrote %s", result.OutputFile)
	}
}
