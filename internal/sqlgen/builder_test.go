// =============================================================================
// CFDI Stamp Reconciler - SQL Statement Builder Tests
// =============================================================================

package sqlgen

import (
	"strings"
	"testing"
)

// =============================================================================
// CONSOLE ESCAPING
// =============================================================================

func TestEscapeConsole(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"double quote", `a"b`, `a\"b`},
		{"backslash", `a\b`, `a\\b`},
		{"backslash then quote", `a\"b`, `a\\\"b`},
		{"xml attribute", `<tfd:TimbreFiscalDigital Version="1.1"/>`, `<tfd:TimbreFiscalDigital Version=\"1.1\"/>`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeConsole(tt.in); got != tt.want {
				t.Errorf("EscapeConsole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEscapeConsoleRoundTrip(t *testing.T) {
	// Escaping followed by the inverse unescape must recover the exact
	// original value, including embedded quotes and backslashes.
	values := []string{
		"plain",
		`he said "hi"`,
		`back\slash`,
		`mixed \" and \\ and """`,
		`<tfd:TimbreFiscalDigital xmlns:tfd="http://www.sat.gob.mx/TimbreFiscalDigital" UUID="ad662d33-6934-459c-a128-BDf0393f0f44" Sello="q\w\e=="/>`,
		``,
		`\`,
		`"`,
		`\\\"`,
	}

	for _, v := range values {
		if got := UnescapeConsole(EscapeConsole(v)); got != v {
			t.Errorf("round trip of %q = %q", v, got)
		}
	}
}

func TestEscapeConsoleLeavesNoUnescapedQuotes(t *testing.T) {
	escaped := EscapeConsole(`a"b\"c"""`)
	for i := 0; i < len(escaped); i++ {
		if escaped[i] != '"' {
			continue
		}
		// Count the run of backslashes preceding the quote; it must be odd.
		n := 0
		for j := i - 1; j >= 0 && escaped[j] == '\\'; j-- {
			n++
		}
		if n%2 == 0 {
			t.Fatalf("unescaped double quote at %d in %q", i, escaped)
		}
	}
}

// =============================================================================
// STATEMENT RENDERING
// =============================================================================

func TestUpdateByID(t *testing.T) {
	b := NewBuilder()

	got := b.UpdateByID("5", "invoice5.xml", `<TimbreFiscalDigital UUID="1234-5678"/>`, "1234-5678")
	want := `UPDATE invoice_invoice_attempts SET xml = 'invoice5.xml', tfd = '<TimbreFiscalDigital UUID="1234-5678"/>', raw_response = NULL, uuid = '1234-5678' WHERE id = 5`
	if got != want {
		t.Errorf("UpdateByID = %q, want %q", got, want)
	}
}

func TestUpdateByIDQuotesOpaqueIdentifiers(t *testing.T) {
	b := NewBuilder()

	got := b.UpdateByID("abc-9", "a.xml", "<t/>", "u")
	if !strings.Contains(got, "WHERE id = 'abc-9'") {
		t.Errorf("non-numeric identifier not quoted: %q", got)
	}

	got = b.UpdateByID("17", "a.xml", "<t/>", "u")
	if !strings.Contains(got, "WHERE id = 17") {
		t.Errorf("numeric identifier should be bare: %q", got)
	}
}

func TestUpdateByFolio(t *testing.T) {
	b := NewBuilder()

	got := b.UpdateByFolio(100, "invoice5.xml", "<t/>", "1234-5678")
	want := `UPDATE invoice_invoice_attempts SET xml = 'invoice5.xml', tfd = '<t/>', raw_response = NULL, uuid = '1234-5678', status = 1 WHERE invoice_id = 100 AND type = 2`
	if got != want {
		t.Errorf("UpdateByFolio = %q, want %q", got, want)
	}
}

func TestQuoteLiteralDoublesSingleQuotes(t *testing.T) {
	if got := quoteLiteral("it's"); got != "'it''s'" {
		t.Errorf("quoteLiteral = %q", got)
	}
}

func TestSearch(t *testing.T) {
	b := NewBuilder()

	got := b.Search([]int{10, 20, 30})
	want := "SELECT parent_id FROM invoice_invoices WHERE id IN (10, 20, 30)"
	if got != want {
		t.Errorf("Search = %q, want %q", got, want)
	}

	if got := b.Search([]int{7}); got != "SELECT parent_id FROM invoice_invoices WHERE id IN (7)" {
		t.Errorf("single folio Search = %q", got)
	}
}

// =============================================================================
// CONSOLE WRAPPING
// =============================================================================

func TestConsoleLineGoldenIndexedCase(t *testing.T) {
	// CSV maps RFC AAA010101AAA to id 5; the XML is invoice5.xml with stamp
	// UUID 1234-5678. The stamp fragment here has no attributes needing
	// escaping, so the line is the statement verbatim inside the quotes.
	b := NewBuilder()

	sql := b.UpdateByID("5", "invoice5.xml", "<TimbreFiscalDigital/>", "1234-5678")
	got := b.ConsoleLine(sql)
	want := `bin/console doctrine:query:sql "UPDATE invoice_invoice_attempts SET xml = 'invoice5.xml', tfd = '<TimbreFiscalDigital/>', raw_response = NULL, uuid = '1234-5678' WHERE id = 5"`
	if got != want {
		t.Errorf("ConsoleLine = %q, want %q", got, want)
	}
}

func TestConsoleLineEscapesStampAttributes(t *testing.T) {
	b := NewBuilder()

	sql := b.UpdateByID("5", "invoice5.xml", `<tfd:TimbreFiscalDigital Version="1.1" UUID="1234-5678"/>`, "1234-5678")
	got := b.ConsoleLine(sql)
	want := `bin/console doctrine:query:sql "UPDATE invoice_invoice_attempts SET xml = 'invoice5.xml', tfd = '<tfd:TimbreFiscalDigital Version=\"1.1\" UUID=\"1234-5678\"/>', raw_response = NULL, uuid = '1234-5678' WHERE id = 5"`
	if got != want {
		t.Errorf("ConsoleLine = %q, want %q", got, want)
	}
}

func TestUnwrapConsole(t *testing.T) {
	b := NewBuilder()

	sql := b.UpdateByFolio(42, "x.xml", `<t a="v"/>`, "u-1")
	line := b.ConsoleLine(sql)

	got, err := b.UnwrapConsole(line)
	if err != nil {
		t.Fatalf("UnwrapConsole: %v", err)
	}
	if got != sql {
		t.Errorf("UnwrapConsole = %q, want %q", got, sql)
	}
}

func TestUnwrapConsoleRejectsForeignLines(t *testing.T) {
	b := NewBuilder()

	for _, line := range []string{
		"SELECT 1",
		`bin/console doctrine:query:sql`,
		`bin/console other:command "SELECT 1"`,
	} {
		if _, err := b.UnwrapConsole(line); err == nil {
			t.Errorf("UnwrapConsole(%q) should fail", line)
		}
	}
}

func TestBuilderHonorsCustomTables(t *testing.T) {
	b := &Builder{
		AttemptsTable:  "attempts_v2",
		InvoicesTable:  "invoices_v2",
		ConsoleCommand: "php bin/console doctrine:query:sql",
	}

	if got := b.UpdateByFolio(1, "a.xml", "<t/>", "u"); !strings.HasPrefix(got, "UPDATE attempts_v2 SET") {
		t.Errorf("UpdateByFolio table = %q", got)
	}
	if got := b.Search([]int{1}); !strings.Contains(got, "FROM invoices_v2") {
		t.Errorf("Search table = %q", got)
	}
	if got := b.ConsoleLine("SELECT 1"); got != `php bin/console doctrine:query:sql "SELECT 1"` {
		t.Errorf("ConsoleLine command = %q", got)
	}
}
