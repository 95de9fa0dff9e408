// =============================================================================
// CFDI Stamp Reconciler - CFDI Field Extractor
// =============================================================================
//
// This module parses a single CFDI invoice document and extracts the fields
// the reconciliation needs:
//   - The RFC (taxpayer identifier) used as the correlation key
//   - The Folio (invoice serial number) on the comprobante root element
//   - The TimbreFiscalDigital stamp element, kept verbatim as a raw fragment
//   - The UUID attribute of the stamp element
//
// EXTRACTION STRATEGY:
//   Attributes are read through an encoding/xml token walk, which tolerates
//   any namespace prefix. The stamp fragment, however, is recovered from the
//   RAW bytes with a regular expression: the fragment is stored in the
//   database exactly as it appears in the source document, including its own
//   prefix, attribute order, and whitespace, and a re-serialization through
//   encoding/xml would not preserve that.
//
// ERROR HANDLING:
//   Extraction failures are scoped to the document. Callers skip the file and
//   keep going; nothing here aborts a company.
//
// =============================================================================

package cfdi

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/cfdi-tools/stamp-reconciler/internal/textenc"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrMalformedDocument indicates the file could not be parsed as XML.
var ErrMalformedDocument = errors.New("malformed document")

// ErrMissingField indicates a required element or attribute is absent.
var ErrMissingField = errors.New("missing field")

// =============================================================================
// INVOICE STRUCTURE
// =============================================================================

// Invoice holds the fields extracted from one CFDI document.
// It is built once per file and never mutated afterwards.
type Invoice struct {
	// Filename is the base name of the source file.
	Filename string

	// RFC is the taxpayer identifier read from the comprobante root, or from
	// the Emisor/Receptor child elements when the root carries none.
	RFC string

	// Folio is the numeric invoice serial number from the root element.
	Folio int

	// TFD is the TimbreFiscalDigital element exactly as it appears in the
	// source document, serialized as a raw fragment.
	TFD string

	// UUID is the UUID attribute of the stamp element.
	UUID string
}

// =============================================================================
// STAMP FRAGMENT PATTERNS
// =============================================================================
// The stamp normally carries the "tfd" prefix; the fallback pattern accepts
// any prefix (or none) for documents produced by nonstandard generators.

var (
	tfdPrefixed = regexp.MustCompile(`(?s)<tfd:TimbreFiscalDigital[^>]*(?:/>|>.*?</tfd:TimbreFiscalDigital>)`)
	tfdAny      = regexp.MustCompile(`(?s)<(?:[A-Za-z0-9_.-]+:)?TimbreFiscalDigital[^>]*(?:/>|>.*?</(?:[A-Za-z0-9_.-]+:)?TimbreFiscalDigital>)`)
)

// =============================================================================
// EXTRACTION
// =============================================================================

// Extract parses one CFDI document and returns the extracted invoice fields.
//
// PARAMETERS:
//   - filename: The base name of the source file, recorded on the Invoice.
//   - raw: The raw document bytes.
//
// RETURNS:
//   - A pointer to the Invoice with all fields populated.
//   - ErrMalformedDocument (wrapped) if the bytes do not parse as XML.
//   - ErrMissingField (wrapped, naming the field) if the RFC, Folio, stamp
//     element, or UUID attribute is absent, or the Folio is not numeric.
func Extract(filename string, raw []byte) (*Invoice, error) {
	var (
		rfc      string
		folioRaw string
		uuid     string
		sawStamp bool
		sawAny   bool
	)

	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = textenc.CharsetReader

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", filename, ErrMalformedDocument, err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawAny = true

		switch {
		case strings.Contains(se.Name.Local, "Comprobante"):
			if folioRaw == "" {
				folioRaw = attr(se, "Folio")
			}
			if rfc == "" {
				rfc = attr(se, "Rfc")
			}
		case se.Name.Local == "Emisor", se.Name.Local == "Receptor":
			// Fallback correlation key: the issuer RFC wins because Emisor
			// precedes Receptor in the document order.
			if rfc == "" {
				rfc = attr(se, "Rfc")
			}
		case strings.Contains(se.Name.Local, "TimbreFiscalDigital"):
			sawStamp = true
			uuid = attr(se, "UUID")
		}
	}

	if !sawAny {
		return nil, fmt.Errorf("%s: %w: no elements", filename, ErrMalformedDocument)
	}
	if rfc == "" {
		return nil, fmt.Errorf("%s: %w: Rfc", filename, ErrMissingField)
	}
	if folioRaw == "" {
		return nil, fmt.Errorf("%s: %w: Folio", filename, ErrMissingField)
	}
	folio, err := strconv.Atoi(strings.TrimSpace(folioRaw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: Folio %q is not numeric", filename, ErrMissingField, folioRaw)
	}
	if !sawStamp {
		return nil, fmt.Errorf("%s: %w: TimbreFiscalDigital", filename, ErrMissingField)
	}
	if uuid == "" {
		return nil, fmt.Errorf("%s: %w: UUID", filename, ErrMissingField)
	}

	tfd := stampFragment(raw)
	if tfd == "" {
		// The token walk saw the stamp but the raw fragment could not be
		// recovered, e.g. the element name is split across entities.
		return nil, fmt.Errorf("%s: %w: TimbreFiscalDigital fragment", filename, ErrMissingField)
	}

	return &Invoice{
		Filename: filename,
		RFC:      rfc,
		Folio:    folio,
		TFD:      tfd,
		UUID:     uuid,
	}, nil
}

// stampFragment returns the TimbreFiscalDigital element from the raw
// document bytes, byte-for-byte, or "" when no stamp is present.
func stampFragment(raw []byte) string {
	if m := tfdPrefixed.Find(raw); m != nil {
		return string(m)
	}
	if m := tfdAny.Find(raw); m != nil {
		return string(m)
	}
	return ""
}

// attr returns the value of the named attribute on the element, ignoring
// namespaces, or "" when the attribute is absent.
func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
