// =============================================================================
// CFDI Stamp Reconciler - Text Encoding Helpers
// =============================================================================
//
// Ledger files exported from Windows tooling frequently arrive as ISO-8859-1
// or Windows-1252 rather than UTF-8, and older CFDI documents sometimes carry
// a matching declaration in their XML prolog. This module centralizes the
// decoder selection so both the index loader and the XML extractor transcode
// the same way.
//
// =============================================================================

package textenc

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Reader wraps r so its contents are transcoded from the named encoding to
// UTF-8. The empty string and UTF-8 names return r unchanged.
//
// PARAMETERS:
//   - r: The raw byte stream.
//   - encoding: The encoding name, e.g. "UTF-8", "ISO-8859-1", "Windows-1252".
//
// RETURNS:
//   - A reader producing UTF-8 text.
//   - An error if the encoding name is not supported.
func Reader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return r, nil
	case "iso-8859-1", "iso8859-1", "latin1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", encoding)
}

// CharsetReader adapts Reader to the signature expected by
// encoding/xml.Decoder.CharsetReader, so XML prologs declaring a legacy
// encoding parse instead of failing.
func CharsetReader(charset string, input io.Reader) (io.Reader, error) {
	return Reader(input, charset)
}
