package fetcher

import (
	"compress/gzip"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// readDocument reads a response body into a UTF-8, NFC-normalized string.
// Handles gzip transfer encoding and legacy charsets declared in the
// Content-Type header. Mirrored READMEs occasionally come back through
// proxies that re-encode them, so the declared charset wins over assuming
// UTF-8.
func readDocument(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body

	// Handle gzip encoding
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(reader)
		if err != nil {
			return "", fmt.Errorf("failed to decompress gzip: %w", err)
		}
		defer func() { _ = gzipReader.Close() }()
		reader = gzipReader
	}

	// Decode legacy charsets to UTF-8
	if enc := encodingFromContentType(resp.Header.Get("Content-Type")); enc != nil {
		reader = transform.NewReader(reader, enc.NewDecoder())
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	// NFC normalization keeps accented course names stable across sources
	return string(norm.NFC.Bytes(raw)), nil
}

// encodingFromContentType returns the declared charset's decoder, or nil
// when the content is UTF-8 or the charset is unknown.
func encodingFromContentType(contentType string) encoding.Encoding {
	if contentType == "" {
		return nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}
	name := params["charset"]
	if name == "" || strings.EqualFold(name, "utf-8") {
		return nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil
	}
	return enc
}
