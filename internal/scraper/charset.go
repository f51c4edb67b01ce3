package scraper

import (
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// Small-business sites still serve legacy single-byte encodings; feeding
// those bytes straight to the HTML parser yields mangled names and emails.
var metaCharsetPattern = regexp.MustCompile(`(?i)charset\s*=\s*["']?([A-Za-z0-9._\-]+)`)

// decodeToUTF8 converts a fetched document to UTF-8 before parsing. The
// charset comes from the Content-Type header when declared, else from a
// meta tag sniff of the document head. Bytes already valid as UTF-8 pass
// through untouched; undeclared non-UTF-8 content falls back to
// Windows-1252. Decoding never fails the fetch, the raw bytes are the
// last resort.
func decodeToUTF8(body []byte, contentType string) []byte {
	name := pageCharset(contentType, body)
	if name == "" || strings.EqualFold(name, "utf-8") {
		if utf8.Valid(body) {
			return body
		}
		if out, err := charmap.Windows1252.NewDecoder().Bytes(body); err == nil {
			return out
		}
		return body
	}

	enc, err := htmlindex.Get(name)
	if err != nil || enc == nil {
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}

// pageCharset resolves the declared charset: header first, then a meta
// tag scan over the first kilobyte
func pageCharset(contentType string, body []byte) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := params["charset"]; cs != "" {
			return cs
		}
	}

	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	if m := metaCharsetPattern.FindSubmatch(head); m != nil {
		return string(m[1])
	}
	return ""
}
