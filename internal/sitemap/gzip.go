package sitemap

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
)

// gzipMagic is the two leading bytes of every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// maybeDecompress transparently decompresses body if it looks gzipped,
// either by the conventional .xml.gz extension or by magic-byte sniffing
// (spec §4.1: "by extension first, falling back to magic-byte sniffing").
func maybeDecompress(url string, body []byte) ([]byte, error) {
	if !looksGzipped(url, body) {
		return body, nil
	}

	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

func looksGzipped(url string, body []byte) bool {
	if strings.HasSuffix(strings.ToLower(url), ".gz") {
		return true
	}
	return len(body) >= 2 && bytes.Equal(body[:2], gzipMagic)
}
