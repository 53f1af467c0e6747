package textnorm

import (
	"bufio"
	"bytes"
	"io"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// UTF8BOM is the UTF-8 byte order mark.
var UTF8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeUTF8SkippingBOM drops a leading UTF-8 BOM and decodes the rest.
// Each byte that is not part of a well-formed UTF-8 sequence becomes U+FFFD.
func DecodeUTF8SkippingBOM(b []byte) string {
	b = bytes.TrimPrefix(b, UTF8BOM)
	out, _, _ := transform.Bytes(runes.ReplaceIllFormed(), b)
	return string(out)
}

// NewBOMSkippingReader is the streaming form of DecodeUTF8SkippingBOM.
func NewBOMSkippingReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(UTF8BOM)); err == nil && bytes.Equal(head, UTF8BOM) {
		br.Discard(len(UTF8BOM))
	}
	return transform.NewReader(br, runes.ReplaceIllFormed())
}
