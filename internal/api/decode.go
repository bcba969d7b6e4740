package api

import (
	"errors"
	"mime"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// fragmentDecoder turns raw body chunks into text. Multi-byte sequences
// split across chunks are held back until the rest arrives.
type fragmentDecoder struct {
	t       transform.Transformer
	name    string
	pending []byte
	dst     []byte
}

// newFragmentDecoder resolves the charset declared in contentType. Missing or
// unknown charsets decode as UTF-8; the second return value reports whether
// a declared charset was not recognized.
func newFragmentDecoder(contentType string) (*fragmentDecoder, bool) {
	d := &fragmentDecoder{
		t:    unicode.UTF8.NewDecoder(),
		name: "utf-8",
		dst:  make([]byte, 4096),
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return d, false
	}
	label := strings.TrimSpace(params["charset"])
	if label == "" {
		return d, false
	}

	enc, name := charset.Lookup(label)
	if enc == nil {
		return d, true
	}
	d.t = enc.NewDecoder()
	d.name = name
	return d, false
}

// Decode converts p, returning whatever text is complete. With atEOF set,
// any held-back bytes are flushed (invalid tails become U+FFFD).
func (d *fragmentDecoder) Decode(p []byte, atEOF bool) (string, error) {
	src := make([]byte, 0, len(d.pending)+len(p))
	src = append(src, d.pending...)
	src = append(src, p...)
	d.pending = d.pending[:0]

	var out strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		out.Write(d.dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			d.pending = append(d.pending, src...)
			return out.String(), nil
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append(d.pending, src...)
			return out.String(), nil
		default:
			return out.String(), err
		}
	}
}

// Charset returns the canonical name of the charset being decoded
func (d *fragmentDecoder) Charset() string {
	return d.name
}
