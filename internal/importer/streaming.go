package importer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// streaming.go builds the reader stack applied to import input before CSV
// parsing: caller-selected charset decoding, invalid-byte sanitizing, and
// BOM skipping. All transforms are streaming; a run never buffers the
// whole file.

// encodings maps caller-supplied encoding names to decoders. UTF-8 input
// skips decoding entirely.
var encodings = map[string]encoding.Encoding{
	"latin-1":      charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"utf-16le":     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"utf-16be":     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
}

// wrapReader applies the full input transform stack for the given
// encoding name ("" or "utf-8" means no transcoding). Unknown encodings
// are a caller error and fail the run before any row is read.
func wrapReader(r io.Reader, encodingName string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(encodingName))
	switch name {
	case "", "utf-8", "utf8":
		// no transcoding
	default:
		enc, ok := encodings[name]
		if !ok {
			return nil, fmt.Errorf("unsupported encoding %q", encodingName)
		}
		r = enc.NewDecoder().Reader(r)
	}
	return newBOMSkipper(newUTF8Sanitizer(r)), nil
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' on the fly, so a
// few mangled bytes degrade to mangled cells instead of aborting the CSV
// parse. Incomplete multi-byte sequences at a read boundary are held back
// until the next read.
type utf8Sanitizer struct {
	br  *bufio.Reader
	out []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{br: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(s.out) == 0 {
		chunk, err := s.fill()
		if len(chunk) == 0 {
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		// A read error alongside data surfaces on the next call; bufio
		// reports it again once the buffered bytes are drained.
		s.out = chunk
	}

	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// fill decodes one buffered chunk, replacing invalid bytes. The bufio
// layer guarantees a rune split across chunks is re-read whole.
func (s *utf8Sanitizer) fill() ([]byte, error) {
	var out []byte
	for i := 0; i < 4096; {
		r, size, err := s.br.ReadRune()
		if err != nil {
			return out, err
		}
		if r == utf8.RuneError && size == 1 {
			// Invalid byte. '?' keeps the output the same width, which
			// preserves column alignment in fixed-ish exports.
			out = append(out, '?')
			i++
			continue
		}
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], r)
		out = append(out, buf[:n]...)
		i += n
	}
	return out, nil
}

// bomSkipper drops a leading UTF-8 BOM (0xEF 0xBB 0xBF), which Windows
// tools routinely prepend and encoding/csv would treat as part of the
// first header cell.
type bomSkipper struct {
	r       io.Reader
	checked bool
	pending []byte
}

func newBOMSkipper(r io.Reader) *bomSkipper {
	return &bomSkipper{r: r}
}

// Read implements io.Reader. The first call inspects up to three bytes.
func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true

		var buf [3]byte
		n, err := io.ReadFull(b.r, buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
			// BOM found, drop it.
		} else if n > 0 {
			b.pending = append(b.pending, buf[:n]...)
		}
		if err != nil && err != io.EOF && n == 0 {
			return 0, err
		}
	}

	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}

	return b.r.Read(p)
}
