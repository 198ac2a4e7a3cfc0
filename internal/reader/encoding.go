package reader

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Decode converts raw bytes read from a file into the UTF-8 []byte the
// rest of the pipeline expects, under the named encoding. Only the two
// encodings pymala's own test corpus and the original tool's -encoding
// flag commonly need are implemented: UTF-8 (validated, passed through)
// and Latin-1/ISO-8859-1 (every byte is one code point, widened to
// UTF-8). Anything else is rejected as IoError::Encoding rather than
// silently mis-decoded.
func Decode(data []byte, encoding string) ([]byte, error) {
	name := strings.ToLower(strings.TrimSpace(encoding))
	switch name {
	case "", "utf-8", "utf8":
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("invalid utf-8 byte sequence")
		}
		return data, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return latin1ToUTF8(data), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

func latin1ToUTF8(data []byte) []byte {
	out := make([]byte, 0, len(data))
	var buf [utf8.UTFMax]byte
	for _, b := range data {
		n := utf8.EncodeRune(buf[:], rune(b))
		out = append(out, buf[:n]...)
	}
	return out
}
