package css

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var charsetPrefix = []byte(`@charset "`)

// Decode converts raw stylesheet bytes into UTF-8. Byte order mark takes
// precedence over @charset rule, absent both the input is assumed to be
// UTF-8 already. Returns canonical name of the detected encoding, empty
// for UTF-8 input.
func Decode(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return data[3:], "", nil
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}), bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		enc := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
		out, err := decode(enc, data)
		if err != nil {
			return nil, "", err
		}
		if data[0] == 0xFF {
			return out, "utf-16le", nil
		}
		return out, "utf-16be", nil
	}

	label, ok := charsetLabel(data)
	if !ok {
		return data, "", nil
	}
	enc, name := charset.Lookup(label)
	if enc == nil {
		return nil, "", fmt.Errorf("unsupported stylesheet charset %q", label)
	}
	// ASCII compatible content cannot be declared UTF-16, treat as UTF-8
	if name == "utf-8" || strings.HasPrefix(name, "utf-16") {
		return data, "", nil
	}
	out, err := decode(enc, data)
	if err != nil {
		return nil, "", err
	}
	return out, name, nil
}

// NewReader returns reader producing UTF-8 stylesheet text from r.
func NewReader(r io.Reader) (io.Reader, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("unable to read stylesheet: %w", err)
	}
	out, name, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(out), name, nil
}

func decode(enc encoding.Encoding, data []byte) ([]byte, error) {
	// BOMOverride switches to UTF-8/16 when data starts with matching BOM
	out, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode stylesheet: %w", err)
	}
	return out, nil
}

// charsetLabel extracts label from `@charset "label";` which has to be the
// very first thing in the stylesheet.
func charsetLabel(data []byte) (string, bool) {
	if !bytes.HasPrefix(data, charsetPrefix) {
		return "", false
	}
	rest := data[len(charsetPrefix):]
	end := bytes.Index(rest, []byte(`";`))
	if end <= 0 {
		return "", false
	}
	return string(rest[:end]), true
}
