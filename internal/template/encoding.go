package template

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncodings is the order in which control files are decoded.
var DefaultEncodings = []string{"utf-8", "gbk", "gb18030", "latin1"}

// Supported reports whether name is a known encoding.
func Supported(name string) bool {
	_, ok := lookupEncoding(name)
	return ok
}

// Decode converts data to a string using the first candidate encoding whose
// decode/encode round trip reproduces data exactly. It returns the encoding used.
func Decode(data []byte, encodings []string) (string, string, error) {
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}

	var lastErr error
	for _, name := range encodings {
		text, err := decodeAs(data, name)
		if err == nil {
			return text, name, nil
		}
		lastErr = fmt.Errorf("%s: %w", name, err)
	}

	return "", "", lastErr
}

func decodeAs(data []byte, name string) (string, error) {
	enc, ok := lookupEncoding(name)
	if !ok {
		return "", fmt.Errorf("unsupported encoding")
	}

	if enc == nil {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("invalid utf-8 byte sequence")
		}
		return string(data), nil
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}

	encoded, err := enc.NewEncoder().Bytes(decoded)
	if err != nil {
		return "", err
	}
	if !bytes.Equal(encoded, data) {
		return "", fmt.Errorf("content does not round-trip")
	}

	return string(decoded), nil
}

func lookupEncoding(name string) (encoding.Encoding, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return nil, true
	case "gbk", "gb2312", "cp936":
		return simplifiedchinese.GBK, true
	case "gb18030":
		return simplifiedchinese.GB18030, true
	case "latin-1", "latin1", "iso-8859-1":
		return charmap.ISO8859_1, true
	case "windows-1252", "cp1252":
		return charmap.Windows1252, true
	case "utf-16", "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), true
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), true
	default:
		return nil, false
	}
}
