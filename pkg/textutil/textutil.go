// Package textutil provides byte-level helpers used while sniffing and
// decoding coverage payloads: binary detection, first-line extraction and
// terminal escape stripping.
package textutil

import (
	"bytes"
	"regexp"
)

// BinarySniffLength is the maximum number of bytes scanned for null-byte
// detection. Matches the heuristic used by Git and most editors.
const BinarySniffLength = 8000

// utf8BOM is stripped before sniffing; several Windows tools emit it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ansiEscape matches CSI sequences such as color codes ("\x1b[0;31m") and
// cursor controls.
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// IsBinary returns true if data contains a null byte within the first
// BinarySniffLength bytes. Empty data is not binary.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	sniff := data
	if len(sniff) > BinarySniffLength {
		sniff = sniff[:BinarySniffLength]
	}

	return bytes.IndexByte(sniff, 0) >= 0
}

// TrimBOM drops a leading UTF-8 byte order mark.
func TrimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// FirstLine returns the first non-blank line of data with surrounding
// whitespace and any byte order mark removed.
func FirstLine(data []byte) string {
	rest := TrimBOM(data)

	for len(rest) > 0 {
		line := rest
		rest = nil

		if idx := bytes.IndexByte(line, '\n'); idx >= 0 {
			line, rest = line[:idx], line[idx+1:]
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			return string(trimmed)
		}
	}

	return ""
}

// StripANSI removes terminal escape sequences.
func StripANSI(data []byte) []byte {
	if bytes.IndexByte(data, 0x1b) < 0 {
		return data
	}

	return ansiEscape.ReplaceAll(data, nil)
}
