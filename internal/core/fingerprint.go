package core

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf16"
)

// FingerprintAggregator binds a record of named string fields into one digest.
//
// The record is serialized canonically before hashing:
//   - Keys are sorted by byte order; insertion order never matters.
//   - The layout is a JSON object with ", " between items and ": " between
//     key and value, matching fingerprints stored by earlier runs.
//   - Non-ASCII characters are written as \uXXXX escapes (surrogate pairs
//     above the BMP), so the bytes do not depend on the input encoding.
//
// Absent optional fields must be left out of the map by the caller; an empty
// string is a value and is hashed as such.
type FingerprintAggregator struct {
	Algorithm Algorithm
}

// NewFingerprintAggregator creates a FingerprintAggregator.
func NewFingerprintAggregator(alg Algorithm) *FingerprintAggregator {
	return &FingerprintAggregator{Algorithm: alg}
}

// Fingerprint returns the digest of the canonical serialization of fields.
func (a *FingerprintAggregator) Fingerprint(fields map[string]string) Digest {
	return a.Algorithm.Sum(CanonicalRecord(fields))
}

// CanonicalRecord returns the canonical byte serialization of fields.
func CanonicalRecord(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeQuoted(&buf, k)
		buf.WriteString(": ")
		writeQuoted(&buf, fields[k])
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// writeQuoted writes s as an ASCII-only JSON string.
func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r < 0x20:
				fmt.Fprintf(buf, `\u%04x`, r)
			case r < 0x7f:
				buf.WriteByte(byte(r))
			case r > 0xFFFF:
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(buf, `\u%04x\u%04x`, hi, lo)
			default:
				fmt.Fprintf(buf, `\u%04x`, r)
			}
		}
	}
	buf.WriteByte('"')
}
