// Package canonical implements the JSON primitives used for content-addressed
// identity computation.
//
// This is the ONLY serialization that may feed a hash. Key properties:
//
//  1. No HTML escaping (< > & are NOT escaped)
//  2. Strings are NFC normalized at the serialization boundary
//  3. U+2028 and U+2029 are written literally, not escaped
//  4. Object fields are written in a fixed order chosen by the caller
//
// The output is always valid JSON, so the standard library decoder can read
// canonical bytes back.
package canonical

import (
	"bytes"
	"encoding/json"

	"golang.org/x/text/unicode/norm"
)

// AppendString appends the canonical JSON encoding of s (quoted) to dst.
func AppendString(dst []byte, s string) []byte {
	// NFC normalize at serialization boundary
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // <, > and & must NOT be escaped
	// Encoding a string never fails; invalid UTF-8 is replaced by U+FFFD,
	// which keeps the output deterministic for a given input.
	_ = enc.Encode(normalized)

	result := buf.Bytes()
	// json.Encoder adds a trailing newline, remove it
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	// Go's encoder escapes U+2028/U+2029 for JavaScript compatibility. The
	// canonical form keeps them literal. A preceding escaped backslash
	// (\\u2028) must stay escaped, so count backslashes before rewriting.
	result = unescapeU2028U2029(result)

	return append(dst, result...)
}

// AppendStrings appends a JSON array of canonical strings to dst.
func AppendStrings(dst []byte, elems []string) []byte {
	dst = append(dst, '[')
	for i, s := range elems {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = AppendString(dst, s)
	}
	return append(dst, ']')
}

// unescapeU2028U2029 converts \u2028 and \u2029 escape sequences to literal
// characters, but preserves \\u2028 and \\u2029 (escaped backslash followed
// by the text "u2028"/"u2029").
func unescapeU2028U2029(data []byte) []byte {
	// Fast path: no \u202 sequences at all
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	var result []byte
	i := 0
	for i < len(data) {
		if i+6 <= len(data) && data[i] == '\\' && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			// Count the backslashes immediately before this position in the
			// output produced so far. An even count means this backslash
			// starts a real \u202x escape; an odd count means it is itself
			// escaped and must stay.
			backslashes := 0
			if result == nil {
				for j := i - 1; j >= 0 && data[j] == '\\'; j-- {
					backslashes++
				}
			} else {
				for j := len(result) - 1; j >= 0 && result[j] == '\\'; j-- {
					backslashes++
				}
			}

			if backslashes%2 == 0 {
				if result == nil {
					result = make([]byte, 0, len(data))
					result = append(result, data[:i]...)
				}
				if data[i+5] == '8' {
					result = append(result, "\u2028"...)
				} else {
					result = append(result, "\u2029"...)
				}
				i += 6
				continue
			}
		}

		if result != nil {
			result = append(result, data[i])
		}
		i++
	}

	if result == nil {
		return data
	}
	return result
}
