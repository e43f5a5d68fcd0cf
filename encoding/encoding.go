// Package encoding implements the module's deterministic, big-endian
// binary encodings and their lowercase 0x-prefixed hex JSON rendering.
// Every type here satisfies decode(encode(x)) == x, including empty
// collections, per spec.md §4.1. Grounded on
// original_source/src/db/types/*.rs (AddressED, BytesED, AccountInfoED,
// LogED — length-prefixed composite encoding) and on the teacher's
// rpc/types.go hex helpers.
package encoding

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Encoder is implemented by every wire type in this package.
type Encoder interface {
	Encode() []byte
}

// Decoder reconstructs a value of type T from a byte slice produced by
// Encode, returning the number of bytes consumed.
type Decoder[T any] func(b []byte) (T, int, error)

// ErrShortBuffer is returned when a Decode call runs out of input
// before it has read everything the encoding promises.
type ErrShortBuffer struct {
	Want, Got int
}

func (e ErrShortBuffer) Error() string {
	return fmt.Sprintf("encoding: short buffer: want %d bytes, got %d", e.Want, e.Got)
}

func putUint32(buf []byte, v uint32) {
	binary.BigEndian.PutUint32(buf, v)
}

// encodeLenPrefixed writes a u32-be length prefix followed by payload.
func encodeLenPrefixed(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	putUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// decodeLenPrefixed reads a u32-be length prefix followed by payload,
// returning the payload and total bytes consumed.
func decodeLenPrefixed(b []byte) ([]byte, int, error) {
	if len(b) < 4 {
		return nil, 0, ErrShortBuffer{Want: 4, Got: len(b)}
	}
	n := int(binary.BigEndian.Uint32(b))
	if len(b) < 4+n {
		return nil, 0, ErrShortBuffer{Want: 4 + n, Got: len(b)}
	}
	payload := make([]byte, n)
	copy(payload, b[4:4+n])
	return payload, 4 + n, nil
}

// HexEncode renders bytes as a lowercase 0x-prefixed hex string.
func HexEncode(b []byte) string {
	return "0x" + fmt.Sprintf("%x", b)
}

// HexDecode parses a lowercase (or mixed-case) 0x-prefixed hex string.
func HexDecode(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		var hi, lo byte
		var err error
		if hi, err = hexNibble(s[i]); err != nil {
			return nil, err
		}
		if lo, err = hexNibble(s[i+1]); err != nil {
			return nil, err
		}
		out[i/2] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("encoding: invalid hex character %q", c)
	}
}

// quoteJSON wraps s in JSON double quotes.
func quoteJSON(s string) []byte {
	return []byte("\"" + s + "\"")
}

func unquoteJSON(b []byte) (string, error) {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("encoding: not a JSON string: %s", s)
	}
	return s[1 : len(s)-1], nil
}
