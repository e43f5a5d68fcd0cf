package encoding

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// U64 is a big-endian fixed-width 8-byte unsigned integer, used for
// nonces, block numbers, and gas values.
type U64 uint64

func (v U64) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func DecodeU64(b []byte) (U64, int, error) {
	if len(b) < 8 {
		return 0, 0, ErrShortBuffer{Want: 8, Got: len(b)}
	}
	return U64(binary.BigEndian.Uint64(b[:8])), 8, nil
}

func (v U64) MarshalJSON() ([]byte, error) {
	return quoteJSON(quantityHex(v.Encode())), nil
}

func (v *U64) UnmarshalJSON(b []byte) error {
	s, err := unquoteJSON(b)
	if err != nil {
		return err
	}
	raw, err := HexDecode(s)
	if err != nil {
		return err
	}
	*v = U64(new(big.Int).SetBytes(raw).Uint64())
	return nil
}

// MarshalNonceJSON renders a U64 nonce in the module's strict 32-hex-
// character zero-padded form, matching the Ethereum JSON-RPC "nonce"
// field convention this module follows for tx/account nonces.
func MarshalNonceJSON(nonce uint64) string {
	return fmt.Sprintf("0x%032x", nonce)
}

// U128 is a big-endian fixed-width 16-byte unsigned integer, used for
// BRC20 balances.
type U128 struct{ v *uint256.Int }

func NewU128FromBig(b *big.Int) U128 {
	u, _ := uint256.FromBig(b)
	return U128{v: u}
}

func (v U128) Big() *big.Int {
	if v.v == nil {
		return new(big.Int)
	}
	return v.v.ToBig()
}

func (v U128) Encode() []byte {
	buf := make([]byte, 16)
	if v.v == nil {
		return buf
	}
	b := v.v.Bytes32()
	copy(buf, b[16:32])
	return buf
}

func DecodeU128(b []byte) (U128, int, error) {
	if len(b) < 16 {
		return U128{}, 0, ErrShortBuffer{Want: 16, Got: len(b)}
	}
	var full [32]byte
	copy(full[16:32], b[:16])
	u := new(uint256.Int).SetBytes32(full[:])
	return U128{v: u}, 16, nil
}

func (v U128) MarshalJSON() ([]byte, error) {
	return quoteJSON(quantityHex(v.Encode())), nil
}

func (v *U128) UnmarshalJSON(b []byte) error {
	s, err := unquoteJSON(b)
	if err != nil {
		return err
	}
	raw, err := HexDecode(s)
	if err != nil {
		return err
	}
	*v = NewU128FromBig(new(big.Int).SetBytes(raw))
	return nil
}

// U256 is a big-endian fixed-width 32-byte unsigned integer, used for
// EVM storage slot values and wei amounts.
type U256 struct{ v *uint256.Int }

func NewU256(u *uint256.Int) U256         { return U256{v: u} }
func NewU256FromBig(b *big.Int) U256      { u, _ := uint256.FromBig(b); return U256{v: u} }
func (v U256) Uint256() *uint256.Int {
	if v.v == nil {
		return uint256.NewInt(0)
	}
	return v.v
}

func (v U256) Big() *big.Int {
	return v.Uint256().ToBig()
}

func (v U256) Encode() []byte {
	b := v.Uint256().Bytes32()
	out := make([]byte, 32)
	copy(out, b[:])
	return out
}

func DecodeU256(b []byte) (U256, int, error) {
	if len(b) < 32 {
		return U256{}, 0, ErrShortBuffer{Want: 32, Got: len(b)}
	}
	var full [32]byte
	copy(full[:], b[:32])
	return U256{v: new(uint256.Int).SetBytes32(full[:])}, 32, nil
}

func (v U256) MarshalJSON() ([]byte, error) {
	return quoteJSON(quantityHex(v.Encode())), nil
}

func (v *U256) UnmarshalJSON(b []byte) error {
	s, err := unquoteJSON(b)
	if err != nil {
		return err
	}
	raw, err := HexDecode(s)
	if err != nil {
		return err
	}
	*v = NewU256FromBig(new(big.Int).SetBytes(raw))
	return nil
}

// U512 is a big-endian fixed-width 64-byte unsigned integer, used for
// intermediate gas*price overflow-safe arithmetic.
type U512 struct{ hi, lo uint256.Int }

func NewU512FromBig(b *big.Int) U512 {
	hi := new(big.Int).Rsh(b, 256)
	lo := new(big.Int).Mod(b, new(big.Int).Lsh(big.NewInt(1), 256))
	var r U512
	h, _ := uint256.FromBig(hi)
	l, _ := uint256.FromBig(lo)
	r.hi, r.lo = *h, *l
	return r
}

func (v U512) Big() *big.Int {
	hi := v.hi.ToBig()
	lo := v.lo.ToBig()
	return new(big.Int).Add(new(big.Int).Lsh(hi, 256), lo)
}

func (v U512) Encode() []byte {
	out := make([]byte, 64)
	hb := v.hi.Bytes32()
	lb := v.lo.Bytes32()
	copy(out[0:32], hb[:])
	copy(out[32:64], lb[:])
	return out
}

func DecodeU512(b []byte) (U512, int, error) {
	if len(b) < 64 {
		return U512{}, 0, ErrShortBuffer{Want: 64, Got: len(b)}
	}
	var hiB, loB [32]byte
	copy(hiB[:], b[0:32])
	copy(loB[:], b[32:64])
	return U512{hi: *new(uint256.Int).SetBytes32(hiB[:]), lo: *new(uint256.Int).SetBytes32(loB[:])}, 64, nil
}

// quantityHex renders a big-endian integer as 0x-prefixed lowercase hex
// with leading zero nibbles removed ("0x0" for zero).
func quantityHex(b []byte) string {
	s := strings.TrimLeft(fmt.Sprintf("%x", b), "0")
	if s == "" {
		s = "0"
	}
	return "0x" + s
}
