package encoding

import (
	gethcommon "github.com/ethereum/go-ethereum/common"
)

// B256 is a fixed 32-byte hash, interoperable with go-ethereum's
// common.Hash so engine code can pass values straight into vm.StateDB.
type B256 gethcommon.Hash

func B256FromHash(h gethcommon.Hash) B256 { return B256(h) }
func (v B256) Hash() gethcommon.Hash      { return gethcommon.Hash(v) }

func (v B256) Encode() []byte {
	out := make([]byte, 32)
	copy(out, v[:])
	return out
}

func DecodeB256(b []byte) (B256, int, error) {
	if len(b) < 32 {
		return B256{}, 0, ErrShortBuffer{Want: 32, Got: len(b)}
	}
	var v B256
	copy(v[:], b[:32])
	return v, 32, nil
}

func (v B256) MarshalJSON() ([]byte, error) { return quoteJSON(HexEncode(v[:])), nil }
func (v *B256) UnmarshalJSON(b []byte) error {
	s, err := unquoteJSON(b)
	if err != nil {
		return err
	}
	raw, err := HexDecode(s)
	if err != nil {
		return err
	}
	copy(v[:], raw)
	return nil
}

// Address is a fixed 20-byte EVM address, interoperable with
// go-ethereum's common.Address.
type Address gethcommon.Address

func AddressFromCommon(a gethcommon.Address) Address { return Address(a) }
func (v Address) Common() gethcommon.Address          { return gethcommon.Address(v) }

func (v Address) Encode() []byte {
	out := make([]byte, 20)
	copy(out, v[:])
	return out
}

func DecodeAddress(b []byte) (Address, int, error) {
	if len(b) < 20 {
		return Address{}, 0, ErrShortBuffer{Want: 20, Got: len(b)}
	}
	var v Address
	copy(v[:], b[:20])
	return v, 20, nil
}

func (v Address) MarshalJSON() ([]byte, error) { return quoteJSON(HexEncode(v[:])), nil }
func (v *Address) UnmarshalJSON(b []byte) error {
	s, err := unquoteJSON(b)
	if err != nil {
		return err
	}
	raw, err := HexDecode(s)
	if err != nil {
		return err
	}
	copy(v[:], raw)
	return nil
}

// StorageKey is the module's composite key into EVM contract storage:
// the 20-byte contract address, 12 zero padding bytes, and the 32-byte
// storage slot, for a flat 64-byte encoding that sorts first by
// address and then by slot in the underlying kvstore table.
type StorageKey struct {
	Address Address
	Slot    B256
}

func (k StorageKey) Encode() []byte {
	out := make([]byte, 64)
	copy(out[0:20], k.Address[:])
	copy(out[32:64], k.Slot[:])
	return out
}

func DecodeStorageKey(b []byte) (StorageKey, int, error) {
	if len(b) < 64 {
		return StorageKey{}, 0, ErrShortBuffer{Want: 64, Got: len(b)}
	}
	var k StorageKey
	copy(k.Address[:], b[0:20])
	copy(k.Slot[:], b[32:64])
	return k, 64, nil
}

// Bytes is a variable-length, length-prefixed byte string (function
// input data, log data, ABI-encoded precompile arguments).
type Bytes []byte

func (v Bytes) Encode() []byte { return encodeLenPrefixed(v) }

func DecodeBytes(b []byte) (Bytes, int, error) {
	payload, n, err := decodeLenPrefixed(b)
	if err != nil {
		return nil, 0, err
	}
	return Bytes(payload), n, nil
}

func (v Bytes) MarshalJSON() ([]byte, error) { return quoteJSON(HexEncode(v)), nil }
func (v *Bytes) UnmarshalJSON(b []byte) error {
	s, err := unquoteJSON(b)
	if err != nil {
		return err
	}
	raw, err := HexDecode(s)
	if err != nil {
		return err
	}
	*v = raw
	return nil
}

// Bytecode is deployed contract code, encoded identically to Bytes but
// kept as a distinct type so callers can't accidentally mix up code
// and call-data at the type level.
type Bytecode []byte

func (v Bytecode) Encode() []byte { return encodeLenPrefixed(v) }

func DecodeBytecode(b []byte) (Bytecode, int, error) {
	payload, n, err := decodeLenPrefixed(b)
	if err != nil {
		return nil, 0, err
	}
	return Bytecode(payload), n, nil
}

func (v Bytecode) MarshalJSON() ([]byte, error) { return quoteJSON(HexEncode(v)), nil }
func (v *Bytecode) UnmarshalJSON(b []byte) error {
	s, err := unquoteJSON(b)
	if err != nil {
		return err
	}
	raw, err := HexDecode(s)
	if err != nil {
		return err
	}
	*v = raw
	return nil
}
