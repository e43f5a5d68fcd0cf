package encoding

import (
	"golang.org/x/crypto/sha3"
)

// AccountRecord is the persisted shape of spec.md §"Account record":
// balance, nonce, and a pointer (codeHash) to separately-stored code.
// The zero value — zero balance, zero nonce, empty-code hash — is
// treated as an absent account by the cache/engine layers.
type AccountRecord struct {
	Balance  U256
	Nonce    U64
	CodeHash B256
}

func (a AccountRecord) Encode() []byte {
	out := make([]byte, 0, 32+8+32)
	out = append(out, a.Balance.Encode()...)
	out = append(out, a.Nonce.Encode()...)
	out = append(out, a.CodeHash.Encode()...)
	return out
}

func DecodeAccountRecord(b []byte) (AccountRecord, int, error) {
	var a AccountRecord
	var n, total int
	var err error
	if a.Balance, n, err = DecodeU256(b[total:]); err != nil {
		return a, 0, err
	}
	total += n
	if a.Nonce, n, err = DecodeU64(b[total:]); err != nil {
		return a, 0, err
	}
	total += n
	if a.CodeHash, n, err = DecodeB256(b[total:]); err != nil {
		return a, 0, err
	}
	total += n
	return a, total, nil
}

// EmptyCodeHash is keccak256("") — the codeHash of an account with no
// deployed code.
func EmptyCodeHash() B256 {
	h := sha3.NewLegacyKeccak256()
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	var b B256
	copy(b[:], sum[:])
	return b
}

func (a AccountRecord) IsAbsent() bool {
	emptyBalance := a.Balance.Big().Sign() == 0
	return emptyBalance && a.Nonce == 0 && a.CodeHash == EmptyCodeHash()
}

// BlockRecord is the persisted shape of spec.md §"Block record".
// padding fields (gasLimit, difficulty, etc.) needed only to emit
// Ethereum-shaped JSON live in the rpcserver response types, not here.
type BlockRecord struct {
	Number      U64
	Timestamp   U64
	GasUsed     U64
	Hash        B256
	ParentHash  B256
	LogsBloom   Bytes // 256 bytes, fixed-length but stored length-prefixed like other Bytes
	TxHashes    []B256
}

func (b BlockRecord) Encode() []byte {
	out := make([]byte, 0)
	out = append(out, b.Number.Encode()...)
	out = append(out, b.Timestamp.Encode()...)
	out = append(out, b.GasUsed.Encode()...)
	out = append(out, b.Hash.Encode()...)
	out = append(out, b.ParentHash.Encode()...)
	out = append(out, b.LogsBloom.Encode()...)
	countBuf := make([]byte, 4)
	putUint32(countBuf, uint32(len(b.TxHashes)))
	out = append(out, countBuf...)
	for _, h := range b.TxHashes {
		out = append(out, h.Encode()...)
	}
	return out
}

func DecodeBlockRecord(b []byte) (BlockRecord, int, error) {
	var rec BlockRecord
	var n, total int
	var err error
	if rec.Number, n, err = DecodeU64(b[total:]); err != nil {
		return rec, 0, err
	}
	total += n
	if rec.Timestamp, n, err = DecodeU64(b[total:]); err != nil {
		return rec, 0, err
	}
	total += n
	if rec.GasUsed, n, err = DecodeU64(b[total:]); err != nil {
		return rec, 0, err
	}
	total += n
	if rec.Hash, n, err = DecodeB256(b[total:]); err != nil {
		return rec, 0, err
	}
	total += n
	if rec.ParentHash, n, err = DecodeB256(b[total:]); err != nil {
		return rec, 0, err
	}
	total += n
	if rec.LogsBloom, n, err = DecodeBytes(b[total:]); err != nil {
		return rec, 0, err
	}
	total += n
	if len(b) < total+4 {
		return rec, 0, ErrShortBuffer{Want: total + 4, Got: len(b)}
	}
	count := int(beUint32(b[total : total+4]))
	total += 4
	rec.TxHashes = make([]B256, count)
	for i := 0; i < count; i++ {
		if rec.TxHashes[i], n, err = DecodeB256(b[total:]); err != nil {
			return rec, 0, err
		}
		total += n
	}
	return rec, total, nil
}

// TxRecord is the persisted shape of spec.md §"Transaction record".
type TxRecord struct {
	From           Address
	To             *Address // nil for contract-creation
	Input          Bytes
	Nonce          U64
	GasUsed        U64
	GasLimit       U64
	BlockNumber    U64
	TxIndexInBlock U64
	Hash           B256
}

func (t TxRecord) Encode() []byte {
	out := make([]byte, 0)
	out = append(out, t.From.Encode()...)
	if t.To != nil {
		out = append(out, 1)
		out = append(out, t.To.Encode()...)
	} else {
		out = append(out, 0)
	}
	out = append(out, t.Input.Encode()...)
	out = append(out, t.Nonce.Encode()...)
	out = append(out, t.GasUsed.Encode()...)
	out = append(out, t.GasLimit.Encode()...)
	out = append(out, t.BlockNumber.Encode()...)
	out = append(out, t.TxIndexInBlock.Encode()...)
	out = append(out, t.Hash.Encode()...)
	return out
}

func DecodeTxRecord(b []byte) (TxRecord, int, error) {
	var t TxRecord
	var n, total int
	var err error
	if t.From, n, err = DecodeAddress(b[total:]); err != nil {
		return t, 0, err
	}
	total += n
	if len(b) < total+1 {
		return t, 0, ErrShortBuffer{Want: total + 1, Got: len(b)}
	}
	hasTo := b[total]
	total++
	if hasTo == 1 {
		var to Address
		if to, n, err = DecodeAddress(b[total:]); err != nil {
			return t, 0, err
		}
		total += n
		t.To = &to
	}
	if t.Input, n, err = DecodeBytes(b[total:]); err != nil {
		return t, 0, err
	}
	total += n
	if t.Nonce, n, err = DecodeU64(b[total:]); err != nil {
		return t, 0, err
	}
	total += n
	if t.GasUsed, n, err = DecodeU64(b[total:]); err != nil {
		return t, 0, err
	}
	total += n
	if t.GasLimit, n, err = DecodeU64(b[total:]); err != nil {
		return t, 0, err
	}
	total += n
	if t.BlockNumber, n, err = DecodeU64(b[total:]); err != nil {
		return t, 0, err
	}
	total += n
	if t.TxIndexInBlock, n, err = DecodeU64(b[total:]); err != nil {
		return t, 0, err
	}
	total += n
	if t.Hash, n, err = DecodeB256(b[total:]); err != nil {
		return t, 0, err
	}
	total += n
	return t, total, nil
}

// TxHash implements spec.md §3's
// hash = keccak256(from ‖ nonce(be8) ‖ to-or-20×0x00 ‖ input).
func TxHash(from Address, nonce uint64, to *Address, input []byte) B256 {
	h := sha3.NewLegacyKeccak256()
	h.Write(from[:])
	h.Write(U64(nonce).Encode())
	if to != nil {
		h.Write(to[:])
	} else {
		h.Write(make([]byte, 20))
	}
	h.Write(input)
	sum := h.Sum(nil)
	var out B256
	copy(out[:], sum)
	return out
}

// LogRecord is the persisted shape of spec.md §"Log record".
type LogRecord struct {
	Address     Address
	Topics      []B256
	Data        Bytes
	BlockNumber U64
	BlockHash   B256
	TxHash      B256
	TxIndex     U64
	LogIndex    U64
}

func (l LogRecord) Encode() []byte {
	out := make([]byte, 0)
	out = append(out, l.Address.Encode()...)
	countBuf := make([]byte, 4)
	putUint32(countBuf, uint32(len(l.Topics)))
	out = append(out, countBuf...)
	for _, t := range l.Topics {
		out = append(out, t.Encode()...)
	}
	out = append(out, l.Data.Encode()...)
	out = append(out, l.BlockNumber.Encode()...)
	out = append(out, l.BlockHash.Encode()...)
	out = append(out, l.TxHash.Encode()...)
	out = append(out, l.TxIndex.Encode()...)
	out = append(out, l.LogIndex.Encode()...)
	return out
}

func DecodeLogRecord(b []byte) (LogRecord, int, error) {
	var l LogRecord
	var n, total int
	var err error
	if l.Address, n, err = DecodeAddress(b[total:]); err != nil {
		return l, 0, err
	}
	total += n
	if len(b) < total+4 {
		return l, 0, ErrShortBuffer{Want: total + 4, Got: len(b)}
	}
	count := int(beUint32(b[total : total+4]))
	total += 4
	l.Topics = make([]B256, count)
	for i := 0; i < count; i++ {
		if l.Topics[i], n, err = DecodeB256(b[total:]); err != nil {
			return l, 0, err
		}
		total += n
	}
	if l.Data, n, err = DecodeBytes(b[total:]); err != nil {
		return l, 0, err
	}
	total += n
	if l.BlockNumber, n, err = DecodeU64(b[total:]); err != nil {
		return l, 0, err
	}
	total += n
	if l.BlockHash, n, err = DecodeB256(b[total:]); err != nil {
		return l, 0, err
	}
	total += n
	if l.TxHash, n, err = DecodeB256(b[total:]); err != nil {
		return l, 0, err
	}
	total += n
	if l.TxIndex, n, err = DecodeU64(b[total:]); err != nil {
		return l, 0, err
	}
	total += n
	if l.LogIndex, n, err = DecodeU64(b[total:]); err != nil {
		return l, 0, err
	}
	total += n
	return l, total, nil
}

// ReceiptRecord is the persisted shape of spec.md §"Receipt record".
type ReceiptRecord struct {
	Status            U64 // 1 success, 0 failure, per Ethereum convention
	CumulativeGasUsed U64
	GasUsed           U64
	LogsBloom         Bytes
	Logs              []LogRecord
	ContractAddress   *Address
	TxHash            B256
	BlockHash         B256
	BlockNumber       U64
	TxIndex           U64
}

func (r ReceiptRecord) Encode() []byte {
	out := make([]byte, 0)
	out = append(out, r.Status.Encode()...)
	out = append(out, r.CumulativeGasUsed.Encode()...)
	out = append(out, r.GasUsed.Encode()...)
	out = append(out, r.LogsBloom.Encode()...)
	countBuf := make([]byte, 4)
	putUint32(countBuf, uint32(len(r.Logs)))
	out = append(out, countBuf...)
	for _, l := range r.Logs {
		out = append(out, l.Encode()...)
	}
	if r.ContractAddress != nil {
		out = append(out, 1)
		out = append(out, r.ContractAddress.Encode()...)
	} else {
		out = append(out, 0)
	}
	out = append(out, r.TxHash.Encode()...)
	out = append(out, r.BlockHash.Encode()...)
	out = append(out, r.BlockNumber.Encode()...)
	out = append(out, r.TxIndex.Encode()...)
	return out
}

func DecodeReceiptRecord(b []byte) (ReceiptRecord, int, error) {
	var r ReceiptRecord
	var n, total int
	var err error
	if r.Status, n, err = DecodeU64(b[total:]); err != nil {
		return r, 0, err
	}
	total += n
	if r.CumulativeGasUsed, n, err = DecodeU64(b[total:]); err != nil {
		return r, 0, err
	}
	total += n
	if r.GasUsed, n, err = DecodeU64(b[total:]); err != nil {
		return r, 0, err
	}
	total += n
	if r.LogsBloom, n, err = DecodeBytes(b[total:]); err != nil {
		return r, 0, err
	}
	total += n
	if len(b) < total+4 {
		return r, 0, ErrShortBuffer{Want: total + 4, Got: len(b)}
	}
	count := int(beUint32(b[total : total+4]))
	total += 4
	r.Logs = make([]LogRecord, count)
	for i := 0; i < count; i++ {
		if r.Logs[i], n, err = DecodeLogRecord(b[total:]); err != nil {
			return r, 0, err
		}
		total += n
	}
	if len(b) < total+1 {
		return r, 0, ErrShortBuffer{Want: total + 1, Got: len(b)}
	}
	hasAddr := b[total]
	total++
	if hasAddr == 1 {
		var addr Address
		if addr, n, err = DecodeAddress(b[total:]); err != nil {
			return r, 0, err
		}
		total += n
		r.ContractAddress = &addr
	}
	if r.TxHash, n, err = DecodeB256(b[total:]); err != nil {
		return r, 0, err
	}
	total += n
	if r.BlockHash, n, err = DecodeB256(b[total:]); err != nil {
		return r, 0, err
	}
	total += n
	if r.BlockNumber, n, err = DecodeU64(b[total:]); err != nil {
		return r, 0, err
	}
	total += n
	if r.TxIndex, n, err = DecodeU64(b[total:]); err != nil {
		return r, 0, err
	}
	total += n
	return r, total, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
