package encoding

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestU64RoundTrip(t *testing.T) {
	cases := []uint64{0, 1, math.MaxUint64}
	for _, c := range cases {
		v := U64(c)
		got, n, err := DecodeU64(v.Encode())
		require.NoError(t, err)
		require.Equal(t, 8, n)
		require.Equal(t, v, got)
	}
}

func TestU64JSON(t *testing.T) {
	v := U64(255)
	b, err := v.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"0xff"`, string(b))

	var got U64
	require.NoError(t, got.UnmarshalJSON(b))
	require.Equal(t, v, got)
}

func TestMarshalNonceJSON(t *testing.T) {
	require.Equal(t, "0x00000000000000000000000000000001", MarshalNonceJSON(1))
	require.Len(t, MarshalNonceJSON(1), len("0x")+32)
}

func TestU128RoundTrip(t *testing.T) {
	cases := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)),
	}
	for _, c := range cases {
		v := NewU128FromBig(c)
		got, n, err := DecodeU128(v.Encode())
		require.NoError(t, err)
		require.Equal(t, 16, n)
		require.Equal(t, 0, c.Cmp(got.Big()))
	}
}

func TestU256RoundTrip(t *testing.T) {
	cases := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)),
	}
	for _, c := range cases {
		v := NewU256FromBig(c)
		got, n, err := DecodeU256(v.Encode())
		require.NoError(t, err)
		require.Equal(t, 32, n)
		require.Equal(t, 0, c.Cmp(got.Big()))
	}
}

func TestU512RoundTrip(t *testing.T) {
	max512 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 512), big.NewInt(1))
	cases := []*big.Int{big.NewInt(0), big.NewInt(1), max512}
	for _, c := range cases {
		v := NewU512FromBig(c)
		got, n, err := DecodeU512(v.Encode())
		require.NoError(t, err)
		require.Equal(t, 64, n)
		require.Equal(t, 0, c.Cmp(got.Big()))
	}
}

func TestB256RoundTrip(t *testing.T) {
	var zero, full B256
	for i := range full {
		full[i] = 0xff
	}
	for _, v := range []B256{zero, full} {
		got, n, err := DecodeB256(v.Encode())
		require.NoError(t, err)
		require.Equal(t, 32, n)
		require.Equal(t, v, got)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	var zero, full Address
	for i := range full {
		full[i] = 0xab
	}
	for _, v := range []Address{zero, full} {
		got, n, err := DecodeAddress(v.Encode())
		require.NoError(t, err)
		require.Equal(t, 20, n)
		require.Equal(t, v, got)
	}
}

func TestStorageKeyRoundTrip(t *testing.T) {
	var addr Address
	addr[0] = 1
	var slot B256
	slot[31] = 2
	k := StorageKey{Address: addr, Slot: slot}
	got, n, err := DecodeStorageKey(k.Encode())
	require.NoError(t, err)
	require.Equal(t, 64, n)
	require.Equal(t, k, got)
}

func TestBytesRoundTrip(t *testing.T) {
	cases := [][]byte{{}, {0x01}, make([]byte, 1024)}
	for _, c := range cases {
		v := Bytes(c)
		got, n, err := DecodeBytes(v.Encode())
		require.NoError(t, err)
		require.Equal(t, len(v.Encode()), n)
		require.Equal(t, []byte(v), []byte(got))
	}
}

func TestBytecodeRoundTrip(t *testing.T) {
	v := Bytecode{0x60, 0x00, 0x60, 0x00}
	got, _, err := DecodeBytecode(v.Encode())
	require.NoError(t, err)
	require.Equal(t, []byte(v), []byte(got))
}

func TestAccountRecordRoundTrip(t *testing.T) {
	empty := AccountRecord{CodeHash: EmptyCodeHash()}
	require.True(t, empty.IsAbsent())

	full := AccountRecord{
		Balance:  NewU256FromBig(big.NewInt(1_000_000)),
		Nonce:    7,
		CodeHash: B256{1, 2, 3},
	}
	require.False(t, full.IsAbsent())

	for _, rec := range []AccountRecord{empty, full} {
		got, n, err := DecodeAccountRecord(rec.Encode())
		require.NoError(t, err)
		require.Equal(t, len(rec.Encode()), n)
		require.Equal(t, rec.Nonce, got.Nonce)
		require.Equal(t, rec.CodeHash, got.CodeHash)
		require.Equal(t, 0, rec.Balance.Big().Cmp(got.Balance.Big()))
	}
}

func TestTxHash(t *testing.T) {
	var from Address
	from[19] = 1
	h1 := TxHash(from, 0, nil, nil)
	h2 := TxHash(from, 1, nil, nil)
	require.NotEqual(t, h1, h2)
}

func TestTxRecordRoundTrip(t *testing.T) {
	var from, to Address
	from[0] = 1
	to[0] = 2

	creation := TxRecord{From: from, Input: Bytes{}, Nonce: 0}
	call := TxRecord{From: from, To: &to, Input: Bytes{0xde, 0xad}, Nonce: 5, GasUsed: 21000, GasLimit: 384000}

	for _, tx := range []TxRecord{creation, call} {
		got, n, err := DecodeTxRecord(tx.Encode())
		require.NoError(t, err)
		require.Equal(t, len(tx.Encode()), n)
		require.Equal(t, tx.From, got.From)
		require.Equal(t, tx.Nonce, got.Nonce)
		if tx.To == nil {
			require.Nil(t, got.To)
		} else {
			require.Equal(t, *tx.To, *got.To)
		}
	}
}

func TestLogRecordRoundTrip(t *testing.T) {
	noTopics := LogRecord{Data: Bytes{}}
	withTopics := LogRecord{Topics: []B256{{1}, {2}}, Data: Bytes{0x01, 0x02, 0x03}, LogIndex: 3}

	for _, l := range []LogRecord{noTopics, withTopics} {
		got, n, err := DecodeLogRecord(l.Encode())
		require.NoError(t, err)
		require.Equal(t, len(l.Encode()), n)
		require.Equal(t, len(l.Topics), len(got.Topics))
		require.Equal(t, []byte(l.Data), []byte(got.Data))
	}
}

func TestReceiptRecordRoundTrip(t *testing.T) {
	failure := ReceiptRecord{Status: 0, LogsBloom: Bytes(make([]byte, 256))}
	var contract Address
	contract[0] = 9
	success := ReceiptRecord{
		Status:          1,
		GasUsed:         50000,
		LogsBloom:       Bytes(make([]byte, 256)),
		Logs:            []LogRecord{{Data: Bytes{1}}},
		ContractAddress: &contract,
	}

	for _, r := range []ReceiptRecord{failure, success} {
		got, n, err := DecodeReceiptRecord(r.Encode())
		require.NoError(t, err)
		require.Equal(t, len(r.Encode()), n)
		require.Equal(t, r.Status, got.Status)
		require.Equal(t, len(r.Logs), len(got.Logs))
		if r.ContractAddress == nil {
			require.Nil(t, got.ContractAddress)
		} else {
			require.Equal(t, *r.ContractAddress, *got.ContractAddress)
		}
	}
}

func TestHexDecodeOddLength(t *testing.T) {
	b, err := HexDecode("0xf")
	require.NoError(t, err)
	require.Equal(t, []byte{0x0f}, b)
}
