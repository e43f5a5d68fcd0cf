package rpcserver

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/brc20-prog/brc20-programmable-module/encoding"
)

// Block is the Ethereum JSON-RPC block shape this module emits for
// eth_getBlockByNumber/eth_getBlockByHash. Fields with no equivalent in
// encoding.BlockRecord (no Merkle state, no PoW) are filled with the
// stable zero/placeholder values real light clients tolerate.
type Block struct {
	Number           HexNumber  `json:"number"`
	Hash             string     `json:"hash"`
	ParentHash       string     `json:"parentHash"`
	Nonce            HexBytes   `json:"nonce"`
	Sha3Uncles       string     `json:"sha3Uncles"`
	LogsBloom        HexBytes   `json:"logsBloom"`
	TransactionsRoot string     `json:"transactionsRoot"`
	StateRoot        string     `json:"stateRoot"`
	ReceiptsRoot     string     `json:"receiptsRoot"`
	Miner            string     `json:"miner"`
	Difficulty       HexNumber  `json:"difficulty"`
	ExtraData        HexBytes   `json:"extraData"`
	GasLimit         HexNumber  `json:"gasLimit"`
	GasUsed          HexNumber  `json:"gasUsed"`
	Timestamp        HexNumber  `json:"timestamp"`
	Transactions     []string   `json:"transactions"`
	Uncles           []string   `json:"uncles"`
}

func newBlock(rec encoding.BlockRecord) *Block {
	txHashes := make([]string, len(rec.TxHashes))
	for i, h := range rec.TxHashes {
		txHashes[i] = h.Hash().Hex()
	}
	return &Block{
		Number:           NewHexNumber(uint64(rec.Number)),
		Hash:             rec.Hash.Hash().Hex(),
		ParentHash:       rec.ParentHash.Hash().Hex(),
		Nonce:            HexBytes(encoding.MarshalNonceJSON(0)),
		Sha3Uncles:       emptyHash,
		LogsBloom:        NewHexBytes(rec.LogsBloom),
		TransactionsRoot: emptyHash,
		StateRoot:        emptyHash,
		ReceiptsRoot:     emptyHash,
		Miner:            zeroAddress,
		Difficulty:       "0x0",
		ExtraData:        "0x",
		GasLimit:         NewHexNumber(uint64(rec.GasUsed)),
		GasUsed:          NewHexNumber(uint64(rec.GasUsed)),
		Timestamp:        NewHexNumber(uint64(rec.Timestamp)),
		Transactions:     txHashes,
		Uncles:           []string{},
	}
}

const (
	emptyHash   = "0x0000000000000000000000000000000000000000000000000000000000000000"
	zeroAddress = "0x0000000000000000000000000000000000000000"
)

// Transaction is the Ethereum JSON-RPC transaction shape.
type Transaction struct {
	Hash             string     `json:"hash"`
	Nonce            HexNumber  `json:"nonce"`
	BlockHash        *string    `json:"blockHash"`
	BlockNumber      *HexNumber `json:"blockNumber"`
	TransactionIndex *HexNumber `json:"transactionIndex"`
	From             string     `json:"from"`
	To               *string    `json:"to"`
	Value            HexNumber  `json:"value"`
	GasPrice         HexNumber  `json:"gasPrice"`
	Gas              HexNumber  `json:"gas"`
	Input            HexBytes   `json:"input"`
}

func newTransaction(tx encoding.TxRecord) *Transaction {
	out := &Transaction{
		Hash:     tx.Hash.Hash().Hex(),
		Nonce:    HexNumber(encoding.MarshalNonceJSON(uint64(tx.Nonce))),
		From:     tx.From.Common().Hex(),
		Value:    "0x0",
		GasPrice: "0x0",
		Gas:      NewHexNumber(uint64(tx.GasLimit)),
		Input:    NewHexBytes(tx.Input),
	}
	if tx.To != nil {
		to := tx.To.Common().Hex()
		out.To = &to
	}
	blockNum := NewHexNumber(uint64(tx.BlockNumber))
	txIdx := NewHexNumber(uint64(tx.TxIndexInBlock))
	out.BlockNumber = &blockNum
	out.TransactionIndex = &txIdx
	return out
}

// Receipt is the Ethereum JSON-RPC transaction-receipt shape.
type Receipt struct {
	TransactionHash   string    `json:"transactionHash"`
	TransactionIndex  HexNumber `json:"transactionIndex"`
	BlockHash         string    `json:"blockHash"`
	BlockNumber       HexNumber `json:"blockNumber"`
	From              string    `json:"from"`
	To                *string   `json:"to"`
	ContractAddress   *string   `json:"contractAddress"`
	CumulativeGasUsed HexNumber `json:"cumulativeGasUsed"`
	GasUsed           HexNumber `json:"gasUsed"`
	LogsBloom         HexBytes  `json:"logsBloom"`
	Logs              []*Log    `json:"logs"`
	Status            HexNumber `json:"status"`
}

func newReceipt(rec encoding.ReceiptRecord, from common.Address, to *common.Address) *Receipt {
	logs := make([]*Log, len(rec.Logs))
	for i, l := range rec.Logs {
		logs[i] = newLog(l)
	}
	out := &Receipt{
		TransactionHash:   rec.TxHash.Hash().Hex(),
		TransactionIndex:  NewHexNumber(uint64(rec.TxIndex)),
		BlockHash:         rec.BlockHash.Hash().Hex(),
		BlockNumber:       NewHexNumber(uint64(rec.BlockNumber)),
		From:              from.Hex(),
		CumulativeGasUsed: NewHexNumber(uint64(rec.CumulativeGasUsed)),
		GasUsed:           NewHexNumber(uint64(rec.GasUsed)),
		LogsBloom:         NewHexBytes(rec.LogsBloom),
		Logs:              logs,
		Status:            NewHexNumber(uint64(rec.Status)),
	}
	if to != nil {
		toStr := to.Hex()
		out.To = &toStr
	}
	if rec.ContractAddress != nil {
		addr := rec.ContractAddress.Common().Hex()
		out.ContractAddress = &addr
	}
	return out
}

// Log is the Ethereum JSON-RPC log shape.
type Log struct {
	Address     string    `json:"address"`
	Topics      []string  `json:"topics"`
	Data        HexBytes  `json:"data"`
	BlockNumber HexNumber `json:"blockNumber"`
	BlockHash   string    `json:"blockHash"`
	TxHash      string    `json:"transactionHash"`
	TxIndex     HexNumber `json:"transactionIndex"`
	LogIndex    HexNumber `json:"logIndex"`
}

func newLog(l encoding.LogRecord) *Log {
	topics := make([]string, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = t.Hash().Hex()
	}
	return &Log{
		Address:     l.Address.Common().Hex(),
		Topics:      topics,
		Data:        NewHexBytes(l.Data),
		BlockNumber: NewHexNumber(uint64(l.BlockNumber)),
		BlockHash:   l.BlockHash.Hash().Hex(),
		TxHash:      l.TxHash.Hash().Hex(),
		TxIndex:     NewHexNumber(uint64(l.TxIndex)),
		LogIndex:    NewHexNumber(uint64(l.LogIndex)),
	}
}
