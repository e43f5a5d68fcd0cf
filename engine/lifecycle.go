package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/brc20-prog/brc20-programmable-module/apperrors"
	"github.com/brc20-prog/brc20-programmable-module/encoding"
	"github.com/brc20-prog/brc20-programmable-module/engineutil"
)

// AddTxToBlock opens a block at height latest+1 on the first call for a
// new height, or appends to the currently open block, per spec.md
// §4.4's state machine. It returns the assembled receipt for the
// applied transaction.
func (e *Engine) AddTxToBlock(timestamp uint64, blockHash common.Hash, tx TxInput) (encoding.ReceiptRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open == nil {
		e.open = &openBlockState{
			height:    e.latestHeight + 1,
			timestamp: timestamp,
			blockHash: blockHash,
		}
	}
	if e.open.timestamp != timestamp || e.open.blockHash != blockHash {
		return encoding.ReceiptRecord{}, apperrors.New(apperrors.KindStateMachine,
			"add_tx_to_block: timestamp/blockHash do not match the currently open block")
	}

	txIndex := uint64(len(e.open.txes))
	receipt, txRecord, err := e.applyTransaction(tx, txIndex)
	if err != nil {
		return encoding.ReceiptRecord{}, err
	}
	e.open.txes = append(e.open.txes, txRecord)
	e.open.receipts = append(e.open.receipts, receipt)
	e.open.txHashes = append(e.open.txHashes, txRecord.Hash)
	e.open.gasUsed = uint64(receipt.CumulativeGasUsed)
	orBloom(&e.open.logsBloom, receipt.LogsBloom)
	return receipt, nil
}

// FinaliseBlock closes the currently open block, requiring the given
// parameters to match it exactly, and materialises the block record.
func (e *Engine) FinaliseBlock(timestamp uint64, blockHash common.Hash, expectedTxCount int) (encoding.BlockRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finaliseLocked(timestamp, blockHash, expectedTxCount)
}

func (e *Engine) finaliseLocked(timestamp uint64, blockHash common.Hash, expectedTxCount int) (encoding.BlockRecord, error) {
	if e.open == nil {
		return encoding.BlockRecord{}, apperrors.New(apperrors.KindStateMachine, "finalise_block: engine is Closed")
	}
	if e.open.timestamp != timestamp || e.open.blockHash != blockHash {
		return encoding.BlockRecord{}, apperrors.New(apperrors.KindStateMachine,
			"finalise_block: timestamp/blockHash do not match the open block")
	}
	if len(e.open.txes) != expectedTxCount {
		return encoding.BlockRecord{}, apperrors.New(apperrors.KindStateMachine,
			fmt.Sprintf("finalise_block: expected %d transactions, open block has %d", expectedTxCount, len(e.open.txes)))
	}

	rec := e.materialiseBlock()
	e.open = nil
	return rec, nil
}

func (e *Engine) materialiseBlock() encoding.BlockRecord {
	var parentHash encoding.B256
	if prior, ok, _ := e.store.Table(blockTable).Get(encoding.U64(e.open.height-1).Encode()); ok {
		if prec, _, err := encoding.DecodeBlockRecord(prior); err == nil {
			parentHash = prec.Hash
		}
	}
	var hash encoding.B256
	copy(hash[:], e.open.blockHash[:])

	rec := encoding.BlockRecord{
		Number:     encoding.U64(e.open.height),
		Timestamp:  encoding.U64(e.open.timestamp),
		GasUsed:    encoding.U64(e.open.gasUsed),
		Hash:       hash,
		ParentHash: parentHash,
		LogsBloom:  encoding.Bytes(e.open.logsBloom[:]),
		TxHashes:   e.open.txHashes,
	}
	_ = e.store.Table(blockTable).Put(encoding.U64(e.open.height).Encode(), rec.Encode())
	e.indexBlockHash(rec)
	for i, tx := range e.open.txes {
		_ = e.store.Table(txTable).Put(tx.Hash.Encode(), tx.Encode())
		_ = e.store.Table(receiptTable).Put(tx.Hash.Encode(), e.open.receipts[i].Encode())
	}
	e.versioned.Touch(e.open.height)
	e.latestHeight = e.open.height
	return rec
}

// FinaliseBlockWithTxes is the combined open+apply-all+finalise form;
// the engine must be Closed on entry.
func (e *Engine) FinaliseBlockWithTxes(timestamp uint64, blockHash common.Hash, txes []TxInput) (encoding.BlockRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open != nil {
		return encoding.BlockRecord{}, apperrors.New(apperrors.KindStateMachine,
			"finalise_block_with_txes: engine must be Closed on entry")
	}
	e.open = &openBlockState{height: e.latestHeight + 1, timestamp: timestamp, blockHash: blockHash}
	for i, tx := range txes {
		receipt, txRecord, err := e.applyTransaction(tx, uint64(i))
		if err != nil {
			return encoding.BlockRecord{}, err
		}
		e.open.txes = append(e.open.txes, txRecord)
		e.open.receipts = append(e.open.receipts, receipt)
		e.open.txHashes = append(e.open.txHashes, txRecord.Hash)
		e.open.gasUsed = uint64(receipt.CumulativeGasUsed)
		orBloom(&e.open.logsBloom, receipt.LogsBloom)
	}
	return e.finaliseLocked(timestamp, blockHash, len(txes))
}

// MineBlock produces count empty blocks with monotonically increasing
// timestamps and the zero hash; only valid when Closed.
func (e *Engine) MineBlock(count uint64, startTimestamp uint64) ([]encoding.BlockRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open != nil {
		return nil, apperrors.New(apperrors.KindStateMachine, "mine_block: engine must be Closed")
	}
	out := make([]encoding.BlockRecord, 0, count)
	for i := uint64(0); i < count; i++ {
		ts := startTimestamp + i
		e.open = &openBlockState{height: e.latestHeight + 1, timestamp: ts, blockHash: common.Hash{}}
		rec := e.materialiseBlock()
		out = append(out, rec)
	}
	return out, nil
}

// Reorg rolls the cache back to latestValidHeight, removes block/tx/
// receipt records above it, and resets the engine to Closed.
func (e *Engine) Reorg(latestValidHeight uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if latestValidHeight > e.latestHeight {
		return apperrors.New(apperrors.KindBadRequest, "reorg target is newer than latest height")
	}
	if err := e.versioned.Rollback(latestValidHeight); err != nil {
		return err
	}
	for h := e.latestHeight; h > latestValidHeight; h-- {
		if raw, ok, _ := e.store.Table(blockTable).Get(encoding.U64(h).Encode()); ok {
			if rec, _, err := encoding.DecodeBlockRecord(raw); err == nil {
				for _, txHash := range rec.TxHashes {
					_ = e.store.Table(txTable).Delete(txHash.Encode())
					_ = e.store.Table(receiptTable).Delete(txHash.Encode())
				}
				e.deindexBlockHash(rec)
			}
		}
		_ = e.store.Table(blockTable).Delete(encoding.U64(h).Encode())
	}
	e.latestHeight = latestValidHeight
	e.open = nil
	return nil
}

// ClearCaches discards every uncommitted mutation held in the
// versioned cache, resetting reads to the last-committed state; valid
// only when Closed.
func (e *Engine) ClearCaches() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open != nil {
		return apperrors.New(apperrors.KindStateMachine, "clear_caches: engine must be Closed")
	}
	e.versioned.Clear()
	return nil
}

// CommitToDatabase flushes the versioned cache; valid only when Closed.
func (e *Engine) CommitToDatabase() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open != nil {
		return apperrors.New(apperrors.KindStateMachine, "commit_to_database: engine must be Closed")
	}
	return e.versioned.Commit()
}

// CallContract executes against the current state without persisting
// any mutation, for eth_call/eth_estimateGas-shaped RPCs.
func (e *Engine) CallContract(tx TxInput) (*core.ExecutionResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	height := e.latestHeightLocked()
	var blockHash common.Hash
	var timestamp uint64
	if e.open != nil {
		blockHash = e.open.blockHash
		timestamp = e.open.timestamp
	} else if raw, ok, _ := e.store.Table(blockTable).Get(encoding.U64(height).Encode()); ok {
		if rec, _, err := encoding.DecodeBlockRecord(raw); err == nil {
			blockHash = rec.Hash.Hash()
			timestamp = uint64(rec.Timestamp)
		}
	}

	sv := newStateView(e.versioned, height)
	result, _, err := e.runMessage(sv, tx, height, timestamp, blockHash, true)
	return result, err
}

// applyTransaction resolves the sender, bumps its nonce, executes the
// call through go-ethereum's EVM, and assembles a receipt — spec.md
// §4.4's "Transaction application" steps 1-5.
func (e *Engine) applyTransaction(tx TxInput, txIndex uint64) (encoding.ReceiptRecord, encoding.TxRecord, error) {
	height := e.open.height
	sv := newStateView(e.versioned, height)

	var fromAddr encoding.Address
	copy(fromAddr[:], tx.From[:])
	var toAddr *encoding.Address
	if tx.To != nil {
		var a encoding.Address
		copy(a[:], tx.To[:])
		toAddr = &a
	}

	nonce := sv.GetNonce(tx.From)
	hash := encoding.TxHash(fromAddr, nonce, toAddr, tx.Input)

	result, contractAddr, err := e.runMessage(sv, tx, height, e.open.timestamp, e.open.blockHash, false)

	sv.SetNonce(tx.From, nonce+1, 0)

	gasLimit := engineutil.GetGasLimit(len(tx.Input))
	var gasUsed uint64
	status := encoding.U64(1)
	var logs []encoding.LogRecord

	if err != nil || result.Failed() {
		status = 0
		if result != nil {
			gasUsed = result.UsedGas
		} else {
			gasUsed = gasLimit
		}
	} else {
		gasUsed = result.UsedGas
		for _, l := range sv.Logs() {
			logs = append(logs, toLogRecord(l, height, e.open.blockHash, hash, txIndex, e.open.logIndex))
			e.open.logIndex++
		}
	}

	cumulative := e.open.gasUsed + gasUsed
	var bloom [256]byte
	for _, l := range logs {
		computeBloom(&bloom, l)
	}

	receipt := encoding.ReceiptRecord{
		Status:            status,
		CumulativeGasUsed: encoding.U64(cumulative),
		GasUsed:           encoding.U64(gasUsed),
		LogsBloom:         encoding.Bytes(bloom[:]),
		Logs:              logs,
		ContractAddress:   contractAddr,
		TxHash:            hash,
		BlockHash:         func() encoding.B256 { var b encoding.B256; copy(b[:], e.open.blockHash[:]); return b }(),
		BlockNumber:       encoding.U64(height),
		TxIndex:           encoding.U64(txIndex),
	}

	txRecord := encoding.TxRecord{
		From:           fromAddr,
		To:             toAddr,
		Input:          encoding.Bytes(tx.Input),
		Nonce:          encoding.U64(nonce),
		GasUsed:        encoding.U64(gasUsed),
		GasLimit:       encoding.U64(gasLimit),
		BlockNumber:    encoding.U64(height),
		TxIndexInBlock: encoding.U64(txIndex),
		Hash:           hash,
	}

	return receipt, txRecord, nil
}

// runMessage builds a go-ethereum EVM context per spec.md §4.4 step 2
// (fixed chain id, Cancun/Prague rules, gas price 0, value 0,
// prevrandao = block hash) and executes the call. Beneficiary reward
// is never paid: the coinbase is the zero address and the policy
// layer never credits it, matching "no beneficiary reward, no base
// fee" in the spec.
func (e *Engine) runMessage(sv *stateView, tx TxInput, height, timestamp uint64, blockHash common.Hash, readOnly bool) (*core.ExecutionResult, *encoding.Address, error) {
	gasLimit := engineutil.GetGasLimit(len(tx.Input))

	blockCtx := vm.BlockContext{
		CanTransfer: func(vm.StateDB, common.Address, *uint256.Int) bool { return true },
		Transfer:    func(vm.StateDB, common.Address, common.Address, *uint256.Int) {},
		GetHash:     func(uint64) common.Hash { return blockHash },
		Coinbase:    common.Address{},
		GasLimit:    gasLimit,
		BlockNumber: new(big.Int).SetUint64(height),
		Time:        timestamp,
		Difficulty:  big.NewInt(0),
		BaseFee:     big.NewInt(0),
		Random:      &blockHash,
	}

	nonce := sv.GetNonce(tx.From)
	msg := &core.Message{
		From:      tx.From,
		To:        tx.To,
		Nonce:     nonce,
		Value:     big.NewInt(0),
		GasLimit:  gasLimit,
		GasPrice:  big.NewInt(0),
		GasFeeCap: big.NewInt(0),
		GasTipCap: big.NewInt(0),
		Data:      tx.Input,
	}

	cfg := e.chainConfig()
	evm := vm.NewEVM(blockCtx, sv, cfg, vm.Config{NoBaseFee: true})
	evm.SetPrecompiles(e.precompiles)

	gp := new(core.GasPool).AddGas(gasLimit)
	result, err := core.ApplyMessage(evm, msg, gp)
	if err != nil {
		return result, nil, err
	}

	var contractAddr *encoding.Address
	if tx.To == nil && !result.Failed() {
		addr := crypto.CreateAddress(tx.From, nonce)
		var a encoding.Address
		copy(a[:], addr[:])
		contractAddr = &a
	}
	return result, contractAddr, nil
}

func toLogRecord(l *types.Log, height uint64, blockHash common.Hash, txHash encoding.B256, txIndex, logIndex uint64) encoding.LogRecord {
	var addr encoding.Address
	copy(addr[:], l.Address[:])
	topics := make([]encoding.B256, len(l.Topics))
	for i, t := range l.Topics {
		copy(topics[i][:], t[:])
	}
	var bh encoding.B256
	copy(bh[:], blockHash[:])
	return encoding.LogRecord{
		Address:     addr,
		Topics:      topics,
		Data:        encoding.Bytes(l.Data),
		BlockNumber: encoding.U64(height),
		BlockHash:   bh,
		TxHash:      txHash,
		TxIndex:     encoding.U64(txIndex),
		LogIndex:    encoding.U64(logIndex),
	}
}

// orBloom folds a receipt's bloom filter into the running block bloom.
func orBloom(dst *[256]byte, src encoding.Bytes) {
	for i := 0; i < 256 && i < len(src); i++ {
		dst[i] |= src[i]
	}
}

// computeBloom adds a log's address and topics to a 2048-bit Ethereum
// bloom filter using the standard 3-hash-per-item scheme.
func computeBloom(bloom *[256]byte, l encoding.LogRecord) {
	add := func(data []byte) {
		hash := crypto.Keccak256(data)
		for _, i := range [3]int{0, 2, 4} {
			bit := (uint(hash[i])<<8 | uint(hash[i+1])) & 2047
			bloom[256-1-bit/8] |= 1 << (bit % 8)
		}
	}
	add(l.Address[:])
	for _, t := range l.Topics {
		add(t[:])
	}
}
