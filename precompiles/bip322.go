package precompiles

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// bip322Tag is the BIP-322 tagged-hash domain separator used to derive
// the virtual to_spend transaction's scriptSig commitment.
const bip322Tag = "BIP0322-signed-message"

// taggedHash implements BIP-340's tagged hash construction:
// SHA256(SHA256(tag) ‖ SHA256(tag) ‖ msg).
func taggedHash(tag string, msg []byte) []byte {
	tagHash := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	h.Write(msg)
	return h.Sum(nil)
}

// verifySimple implements the BIP-322 "simple" signature scheme: build
// the virtual to_spend/to_sign transaction pair, attach the decoded
// witness stack to to_sign's only input, and check that witness
// against the address's scriptPubKey. Grounded on
// original_source/src/evm/precompiles/bip322_verify_precompile.rs's
// verify_simple_encoded call, implemented here from scratch on
// btcsuite/btcd/txscript since no Go BIP-322 crate is in the pack.
func verifySimple(address, message, signatureBase64 string, params *chaincfg.Params) (bool, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return false, fmt.Errorf("bip322: invalid address: %w", err)
	}
	scriptPubKey, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return false, fmt.Errorf("bip322: address has no script: %w", err)
	}

	sigBytes, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return false, fmt.Errorf("bip322: invalid base64 signature: %w", err)
	}
	stack, err := decodeWitnessStack(sigBytes)
	if err != nil {
		return false, fmt.Errorf("bip322: invalid witness stack: %w", err)
	}

	toSpend := buildToSpend(scriptPubKey, []byte(message))
	toSign := buildToSign(toSpend)
	toSign.TxIn[0].Witness = stack

	fetcher := txscript.NewCannedPrevOutputFetcher(scriptPubKey, 0)
	sigHashes := txscript.NewTxSigHashes(toSign, fetcher)

	switch {
	case len(scriptPubKey) == 22 && scriptPubKey[0] == txscript.OP_0 && scriptPubKey[1] == 0x14:
		return verifyP2WPKH(scriptPubKey, stack, sigHashes, toSign)
	case len(scriptPubKey) == 34 && scriptPubKey[0] == txscript.OP_1 && scriptPubKey[1] == 0x20:
		return verifyP2TR(scriptPubKey, stack, sigHashes, toSign, fetcher)
	default:
		return false, fmt.Errorf("bip322: unsupported address script type")
	}
}

// buildToSpend constructs the virtual "to_spend" transaction BIP-322
// defines: a single input spending nothing real, whose scriptSig
// commits to the signed message, and a single output carrying the
// address's scriptPubKey.
func buildToSpend(scriptPubKey, message []byte) *wire.MsgTx {
	commitment := taggedHash(bip322Tag, message)
	scriptSig, _ := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(commitment).Script()

	tx := wire.NewMsgTx(0)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: 0xffffffff},
		SignatureScript:  scriptSig,
		Sequence:         0,
	})
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: scriptPubKey})
	return tx
}

// buildToSign constructs the virtual "to_sign" transaction that spends
// to_spend's sole output and carries the actual signature in its
// witness.
func buildToSign(toSpend *wire.MsgTx) *wire.MsgTx {
	opReturn, _ := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).Script()

	tx := wire.NewMsgTx(0)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: toSpend.TxHash(), Index: 0},
		Sequence:         0,
	})
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: opReturn})
	return tx
}

// decodeWitnessStack parses a BIP-322 "simple" signature — the same
// CompactSize-count-then-CompactSize-length-prefixed encoding Bitcoin
// uses for a transaction input's witness field.
func decodeWitnessStack(b []byte) ([][]byte, error) {
	r := bytes.NewReader(b)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	stack := make([][]byte, count)
	for i := range stack {
		item, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "witness item")
		if err != nil {
			return nil, err
		}
		stack[i] = item
	}
	return stack, nil
}

func verifyP2WPKH(scriptPubKey []byte, stack [][]byte, sigHashes *txscript.TxSigHashes, toSign *wire.MsgTx) (bool, error) {
	if len(stack) != 2 {
		return false, fmt.Errorf("bip322: p2wpkh witness must have 2 items, got %d", len(stack))
	}
	sigWithType, pubKeyBytes := stack[0], stack[1]
	if len(sigWithType) == 0 {
		return false, fmt.Errorf("bip322: empty signature")
	}

	pubKeyHash := scriptPubKey[2:22]
	scriptCode, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).AddData(pubKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).Script()
	if err != nil {
		return false, err
	}

	hash, err := txscript.CalcWitnessSigHash(scriptCode, sigHashes, txscript.SigHashAll, toSign, 0, 0)
	if err != nil {
		return false, err
	}

	sig, err := ecdsa.ParseDERSignature(sigWithType[:len(sigWithType)-1])
	if err != nil {
		return false, fmt.Errorf("bip322: invalid signature encoding: %w", err)
	}
	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false, fmt.Errorf("bip322: invalid pubkey: %w", err)
	}
	return sig.Verify(hash, pubKey), nil
}

func verifyP2TR(scriptPubKey []byte, stack [][]byte, sigHashes *txscript.TxSigHashes, toSign *wire.MsgTx, fetcher txscript.PrevOutputFetcher) (bool, error) {
	if len(stack) != 1 {
		return false, fmt.Errorf("bip322: p2tr key-path witness must have 1 item, got %d", len(stack))
	}
	sig := stack[0]
	hashType := txscript.SigHashDefault
	if len(sig) == 65 {
		hashType = txscript.SigHashType(sig[64])
		sig = sig[:64]
	}
	if len(sig) != 64 {
		return false, fmt.Errorf("bip322: invalid schnorr signature length %d", len(sig))
	}

	hash, err := txscript.CalcTaprootSignatureHash(sigHashes, hashType, toSign, 0, fetcher)
	if err != nil {
		return false, err
	}

	parsedSig, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false, fmt.Errorf("bip322: invalid schnorr signature: %w", err)
	}
	pubKey, err := schnorr.ParsePubKey(scriptPubKey[2:34])
	if err != nil {
		return false, fmt.Errorf("bip322: invalid taproot output key: %w", err)
	}
	return parsedSig.Verify(hash, pubKey), nil
}
