package txn

import (
	"fmt"

	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/script"
)

// VerificationFailure classifies why a transaction failed verification
// (spec §7 VerificationFailure kinds relevant to C4).
type VerificationFailureKind int

const (
	FailureBadAmounts VerificationFailureKind = iota
	FailureScriptAbort
	FailureBadSignature
)

type VerificationFailure struct {
	Kind VerificationFailureKind
	Msg  string
}

func (e *VerificationFailure) Error() string { return e.Msg }

func failAmounts(format string, args ...any) error {
	return &VerificationFailure{Kind: FailureBadAmounts, Msg: fmt.Sprintf(format, args...)}
}

func failScript(format string, args ...any) error {
	return &VerificationFailure{Kind: FailureScriptAbort, Msg: fmt.Sprintf(format, args...)}
}

// LedgerView is the minimal read surface verification needs from a
// Ledger: looking up a committed transaction by hash. Defined here
// (rather than imported from package ledger) to avoid an import cycle —
// ledger.MemStore satisfies this interface structurally.
type LedgerView interface {
	GetTransaction(hash crypto.Hash) (Transaction, bool)
}

// VerifyAmounts checks: every input is either coinbase (contributing
// currentBlockReward, and must be the transaction's sole input) or
// references an existing transaction whose output index is in range;
// Σinputs == Σoutputs.
func VerifyAmounts(tx Transaction, ledger LedgerView, currentBlockReward Satoshi) error {
	var totalIn Satoshi

	for _, in := range tx.Inputs {
		if in.IsCoinbase() {
			if len(tx.Inputs) != 1 {
				return failAmounts("coinbase transaction must have a single input")
			}
			totalIn += currentBlockReward
			continue
		}

		prevTx, ok := ledger.GetTransaction(in.UTXOTxHash)
		if !ok {
			return failAmounts("input references unknown transaction %s", in.UTXOTxHash)
		}
		if int(in.UTXOOutIndex) >= len(prevTx.Outputs) {
			return failAmounts("input references out-of-range output index %d", in.UTXOOutIndex)
		}
		totalIn += prevTx.Outputs[in.UTXOOutIndex].Value
	}

	var totalOut Satoshi
	for _, out := range tx.Outputs {
		totalOut += out.Value
	}

	if totalIn != totalOut {
		return failAmounts("total input %d != total output %d", totalIn, totalOut)
	}
	return nil
}

// VerifyScripts runs, for every non-coinbase input, the concatenated
// script_sig || script_pub_key of the referenced output in a fresh
// evaluator bound to tx's own hash, the hash CreatePayToPubKeyHash signs
// (signature items are excluded from it, so it is the same before and
// after signing).
func VerifyScripts(tx Transaction, ledger LedgerView) error {
	for _, in := range tx.Inputs {
		if in.IsCoinbase() {
			continue
		}

		prevTx, ok := ledger.GetTransaction(in.UTXOTxHash)
		if !ok {
			return failScript("input references unknown transaction %s", in.UTXOTxHash)
		}
		if int(in.UTXOOutIndex) >= len(prevTx.Outputs) {
			return failScript("input references out-of-range output index %d", in.UTXOOutIndex)
		}

		evaluator := script.NewEvaluator(tx.Hash())

		items := append(append([]script.Item{}, in.ScriptSig.Items...), prevTx.Outputs[in.UTXOOutIndex].ScriptPubKey.Items...)
		if !evaluator.Execute(items) {
			return failScript("script evaluation failed for input referencing %s:%d", in.UTXOTxHash, in.UTXOOutIndex)
		}
	}
	return nil
}

// VerifyAgainstLedger runs both verify_amounts and verify_scripts, the
// single entrypoint shared by the node loop (§4.9) and the sync path
// (§4.10), mirroring the teacher's single BlockChain.VerifyTransaction
// call site.
func VerifyAgainstLedger(tx Transaction, ledger LedgerView, currentBlockReward Satoshi) error {
	if err := VerifyAmounts(tx, ledger, currentBlockReward); err != nil {
		return err
	}
	return VerifyScripts(tx, ledger)
}
