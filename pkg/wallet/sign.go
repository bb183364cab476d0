package wallet

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PartialSign places a signature from every key into the slot reserved for
// it in the message header. Signatures from other signers are kept.
func PartialSign(tx *solana.Transaction, keys ...solana.PrivateKey) error {
	if tx == nil {
		return fmt.Errorf("transaction is nil")
	}
	content, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) < required {
		grown := make([]solana.Signature, required)
		copy(grown, tx.Signatures)
		tx.Signatures = grown
	}
	for _, key := range keys {
		pub := key.PublicKey()
		idx := signerIndex(tx, pub)
		if idx < 0 {
			return fmt.Errorf("%s is not a required signer", pub)
		}
		sig, err := key.Sign(content)
		if err != nil {
			return fmt.Errorf("sign with %s: %w", pub, err)
		}
		tx.Signatures[idx] = sig
	}
	return nil
}

// FullySigned reports whether every required signature slot is filled.
func FullySigned(tx *solana.Transaction) bool {
	if tx == nil {
		return false
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) < required {
		return false
	}
	for i := 0; i < required; i++ {
		if tx.Signatures[i] == (solana.Signature{}) {
			return false
		}
	}
	return true
}

// MissingSigners lists the required signers whose slot is still empty.
func MissingSigners(tx *solana.Transaction) []solana.PublicKey {
	if tx == nil {
		return nil
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	var missing []solana.PublicKey
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if i >= len(tx.Signatures) || tx.Signatures[i] == (solana.Signature{}) {
			missing = append(missing, tx.Message.AccountKeys[i])
		}
	}
	return missing
}

func signerIndex(tx *solana.Transaction, key solana.PublicKey) int {
	required := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(key) {
			return i
		}
	}
	return -1
}
