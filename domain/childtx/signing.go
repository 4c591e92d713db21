package childtx

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/plasmalabs/rootchaind/domain/merkle"
	"github.com/plasmalabs/rootchaind/domain/ruleerrors"
)

const (
	// SignatureLength is the length of one compact recoverable
	// signature: r (32) || s (32) || recovery id (1).
	SignatureLength = 65

	// SignatureBundleLength is the length of a transaction's signature
	// bundle: one signature slot per input slot, in slot order,
	// zero-filled where the input slot is unused.
	SignatureBundleLength = 2 * SignatureLength
)

// Sign signs the transaction's content hash with the given key, binding
// the signature to the given input slot (0 or 1). The returned signature
// occupies that slot in the transaction's signature bundle.
func (tx *Transaction) Sign(slot int, key *ecdsa.PrivateKey) ([]byte, error) {
	if slot < 0 || slot >= len(tx.Inputs) {
		return nil, ruleerrors.Errorf(ruleerrors.ErrMalformedTransaction,
			"signature slot %d out of range", slot)
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	return crypto.Sign(hash[:], key)
}

// CombineSignatures assembles a signature bundle from per-slot signatures.
// A nil signature leaves its slot zero-filled.
func CombineSignatures(sig1, sig2 []byte) ([]byte, error) {
	bundle := make([]byte, SignatureBundleLength)
	for i, sig := range [][]byte{sig1, sig2} {
		if sig == nil {
			continue
		}
		if len(sig) != SignatureLength {
			return nil, ruleerrors.Errorf(ruleerrors.ErrInvalidSignature,
				"signature for slot %d is %d bytes, want %d",
				i, len(sig), SignatureLength)
		}
		copy(bundle[i*SignatureLength:], sig)
	}
	return bundle, nil
}

// SplitSignatureBundle splits a 130-byte bundle into its two slots.
func SplitSignatureBundle(bundle []byte) (sig1, sig2 []byte, err error) {
	if len(bundle) != SignatureBundleLength {
		return nil, nil, ruleerrors.Errorf(ruleerrors.ErrInvalidSignature,
			"signature bundle is %d bytes, want %d",
			len(bundle), SignatureBundleLength)
	}
	return bundle[:SignatureLength], bundle[SignatureLength:], nil
}

// IsZeroSignature reports whether the signature slot is zero-filled,
// meaning no signature was supplied for it.
func IsZeroSignature(sig []byte) bool {
	for _, b := range sig {
		if b != 0 {
			return false
		}
	}
	return true
}

// RecoverSigner recovers the address that produced the given compact
// signature over the given content hash. It returns
// ruleerrors.ErrInvalidSignature if the signature is structurally invalid
// or does not recover to any public key.
func RecoverSigner(hash merkle.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ruleerrors.Errorf(ruleerrors.ErrInvalidSignature,
			"signature is %d bytes, want %d", len(sig), SignatureLength)
	}
	pubKey, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return common.Address{}, ruleerrors.Errorf(ruleerrors.ErrInvalidSignature,
			"recovering signer: %s", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
