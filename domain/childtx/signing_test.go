package childtx

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/plasmalabs/rootchaind/domain/ruleerrors"
)

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %s", err)
	}
	signer := crypto.PubkeyToAddress(key.PublicKey)

	tx := &Transaction{
		Inputs:  [2]Input{{BlkNum: 1000, Owner: signer}},
		Outputs: [2]Output{{NewOwner: signer, Amount: 42}},
	}
	sig, err := tx.Sign(0, key)
	if err != nil {
		t.Fatalf("Sign: %s", err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("signature is %d bytes, want %d", len(sig), SignatureLength)
	}

	hash, err := tx.Hash()
	if err != nil {
		t.Fatalf("Hash: %s", err)
	}
	recovered, err := RecoverSigner(hash, sig)
	if err != nil {
		t.Fatalf("RecoverSigner: %s", err)
	}
	if recovered != signer {
		t.Fatalf("recovered %s, want %s", recovered, signer)
	}
}

func TestRecoverTamperedSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %s", err)
	}
	signer := crypto.PubkeyToAddress(key.PublicKey)

	tx := &Transaction{
		Inputs:  [2]Input{{BlkNum: 1000, Owner: signer}},
		Outputs: [2]Output{{NewOwner: signer, Amount: 42}},
	}
	sig, err := tx.Sign(0, key)
	if err != nil {
		t.Fatalf("Sign: %s", err)
	}
	hash, err := tx.Hash()
	if err != nil {
		t.Fatalf("Hash: %s", err)
	}

	// Flipping a bit of r either fails recovery or recovers a different
	// address. Both reject the signer claim.
	tampered := append([]byte{}, sig...)
	tampered[0] ^= 0x01
	recovered, err := RecoverSigner(hash, tampered)
	if err == nil && recovered == signer {
		t.Fatalf("tampered signature still recovered the signer %s", signer)
	}

	// A signature over different content must not recover the signer
	// for this content hash.
	otherTx := &Transaction{
		Inputs:  [2]Input{{BlkNum: 2000, Owner: signer}},
		Outputs: [2]Output{{NewOwner: signer, Amount: 7}},
	}
	otherSig, err := otherTx.Sign(0, key)
	if err != nil {
		t.Fatalf("Sign: %s", err)
	}
	recovered, err = RecoverSigner(hash, otherSig)
	if err == nil && recovered == signer {
		t.Fatalf("signature over different content recovered the signer %s", signer)
	}

	if _, err := RecoverSigner(hash, sig[:10]); !errors.Is(err, ruleerrors.ErrInvalidSignature) {
		t.Fatalf("short signature: got %s, want ErrInvalidSignature", err)
	}
}

func TestSignatureBundle(t *testing.T) {
	key1, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %s", err)
	}
	key2, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %s", err)
	}
	owner1 := crypto.PubkeyToAddress(key1.PublicKey)
	owner2 := crypto.PubkeyToAddress(key2.PublicKey)

	tx := &Transaction{
		Inputs: [2]Input{
			{BlkNum: 1000, Owner: owner1},
			{BlkNum: 2000, Owner: owner2},
		},
		Outputs: [2]Output{{NewOwner: owner1, Amount: 10}},
	}
	sig1, err := tx.Sign(0, key1)
	if err != nil {
		t.Fatalf("Sign: %s", err)
	}
	sig2, err := tx.Sign(1, key2)
	if err != nil {
		t.Fatalf("Sign: %s", err)
	}

	bundle, err := CombineSignatures(sig1, sig2)
	if err != nil {
		t.Fatalf("CombineSignatures: %s", err)
	}
	if len(bundle) != SignatureBundleLength {
		t.Fatalf("bundle is %d bytes, want %d", len(bundle), SignatureBundleLength)
	}

	split1, split2, err := SplitSignatureBundle(bundle)
	if err != nil {
		t.Fatalf("SplitSignatureBundle: %s", err)
	}
	hash, err := tx.Hash()
	if err != nil {
		t.Fatalf("Hash: %s", err)
	}
	recovered1, err := RecoverSigner(hash, split1)
	if err != nil {
		t.Fatalf("RecoverSigner slot 0: %s", err)
	}
	recovered2, err := RecoverSigner(hash, split2)
	if err != nil {
		t.Fatalf("RecoverSigner slot 1: %s", err)
	}
	if recovered1 != owner1 || recovered2 != owner2 {
		t.Fatalf("bundle slots recovered (%s, %s), want (%s, %s)",
			recovered1, recovered2, owner1, owner2)
	}

	// Single-input transactions leave slot 1 zero-filled.
	singleBundle, err := CombineSignatures(sig1, nil)
	if err != nil {
		t.Fatalf("CombineSignatures: %s", err)
	}
	_, split2, err = SplitSignatureBundle(singleBundle)
	if err != nil {
		t.Fatalf("SplitSignatureBundle: %s", err)
	}
	if !IsZeroSignature(split2) {
		t.Fatalf("unused slot is not zero-filled")
	}
	if IsZeroSignature(sig1) {
		t.Fatalf("real signature reports as zero-filled")
	}

	if _, _, err := SplitSignatureBundle(bundle[:100]); !errors.Is(err, ruleerrors.ErrInvalidSignature) {
		t.Fatalf("short bundle: got %s, want ErrInvalidSignature", err)
	}
	if _, err := CombineSignatures(sig1[:10], nil); !errors.Is(err, ruleerrors.ErrInvalidSignature) {
		t.Fatalf("short slot signature: got %s, want ErrInvalidSignature", err)
	}
}
