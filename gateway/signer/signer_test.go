package signer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	caller    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	target    = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestSignMint_VerifiesForSameTuple(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	auth := NewAuthority()

	sig, err := SignMint(key, caller, target, recipient)
	if err != nil {
		t.Fatalf("SignMint failed: %v", err)
	}
	if v := sig[crypto.RecoveryIDOffset]; v != 27 && v != 28 {
		t.Errorf("expected V in {27, 28}, got %d", v)
	}

	if !auth.Verify(addr, MintMessageHash(caller, target, recipient), sig) {
		t.Fatal("expected signature to verify")
	}
	// キャッシュ経由でも同じ結果になる
	if !auth.Verify(addr, MintMessageHash(caller, target, recipient), sig) {
		t.Fatal("expected cached signature to verify")
	}

	// V が 0/1 の署名も受け付ける
	raw := make([]byte, len(sig))
	copy(raw, sig)
	raw[crypto.RecoveryIDOffset] -= 27
	if !auth.Verify(addr, MintMessageHash(caller, target, recipient), raw) {
		t.Error("expected 0/1 recovery id to verify")
	}
}

func TestSignMint_ReplayBinding(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey)
	auth := NewAuthority()
	sig, _ := SignMint(key, caller, target, recipient)

	other := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	tests := []struct {
		name string
		hash common.Hash
	}{
		{"recipient", MintMessageHash(caller, target, other)},
		{"caller", MintMessageHash(other, target, recipient)},
		{"target", MintMessageHash(caller, other, recipient)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if auth.Verify(addr, tt.hash, sig) {
				t.Errorf("signature must not verify with different %s", tt.name)
			}
		})
	}
}

func TestVerify_Rejects(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey)
	auth := NewAuthority()
	hash := MintMessageHash(caller, target, recipient)
	sig, _ := SignMint(key, caller, target, recipient)

	if auth.Verify(common.Address{}, hash, sig) {
		t.Error("zero signer must never verify")
	}
	if auth.Verify(addr, hash, sig[:64]) {
		t.Error("short signature must not verify")
	}
	if _, err := auth.Recover(hash, sig[:10]); err != ErrSignatureLength {
		t.Errorf("expected ErrSignatureLength, got %v", err)
	}

	bad := make([]byte, len(sig))
	copy(bad, sig)
	bad[crypto.RecoveryIDOffset] = 5
	if _, err := auth.Recover(hash, bad); err != ErrSignatureValues {
		t.Errorf("expected ErrSignatureValues, got %v", err)
	}
}
