package signer

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/patrickmn/go-cache"
)

var (
	ErrSignatureLength = errors.New("signature must be 65 bytes")
	ErrSignatureValues = errors.New("invalid signature values")
)

// MintMessageHash はミント認可の署名対象ハッシュを返す
// keccak256(caller ‖ target ‖ recipient) に "\x19Ethereum Signed Message:\n32" を前置してハッシュする
// target にティアごとのコレクションアドレスを含めることで、別ティアや別の呼び出し元への再利用を防ぐ
func MintMessageHash(caller, target, recipient common.Address) common.Hash {
	message := crypto.Keccak256(caller.Bytes(), target.Bytes(), recipient.Bytes())
	return common.BytesToHash(accounts.TextHash(message))
}

// Authority は指定された署名者による認可を検証する
type Authority struct {
	cache *cache.Cache
}

func NewAuthority() *Authority {
	return &Authority{cache: cache.New(5*time.Minute, 10*time.Minute)}
}

// Recover は署名から署名者のアドレスを復元する
// V は 0/1 と 27/28 の両方を受け付け、S が上半分の署名 (可鍛性) は拒否する
func (a *Authority) Recover(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrSignatureLength
	}

	key := hash.Hex() + hexutil.Encode(sig)
	if cached, found := a.cache.Get(key); found {
		return cached.(common.Address), nil
	}

	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	v := normalized[crypto.RecoveryIDOffset]
	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, ErrSignatureValues
	}

	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, err
	}
	addr := crypto.PubkeyToAddress(*pub)
	a.cache.Set(key, addr, cache.DefaultExpiration)
	return addr, nil
}

// Verify は sig が signer によって hash に対して作られたものかを返す
// signer がゼロアドレスの場合は常に false
func (a *Authority) Verify(signer common.Address, hash common.Hash, sig []byte) bool {
	if signer == (common.Address{}) {
		return false
	}
	recovered, err := a.Recover(hash, sig)
	if err != nil {
		return false
	}
	return recovered == signer
}

// Sign は hash に署名し、V を 27/28 にした署名を返す
func Sign(key *ecdsa.PrivateKey, hash common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignMint はミント認可の署名を発行する
func SignMint(key *ecdsa.PrivateKey, caller, target, recipient common.Address) ([]byte, error) {
	return Sign(key, MintMessageHash(caller, target, recipient))
}
