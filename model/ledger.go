package model

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// AssetReceivedSelector は受け取りフックが転送を承認するときに返す値
var AssetReceivedSelector = func() [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte("onERC721Received(address,address,uint256,bytes)"))[:4])
	return sel
}()

// BlockHeader はトランザクションに刻まれるブロック情報
type BlockHeader struct {
	Number     uint64
	Time       uint64
	ParentHash common.Hash
}

// Msg は送信されるトランザクション
type Msg struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
}

// Call は実行中のコールフレーム
// From は msg.sender、Value はこのフレームに付与されたネイティブ通貨
type Call struct {
	From   common.Address
	To     common.Address
	Value  *uint256.Int
	TxHash common.Hash
	Block  BlockHeader
}

// CallValue は nil を 0 として扱った送金額を返す
func (c *Call) CallValue() *uint256.Int {
	if c.Value == nil {
		return new(uint256.Int)
	}
	return c.Value
}

// AssetReceiver は NFT を受け取るコントラクトが実装するフック
type AssetReceiver interface {
	OnAssetReceived(operator, from common.Address, tokenID *uint256.Int, data []byte) ([4]byte, error)
}

// NativeReceiver はネイティブ通貨を受け取るコントラクトが実装するフック
type NativeReceiver interface {
	ReceiveNative(call *Call) error
}

// AssetLedger は NFT コントラクトの抽象
type AssetLedger interface {
	OwnerOf(tokenID *uint256.Int) (common.Address, error)
	SafeTransferFrom(operator, from, to common.Address, tokenID *uint256.Int, data []byte) error
}

// AssetMinter はファクトリーからミントを委譲されるコントラクト
type AssetMinter interface {
	Mint(minter, to common.Address) (*uint256.Int, error)
}

// CurrencyLedger は代替トークンコントラクトの抽象
type CurrencyLedger interface {
	BalanceOf(owner common.Address) *uint256.Int
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}

// Chain はコントラクトが実行時に利用するホストチェーン
type Chain interface {
	Asset(addr common.Address) (AssetLedger, error)
	Minter(addr common.Address) (AssetMinter, error)
	Currency(addr common.Address) (CurrencyLedger, error)

	// SendNative は from から to へネイティブ通貨を送る (受け取り側のフックを呼ぶ)
	SendNative(call *Call, from, to common.Address, amount *uint256.Int) error
	NativeBalance(addr common.Address) *uint256.Int

	// Record は現在のトランザクションが失敗したときに実行される取り消し処理を登録する
	Record(undo func())

	// Emit は現在のトランザクションにイベントを追加する
	Emit(contract common.Address, ev *ContractEvent)
}

// Executor はトランザクションと参照を直列に実行するチェーン
type Executor interface {
	Transact(ctx context.Context, msg Msg, fn func(call *Call) error) (*Receipt, error)
	View(fn func() error) error
}
