package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NativeCurrency はネイティブ通貨を表すセンチネルアドレス
var NativeCurrency = common.Address{}

// SaleStatus は出品の状態を表す列挙型
type SaleStatus uint8

const (
	StatusForSale  SaleStatus = 0 // 販売中
	StatusSold     SaleStatus = 1 // 売却済み (終端)
	StatusCanceled SaleStatus = 2 // キャンセル済み (終端)
)

func (s SaleStatus) String() string {
	switch s {
	case StatusForSale:
		return "for_sale"
	case StatusSold:
		return "sold"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Listing はマーケットにエスクローされた1件の出品
// (Asset, TokenID) をキーに保存され、ID は単調増加で再利用されない
type Listing struct {
	ID        uint64         `json:"id"`
	TokenID   *uint256.Int   `json:"token_id"`
	Asset     common.Address `json:"asset"`
	Currency  common.Address `json:"currency"`
	Seller    common.Address `json:"seller"`
	Buyer     common.Address `json:"buyer"`
	StartTime uint64         `json:"start_time"`
	Price     *uint256.Int   `json:"price"`
	Status    SaleStatus     `json:"status"`
}

// IsNative はネイティブ通貨建ての出品かどうかを返す
func (l *Listing) IsNative() bool {
	return l.Currency == NativeCurrency
}

// Clone は出品のディープコピーを返す
func (l *Listing) Clone() *Listing {
	c := *l
	if l.TokenID != nil {
		c.TokenID = l.TokenID.Clone()
	}
	if l.Price != nil {
		c.Price = l.Price.Clone()
	}
	return &c
}

// Tier はミントの権限レベル
type Tier uint8

const (
	TierOne   Tier = 1 // 支払いのみで誰でもミント可能
	TierTwo   Tier = 2 // 署名が必要
	TierThree Tier = 3 // 署名が必要
)

// Tiers は全ティアを昇順で返す
var Tiers = []Tier{TierOne, TierTwo, TierThree}

func (t Tier) Valid() bool {
	return t >= TierOne && t <= TierThree
}

// RequiresSignature は署名による認可が必要なティアかどうか
func (t Tier) RequiresSignature() bool {
	return t == TierTwo || t == TierThree
}

// Index は配列添字 (0始まり) を返す
func (t Tier) Index() int {
	return int(t) - 1
}

// ===============================================
// イベント関連のモデル
// ===============================================

// EventType はコントラクトイベントの種類
type EventType string

const (
	EventSell          EventType = "Sell"
	EventBuy           EventType = "Buy"
	EventSaleCanceled  EventType = "SaleCanceled"
	EventAssetReceived EventType = "AssetReceived"
	EventWithdrawal    EventType = "Withdrawal"
	EventMinted        EventType = "Minted"
)

// ContractEvent はオフチェーンのインデックス用に発行されるイベント
type ContractEvent struct {
	Type      EventType    `json:"type"`
	Contract  string       `json:"contract"`
	TxHash    string       `json:"tx_hash"`
	BlockNo   uint64       `json:"block_number"`
	ListingID uint64       `json:"listing_id,omitempty"`
	TokenID   *uint256.Int `json:"token_id,omitempty"`
	Asset     string       `json:"asset,omitempty"`
	Currency  string       `json:"currency,omitempty"`
	Seller    string       `json:"seller,omitempty"`
	Buyer     string       `json:"buyer,omitempty"`
	StartTime uint64       `json:"start_time,omitempty"`
	Price     *uint256.Int `json:"price,omitempty"`
	Fee       *uint256.Int `json:"fee,omitempty"`
	Operator  string       `json:"operator,omitempty"`
	From      string       `json:"from,omitempty"`
	Data      string       `json:"data,omitempty"`
	Sender    string       `json:"sender,omitempty"`
	Amount    *uint256.Int `json:"amount,omitempty"`
	Recipient string       `json:"recipient,omitempty"`
	Tier      Tier         `json:"tier,omitempty"`
	Variation *uint256.Int `json:"variation,omitempty"`
}

// Receipt はトランザクションの実行結果
type Receipt struct {
	TxHash      string           `json:"tx_hash"`
	BlockNumber uint64           `json:"block_number"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	Status      string           `json:"status"` // "success", "failed"
	Success     bool             `json:"success"`
	Error       string           `json:"error,omitempty"`
	Events      []*ContractEvent `json:"events"`
}

const (
	ReceiptSuccess = "success"
	ReceiptFailed  = "failed"
)

// Deposit は外部チェーンで検証済みの入金
type Deposit struct {
	TxHash      string        `json:"tx_hash"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Amount      *uint256.Int  `json:"amount"`
	BlockNumber uint64        `json:"block_number"`
	Status      DepositStatus `json:"status"`
}

// DepositStatus は入金確認の状態
type DepositStatus string

const (
	DepositPending  DepositStatus = "PENDING"  // 承認待ち
	DepositCredited DepositStatus = "CREDITED" // devnet残高に反映済み
	DepositError    DepositStatus = "DEPOSIT_ERROR"
)

// MarketInfo はマーケットの設定値
type MarketInfo struct {
	Address      string `json:"address"`
	Owner        string `json:"owner"`
	SalesAmount  uint64 `json:"sales_amount"`
	SalesEnabled bool   `json:"sales_enabled"`
	FeeRate      uint64 `json:"fee_rate"`
	FeeReceiver  string `json:"fee_receiver"`
}

// FactoryInfo はファクトリーの設定値
type FactoryInfo struct {
	Address    string         `json:"address"`
	Owner      string         `json:"owner"`
	Signer     string         `json:"signer"`
	Quota      uint64         `json:"quota"`
	Balance    *uint256.Int   `json:"balance"`
	Fees       []*uint256.Int `json:"fees"`
	TierAssets []string       `json:"tier_assets"`
}
