package usecase

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/model"
)

// FeeDenominator は手数料率の分母 (fee = price * feeRate / 1000)
const FeeDenominator = 1000

type listingKey struct {
	asset   common.Address
	tokenID uint256.Int
}

// Market は NFT をエスクローし、固定価格で決済するマーケットコントラクト
// 状態の変更は全て chain のジャーナルに記録され、トランザクション失敗時に巻き戻される
type Market struct {
	chain   model.Chain
	address common.Address
	owner   common.Address
	guard   model.Guard

	salesAmount       uint64
	listings          map[listingKey]*model.Listing
	supportedAsset    map[common.Address]bool
	supportedCurrency map[common.Address]bool
	salesEnabled      bool
	feeRate           uint64
	feeReceiver       common.Address
}

// NewMarket はマーケットを作成する。ネイティブ通貨は最初からサポートされる
func NewMarket(chain model.Chain, address, owner, feeReceiver common.Address, feeRate uint64) *Market {
	return &Market{
		chain:             chain,
		address:           address,
		owner:             owner,
		listings:          make(map[listingKey]*model.Listing),
		supportedAsset:    make(map[common.Address]bool),
		supportedCurrency: map[common.Address]bool{model.NativeCurrency: true},
		feeRate:           feeRate,
		feeReceiver:       feeReceiver,
	}
}

func (m *Market) Address() common.Address {
	return m.address
}

func (m *Market) Owner() common.Address {
	return m.owner
}

// ===============================================
// 出品・キャンセル・購入
// ===============================================

// CreateListing は呼び出し元の NFT をマーケットに預け、販売中の出品を作成する
// 同じ (asset, tokenID) の終了済み出品は新しいIDで上書きされる
func (m *Market) CreateListing(call *model.Call, tokenID, price *uint256.Int, asset, currency common.Address) (uint64, error) {
	release, err := m.guard.Enter()
	if err != nil {
		return 0, err
	}
	defer release()

	if asset == (common.Address{}) {
		return 0, model.Precondition("invalid nft address")
	}
	if tokenID == nil || tokenID.IsZero() {
		return 0, model.Precondition("invalid nft token")
	}
	if !m.salesEnabled {
		return 0, model.Precondition("sales are closed")
	}
	if !m.supportedAsset[asset] {
		return 0, model.Precondition("nft address unsupported")
	}
	if !m.supportedCurrency[currency] {
		return 0, model.Precondition("currency not supported")
	}
	if price == nil {
		price = new(uint256.Int)
	}

	nft, err := m.chain.Asset(asset)
	if err != nil {
		return 0, model.ExternalCall("asset lookup failed", err)
	}
	if err := nft.SafeTransferFrom(m.address, call.From, m.address, tokenID, nil); err != nil {
		return 0, model.ExternalCall("asset custody transfer failed", err)
	}

	id := m.salesAmount + 1
	model.SetValue(m.chain, &m.salesAmount, id)

	listing := &model.Listing{
		ID:        id,
		TokenID:   tokenID.Clone(),
		Asset:     asset,
		Currency:  currency,
		Seller:    call.From,
		Buyer:     common.Address{},
		StartTime: call.Block.Time,
		Price:     price.Clone(),
		Status:    model.StatusForSale,
	}
	model.SetEntry(m.chain, m.listings, key(asset, tokenID), listing)

	m.chain.Emit(m.address, &model.ContractEvent{
		Type:      model.EventSell,
		ListingID: id,
		TokenID:   tokenID.Clone(),
		Asset:     asset.Hex(),
		Currency:  currency.Hex(),
		Seller:    call.From.Hex(),
		Buyer:     common.Address{}.Hex(),
		StartTime: listing.StartTime,
		Price:     price.Clone(),
	})
	return id, nil
}

// CancelListing は販売中の出品を取り消し、NFT を出品者に返却する
// 出品者またはオーナーのみ実行できる
func (m *Market) CancelListing(call *model.Call, tokenID *uint256.Int, asset common.Address) error {
	release, err := m.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	listing, err := m.listing(tokenID, asset)
	if err != nil {
		return err
	}
	if listing.Status != model.StatusForSale {
		return model.Precondition("status: sold or canceled")
	}
	if call.From != listing.Seller && call.From != m.owner {
		return model.Unauthorized("caller is not seller or owner")
	}
	if !m.salesEnabled {
		return model.Precondition("sales are closed")
	}

	updated := listing.Clone()
	updated.Status = model.StatusCanceled
	model.SetEntry(m.chain, m.listings, key(asset, tokenID), updated)

	nft, err := m.chain.Asset(listing.Asset)
	if err != nil {
		return model.ExternalCall("asset lookup failed", err)
	}
	if err := nft.SafeTransferFrom(m.address, m.address, listing.Seller, listing.TokenID, nil); err != nil {
		return model.ExternalCall("asset return failed", err)
	}

	m.chain.Emit(m.address, &model.ContractEvent{
		Type:      model.EventSaleCanceled,
		ListingID: listing.ID,
		TokenID:   listing.TokenID.Clone(),
	})
	return nil
}

// Purchase は販売中の出品を購入する
// ステータスは外部呼び出しの前に Sold に切り替え、ガードによって同一出品の二重決済を防ぐ
func (m *Market) Purchase(call *model.Call, tokenID *uint256.Int, asset, currency common.Address) error {
	release, err := m.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	listing, err := m.listing(tokenID, asset)
	if err != nil {
		return err
	}
	if listing.Status != model.StatusForSale {
		return model.Precondition("status: sold or canceled")
	}
	if listing.StartTime > call.Block.Time {
		return model.Precondition("not yet for sale")
	}
	if !m.salesEnabled {
		return model.Precondition("sales are closed")
	}
	if call.From == listing.Seller {
		return model.Precondition("cant buy from yourself")
	}
	if listing.Currency != currency {
		return model.Precondition("must pay same currency as sold")
	}

	price := listing.Price
	fee, net, err := SplitFee(price, m.feeRate)
	if err != nil {
		return err
	}

	updated := listing.Clone()
	updated.Buyer = call.From
	updated.Status = model.StatusSold
	model.SetEntry(m.chain, m.listings, key(asset, tokenID), updated)

	if listing.IsNative() {
		value := call.CallValue()
		if value.Lt(price) {
			return model.Precondition("your price is too low")
		}
		refund := new(uint256.Int).Sub(value, price)
		if !refund.IsZero() {
			if err := m.chain.SendNative(call, m.address, call.From, refund); err != nil {
				return err
			}
		}
		if !fee.IsZero() {
			if err := m.chain.SendNative(call, m.address, m.feeReceiver, fee); err != nil {
				return err
			}
		}
		if err := m.chain.SendNative(call, m.address, listing.Seller, net); err != nil {
			return err
		}
	} else {
		if !call.CallValue().IsZero() {
			return model.Precondition("native value not accepted for token sale")
		}
		token, err := m.chain.Currency(listing.Currency)
		if err != nil {
			return model.ExternalCall("currency lookup failed", err)
		}
		if err := token.TransferFrom(m.address, call.From, m.feeReceiver, fee); err != nil {
			return model.ExternalCall("fee payment failed", err)
		}
		if err := token.TransferFrom(m.address, call.From, listing.Seller, net); err != nil {
			return model.ExternalCall("seller payment failed", err)
		}
	}

	nft, err := m.chain.Asset(listing.Asset)
	if err != nil {
		return model.ExternalCall("asset lookup failed", err)
	}
	if err := nft.SafeTransferFrom(m.address, m.address, call.From, listing.TokenID, nil); err != nil {
		return model.ExternalCall("asset delivery failed", err)
	}

	m.chain.Emit(m.address, &model.ContractEvent{
		Type:      model.EventBuy,
		ListingID: listing.ID,
		TokenID:   listing.TokenID.Clone(),
		Asset:     listing.Asset.Hex(),
		Buyer:     call.From.Hex(),
		Seller:    listing.Seller.Hex(),
		Price:     price.Clone(),
		Fee:       fee,
		Currency:  listing.Currency.Hex(),
	})
	return nil
}

// SplitFee は price を手数料と出品者の受取額に分ける
// fee = floor(price * rate / 1000), net = price - fee
func SplitFee(price *uint256.Int, rate uint64) (fee, net *uint256.Int, err error) {
	fee, overflow := new(uint256.Int).MulOverflow(price, uint256.NewInt(rate))
	if overflow {
		return nil, nil, model.Precondition("fee multiplication overflow")
	}
	fee.Div(fee, uint256.NewInt(FeeDenominator))

	net, underflow := new(uint256.Int).SubOverflow(price, fee)
	if underflow {
		return nil, nil, model.Precondition("fee exceeds price")
	}
	return fee, net, nil
}

// OnAssetReceived は NFT 受け取りフック
// マーケット自身がオペレーターの転送のみ受け付け、それ以外はゼロ値を返して転送を拒否させる
func (m *Market) OnAssetReceived(operator, from common.Address, tokenID *uint256.Int, data []byte) ([4]byte, error) {
	if operator != m.address {
		return [4]byte{}, nil
	}

	m.chain.Emit(m.address, &model.ContractEvent{
		Type:     model.EventAssetReceived,
		Operator: operator.Hex(),
		From:     from.Hex(),
		TokenID:  tokenID.Clone(),
		Data:     hexutil.Encode(data),
	})
	return model.AssetReceivedSelector, nil
}

// ===============================================
// 参照
// ===============================================

func key(asset common.Address, tokenID *uint256.Int) listingKey {
	return listingKey{asset: asset, tokenID: *tokenID}
}

func (m *Market) listing(tokenID *uint256.Int, asset common.Address) (*model.Listing, error) {
	if tokenID == nil {
		return nil, model.Precondition("listing not found")
	}
	listing, ok := m.listings[key(asset, tokenID)]
	if !ok {
		return nil, model.Precondition("listing not found")
	}
	return listing, nil
}

// Listing は出品情報のコピーを返す
func (m *Market) Listing(tokenID *uint256.Int, asset common.Address) (*model.Listing, error) {
	listing, err := m.listing(tokenID, asset)
	if err != nil {
		return nil, err
	}
	return listing.Clone(), nil
}

// Price は出品価格を返す
func (m *Market) Price(tokenID *uint256.Int, asset common.Address) (*uint256.Int, error) {
	listing, err := m.listing(tokenID, asset)
	if err != nil {
		return nil, err
	}
	return listing.Price.Clone(), nil
}

func (m *Market) SalesAmount() uint64 {
	return m.salesAmount
}

func (m *Market) SalesEnabled() bool {
	return m.salesEnabled
}

func (m *Market) FeeRate() uint64 {
	return m.feeRate
}

func (m *Market) FeeReceiver() common.Address {
	return m.feeReceiver
}

func (m *Market) IsSupportedAsset(asset common.Address) bool {
	return m.supportedAsset[asset]
}

func (m *Market) IsSupportedCurrency(currency common.Address) bool {
	return m.supportedCurrency[currency]
}
