package usecase

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/gateway/signer"
	"github.com/metalego/contracts/model"
)

// デフォルトのミント手数料 (wei)
var (
	DefaultFeeTierOne   = uint256.NewInt(1e17)
	DefaultFeeTierTwo   = uint256.NewInt(3e17)
	DefaultFeeTierThree = uint256.NewInt(5e17)
)

const DefaultQuota = 1

// variationUnit は Variation の刻み幅
var variationUnit = uint256.NewInt(1e14)

// Factory はティアごとの手数料と発行枠でミントを制御するコントラクト
// ティア2と3は署名者による認可を必要とする
type Factory struct {
	chain     model.Chain
	address   common.Address
	owner     common.Address
	authority *signer.Authority
	guard     model.Guard

	admins    map[common.Address]bool
	fees      [3]*uint256.Int
	tierAsset [3]common.Address
	quota     uint64
	signer    common.Address
	minted    [3]map[common.Address]uint64
}

func NewFactory(chain model.Chain, address, owner common.Address, authority *signer.Authority) *Factory {
	f := &Factory{
		chain:     chain,
		address:   address,
		owner:     owner,
		authority: authority,
		admins:    make(map[common.Address]bool),
		fees:      [3]*uint256.Int{DefaultFeeTierOne.Clone(), DefaultFeeTierTwo.Clone(), DefaultFeeTierThree.Clone()},
		quota:     DefaultQuota,
	}
	for i := range f.minted {
		f.minted[i] = make(map[common.Address]uint64)
	}
	return f
}

func (f *Factory) Address() common.Address {
	return f.address
}

func (f *Factory) Owner() common.Address {
	return f.owner
}

// ===============================================
// ミント
// ===============================================

// MintTierOne は手数料の支払いのみで recipient にミントする
func (f *Factory) MintTierOne(call *model.Call, recipient common.Address) (*uint256.Int, error) {
	return f.mint(call, model.TierOne, recipient, nil)
}

func (f *Factory) MintTierTwo(call *model.Call, recipient common.Address, signature []byte) (*uint256.Int, error) {
	return f.mint(call, model.TierTwo, recipient, signature)
}

func (f *Factory) MintTierThree(call *model.Call, recipient common.Address, signature []byte) (*uint256.Int, error) {
	return f.mint(call, model.TierThree, recipient, signature)
}

// Mint はティアに応じたミントを実行する
func (f *Factory) Mint(call *model.Call, tier model.Tier, recipient common.Address, signature []byte) (*uint256.Int, error) {
	switch tier {
	case model.TierOne:
		return f.MintTierOne(call, recipient)
	case model.TierTwo:
		return f.MintTierTwo(call, recipient, signature)
	case model.TierThree:
		return f.MintTierThree(call, recipient, signature)
	default:
		return nil, model.Precondition("invalid tier")
	}
}

// mint は 署名 → 発行枠 → 手数料 の順に検証し、発行数を更新してからコレクションへミントを委譲する
func (f *Factory) mint(call *model.Call, tier model.Tier, recipient common.Address, signature []byte) (*uint256.Int, error) {
	release, err := f.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	i := tier.Index()
	asset := f.tierAsset[i]
	if asset == (common.Address{}) {
		return nil, model.Precondition("tier asset not configured")
	}

	if tier.RequiresSignature() {
		hash := signer.MintMessageHash(call.From, asset, recipient)
		if !f.authority.Verify(f.signer, hash, signature) {
			return nil, model.Unauthorized("invalid signature")
		}
	}

	count := f.minted[i][recipient]
	if count >= f.quota {
		return nil, model.Precondition("mint quota exceeded")
	}
	fee := f.fees[i]
	if !call.CallValue().Eq(fee) {
		return nil, model.Precondition("incorrect mint fee")
	}

	model.SetEntry(f.chain, f.minted[i], recipient, count+1)

	minter, err := f.chain.Minter(asset)
	if err != nil {
		return nil, model.ExternalCall("asset lookup failed", err)
	}
	tokenID, err := minter.Mint(f.address, recipient)
	if err != nil {
		return nil, model.ExternalCall("delegated mint failed", err)
	}

	f.chain.Emit(f.address, &model.ContractEvent{
		Type:      model.EventMinted,
		Tier:      tier,
		Recipient: recipient.Hex(),
		Asset:     asset.Hex(),
		TokenID:   tokenID.Clone(),
		Price:     fee.Clone(),
		Variation: Variation(call.Block.ParentHash),
	})
	return tokenID, nil
}

// Variation は直前ブロックのハッシュから 1e14 刻みの値を導出する
// ブロック生成者が操作できるため、表示用の値にのみ使う
func Variation(parentHash common.Hash) *uint256.Int {
	v := new(uint256.Int).SetBytes32(parentHash.Bytes())
	v.Mod(v, uint256.NewInt(10))
	return v.Mul(v, variationUnit)
}

// ReceiveNative はネイティブ通貨の直接送金を受け付ける
func (f *Factory) ReceiveNative(call *model.Call) error {
	return nil
}

// ===============================================
// 資金の移動
// ===============================================

// Withdraw はファクトリーの残高からオーナーへ amount を送る
// amount が 0 の場合は残高全てを送る
func (f *Factory) Withdraw(call *model.Call, amount *uint256.Int) error {
	if err := f.onlyOwner(call); err != nil {
		return err
	}
	release, err := f.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	balance := f.chain.NativeBalance(f.address)
	if amount == nil || amount.IsZero() {
		amount = balance
	}
	if amount.IsZero() {
		return model.Precondition("nothing to withdraw")
	}
	if balance.Lt(amount) {
		return model.Precondition("insufficient balance")
	}
	if err := f.chain.SendNative(call, f.address, call.From, amount); err != nil {
		return err
	}

	f.chain.Emit(f.address, &model.ContractEvent{
		Type:   model.EventWithdrawal,
		Sender: call.From.Hex(),
		Amount: amount.Clone(),
	})
	return nil
}

// MultiTransfer はファクトリーの残高から複数の宛先へ送金する。1件でも失敗すれば全て取り消される
func (f *Factory) MultiTransfer(call *model.Call, receivers []common.Address, amounts []*uint256.Int) error {
	if err := f.onlyAdmin(call); err != nil {
		return err
	}
	release, err := f.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if len(receivers) != len(amounts) {
		return model.Precondition("receivers and amounts length mismatch")
	}
	for i, to := range receivers {
		if to == (common.Address{}) {
			return model.Precondition("invalid address")
		}
		amount := amounts[i]
		if amount == nil {
			amount = new(uint256.Int)
		}
		if f.chain.NativeBalance(f.address).Lt(amount) {
			return model.Precondition("insufficient balance")
		}
		if err := f.chain.SendNative(call, f.address, to, amount); err != nil {
			return err
		}
	}
	return nil
}

// ===============================================
// 参照
// ===============================================

func (f *Factory) MintFee(tier model.Tier) (*uint256.Int, error) {
	if !tier.Valid() {
		return nil, model.Precondition("invalid tier")
	}
	return f.fees[tier.Index()].Clone(), nil
}

func (f *Factory) TierAsset(tier model.Tier) (common.Address, error) {
	if !tier.Valid() {
		return common.Address{}, model.Precondition("invalid tier")
	}
	return f.tierAsset[tier.Index()], nil
}

func (f *Factory) Quota() uint64 {
	return f.quota
}

func (f *Factory) Signer() common.Address {
	return f.signer
}

// MintedCount は recipient がティアで消費した発行枠
func (f *Factory) MintedCount(tier model.Tier, recipient common.Address) (uint64, error) {
	if !tier.Valid() {
		return 0, model.Precondition("invalid tier")
	}
	return f.minted[tier.Index()][recipient], nil
}

func (f *Factory) Balance() *uint256.Int {
	return f.chain.NativeBalance(f.address)
}

func (f *Factory) IsAdmin(addr common.Address) bool {
	return addr == f.owner || f.admins[addr]
}
