package usecase

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/model"
)

func (f *Factory) onlyOwner(call *model.Call) error {
	if call.From != f.owner {
		return model.Unauthorized("Ownable: caller is not the owner")
	}
	return nil
}

// onlyAdmin はオーナーまたは付与された管理者のみ通す
func (f *Factory) onlyAdmin(call *model.Call) error {
	if !f.IsAdmin(call.From) {
		return model.Unauthorized("caller is not an admin")
	}
	return nil
}

func (f *Factory) SetMintFee(call *model.Call, tier model.Tier, fee *uint256.Int) error {
	if err := f.onlyAdmin(call); err != nil {
		return err
	}
	if !tier.Valid() {
		return model.Precondition("invalid tier")
	}
	if fee == nil {
		fee = new(uint256.Int)
	}
	model.SetValue(f.chain, &f.fees[tier.Index()], fee.Clone())
	return nil
}

// SetQuota は全ティア共通の発行枠を変更する。0 の場合は誰もミントできない
func (f *Factory) SetQuota(call *model.Call, quota uint64) error {
	if err := f.onlyAdmin(call); err != nil {
		return err
	}
	model.SetValue(f.chain, &f.quota, quota)
	return nil
}

// SetTierAsset はティアのミント先コレクションを設定する
func (f *Factory) SetTierAsset(call *model.Call, tier model.Tier, asset common.Address) error {
	if err := f.onlyOwner(call); err != nil {
		return err
	}
	if !tier.Valid() {
		return model.Precondition("invalid tier")
	}
	if asset == (common.Address{}) {
		return model.Precondition("invalid address")
	}
	model.SetValue(f.chain, &f.tierAsset[tier.Index()], asset)
	return nil
}

func (f *Factory) SetSigner(call *model.Call, addr common.Address) error {
	if err := f.onlyOwner(call); err != nil {
		return err
	}
	model.SetValue(f.chain, &f.signer, addr)
	return nil
}

func (f *Factory) GrantAdmin(call *model.Call, addr common.Address) error {
	if err := f.onlyOwner(call); err != nil {
		return err
	}
	if addr == (common.Address{}) {
		return model.Precondition("invalid address")
	}
	model.SetEntry(f.chain, f.admins, addr, true)
	return nil
}

func (f *Factory) RevokeAdmin(call *model.Call, addr common.Address) error {
	if err := f.onlyOwner(call); err != nil {
		return err
	}
	model.DeleteEntry(f.chain, f.admins, addr)
	return nil
}
