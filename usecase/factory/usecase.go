package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/metalego/contracts/model"
)

// FactoryUsecase はミント関連のビジネスロジック
type FactoryUsecase interface {
	// Mint は value を手数料として支払い、recipient にミントする
	Mint(ctx context.Context, from common.Address, value *uint256.Int, tier model.Tier, recipient common.Address, signature []byte) (*model.Receipt, *uint256.Int, error)

	GetInfo(ctx context.Context) (*model.FactoryInfo, error)
	GetMintedCount(ctx context.Context, tier model.Tier, recipient common.Address) (uint64, error)

	// ===== 管理者操作 =====
	SetMintFee(ctx context.Context, from common.Address, tier model.Tier, fee *uint256.Int) (*model.Receipt, error)
	SetQuota(ctx context.Context, from common.Address, quota uint64) (*model.Receipt, error)
	SetSigner(ctx context.Context, from, addr common.Address) (*model.Receipt, error)
	SetTierAsset(ctx context.Context, from common.Address, tier model.Tier, asset common.Address) (*model.Receipt, error)
	SetAdmin(ctx context.Context, from, addr common.Address, granted bool) (*model.Receipt, error)
	Withdraw(ctx context.Context, from common.Address, amount *uint256.Int) (*model.Receipt, error)
	MultiTransfer(ctx context.Context, from common.Address, value *uint256.Int, receivers []common.Address, amounts []*uint256.Int) (*model.Receipt, error)
}

type factoryUsecase struct {
	chain   model.Executor
	factory *Factory
}

func NewFactoryUsecase(chain model.Executor, factory *Factory) *factoryUsecase {
	return &factoryUsecase{
		chain:   chain,
		factory: factory,
	}
}

func (uc *factoryUsecase) transact(ctx context.Context, from common.Address, value *uint256.Int, fn func(call *model.Call) error) (*model.Receipt, error) {
	return uc.chain.Transact(ctx, model.Msg{From: from, To: uc.factory.Address(), Value: value}, fn)
}

func (uc *factoryUsecase) Mint(ctx context.Context, from common.Address, value *uint256.Int, tier model.Tier, recipient common.Address, signature []byte) (*model.Receipt, *uint256.Int, error) {
	var tokenID *uint256.Int
	receipt, err := uc.transact(ctx, from, value, func(call *model.Call) error {
		var err error
		tokenID, err = uc.factory.Mint(call, tier, recipient, signature)
		return err
	})
	if err != nil {
		return receipt, nil, err
	}

	zap.L().With(
		zap.Uint8("tier", uint8(tier)),
		zap.String("recipient", recipient.Hex()),
		zap.String("token_id", tokenID.Dec()),
	).Info("Minted")
	return receipt, tokenID, nil
}

func (uc *factoryUsecase) GetInfo(ctx context.Context) (*model.FactoryInfo, error) {
	info := &model.FactoryInfo{}
	err := uc.chain.View(func() error {
		info.Address = uc.factory.Address().Hex()
		info.Owner = uc.factory.Owner().Hex()
		info.Signer = uc.factory.Signer().Hex()
		info.Quota = uc.factory.Quota()
		info.Balance = uc.factory.Balance()
		for _, tier := range model.Tiers {
			fee, err := uc.factory.MintFee(tier)
			if err != nil {
				return err
			}
			asset, err := uc.factory.TierAsset(tier)
			if err != nil {
				return err
			}
			info.Fees = append(info.Fees, fee)
			info.TierAssets = append(info.TierAssets, asset.Hex())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (uc *factoryUsecase) GetMintedCount(ctx context.Context, tier model.Tier, recipient common.Address) (uint64, error) {
	var count uint64
	err := uc.chain.View(func() error {
		var err error
		count, err = uc.factory.MintedCount(tier, recipient)
		return err
	})
	return count, err
}

// ===== 管理者操作 =====

func (uc *factoryUsecase) SetMintFee(ctx context.Context, from common.Address, tier model.Tier, fee *uint256.Int) (*model.Receipt, error) {
	return uc.transact(ctx, from, nil, func(call *model.Call) error {
		return uc.factory.SetMintFee(call, tier, fee)
	})
}

func (uc *factoryUsecase) SetQuota(ctx context.Context, from common.Address, quota uint64) (*model.Receipt, error) {
	return uc.transact(ctx, from, nil, func(call *model.Call) error {
		return uc.factory.SetQuota(call, quota)
	})
}

func (uc *factoryUsecase) SetSigner(ctx context.Context, from, addr common.Address) (*model.Receipt, error) {
	receipt, err := uc.transact(ctx, from, nil, func(call *model.Call) error {
		return uc.factory.SetSigner(call, addr)
	})
	if err == nil {
		zap.S().Infof("Mint signer changed to %s", addr.Hex())
	}
	return receipt, err
}

func (uc *factoryUsecase) SetTierAsset(ctx context.Context, from common.Address, tier model.Tier, asset common.Address) (*model.Receipt, error) {
	return uc.transact(ctx, from, nil, func(call *model.Call) error {
		return uc.factory.SetTierAsset(call, tier, asset)
	})
}

func (uc *factoryUsecase) SetAdmin(ctx context.Context, from, addr common.Address, granted bool) (*model.Receipt, error) {
	return uc.transact(ctx, from, nil, func(call *model.Call) error {
		if granted {
			return uc.factory.GrantAdmin(call, addr)
		}
		return uc.factory.RevokeAdmin(call, addr)
	})
}

func (uc *factoryUsecase) Withdraw(ctx context.Context, from common.Address, amount *uint256.Int) (*model.Receipt, error) {
	receipt, err := uc.transact(ctx, from, nil, func(call *model.Call) error {
		return uc.factory.Withdraw(call, amount)
	})
	if err == nil {
		zap.S().Infof("Factory balance withdrawn by %s", from.Hex())
	}
	return receipt, err
}

func (uc *factoryUsecase) MultiTransfer(ctx context.Context, from common.Address, value *uint256.Int, receivers []common.Address, amounts []*uint256.Int) (*model.Receipt, error) {
	return uc.transact(ctx, from, value, func(call *model.Call) error {
		return uc.factory.MultiTransfer(call, receivers, amounts)
	})
}
