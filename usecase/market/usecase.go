package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/metalego/contracts/model"
)

// MarketUsecase はマーケット関連のビジネスロジック
type MarketUsecase interface {
	// CreateListing は NFT を出品し、レシートと出品IDを返す
	CreateListing(ctx context.Context, from common.Address, tokenID, price *uint256.Int, asset, currency common.Address) (*model.Receipt, uint64, error)

	// CancelListing は出品を取り消す
	CancelListing(ctx context.Context, from common.Address, tokenID *uint256.Int, asset common.Address) (*model.Receipt, error)

	// Purchase は出品を購入する。ネイティブ通貨建ての場合は value を支払う
	Purchase(ctx context.Context, from common.Address, value, tokenID *uint256.Int, asset, currency common.Address) (*model.Receipt, error)

	GetListing(ctx context.Context, tokenID *uint256.Int, asset common.Address) (*model.Listing, error)
	GetPrice(ctx context.Context, tokenID *uint256.Int, asset common.Address) (*uint256.Int, error)
	GetInfo(ctx context.Context) (*model.MarketInfo, error)

	// ===== 管理者操作 =====
	SetSalesEnabled(ctx context.Context, from common.Address, enabled bool) (*model.Receipt, error)
	SetSupportedAsset(ctx context.Context, from, asset common.Address, supported bool) (*model.Receipt, error)
	SetSupportedCurrency(ctx context.Context, from, currency common.Address, supported bool) (*model.Receipt, error)
	SetFeeRate(ctx context.Context, from common.Address, rate uint64) (*model.Receipt, error)
	SetFeeReceiver(ctx context.Context, from, receiver common.Address) (*model.Receipt, error)
}

type marketUsecase struct {
	chain  model.Executor
	market *Market
}

func NewMarketUsecase(chain model.Executor, market *Market) *marketUsecase {
	return &marketUsecase{
		chain:  chain,
		market: market,
	}
}

func (uc *marketUsecase) transact(ctx context.Context, from common.Address, value *uint256.Int, fn func(call *model.Call) error) (*model.Receipt, error) {
	return uc.chain.Transact(ctx, model.Msg{From: from, To: uc.market.Address(), Value: value}, fn)
}

func (uc *marketUsecase) CreateListing(ctx context.Context, from common.Address, tokenID, price *uint256.Int, asset, currency common.Address) (*model.Receipt, uint64, error) {
	var id uint64
	receipt, err := uc.transact(ctx, from, nil, func(call *model.Call) error {
		var err error
		id, err = uc.market.CreateListing(call, tokenID, price, asset, currency)
		return err
	})
	if err != nil {
		return receipt, 0, err
	}

	zap.L().With(
		zap.Uint64("listing_id", id),
		zap.String("asset", asset.Hex()),
		zap.String("token_id", tokenID.Dec()),
		zap.String("seller", from.Hex()),
	).Info("Listing created")
	return receipt, id, nil
}

func (uc *marketUsecase) CancelListing(ctx context.Context, from common.Address, tokenID *uint256.Int, asset common.Address) (*model.Receipt, error) {
	receipt, err := uc.transact(ctx, from, nil, func(call *model.Call) error {
		return uc.market.CancelListing(call, tokenID, asset)
	})
	if err != nil {
		return receipt, err
	}
	zap.S().Infof("Listing canceled: asset=%s token=%s by %s", asset.Hex(), tokenID.Dec(), from.Hex())
	return receipt, nil
}

func (uc *marketUsecase) Purchase(ctx context.Context, from common.Address, value, tokenID *uint256.Int, asset, currency common.Address) (*model.Receipt, error) {
	receipt, err := uc.transact(ctx, from, value, func(call *model.Call) error {
		return uc.market.Purchase(call, tokenID, asset, currency)
	})
	if err != nil {
		return receipt, err
	}
	zap.S().Infof("Listing purchased: asset=%s token=%s buyer=%s", asset.Hex(), tokenID.Dec(), from.Hex())
	return receipt, nil
}

// ===== 参照 =====

func (uc *marketUsecase) GetListing(ctx context.Context, tokenID *uint256.Int, asset common.Address) (*model.Listing, error) {
	var listing *model.Listing
	err := uc.chain.View(func() error {
		var err error
		listing, err = uc.market.Listing(tokenID, asset)
		return err
	})
	return listing, err
}

func (uc *marketUsecase) GetPrice(ctx context.Context, tokenID *uint256.Int, asset common.Address) (*uint256.Int, error) {
	var price *uint256.Int
	err := uc.chain.View(func() error {
		var err error
		price, err = uc.market.Price(tokenID, asset)
		return err
	})
	return price, err
}

func (uc *marketUsecase) GetInfo(ctx context.Context) (*model.MarketInfo, error) {
	var info *model.MarketInfo
	err := uc.chain.View(func() error {
		info = &model.MarketInfo{
			Address:      uc.market.Address().Hex(),
			Owner:        uc.market.Owner().Hex(),
			SalesAmount:  uc.market.SalesAmount(),
			SalesEnabled: uc.market.SalesEnabled(),
			FeeRate:      uc.market.FeeRate(),
			FeeReceiver:  uc.market.FeeReceiver().Hex(),
		}
		return nil
	})
	return info, err
}

// ===== 管理者操作 =====

func (uc *marketUsecase) SetSalesEnabled(ctx context.Context, from common.Address, enabled bool) (*model.Receipt, error) {
	receipt, err := uc.transact(ctx, from, nil, func(call *model.Call) error {
		return uc.market.SetSalesEnabled(call, enabled)
	})
	if err == nil {
		zap.S().Infof("Market sales enabled set to %t", enabled)
	}
	return receipt, err
}

func (uc *marketUsecase) SetSupportedAsset(ctx context.Context, from, asset common.Address, supported bool) (*model.Receipt, error) {
	return uc.transact(ctx, from, nil, func(call *model.Call) error {
		if supported {
			return uc.market.AddSupportedAsset(call, asset)
		}
		return uc.market.RemoveSupportedAsset(call, asset)
	})
}

func (uc *marketUsecase) SetSupportedCurrency(ctx context.Context, from, currency common.Address, supported bool) (*model.Receipt, error) {
	return uc.transact(ctx, from, nil, func(call *model.Call) error {
		if supported {
			return uc.market.AddSupportedCurrency(call, currency)
		}
		return uc.market.RemoveSupportedCurrency(call, currency)
	})
}

func (uc *marketUsecase) SetFeeRate(ctx context.Context, from common.Address, rate uint64) (*model.Receipt, error) {
	return uc.transact(ctx, from, nil, func(call *model.Call) error {
		return uc.market.SetFeeRate(call, rate)
	})
}

func (uc *marketUsecase) SetFeeReceiver(ctx context.Context, from, receiver common.Address) (*model.Receipt, error) {
	return uc.transact(ctx, from, nil, func(call *model.Call) error {
		return uc.market.SetFeeReceiver(call, receiver)
	})
}
