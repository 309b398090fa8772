package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	deposit "github.com/metalego/contracts/gateway/deposit"
	"github.com/metalego/contracts/model"
)

// ErrAlreadyCredited は同じトランザクションが既に反映済みであることを表す
var ErrAlreadyCredited = model.Precondition("deposit already credited")

// Ledger は入金を devnet 残高に反映するチェーン
type Ledger interface {
	model.Executor
	Credit(addr common.Address, amount *uint256.Int) error
}

// DepositUsecase は外部チェーンからの入金のビジネスロジック
type DepositUsecase interface {
	// CollectAddress は入金先ウォレットアドレスを返す
	CollectAddress() string

	// ConfirmDeposit はトランザクションを検証し、送金元の devnet 残高に1度だけ反映する
	ConfirmDeposit(ctx context.Context, txHash string) (*model.Deposit, *model.Receipt, error)
}

type depositUsecase struct {
	gateway  deposit.DepositGateway
	ledger   Ledger
	credited *cache.Cache
}

func NewDepositUsecase(gw deposit.DepositGateway, ledger Ledger) *depositUsecase {
	return &depositUsecase{
		gateway:  gw,
		ledger:   ledger,
		credited: cache.New(cache.NoExpiration, 0),
	}
}

func (uc *depositUsecase) CollectAddress() string {
	return uc.gateway.CollectAddress().Hex()
}

func (uc *depositUsecase) ConfirmDeposit(ctx context.Context, txHash string) (*model.Deposit, *model.Receipt, error) {
	// 0x の有無やゼロ埋めの違いで同じトランザクションを二重に反映しないよう正規化する
	key := common.HexToHash(strings.TrimSpace(txHash)).Hex()
	if _, found := uc.credited.Get(key); found {
		return nil, nil, ErrAlreadyCredited
	}

	// 1. 外部チェーンでトランザクションを検証
	dep, err := uc.gateway.CheckDeposit(ctx, key)
	if err != nil {
		if errors.Is(err, deposit.ErrTxPending) {
			return dep, nil, err
		}
		return &model.Deposit{TxHash: txHash, Status: model.DepositError}, nil, err
	}

	// 2. 同じトランザクションの並行した確認は1件だけ通す
	if err := uc.credited.Add(key, dep.From, cache.NoExpiration); err != nil {
		return nil, nil, ErrAlreadyCredited
	}

	// 3. devnet 残高に反映
	from := common.HexToAddress(dep.From)
	receipt, err := uc.ledger.Transact(ctx, model.Msg{From: uc.gateway.CollectAddress(), To: from}, func(call *model.Call) error {
		return uc.ledger.Credit(from, dep.Amount)
	})
	if err != nil {
		uc.credited.Delete(key)
		dep.Status = model.DepositError
		return dep, receipt, err
	}

	dep.Status = model.DepositCredited
	zap.L().With(
		zap.String("tx", dep.TxHash),
		zap.String("from", dep.From),
		zap.String("amount", dep.Amount.Dec()),
	).Info("Deposit credited")
	return dep, receipt, nil
}
