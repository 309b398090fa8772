package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/metalego/contracts/model"
)

var (
	ErrInvalidTxHash   = errors.New("invalid transaction hash format")
	ErrTxPending       = errors.New("transaction is still pending")
	ErrTxReverted      = errors.New("transaction failed on chain (reverted)")
	ErrWrongRecipient  = errors.New("transaction sent to wrong recipient address")
	ErrEmptyDeposit    = errors.New("transaction carries no value")
	ErrAmountOverflows = errors.New("deposit amount overflows 256 bits")
)

// ===============================================
// 1. インターフェース定義
// ===============================================

type DepositGateway interface {
	// CollectAddress は入金先ウォレットアドレスを返す
	CollectAddress() common.Address

	// CheckDeposit はトランザクションハッシュを受け取り、集金ウォレットへの送金を検証する
	CheckDeposit(ctx context.Context, txHash string) (*model.Deposit, error)
}

// ===============================================
// 2. 実装: EthGateway
// ===============================================

type EthGateway struct {
	client           *ethclient.Client
	appCollectWallet common.Address
}

func NewEthGateway(client *ethclient.Client, collectAddr string) *EthGateway {
	return &EthGateway{
		client:           client,
		appCollectWallet: common.HexToAddress(collectAddr),
	}
}

func (g *EthGateway) CollectAddress() common.Address {
	return g.appCollectWallet
}

// CheckDeposit はETH送金トランザクションを検証する
// Pending の場合は Status が PENDING の Deposit と ErrTxPending を返す
func (g *EthGateway) CheckDeposit(ctx context.Context, txHash string) (*model.Deposit, error) {
	// 1. TxHashを検証可能な型に変換
	hash := common.HexToHash(txHash)
	if hash == (common.Hash{}) {
		return nil, ErrInvalidTxHash
	}

	// 2. トランザクションが存在するか、Pendingでないかを確認
	tx, isPending, err := g.client.TransactionByHash(ctx, hash)
	if err != nil {
		zap.L().With(zap.String("tx", txHash), zap.Error(err)).Error("Error retrieving transaction")
		return nil, fmt.Errorf("transaction not found or node error: %w", err)
	}
	if isPending {
		return &model.Deposit{TxHash: hash.Hex(), Status: model.DepositPending}, ErrTxPending
	}

	// 3. レシートを取得し、Txが成功したかを確認
	receipt, err := g.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, ErrTxReverted
	}

	// 4. 送金先アドレス (To Address) の検証
	if tx.To() == nil || *tx.To() != g.appCollectWallet {
		return nil, ErrWrongRecipient
	}

	// 5. 送金額と送金元の取得
	amount, overflow := uint256.FromBig(tx.Value())
	if overflow {
		return nil, ErrAmountOverflows
	}
	if amount.IsZero() {
		return nil, ErrEmptyDeposit
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender: %w", err)
	}

	zap.S().Infof("Deposit verified: %s Wei from %s", amount.Dec(), from.Hex())
	return &model.Deposit{
		TxHash:      hash.Hex(),
		From:        from.Hex(),
		To:          g.appCollectWallet.Hex(),
		Amount:      amount,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}
