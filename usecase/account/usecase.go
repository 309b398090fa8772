package usecase

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/gateway/ledger"
	"github.com/metalego/contracts/model"
)

// TokenBalance は代替トークン1種類の残高
type TokenBalance struct {
	Address string       `json:"address"`
	Symbol  string       `json:"symbol"`
	Balance *uint256.Int `json:"balance"`
}

// Balances はアドレスの残高一覧
type Balances struct {
	Address string         `json:"address"`
	Native  *uint256.Int   `json:"native"`
	Tokens  []TokenBalance `json:"tokens"`
}

// AccountUsecase は devnet 上のアカウント操作 (残高参照と承認)
type AccountUsecase interface {
	GetBalances(ctx context.Context, addr common.Address) (*Balances, error)
	GetOwner(ctx context.Context, asset common.Address, tokenID *uint256.Int) (common.Address, error)

	// ApproveAsset は operator に NFT の操作を許可する。tokenID が nil の場合は全トークンを対象にする
	ApproveAsset(ctx context.Context, from, asset, operator common.Address, tokenID *uint256.Int, approved bool) (*model.Receipt, error)

	// ApproveCurrency は spender に代替トークンの引き出しを許可する
	ApproveCurrency(ctx context.Context, from, currency, spender common.Address, amount *uint256.Int) (*model.Receipt, error)
}

type accountUsecase struct {
	world *ledger.World
}

func NewAccountUsecase(world *ledger.World) *accountUsecase {
	return &accountUsecase{world: world}
}

func (uc *accountUsecase) GetBalances(ctx context.Context, addr common.Address) (*Balances, error) {
	out := &Balances{Address: addr.Hex(), Tokens: []TokenBalance{}}
	err := uc.world.View(func() error {
		out.Native = uc.world.NativeBalance(addr)
		for _, token := range uc.world.Tokens() {
			out.Tokens = append(out.Tokens, TokenBalance{
				Address: token.Address().Hex(),
				Symbol:  token.Symbol,
				Balance: token.BalanceOf(addr),
			})
		}
		return nil
	})
	sort.Slice(out.Tokens, func(i, j int) bool { return out.Tokens[i].Symbol < out.Tokens[j].Symbol })
	return out, err
}

func (uc *accountUsecase) GetOwner(ctx context.Context, asset common.Address, tokenID *uint256.Int) (common.Address, error) {
	var owner common.Address
	err := uc.world.View(func() error {
		collection, ok := uc.world.Collection(asset)
		if !ok {
			return model.Precondition("asset contract not found")
		}
		var err error
		owner, err = collection.OwnerOf(tokenID)
		return err
	})
	return owner, err
}

func (uc *accountUsecase) ApproveAsset(ctx context.Context, from, asset, operator common.Address, tokenID *uint256.Int, approved bool) (*model.Receipt, error) {
	return uc.world.Transact(ctx, model.Msg{From: from, To: asset}, func(call *model.Call) error {
		collection, ok := uc.world.Collection(asset)
		if !ok {
			return model.Precondition("asset contract not found")
		}
		if tokenID == nil {
			return collection.SetApprovalForAll(call.From, operator, approved)
		}
		return collection.Approve(call.From, operator, tokenID)
	})
}

func (uc *accountUsecase) ApproveCurrency(ctx context.Context, from, currency, spender common.Address, amount *uint256.Int) (*model.Receipt, error) {
	return uc.world.Transact(ctx, model.Msg{From: from, To: currency}, func(call *model.Call) error {
		token, ok := uc.world.Token(currency)
		if !ok {
			return model.Precondition("currency contract not found")
		}
		if amount == nil {
			amount = new(uint256.Int)
		}
		return token.Approve(call.From, spender, amount)
	})
}
