package usecase

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/gateway/chain"
	"github.com/metalego/contracts/gateway/ledger"
	"github.com/metalego/contracts/model"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	minter   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	holder   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	operator = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestAccountUsecase(t *testing.T) {
	ctx := context.Background()
	world := ledger.NewWorld(chain.NewSimulatedHeaders())
	nft := world.DeployCollection(deployer, "Test", "TST", minter)
	usd := world.DeployToken(deployer, "Test USD", "TUSD")
	jpy := world.DeployToken(deployer, "Test JPY", "TJPY")

	if err := world.Fund(holder, uint256.NewInt(7)); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	if err := usd.Mint(holder, uint256.NewInt(100)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	var tokenID *uint256.Int
	_, err := world.Transact(ctx, model.Msg{From: minter, To: nft.Address()}, func(call *model.Call) error {
		var err error
		tokenID, err = nft.Mint(minter, holder)
		return err
	})
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	uc := NewAccountUsecase(world)

	balances, err := uc.GetBalances(ctx, holder)
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	if !balances.Native.Eq(uint256.NewInt(7)) || len(balances.Tokens) != 2 {
		t.Fatalf("unexpected balances: %+v", balances)
	}
	if balances.Tokens[0].Symbol != "TJPY" || !balances.Tokens[0].Balance.IsZero() {
		t.Errorf("unexpected first token: %+v", balances.Tokens[0])
	}
	if balances.Tokens[1].Symbol != "TUSD" || !balances.Tokens[1].Balance.Eq(uint256.NewInt(100)) {
		t.Errorf("unexpected second token: %+v", balances.Tokens[1])
	}

	owner, err := uc.GetOwner(ctx, nft.Address(), tokenID)
	if err != nil || owner != holder {
		t.Errorf("expected holder, got %s (%v)", owner.Hex(), err)
	}
	if _, err := uc.GetOwner(ctx, usd.Address(), tokenID); !model.IsKind(err, model.KindPrecondition) {
		t.Errorf("expected precondition error for non-asset, got %v", err)
	}

	if _, err := uc.ApproveAsset(ctx, operator, nft.Address(), operator, tokenID, true); err == nil {
		t.Error("expected approval by non-owner to fail")
	}
	if _, err := uc.ApproveAsset(ctx, holder, nft.Address(), operator, tokenID, true); err != nil {
		t.Fatalf("ApproveAsset failed: %v", err)
	}
	if nft.GetApproved(tokenID) != operator {
		t.Errorf("expected operator to be approved")
	}
	if _, err := uc.ApproveAsset(ctx, holder, nft.Address(), operator, nil, true); err != nil {
		t.Fatalf("ApproveAsset for all failed: %v", err)
	}
	if !nft.IsApprovedForAll(holder, operator) {
		t.Errorf("expected operator to be approved for all")
	}

	if _, err := uc.ApproveCurrency(ctx, holder, usd.Address(), operator, uint256.NewInt(40)); err != nil {
		t.Fatalf("ApproveCurrency failed: %v", err)
	}
	if got := usd.Allowance(holder, operator); !got.Eq(uint256.NewInt(40)) {
		t.Errorf("expected allowance 40, got %s", got.Dec())
	}
	if _, err := uc.ApproveCurrency(ctx, holder, jpy.Address(), common.Address{}, uint256.NewInt(1)); err == nil {
		t.Error("expected approval to zero address to fail")
	}
}
