package usecase

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/gateway/chain"
	"github.com/metalego/contracts/gateway/ledger"
	"github.com/metalego/contracts/gateway/signer"
	"github.com/metalego/contracts/model"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000b3")
)

type testEnv struct {
	ctx         context.Context
	world       *ledger.World
	factory     *Factory
	uc          *factoryUsecase
	collections [3]*ledger.Collection
	key         *ecdsa.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	world := ledger.NewWorld(chain.NewSimulatedHeadersAt(time.Unix(1700000000, 0)))
	var factory *Factory
	world.Deploy(owner, func(addr common.Address) interface{} {
		factory = NewFactory(world, addr, owner, signer.NewAuthority())
		return factory
	})

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	env := &testEnv{
		ctx:     context.Background(),
		world:   world,
		factory: factory,
		uc:      NewFactoryUsecase(world, factory),
		key:     key,
	}
	for i, tier := range model.Tiers {
		env.collections[i] = world.DeployCollection(owner, "Tier", "TIER", factory.Address())
		if _, err := env.uc.SetTierAsset(env.ctx, owner, tier, env.collections[i].Address()); err != nil {
			t.Fatalf("SetTierAsset failed: %v", err)
		}
	}
	if _, err := env.uc.SetSigner(env.ctx, owner, crypto.PubkeyToAddress(key.PublicKey)); err != nil {
		t.Fatalf("SetSigner failed: %v", err)
	}

	for _, addr := range []common.Address{alice, bob, carol} {
		if err := world.Fund(addr, uint256.NewInt(5e18)); err != nil {
			t.Fatalf("Fund failed: %v", err)
		}
	}
	return env
}

func (e *testEnv) sign(t *testing.T, caller common.Address, tier model.Tier, recipient common.Address) []byte {
	t.Helper()
	sig, err := signer.SignMint(e.key, caller, e.collections[tier.Index()].Address(), recipient)
	if err != nil {
		t.Fatalf("SignMint failed: %v", err)
	}
	return sig
}

func assertReason(t *testing.T, err error, kind model.ErrorKind, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s %q, got nil", kind, reason)
	}
	if !model.IsKind(err, kind) {
		t.Errorf("expected kind %s, got %v", kind, err)
	}
	if got := model.Reason(err); got != reason {
		t.Errorf("expected reason %q, got %q", reason, got)
	}
}

func TestMintTierOne(t *testing.T) {
	env := newTestEnv(t)

	receipt, tokenID, err := env.uc.Mint(env.ctx, alice, DefaultFeeTierOne, model.TierOne, alice, nil)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if tokenID.Uint64() != 1 {
		t.Errorf("expected token 1, got %s", tokenID.Dec())
	}
	holder, _ := env.collections[0].OwnerOf(tokenID)
	if holder != alice {
		t.Errorf("expected alice to own the token, got %s", holder.Hex())
	}
	if got := env.factory.Balance(); !got.Eq(DefaultFeeTierOne) {
		t.Errorf("expected fee retained by factory, got %s", got.Dec())
	}

	ev := receipt.Events[len(receipt.Events)-1]
	if ev.Type != model.EventMinted || ev.Tier != model.TierOne || ev.Recipient != alice.Hex() {
		t.Errorf("unexpected mint event: %+v", ev)
	}
	if ev.Variation == nil || ev.Variation.Gt(uint256.NewInt(9e14)) {
		t.Errorf("unexpected variation: %v", ev.Variation)
	}
}

func TestMintTierOne_ExactFee(t *testing.T) {
	env := newTestEnv(t)

	for _, value := range []*uint256.Int{nil, uint256.NewInt(1e17 - 1), uint256.NewInt(1e17 + 1)} {
		_, _, err := env.uc.Mint(env.ctx, alice, value, model.TierOne, alice, nil)
		assertReason(t, err, model.KindPrecondition, "incorrect mint fee")
	}
	if got := env.world.Balance(alice); !got.Eq(uint256.NewInt(5e18)) {
		t.Errorf("rejected mints must refund, got %s", got.Dec())
	}
	if count, _ := env.factory.MintedCount(model.TierOne, alice); count != 0 {
		t.Errorf("rejected mints must not consume quota, got %d", count)
	}
}

func TestMint_QuotaPerRecipient(t *testing.T) {
	env := newTestEnv(t)

	if _, _, err := env.uc.Mint(env.ctx, alice, DefaultFeeTierOne, model.TierOne, alice, nil); err != nil {
		t.Fatalf("first mint failed: %v", err)
	}
	_, _, err := env.uc.Mint(env.ctx, alice, DefaultFeeTierOne, model.TierOne, alice, nil)
	assertReason(t, err, model.KindPrecondition, "mint quota exceeded")

	if _, _, err := env.uc.Mint(env.ctx, alice, DefaultFeeTierOne, model.TierOne, bob, nil); err != nil {
		t.Fatalf("mint for another recipient failed: %v", err)
	}

	count, err := env.uc.GetMintedCount(env.ctx, model.TierOne, alice)
	if err != nil || count != 1 {
		t.Errorf("expected count 1, got %d (%v)", count, err)
	}
}

func TestMint_ZeroQuota(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.uc.SetQuota(env.ctx, owner, 0); err != nil {
		t.Fatalf("SetQuota failed: %v", err)
	}
	for _, addr := range []common.Address{alice, bob} {
		_, _, err := env.uc.Mint(env.ctx, addr, DefaultFeeTierOne, model.TierOne, addr, nil)
		assertReason(t, err, model.KindPrecondition, "mint quota exceeded")
	}
}

func TestMintTierTwo_Signature(t *testing.T) {
	env := newTestEnv(t)

	sig := env.sign(t, alice, model.TierTwo, alice)
	_, tokenID, err := env.uc.Mint(env.ctx, alice, DefaultFeeTierTwo, model.TierTwo, alice, sig)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	holder, _ := env.collections[1].OwnerOf(tokenID)
	if holder != alice {
		t.Errorf("expected alice to own tier two token, got %s", holder.Hex())
	}
}

func TestMintSignature_ReplayBinding(t *testing.T) {
	env := newTestEnv(t)
	sig := env.sign(t, alice, model.TierTwo, alice)

	tests := []struct {
		name      string
		caller    common.Address
		tier      model.Tier
		recipient common.Address
		value     *uint256.Int
	}{
		{"different recipient", alice, model.TierTwo, bob, DefaultFeeTierTwo},
		{"different caller", carol, model.TierTwo, alice, DefaultFeeTierTwo},
		{"different tier", alice, model.TierThree, alice, DefaultFeeTierThree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.uc.Mint(env.ctx, tt.caller, tt.value, tt.tier, tt.recipient, sig)
			assertReason(t, err, model.KindUnauthorized, "invalid signature")
		})
	}

	_, _, err := env.uc.Mint(env.ctx, alice, DefaultFeeTierTwo, model.TierTwo, alice, []byte{0x01})
	assertReason(t, err, model.KindUnauthorized, "invalid signature")
}

// 署名の検証は発行枠と手数料より先に行われる
func TestMintSignature_CheckedFirst(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.uc.SetQuota(env.ctx, owner, 0); err != nil {
		t.Fatalf("SetQuota failed: %v", err)
	}
	_, _, err := env.uc.Mint(env.ctx, alice, nil, model.TierThree, alice, nil)
	assertReason(t, err, model.KindUnauthorized, "invalid signature")
}

func TestMint_UnsetSignerRejects(t *testing.T) {
	env := newTestEnv(t)
	sig := env.sign(t, alice, model.TierTwo, alice)
	if _, err := env.uc.SetSigner(env.ctx, owner, common.Address{}); err != nil {
		t.Fatalf("SetSigner failed: %v", err)
	}
	_, _, err := env.uc.Mint(env.ctx, alice, DefaultFeeTierTwo, model.TierTwo, alice, sig)
	assertReason(t, err, model.KindUnauthorized, "invalid signature")
}

func TestMint_TierAssetNotConfigured(t *testing.T) {
	world := ledger.NewWorld(chain.NewSimulatedHeaders())
	var factory *Factory
	world.Deploy(owner, func(addr common.Address) interface{} {
		factory = NewFactory(world, addr, owner, signer.NewAuthority())
		return factory
	})
	if err := world.Fund(alice, uint256.NewInt(1e18)); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}

	uc := NewFactoryUsecase(world, factory)
	_, _, err := uc.Mint(context.Background(), alice, DefaultFeeTierOne, model.TierOne, alice, nil)
	assertReason(t, err, model.KindPrecondition, "tier asset not configured")
}

func TestFactory_AdminRoles(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.uc.SetMintFee(env.ctx, alice, model.TierOne, uint256.NewInt(1))
	assertReason(t, err, model.KindUnauthorized, "caller is not an admin")

	_, err = env.uc.SetAdmin(env.ctx, alice, bob, true)
	assertReason(t, err, model.KindUnauthorized, "Ownable: caller is not the owner")

	if _, err := env.uc.SetAdmin(env.ctx, owner, alice, true); err != nil {
		t.Fatalf("GrantAdmin failed: %v", err)
	}
	if _, err := env.uc.SetMintFee(env.ctx, alice, model.TierOne, uint256.NewInt(1)); err != nil {
		t.Fatalf("admin SetMintFee failed: %v", err)
	}
	fee, _ := env.factory.MintFee(model.TierOne)
	if fee.Uint64() != 1 {
		t.Errorf("expected fee 1, got %s", fee.Dec())
	}

	// 管理者でもオーナー専用の操作はできない
	_, err = env.uc.SetSigner(env.ctx, alice, alice)
	assertReason(t, err, model.KindUnauthorized, "Ownable: caller is not the owner")
	_, err = env.uc.Withdraw(env.ctx, alice, nil)
	assertReason(t, err, model.KindUnauthorized, "Ownable: caller is not the owner")

	if _, err := env.uc.SetAdmin(env.ctx, owner, alice, false); err != nil {
		t.Fatalf("RevokeAdmin failed: %v", err)
	}
	_, err = env.uc.SetQuota(env.ctx, alice, 5)
	assertReason(t, err, model.KindUnauthorized, "caller is not an admin")
}

func TestFactory_Withdraw(t *testing.T) {
	env := newTestEnv(t)
	if _, _, err := env.uc.Mint(env.ctx, alice, DefaultFeeTierOne, model.TierOne, alice, nil); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	_, err := env.uc.Withdraw(env.ctx, owner, uint256.NewInt(2e17))
	assertReason(t, err, model.KindPrecondition, "insufficient balance")

	receipt, err := env.uc.Withdraw(env.ctx, owner, nil)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if got := env.world.Balance(owner); !got.Eq(DefaultFeeTierOne) {
		t.Errorf("expected owner to receive fees, got %s", got.Dec())
	}
	ev := receipt.Events[0]
	if ev.Type != model.EventWithdrawal || ev.Sender != owner.Hex() || !ev.Amount.Eq(DefaultFeeTierOne) {
		t.Errorf("unexpected withdrawal event: %+v", ev)
	}
}

func TestFactory_MultiTransfer(t *testing.T) {
	env := newTestEnv(t)
	if err := env.world.Fund(owner, uint256.NewInt(1e18)); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}

	_, err := env.uc.MultiTransfer(env.ctx, owner, nil, []common.Address{alice, bob}, []*uint256.Int{uint256.NewInt(1)})
	assertReason(t, err, model.KindPrecondition, "receivers and amounts length mismatch")

	// 2件目が失敗すると1件目の送金も取り消される
	_, err = env.uc.MultiTransfer(env.ctx, owner, uint256.NewInt(1e18),
		[]common.Address{alice, common.Address{}},
		[]*uint256.Int{uint256.NewInt(4e17), uint256.NewInt(1e17)})
	assertReason(t, err, model.KindPrecondition, "invalid address")
	if got := env.world.Balance(alice); !got.Eq(uint256.NewInt(5e18)) {
		t.Errorf("aborted batch must not pay alice, got %s", got.Dec())
	}
	if got := env.world.Balance(owner); !got.Eq(uint256.NewInt(1e18)) {
		t.Errorf("aborted batch must refund the sender, got %s", got.Dec())
	}

	_, err = env.uc.MultiTransfer(env.ctx, owner, uint256.NewInt(1e18),
		[]common.Address{alice, bob},
		[]*uint256.Int{uint256.NewInt(4e17), uint256.NewInt(6e17)})
	if err != nil {
		t.Fatalf("MultiTransfer failed: %v", err)
	}
	if got := env.world.Balance(bob); !got.Eq(uint256.NewInt(56e17)) {
		t.Errorf("expected bob to receive 0.6, got %s", got.Dec())
	}
}

func TestFactory_AcceptsNativeTransfer(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.world.Transact(env.ctx, model.Msg{From: alice, To: alice}, func(call *model.Call) error {
		return env.world.SendNative(call, alice, env.factory.Address(), uint256.NewInt(1e17))
	})
	if err != nil {
		t.Fatalf("native transfer to factory failed: %v", err)
	}
	if got := env.factory.Balance(); !got.Eq(uint256.NewInt(1e17)) {
		t.Errorf("expected factory balance 0.1, got %s", got.Dec())
	}
}

func TestVariation(t *testing.T) {
	hash := common.BigToHash(common.Big3)
	if got := Variation(hash); !got.Eq(uint256.NewInt(3e14)) {
		t.Errorf("expected 3e14, got %s", got.Dec())
	}
	hash = common.HexToHash("0x17")
	if got := Variation(hash); !got.Eq(uint256.NewInt(3e14)) {
		t.Errorf("expected 3e14 for 23, got %s", got.Dec())
	}
}
