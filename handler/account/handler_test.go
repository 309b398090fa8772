package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/gateway/chain"
	"github.com/metalego/contracts/gateway/ledger"
	"github.com/metalego/contracts/model"
	account "github.com/metalego/contracts/usecase/account"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	minter   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	holder   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	operator = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestAccountHandler(t *testing.T) {
	world := ledger.NewWorld(chain.NewSimulatedHeaders())
	nft := world.DeployCollection(deployer, "Test", "TST", minter)
	usd := world.DeployToken(deployer, "Test USD", "TUSD")
	if err := world.Fund(holder, uint256.NewInt(25e15)); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	_, err := world.Transact(context.Background(), model.Msg{From: minter, To: nft.Address()}, func(call *model.Call) error {
		_, err := nft.Mint(minter, holder)
		return err
	})
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	router := mux.NewRouter()
	NewAccountHandler(account.NewAccountUsecase(world)).Register(router)
	do := func(method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		out := map[string]interface{}{}
		json.Unmarshal(rec.Body.Bytes(), &out)
		return rec, out
	}

	t.Run("balance", func(t *testing.T) {
		rec, body := do("GET", "/api/v1/account/balance/"+holder.Hex(), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		native, _ := body["native"].(map[string]interface{})
		if native["wei"] != "25000000000000000" || native["eth"] != "0.025" {
			t.Errorf("unexpected native balance: %v", native)
		}
		tokens, _ := body["tokens"].([]interface{})
		if len(tokens) != 1 {
			t.Errorf("expected 1 token, got %v", body["tokens"])
		}
	})

	t.Run("owner", func(t *testing.T) {
		rec, body := do("GET", "/api/v1/account/asset/"+nft.Address().Hex()+"/owner/1", "")
		if rec.Code != http.StatusOK || body["owner"] != holder.Hex() {
			t.Errorf("unexpected owner response %d: %v", rec.Code, body)
		}
		rec, _ = do("GET", "/api/v1/account/asset/"+nft.Address().Hex()+"/owner/9", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for unknown token, got %d", rec.Code)
		}
	})

	t.Run("approve asset", func(t *testing.T) {
		rec, _ := do("POST", "/api/v1/account/asset/approve",
			`{"from":"`+holder.Hex()+`","asset":"`+nft.Address().Hex()+`","operator":"`+operator.Hex()+`"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !nft.IsApprovedForAll(holder, operator) {
			t.Error("expected operator to be approved for all")
		}
	})

	t.Run("approve currency", func(t *testing.T) {
		rec, _ := do("POST", "/api/v1/account/currency/approve",
			`{"from":"`+holder.Hex()+`","currency":"`+usd.Address().Hex()+`","spender":"`+operator.Hex()+`","amount_wei":"500"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := usd.Allowance(holder, operator); !got.Eq(uint256.NewInt(500)) {
			t.Errorf("expected allowance 500, got %s", got.Dec())
		}
	})
}
