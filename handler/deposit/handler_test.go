package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	deposit "github.com/metalego/contracts/gateway/deposit"
	"github.com/metalego/contracts/model"
	"github.com/metalego/contracts/usecase/deposit"
)

type fakeDepositUsecase struct {
	dep     *model.Deposit
	receipt *model.Receipt
	err     error
}

func (f *fakeDepositUsecase) CollectAddress() string {
	return "0x00000000000000000000000000000000000000C0"
}

func (f *fakeDepositUsecase) ConfirmDeposit(ctx context.Context, txHash string) (*model.Deposit, *model.Receipt, error) {
	return f.dep, f.receipt, f.err
}

func serve(uc usecase.DepositUsecase, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	router := mux.NewRouter()
	NewDepositHandler(uc).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/deposit/confirm", strings.NewReader(body)))
	out := map[string]interface{}{}
	json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHandleConfirmDeposit(t *testing.T) {
	credited := &model.Deposit{
		TxHash: "0xabc",
		From:   "0x00000000000000000000000000000000000000d1",
		Amount: uint256.NewInt(1e15),
		Status: model.DepositCredited,
	}

	tests := []struct {
		name   string
		uc     *fakeDepositUsecase
		body   string
		status int
		check  func(t *testing.T, body map[string]interface{})
	}{
		{
			name:   "credited",
			uc:     &fakeDepositUsecase{dep: credited, receipt: &model.Receipt{Status: model.ReceiptSuccess, Success: true}},
			body:   `{"tx_hash":"0xabc"}`,
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				amount, _ := body["amount"].(map[string]interface{})
				if body["status"] != string(model.DepositCredited) || amount["eth"] != "0.001" {
					t.Errorf("unexpected body: %v", body)
				}
			},
		},
		{
			name:   "pending",
			uc:     &fakeDepositUsecase{dep: &model.Deposit{TxHash: "0xabc", Status: model.DepositPending}, err: deposit.ErrTxPending},
			body:   `{"tx_hash":"0xabc"}`,
			status: http.StatusAccepted,
			check: func(t *testing.T, body map[string]interface{}) {
				if body["status"] != string(model.DepositPending) {
					t.Errorf("expected PENDING, got %v", body["status"])
				}
			},
		},
		{
			name:   "already credited",
			uc:     &fakeDepositUsecase{err: usecase.ErrAlreadyCredited},
			body:   `{"tx_hash":"0xabc"}`,
			status: http.StatusConflict,
		},
		{
			name:   "wrong recipient",
			uc:     &fakeDepositUsecase{err: deposit.ErrWrongRecipient},
			body:   `{"tx_hash":"0xabc"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "rpc failure",
			uc:     &fakeDepositUsecase{err: errors.New("connection refused")},
			body:   `{"tx_hash":"0xabc"}`,
			status: http.StatusBadGateway,
		},
		{
			name:   "missing tx hash",
			uc:     &fakeDepositUsecase{},
			body:   `{}`,
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(tt.uc, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}
