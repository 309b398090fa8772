package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	deposit "github.com/metalego/contracts/gateway/deposit"
	"github.com/metalego/contracts/handler/response"
	"github.com/metalego/contracts/model"
	"github.com/metalego/contracts/usecase/deposit"
)

type DepositHandler struct {
	depositUC usecase.DepositUsecase
}

func NewDepositHandler(uc usecase.DepositUsecase) *DepositHandler {
	return &DepositHandler{depositUC: uc}
}

// Register は入金のルートを登録する
func (h *DepositHandler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/deposit/address", h.HandleCollectAddress).Methods("GET")
	router.HandleFunc("/api/v1/deposit/confirm", h.HandleConfirmDeposit).Methods("POST")
}

func (h *DepositHandler) HandleCollectAddress(w http.ResponseWriter, r *http.Request) {
	response.WriteSuccess(w, http.StatusOK, map[string]string{
		"collect_address": h.depositUC.CollectAddress(),
	})
}

// ConfirmDepositRequest は入金確認APIの入力
type ConfirmDepositRequest struct {
	TxHash string `json:"tx_hash"`
}

// HandleConfirmDeposit は外部チェーンの送金を検証し、devnet 残高に反映する
func (h *DepositHandler) HandleConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	var req ConfirmDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.TxHash == "" {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "tx_hash is required")
		return
	}

	dep, receipt, err := h.depositUC.ConfirmDeposit(r.Context(), req.TxHash)
	switch {
	case err == nil:
	case errors.Is(err, deposit.ErrTxPending):
		// 承認待ちはクライアントに再試行させる
		response.WriteSuccess(w, http.StatusAccepted, depositResponse(dep, nil))
		return
	case errors.Is(err, usecase.ErrAlreadyCredited):
		response.WriteError(w, r, http.StatusConflict, "ALREADY_CREDITED", err.Error())
		return
	case errors.Is(err, deposit.ErrInvalidTxHash),
		errors.Is(err, deposit.ErrTxReverted),
		errors.Is(err, deposit.ErrWrongRecipient),
		errors.Is(err, deposit.ErrEmptyDeposit),
		errors.Is(err, deposit.ErrAmountOverflows):
		response.WriteError(w, r, http.StatusBadRequest, string(model.DepositError), err.Error())
		return
	default:
		if _, ok := model.KindOf(err); ok {
			response.WriteRevert(w, r, err, receipt)
			return
		}
		response.WriteError(w, r, http.StatusBadGateway, string(model.DepositError), err.Error())
		return
	}

	response.WriteSuccess(w, http.StatusOK, depositResponse(dep, receipt))
}

func depositResponse(dep *model.Deposit, receipt *model.Receipt) map[string]interface{} {
	out := map[string]interface{}{
		"tx_hash":      dep.TxHash,
		"from":         dep.From,
		"to":           dep.To,
		"amount":       response.Wei(dep.Amount),
		"block_number": dep.BlockNumber,
		"status":       dep.Status,
	}
	if receipt != nil {
		out["receipt"] = receipt
	}
	return out
}
