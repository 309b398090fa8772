package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/handler/response"
	"github.com/metalego/contracts/usecase/account"
)

type AccountHandler struct {
	accountUC usecase.AccountUsecase
}

func NewAccountHandler(uc usecase.AccountUsecase) *AccountHandler {
	return &AccountHandler{accountUC: uc}
}

// Register はアカウントのルートを登録する
func (h *AccountHandler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/account/balance/{address}", h.HandleGetBalances).Methods("GET")
	router.HandleFunc("/api/v1/account/asset/{asset}/owner/{tokenId}", h.HandleGetOwner).Methods("GET")
	router.HandleFunc("/api/v1/account/asset/approve", h.HandleApproveAsset).Methods("POST")
	router.HandleFunc("/api/v1/account/currency/approve", h.HandleApproveCurrency).Methods("POST")
}

// HandleGetBalances はネイティブ通貨と代替トークンの残高を返す
func (h *AccountHandler) HandleGetBalances(w http.ResponseWriter, r *http.Request) {
	addr, err := response.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_ADDRESS", err.Error())
		return
	}

	balances, err := h.accountUC.GetBalances(r.Context(), addr)
	if err != nil {
		response.WriteRevert(w, r, err, nil)
		return
	}

	tokens := make([]map[string]interface{}, 0, len(balances.Tokens))
	for _, token := range balances.Tokens {
		tokens = append(tokens, map[string]interface{}{
			"address": token.Address,
			"symbol":  token.Symbol,
			"balance": response.Wei(token.Balance),
		})
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"address": balances.Address,
		"native":  response.Wei(balances.Native),
		"tokens":  tokens,
	})
}

func (h *AccountHandler) HandleGetOwner(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	asset, err := response.ParseAddress(vars["asset"])
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_ASSET", err.Error())
		return
	}
	tokenID, err := response.ParseAmount(vars["tokenId"])
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_TOKEN_ID", err.Error())
		return
	}

	owner, err := h.accountUC.GetOwner(r.Context(), asset, tokenID)
	if err != nil {
		response.WriteRevert(w, r, err, nil)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]string{
		"asset":    asset.Hex(),
		"token_id": tokenID.Dec(),
		"owner":    owner.Hex(),
	})
}

// ApproveAssetRequest は NFT の承認APIの入力。token_id を省略すると全トークンが対象
type ApproveAssetRequest struct {
	From     string `json:"from"`
	Asset    string `json:"asset"`
	Operator string `json:"operator"`
	TokenID  string `json:"token_id"`
	Approved *bool  `json:"approved"`
}

func (h *AccountHandler) HandleApproveAsset(w http.ResponseWriter, r *http.Request) {
	var req ApproveAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	from, err1 := response.ParseAddress(req.From)
	asset, err2 := response.ParseAddress(req.Asset)
	operator, err3 := response.ParseOptionalAddress(req.Operator)
	for _, err := range []error{err1, err2, err3} {
		if err != nil {
			response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}

	var tokenID *uint256.Int
	if req.TokenID != "" {
		var err error
		if tokenID, err = response.ParseAmount(req.TokenID); err != nil {
			response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}
	approved := true
	if req.Approved != nil {
		approved = *req.Approved
	}

	receipt, err := h.accountUC.ApproveAsset(r.Context(), from, asset, operator, tokenID, approved)
	if err != nil {
		response.WriteRevert(w, r, err, receipt)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{"receipt": receipt})
}

// ApproveCurrencyRequest は代替トークンの承認APIの入力
type ApproveCurrencyRequest struct {
	From      string `json:"from"`
	Currency  string `json:"currency"`
	Spender   string `json:"spender"`
	AmountWei string `json:"amount_wei"`
}

func (h *AccountHandler) HandleApproveCurrency(w http.ResponseWriter, r *http.Request) {
	var req ApproveCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	from, err1 := response.ParseAddress(req.From)
	currency, err2 := response.ParseAddress(req.Currency)
	spender, err3 := response.ParseAddress(req.Spender)
	amount, err4 := response.ParseAmount(req.AmountWei)
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}

	receipt, err := h.accountUC.ApproveCurrency(r.Context(), from, currency, spender, amount)
	if err != nil {
		response.WriteRevert(w, r, err, receipt)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{"receipt": receipt})
}
