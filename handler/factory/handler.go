package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/handler/response"
	"github.com/metalego/contracts/model"
	"github.com/metalego/contracts/usecase/factory"
)

type FactoryHandler struct {
	factoryUC usecase.FactoryUsecase
}

func NewFactoryHandler(uc usecase.FactoryUsecase) *FactoryHandler {
	return &FactoryHandler{factoryUC: uc}
}

// Register はファクトリーのルートを登録する
func (h *FactoryHandler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/factory/info", h.HandleInfo).Methods("GET")
	router.HandleFunc("/api/v1/factory/minted/{tier}/{address}", h.HandleMintedCount).Methods("GET")
	router.HandleFunc("/api/v1/factory/mint/{tier}", h.HandleMint).Methods("POST")
	router.HandleFunc("/api/v1/factory/admin/fee", h.HandleSetFee).Methods("POST")
	router.HandleFunc("/api/v1/factory/admin/quota", h.HandleSetQuota).Methods("POST")
	router.HandleFunc("/api/v1/factory/admin/signer", h.HandleSetSigner).Methods("POST")
	router.HandleFunc("/api/v1/factory/admin/tier-asset", h.HandleSetTierAsset).Methods("POST")
	router.HandleFunc("/api/v1/factory/admin/role", h.HandleSetAdmin).Methods("POST")
	router.HandleFunc("/api/v1/factory/admin/withdraw", h.HandleWithdraw).Methods("POST")
	router.HandleFunc("/api/v1/factory/admin/multi-transfer", h.HandleMultiTransfer).Methods("POST")
}

func parseTier(s string) (model.Tier, bool) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, false
	}
	tier := model.Tier(n)
	return tier, tier.Valid()
}

// HandleInfo はファクトリーの設定値を返す
func (h *FactoryHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.factoryUC.GetInfo(r.Context())
	if err != nil {
		response.WriteRevert(w, r, err, nil)
		return
	}

	fees := make([]map[string]string, 0, len(info.Fees))
	for _, fee := range info.Fees {
		fees = append(fees, response.Wei(fee))
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"address":     info.Address,
		"owner":       info.Owner,
		"signer":      info.Signer,
		"quota":       info.Quota,
		"balance":     response.Wei(info.Balance),
		"fees":        fees,
		"tier_assets": info.TierAssets,
	})
}

func (h *FactoryHandler) HandleMintedCount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tier, ok := parseTier(vars["tier"])
	if !ok {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_TIER", "tier must be 1, 2 or 3")
		return
	}
	addr, err := response.ParseAddress(vars["address"])
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_ADDRESS", err.Error())
		return
	}

	count, err := h.factoryUC.GetMintedCount(r.Context(), tier, addr)
	if err != nil {
		response.WriteRevert(w, r, err, nil)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"tier":    tier,
		"address": addr.Hex(),
		"minted":  count,
	})
}

// MintRequest はミントAPIの入力。signature は 0x 付きの16進 (65バイト)
type MintRequest struct {
	From      string `json:"from"`
	Recipient string `json:"recipient"`
	ValueWei  string `json:"value_wei"`
	Signature string `json:"signature"`
}

// HandleMint は指定ティアで NFT をミントする
func (h *FactoryHandler) HandleMint(w http.ResponseWriter, r *http.Request) {
	tier, ok := parseTier(mux.Vars(r)["tier"])
	if !ok {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_TIER", "tier must be 1, 2 or 3")
		return
	}

	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	from, err := response.ParseAddress(req.From)
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	// recipient 省略時は呼び出し元に発行する
	recipient := from
	if req.Recipient != "" {
		if recipient, err = response.ParseAddress(req.Recipient); err != nil {
			response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}
	value, err := response.ParseAmount(req.ValueWei)
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	var signature []byte
	if req.Signature != "" {
		if signature, err = hexutil.Decode(req.Signature); err != nil {
			response.WriteError(w, r, http.StatusBadRequest, "INVALID_SIGNATURE", err.Error())
			return
		}
	}

	receipt, tokenID, err := h.factoryUC.Mint(r.Context(), from, value, tier, recipient, signature)
	if err != nil {
		response.WriteRevert(w, r, err, receipt)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"token_id": tokenID.Dec(),
		"receipt":  receipt,
	})
}

// ===============================================
// 管理者操作
// ===============================================

// AdminRequest はファクトリー管理APIの入力
type AdminRequest struct {
	From      string   `json:"from"`
	Tier      uint8    `json:"tier"`
	FeeWei    string   `json:"fee_wei"`
	Quota     *uint64  `json:"quota"`
	Address   string   `json:"address"`
	Granted   *bool    `json:"granted"`
	AmountWei string   `json:"amount_wei"`
	ValueWei  string   `json:"value_wei"`
	Receivers []string `json:"receivers"`
	Amounts   []string `json:"amounts_wei"`
}

func decodeAdmin(w http.ResponseWriter, r *http.Request) (*AdminRequest, common.Address, bool) {
	var req AdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return nil, common.Address{}, false
	}
	from, err := response.ParseAddress(req.From)
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return nil, common.Address{}, false
	}
	return &req, from, true
}

func writeReceipt(w http.ResponseWriter, r *http.Request, receipt *model.Receipt, err error) {
	if err != nil {
		response.WriteRevert(w, r, err, receipt)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{"receipt": receipt})
}

func (h *FactoryHandler) HandleSetFee(w http.ResponseWriter, r *http.Request) {
	req, from, ok := decodeAdmin(w, r)
	if !ok {
		return
	}
	fee, err := response.ParseAmount(req.FeeWei)
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	receipt, err := h.factoryUC.SetMintFee(r.Context(), from, model.Tier(req.Tier), fee)
	writeReceipt(w, r, receipt, err)
}

func (h *FactoryHandler) HandleSetQuota(w http.ResponseWriter, r *http.Request) {
	req, from, ok := decodeAdmin(w, r)
	if !ok {
		return
	}
	if req.Quota == nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "quota is required")
		return
	}
	receipt, err := h.factoryUC.SetQuota(r.Context(), from, *req.Quota)
	writeReceipt(w, r, receipt, err)
}

func (h *FactoryHandler) HandleSetSigner(w http.ResponseWriter, r *http.Request) {
	req, from, ok := decodeAdmin(w, r)
	if !ok {
		return
	}
	addr, err := response.ParseOptionalAddress(req.Address)
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	receipt, err := h.factoryUC.SetSigner(r.Context(), from, addr)
	writeReceipt(w, r, receipt, err)
}

func (h *FactoryHandler) HandleSetTierAsset(w http.ResponseWriter, r *http.Request) {
	req, from, ok := decodeAdmin(w, r)
	if !ok {
		return
	}
	asset, err := response.ParseOptionalAddress(req.Address)
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	receipt, err := h.factoryUC.SetTierAsset(r.Context(), from, model.Tier(req.Tier), asset)
	writeReceipt(w, r, receipt, err)
}

// HandleSetAdmin は granted に応じて管理者権限を付与・剥奪する
func (h *FactoryHandler) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	req, from, ok := decodeAdmin(w, r)
	if !ok {
		return
	}
	addr, err := response.ParseOptionalAddress(req.Address)
	if err != nil || req.Granted == nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "address and granted are required")
		return
	}
	receipt, err := h.factoryUC.SetAdmin(r.Context(), from, addr, *req.Granted)
	writeReceipt(w, r, receipt, err)
}

// HandleWithdraw は amount_wei を省略すると残高全額を引き出す
func (h *FactoryHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	req, from, ok := decodeAdmin(w, r)
	if !ok {
		return
	}
	amount, err := response.ParseAmount(req.AmountWei)
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	receipt, err := h.factoryUC.Withdraw(r.Context(), from, amount)
	writeReceipt(w, r, receipt, err)
}

func (h *FactoryHandler) HandleMultiTransfer(w http.ResponseWriter, r *http.Request) {
	req, from, ok := decodeAdmin(w, r)
	if !ok {
		return
	}
	value, err := response.ParseAmount(req.ValueWei)
	if err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	receivers := make([]common.Address, 0, len(req.Receivers))
	for _, s := range req.Receivers {
		addr, err := response.ParseOptionalAddress(s)
		if err != nil {
			response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		receivers = append(receivers, addr)
	}
	amounts := make([]*uint256.Int, 0, len(req.Amounts))
	for _, s := range req.Amounts {
		amount, err := response.ParseAmount(s)
		if err != nil {
			response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		amounts = append(amounts, amount)
	}

	receipt, err := h.factoryUC.MultiTransfer(r.Context(), from, value, receivers, amounts)
	writeReceipt(w, r, receipt, err)
}
