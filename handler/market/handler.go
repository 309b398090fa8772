package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/metalego/contracts/handler/response"
	"github.com/metalego/contracts/model"
	"github.com/metalego/contracts/usecase/market"
)

type MarketHandler struct {
	marketUC usecase.MarketUsecase
}

func NewMarketHandler(uc usecase.MarketUsecase) *MarketHandler {
	return &MarketHandler{marketUC: uc}
}

// Register はマーケットのルートを登録する
func (h *MarketHandler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/market/info", h.HandleInfo).Methods("GET")
	router.HandleFunc("/api/v1/market/listing/{asset}/{tokenId}", h.HandleGetListing).Methods("GET")
	router.HandleFunc("/api/v1/market/listing/{asset}/{tokenId}/price", h.HandleGetPrice).Methods("GET")
	router.HandleFunc("/api/v1/market/sell", h.HandleSell).Methods("POST")
	router.HandleFunc("/api/v1/market/cancel", h.HandleCancel).Methods("POST")
	router.HandleFunc("/api/v1/market/buy", h.HandleBuy).Methods("POST")
	router.HandleFunc("/api/v1/market/admin/sales", h.HandleSetSales).Methods("POST")
	router.HandleFunc("/api/v1/market/admin/asset", h.HandleSetAsset).Methods("POST")
	router.HandleFunc("/api/v1/market/admin/currency", h.HandleSetCurrency).Methods("POST")
	router.HandleFunc("/api/v1/market/admin/fee", h.HandleSetFee).Methods("POST")
}

func listingResponse(l *model.Listing) map[string]interface{} {
	return map[string]interface{}{
		"id":         l.ID,
		"token_id":   l.TokenID.Dec(),
		"asset":      l.Asset.Hex(),
		"currency":   l.Currency.Hex(),
		"is_native":  l.IsNative(),
		"seller":     l.Seller.Hex(),
		"buyer":      l.Buyer.Hex(),
		"start_time": l.StartTime,
		"price":      response.Wei(l.Price),
		"status":     l.Status.String(),
	}
}

// ===== 参照 =====

func (h *MarketHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.marketUC.GetInfo(r.Context())
	if err != nil {
		response.WriteRevert(w, r, err, nil)
		return
	}
	response.WriteSuccess(w, http.StatusOK, info)
}

func (h *MarketHandler) HandleGetListing(w http.ResponseWriter, r *http.Request) {
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

	listing, err := h.marketUC.GetListing(r.Context(), tokenID, asset)
	if err != nil {
		if model.Reason(err) == "listing not found" {
			response.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "listing not found")
			return
		}
		response.WriteRevert(w, r, err, nil)
		return
	}
	response.WriteSuccess(w, http.StatusOK, listingResponse(listing))
}

func (h *MarketHandler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
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

	price, err := h.marketUC.GetPrice(r.Context(), tokenID, asset)
	if err != nil {
		if model.Reason(err) == "listing not found" {
			response.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "listing not found")
			return
		}
		response.WriteRevert(w, r, err, nil)
		return
	}
	response.WriteSuccess(w, http.StatusOK, response.Wei(price))
}

// ===== 取引 =====

// ListingRequest は出品・キャンセル・購入の入力
type ListingRequest struct {
	From     string `json:"from"`
	Asset    string `json:"asset"`
	TokenID  string `json:"token_id"`
	PriceWei string `json:"price_wei"`
	Currency string `json:"currency"`
	ValueWei string `json:"value_wei"`
}

func (h *MarketHandler) decode(w http.ResponseWriter, r *http.Request) (*ListingRequest, bool) {
	var req ListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return nil, false
	}
	return &req, true
}

// HandleSell は NFT を出品する
func (h *MarketHandler) HandleSell(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	from, err1 := response.ParseAddress(req.From)
	asset, err2 := response.ParseAddress(req.Asset)
	currency, err3 := response.ParseOptionalAddress(req.Currency)
	tokenID, err4 := response.ParseAmount(req.TokenID)
	price, err5 := response.ParseAmount(req.PriceWei)
	if err := firstError(err1, err2, err3, err4, err5); err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	receipt, id, err := h.marketUC.CreateListing(r.Context(), from, tokenID, price, asset, currency)
	if err != nil {
		response.WriteRevert(w, r, err, receipt)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"listing_id": id,
		"receipt":    receipt,
	})
}

// HandleCancel は出品を取り消す
func (h *MarketHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	from, err1 := response.ParseAddress(req.From)
	asset, err2 := response.ParseAddress(req.Asset)
	tokenID, err3 := response.ParseAmount(req.TokenID)
	if err := firstError(err1, err2, err3); err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	receipt, err := h.marketUC.CancelListing(r.Context(), from, tokenID, asset)
	if err != nil {
		response.WriteRevert(w, r, err, receipt)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{"receipt": receipt})
}

// HandleBuy は出品を購入する。ネイティブ通貨建ての場合は value_wei を支払う
func (h *MarketHandler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	from, err1 := response.ParseAddress(req.From)
	asset, err2 := response.ParseAddress(req.Asset)
	currency, err3 := response.ParseOptionalAddress(req.Currency)
	tokenID, err4 := response.ParseAmount(req.TokenID)
	value, err5 := response.ParseAmount(req.ValueWei)
	if err := firstError(err1, err2, err3, err4, err5); err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	receipt, err := h.marketUC.Purchase(r.Context(), from, value, tokenID, asset, currency)
	if err != nil {
		response.WriteRevert(w, r, err, receipt)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{"receipt": receipt})
}

// ===== 管理者操作 =====

// AdminRequest はマーケット管理APIの入力
type AdminRequest struct {
	From        string  `json:"from"`
	Enabled     *bool   `json:"enabled"`
	Asset       string  `json:"asset"`
	Currency    string  `json:"currency"`
	Supported   *bool   `json:"supported"`
	FeeRate     *uint64 `json:"fee_rate"`
	FeeReceiver string  `json:"fee_receiver"`
}

func (h *MarketHandler) decodeAdmin(w http.ResponseWriter, r *http.Request) (*AdminRequest, bool) {
	var req AdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return nil, false
	}
	return &req, true
}

func (h *MarketHandler) HandleSetSales(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAdmin(w, r)
	if !ok {
		return
	}
	from, err := response.ParseAddress(req.From)
	if err != nil || req.Enabled == nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "from and enabled are required")
		return
	}

	receipt, err := h.marketUC.SetSalesEnabled(r.Context(), from, *req.Enabled)
	if err != nil {
		response.WriteRevert(w, r, err, receipt)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{"receipt": receipt})
}

func (h *MarketHandler) HandleSetAsset(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAdmin(w, r)
	if !ok {
		return
	}
	from, err1 := response.ParseAddress(req.From)
	asset, err2 := response.ParseOptionalAddress(req.Asset)
	if err := firstError(err1, err2); err != nil || req.Supported == nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "from, asset and supported are required")
		return
	}

	receipt, err := h.marketUC.SetSupportedAsset(r.Context(), from, asset, *req.Supported)
	if err != nil {
		response.WriteRevert(w, r, err, receipt)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{"receipt": receipt})
}

func (h *MarketHandler) HandleSetCurrency(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAdmin(w, r)
	if !ok {
		return
	}
	from, err1 := response.ParseAddress(req.From)
	currency, err2 := response.ParseOptionalAddress(req.Currency)
	if err := firstError(err1, err2); err != nil || req.Supported == nil {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "from, currency and supported are required")
		return
	}

	receipt, err := h.marketUC.SetSupportedCurrency(r.Context(), from, currency, *req.Supported)
	if err != nil {
		response.WriteRevert(w, r, err, receipt)
		return
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{"receipt": receipt})
}

// HandleSetFee は fee_rate と fee_receiver のうち指定されたものを更新する
func (h *MarketHandler) HandleSetFee(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAdmin(w, r)
	if !ok {
		return
	}
	from, err := response.ParseAddress(req.From)
	if err != nil || (req.FeeRate == nil && req.FeeReceiver == "") {
		response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "from and fee_rate or fee_receiver are required")
		return
	}

	var receipts []*model.Receipt
	if req.FeeRate != nil {
		receipt, err := h.marketUC.SetFeeRate(r.Context(), from, *req.FeeRate)
		if err != nil {
			response.WriteRevert(w, r, err, receipt)
			return
		}
		receipts = append(receipts, receipt)
	}
	if req.FeeReceiver != "" {
		receiver, err := response.ParseAddress(req.FeeReceiver)
		if err != nil {
			response.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		receipt, err := h.marketUC.SetFeeReceiver(r.Context(), from, receiver)
		if err != nil {
			response.WriteRevert(w, r, err, receipt)
			return
		}
		receipts = append(receipts, receipt)
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{"receipts": receipts})
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
