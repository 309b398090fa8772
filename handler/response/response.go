package response

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	gouuid "github.com/nu7hatch/gouuid"
	"go.uber.org/zap"

	"github.com/metalego/contracts/config"
	"github.com/metalego/contracts/model"
)

type ctxKey struct{}

const RequestIDHeader = "X-Request-Id"

// ErrorResponse はエラー時のレスポンス
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Reason    string         `json:"reason,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Receipt   *model.Receipt `json:"receipt,omitempty"`
}

// WriteError は JSON 形式のエラーレスポンスを書き込む
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: RequestID(r.Context()),
	})
}

// WriteSuccess は JSON 形式の成功レスポンスを書き込む
func WriteSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// kindOf は再入エラーをラップの深さに関わらず優先する
func kindOf(err error) (model.ErrorKind, bool) {
	if model.IsKind(err, model.KindReentrancy) {
		return model.KindReentrancy, true
	}
	return model.KindOf(err)
}

// StatusOf はリバートの種別を HTTP ステータスに変換する
func StatusOf(err error) int {
	kind, ok := kindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case model.KindPrecondition:
		return http.StatusBadRequest
	case model.KindUnauthorized:
		return http.StatusForbidden
	case model.KindExternalCall:
		return http.StatusBadGateway
	case model.KindReentrancy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteRevert は失敗したトランザクションのエラーとレシートを書き込む
func WriteRevert(w http.ResponseWriter, r *http.Request, err error, receipt *model.Receipt) {
	status := StatusOf(err)
	code := "INTERNAL_ERROR"
	if kind, ok := kindOf(err); ok {
		code = string(kind)
	}
	if status == http.StatusInternalServerError {
		zap.L().With(zap.Error(err), zap.String("request_id", RequestID(r.Context()))).Error("Request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:      code,
		Message:   err.Error(),
		Reason:    model.Reason(err),
		RequestID: RequestID(r.Context()),
		Receipt:   receipt,
	})
}

// Wei は wei の金額と表示用のネイティブ通貨単位の値を返す
func Wei(amount *uint256.Int) map[string]string {
	if amount == nil {
		amount = new(uint256.Int)
	}
	return map[string]string{
		"wei": amount.Dec(),
		"eth": config.FormatEther(amount),
	}
}

// ===============================================
// リクエストID
// ===============================================

func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestIDMiddleware はリクエストごとに UUID を割り当て、アクセスログを出力する
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			u, err := gouuid.NewV4()
			if err == nil {
				id = u.String()
			}
		}
		w.Header().Set(RequestIDHeader, id)

		zap.L().With(
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		).Debug("Request")

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// ===============================================
// リクエストの値の解析
// ===============================================

// ParseAddress は 0x 付きの16進アドレスを解析する
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseOptionalAddress は空文字をゼロアドレスとして扱う
func ParseOptionalAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	return ParseAddress(s)
}

// ParseAmount は10進数の整数を解析する。空文字は 0
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}
