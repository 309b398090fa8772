package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ===============================================
// 1. インターフェース定義
// ===============================================

// NotifyGateway はメインバックエンドへのイベント通知
type NotifyGateway interface {
	Notify(ctx context.Context, endpoint string, payload interface{}) error
}

// ===============================================
// 2. 実装: BackendGateway
// ===============================================

type BackendGateway struct {
	client         *retryablehttp.Client
	backendBaseURL string
}

// NewRetryClient は通知用の retryablehttp クライアントを作る
func NewRetryClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	return client
}

func NewBackendGateway(client *retryablehttp.Client, backendBaseURL string) *BackendGateway {
	return &BackendGateway{
		client:         client,
		backendBaseURL: backendBaseURL,
	}
}

// Notify は payload を JSON で POST する。5xx と通信エラーは再試行される
func (g *BackendGateway) Notify(ctx context.Context, endpoint string, payload interface{}) error {
	url := g.backendBaseURL + endpoint

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to notify %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		zap.L().With(zap.Int("status", resp.StatusCode), zap.String("endpoint", endpoint)).Warn("Backend rejected notification")
		return fmt.Errorf("backend returned status %d for %s", resp.StatusCode, endpoint)
	}
	return nil
}
