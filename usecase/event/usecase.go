package usecase

import (
	"context"

	"go.uber.org/zap"

	notify "github.com/metalego/contracts/gateway/notify"
	"github.com/metalego/contracts/model"
)

// EventSource は確定済みイベントの購読と参照を提供する
type EventSource interface {
	SubscribeEvents(ctx context.Context) (<-chan *model.ContractEvent, error)
	Events(eventType model.EventType) []*model.ContractEvent
}

// EventUsecase はコントラクトイベントの配信に関するビジネスロジック
type EventUsecase interface {
	// StartEventListener はイベントリスナーを開始し、イベントをメインバックエンドに通知
	StartEventListener(ctx context.Context) error

	// ListEvents は確定済みのイベントを返す
	ListEvents(ctx context.Context, eventType model.EventType) []*model.ContractEvent
}

type eventUsecase struct {
	source   EventSource
	notifier notify.NotifyGateway
}

// NewEventUsecase は notifier が nil の場合、通知を行わずイベントの参照のみ提供する
func NewEventUsecase(source EventSource, notifier notify.NotifyGateway) *eventUsecase {
	return &eventUsecase{
		source:   source,
		notifier: notifier,
	}
}

func (uc *eventUsecase) StartEventListener(ctx context.Context) error {
	if uc.notifier == nil {
		zap.L().Info("Backend notification disabled")
		return nil
	}

	eventChan, err := uc.source.SubscribeEvents(ctx)
	if err != nil {
		return err
	}

	go func() {
		for event := range eventChan {
			uc.handleEvent(ctx, event)
		}
	}()

	zap.L().Info("Contract event listener started")
	return nil
}

func (uc *eventUsecase) ListEvents(ctx context.Context, eventType model.EventType) []*model.ContractEvent {
	return uc.source.Events(eventType)
}

// handleEvent はイベントを処理してメインバックエンドに通知
func (uc *eventUsecase) handleEvent(ctx context.Context, event *model.ContractEvent) {
	endpoint, payload, ok := backendPayload(event)
	if !ok {
		zap.S().Debugf("Skipping event %s (tx: %s)", event.Type, event.TxHash)
		return
	}

	if err := uc.notifier.Notify(ctx, endpoint, payload); err != nil {
		zap.L().With(zap.Error(err), zap.String("type", string(event.Type)), zap.String("tx", event.TxHash)).Error("Failed to notify backend")
		return
	}
	zap.S().Infof("Successfully notified backend for event %s (tx: %s)", event.Type, event.TxHash)
}

// backendPayload はイベント種別ごとの通知先と本文を返す
func backendPayload(event *model.ContractEvent) (string, map[string]interface{}, bool) {
	switch event.Type {
	case model.EventSell:
		return "/api/v1/blockchain/sell", map[string]interface{}{
			"listing_id": event.ListingID,
			"token_id":   event.TokenID.Dec(),
			"asset":      event.Asset,
			"currency":   event.Currency,
			"seller":     event.Seller,
			"start_time": event.StartTime,
			"price_wei":  event.Price.Dec(),
			"tx_hash":    event.TxHash,
		}, true

	case model.EventBuy:
		return "/api/v1/blockchain/buy", map[string]interface{}{
			"listing_id": event.ListingID,
			"token_id":   event.TokenID.Dec(),
			"asset":      event.Asset,
			"buyer":      event.Buyer,
			"seller":     event.Seller,
			"price_wei":  event.Price.Dec(),
			"fee_wei":    event.Fee.Dec(),
			"currency":   event.Currency,
			"tx_hash":    event.TxHash,
		}, true

	case model.EventSaleCanceled:
		return "/api/v1/blockchain/sale-canceled", map[string]interface{}{
			"listing_id": event.ListingID,
			"token_id":   event.TokenID.Dec(),
			"tx_hash":    event.TxHash,
		}, true

	case model.EventMinted:
		return "/api/v1/blockchain/minted", map[string]interface{}{
			"tier":      event.Tier,
			"recipient": event.Recipient,
			"asset":     event.Asset,
			"token_id":  event.TokenID.Dec(),
			"price_wei": event.Price.Dec(),
			"tx_hash":   event.TxHash,
		}, true

	case model.EventWithdrawal:
		return "/api/v1/blockchain/withdrawal", map[string]interface{}{
			"sender":     event.Sender,
			"amount_wei": event.Amount.Dec(),
			"tx_hash":    event.TxHash,
		}, true

	default:
		return "", nil, false
	}
}
