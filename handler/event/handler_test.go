package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/metalego/contracts/model"
)

type fakeEventUsecase struct {
	events []*model.ContractEvent
	asked  model.EventType
}

func (f *fakeEventUsecase) StartEventListener(ctx context.Context) error {
	return nil
}

func (f *fakeEventUsecase) ListEvents(ctx context.Context, eventType model.EventType) []*model.ContractEvent {
	f.asked = eventType
	var out []*model.ContractEvent
	for _, ev := range f.events {
		if eventType == "" || ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestHandleListEvents(t *testing.T) {
	uc := &fakeEventUsecase{events: []*model.ContractEvent{
		{Type: model.EventSell, ListingID: 1},
		{Type: model.EventBuy, ListingID: 1},
	}}
	router := mux.NewRouter()
	NewEventHandler(uc).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/events?type=Buy", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if uc.asked != model.EventBuy {
		t.Errorf("expected filter Buy, got %q", uc.asked)
	}

	var body struct {
		Count  int                    `json:"count"`
		Events []*model.ContractEvent `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Count != 1 || body.Events[0].Type != model.EventBuy {
		t.Errorf("unexpected body: %+v", body)
	}

	// 該当なしでも空配列を返す
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/events?type=Minted", nil))
	if got := rec.Body.String(); got != "{\"count\":0,\"events\":[]}\n" {
		t.Errorf("unexpected empty body: %s", got)
	}
}
