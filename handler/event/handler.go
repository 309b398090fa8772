package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/metalego/contracts/handler/response"
	"github.com/metalego/contracts/model"
	"github.com/metalego/contracts/usecase/event"
)

type EventHandler struct {
	eventUC usecase.EventUsecase
}

func NewEventHandler(uc usecase.EventUsecase) *EventHandler {
	return &EventHandler{eventUC: uc}
}

func (h *EventHandler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/events", h.HandleListEvents).Methods("GET")
}

// HandleListEvents は確定済みイベントを返す。?type= で種類を絞り込める
func (h *EventHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	eventType := model.EventType(r.URL.Query().Get("type"))
	events := h.eventUC.ListEvents(r.Context(), eventType)
	if events == nil {
		events = []*model.ContractEvent{}
	}
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"count":  len(events),
		"events": events,
	})
}
