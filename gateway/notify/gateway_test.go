package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestBackendGateway_Notify(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/blockchain/sell" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %s", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	gw := NewBackendGateway(NewRetryClient(), server.URL)
	err := gw.Notify(context.Background(), "/api/v1/blockchain/sell", map[string]interface{}{"listing_id": 7})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if got["listing_id"] != float64(7) {
		t.Errorf("unexpected payload: %v", got)
	}
}

func TestBackendGateway_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	gw := NewBackendGateway(NewRetryClient(), server.URL)
	if err := gw.Notify(context.Background(), "/x", map[string]string{}); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected 2 calls, got %d", n)
	}
}

func TestBackendGateway_ClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	gw := NewBackendGateway(NewRetryClient(), server.URL)
	if err := gw.Notify(context.Background(), "/x", nil); err == nil {
		t.Fatal("expected error for 400 response")
	}
}
