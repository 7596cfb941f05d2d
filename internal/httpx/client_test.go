package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
)

func TestDoJSONRetriesServerError(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&count, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"x"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 1)
	var out map[string]any
	if err := GetJSON(context.Background(), client, srv.URL, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("unexpected response: %#v", out)
	}
}

func TestDoJSONMapsStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		code   aperr.Code
	}{
		{http.StatusUnauthorized, aperr.CodeAuth},
		{http.StatusTooManyRequests, aperr.CodeRateLimited},
		{http.StatusNotFound, aperr.CodeUnavailable},
		{http.StatusBadGateway, aperr.CodeUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := New(time.Second, 0)
		var out map[string]any
		err := GetJSON(context.Background(), client, srv.URL, &out)
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if !aperr.HasCode(err, tc.code) {
			t.Fatalf("status %d: unexpected error code: %v", tc.status, err)
		}
	}
}

func TestDoJSONRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"broken":`))
	}))
	defer srv.Close()

	client := New(time.Second, 0)
	var out map[string]any
	err := GetJSON(context.Background(), client, srv.URL, &out)
	if !aperr.HasCode(err, aperr.CodeUnavailable) {
		t.Fatalf("expected unavailable error for malformed JSON, got %v", err)
	}
}
