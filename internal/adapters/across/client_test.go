package across

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bulltickr/aoprism-sub000/internal/httpx"
	"github.com/bulltickr/aoprism-sub000/internal/model"
)

func TestGetQuoteLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/suggested-fees" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("originChainId") != "1" || q.Get("destinationChainId") != "42161" {
			t.Errorf("unexpected chain ids: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"outputAmount":"499.7","totalRelayFee":{"total":"0.3","pct":"0.0006"},"estimatedFillTimeSec":120}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL(httpx.New(time.Second, 0), srv.URL)
	quote, err := c.GetQuote(context.Background(), model.TransferRequest{
		FromChain: "ethereum",
		ToChain:   "arbitrum",
		FromToken: "USDC",
		ToToken:   "USDC",
		Amount:    "500",
	})
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.Fallback {
		t.Fatal("expected live quote")
	}
	if quote.ToAmount != "499.7" {
		t.Errorf("toAmount = %q", quote.ToAmount)
	}
	if quote.Fee.Fixed != 0.3 {
		t.Errorf("fee fixed = %v, want 0.3", quote.Fee.Fixed)
	}
	if diff := quote.Fee.Percentage - 0.06; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("fee pct = %v, want 0.06", quote.Fee.Percentage)
	}
	if quote.EstimatedTimeSec != 120 {
		t.Errorf("estimatedTimeSec = %d, want 120", quote.EstimatedTimeSec)
	}
	if quote.ContractAddress != spokePoolByChain["ethereum"] {
		t.Errorf("contract = %q", quote.ContractAddress)
	}
}

func TestGetQuoteFallbackFastLane(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewWithBaseURL(httpx.New(time.Second, 0), srv.URL)
	quote, err := c.GetQuote(context.Background(), model.TransferRequest{
		FromChain: "ethereum",
		ToChain:   "arbitrum",
		FromToken: "ETH",
		ToToken:   "ETH",
		Amount:    "100",
	})
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if !quote.Fallback {
		t.Fatal("expected fallback quote")
	}
	// ethereum to arbitrum is the fast lane
	if quote.EstimatedTimeSec != 180 {
		t.Errorf("estimatedTimeSec = %d, want 180", quote.EstimatedTimeSec)
	}

	quote2, err := c.GetQuote(context.Background(), model.TransferRequest{
		FromChain: "polygon",
		ToChain:   "optimism",
		FromToken: "ETH",
		ToToken:   "ETH",
		Amount:    "100",
	})
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote2.EstimatedTimeSec != 600 {
		t.Errorf("estimatedTimeSec = %d, want 600", quote2.EstimatedTimeSec)
	}
}

func TestGetQuoteUnsupportedChain(t *testing.T) {
	c := New(httpx.New(time.Second, 0))
	_, err := c.GetQuote(context.Background(), model.TransferRequest{
		FromChain: "bsc",
		ToChain:   "ethereum",
		Amount:    "1",
	})
	if err == nil {
		t.Fatal("expected error: bsc is not an Across chain")
	}
}

func TestGetStatusByDepositHash(t *testing.T) {
	cases := []struct {
		name string
		want model.Status
	}{
		{"pending", model.StatusPending},
		{"filled", model.StatusCompleted},
		{"expired", model.StatusExpired},
		{"refunded", model.StatusCancelled},
		{"weird", model.StatusUnknown},
	}
	for _, tc := range cases {
		name := tc.name
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("depositTxHash") == "" {
				t.Error("missing depositTxHash")
			}
			w.Write([]byte(`{"status":"` + name + `"}`))
		}))
		c := NewWithBaseURL(httpx.New(time.Second, 0), srv.URL)
		got, err := c.GetStatus(context.Background(), model.ExecutionHandle{TxHash: "0xfeed"})
		srv.Close()
		if err != nil {
			t.Fatalf("GetStatus(%s): %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("GetStatus(%s) = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestGetStatusWithoutHash(t *testing.T) {
	c := New(httpx.New(time.Second, 0))
	got, err := c.GetStatus(context.Background(), model.ExecutionHandle{})
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if got != model.StatusUnknown {
		t.Errorf("status = %s, want unknown", got)
	}
}

func TestPlatformLink(t *testing.T) {
	c := New(httpx.New(time.Second, 0))
	link := c.PlatformLink(model.Quote{FromChain: "polygon", ToChain: "optimism"})
	if !strings.Contains(link.URL, "originChainId=137") || !strings.Contains(link.URL, "destinationChainId=10") {
		t.Errorf("url = %q", link.URL)
	}
}
