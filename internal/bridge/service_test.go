package bridge

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bulltickr/aoprism-sub000/internal/adapters"
	"github.com/bulltickr/aoprism-sub000/internal/aggregator"
	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
	"github.com/bulltickr/aoprism-sub000/internal/model"
	"github.com/bulltickr/aoprism-sub000/internal/security"
	"github.com/bulltickr/aoprism-sub000/internal/store"
)

const trustedContract = "0x43de2d77bf8027e25dbd179b491e8d64f38398aa"

type fakeAdapter struct {
	name         string
	chains       []string
	quote        model.Quote
	status       model.Status
	executeCalls int
}

func (f *fakeAdapter) Name() string              { return f.name }
func (f *fakeAdapter) SupportedChains() []string { return f.chains }

func (f *fakeAdapter) IsChainSupported(chain string) bool {
	return adapters.ChainSupported(f.chains, chain)
}

func (f *fakeAdapter) GetQuote(ctx context.Context, req model.TransferRequest) (model.Quote, error) {
	q := f.quote
	q.Adapter = f.name
	q.FromChain = req.FromChain
	q.ToChain = req.ToChain
	q.FromAmount = req.Amount
	return q, nil
}

func (f *fakeAdapter) ExecuteBridge(ctx context.Context, quote model.Quote, signer adapters.SigningCapability) (model.ExecutionHandle, error) {
	f.executeCalls++
	return model.ExecutionHandle{
		TxHash:     adapters.SyntheticTxHash(),
		Status:     model.StatusPending,
		Bridge:     f.name,
		Simulation: signer == nil,
	}, nil
}

func (f *fakeAdapter) GetStatus(ctx context.Context, handle model.ExecutionHandle) (model.Status, error) {
	return f.status, nil
}

func (f *fakeAdapter) PlatformLink(quote model.Quote) model.PlatformLink {
	return model.PlatformLink{URL: "https://example.com", Bridge: f.name}
}

func newTestService(t *testing.T, withStore bool, ad *fakeAdapter) *Service {
	t.Helper()
	agg := aggregator.New(aggregator.ScoreWeights{}, time.Second, ad)
	analyzer := security.New(nil, security.RiskPolicy{})
	analyzer.AddVerifiedContract(trustedContract)
	var handles *store.Store
	if withStore {
		dir := t.TempDir()
		var err error
		handles, err = store.Open(filepath.Join(dir, "h.db"), filepath.Join(dir, "h.lock"))
		if err != nil {
			t.Fatalf("store.Open: %v", err)
		}
		t.Cleanup(func() { _ = handles.Close() })
	}
	return New(agg, analyzer, handles)
}

func goodAdapter() *fakeAdapter {
	return &fakeAdapter{
		name:   "deBridge",
		chains: []string{"ethereum", "arbitrum"},
		quote: model.Quote{
			ToAmount:         "99",
			Fee:              model.Fee{Fixed: 1, Percentage: 0.1},
			EstimatedTimeSec: 300,
			SlippagePct:      0.5,
			ContractAddress:  trustedContract,
		},
		status: model.StatusCompleted,
	}
}

func testReq() model.TransferRequest {
	return model.TransferRequest{FromChain: "ethereum", ToChain: "arbitrum", FromToken: "USDC", ToToken: "USDC", Amount: "100"}
}

func TestExecuteSimulationPersistsHandle(t *testing.T) {
	svc := newTestService(t, true, goodAdapter())

	result, err := svc.Execute(context.Background(), testReq(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Handle.Simulation {
		t.Error("expected simulation handle")
	}
	if result.Handle.HandleID == "" {
		t.Fatal("handle id not assigned")
	}
	if result.Handle.CreatedAt == "" || result.Handle.UpdatedAt == "" {
		t.Error("timestamps not stamped")
	}

	refreshed, err := svc.StatusByID(context.Background(), result.Handle.HandleID)
	if err != nil {
		t.Fatalf("StatusByID: %v", err)
	}
	if refreshed.Status != model.StatusCompleted {
		t.Errorf("status = %s, want completed", refreshed.Status)
	}

	stored, err := svc.Handles("", 10)
	if err != nil {
		t.Fatalf("Handles: %v", err)
	}
	if len(stored) != 1 || stored[0].Status != model.StatusCompleted {
		t.Errorf("stored = %+v", stored)
	}
}

func TestExecuteBlocksUnsafeQuote(t *testing.T) {
	ad := goodAdapter()
	ad.quote.ContractAddress = "0x0000000000000000000000000000000000001234"
	svc := newTestService(t, false, ad)

	result, err := svc.Execute(context.Background(), testReq(), nil)
	if !aperr.HasCode(err, aperr.CodeBlocked) {
		t.Fatalf("err = %v, want CodeBlocked", err)
	}
	if result.Assessment.Safe {
		t.Error("assessment unexpectedly safe")
	}
	if !strings.Contains(err.Error(), "not verified") {
		t.Errorf("error does not carry warnings: %v", err)
	}
	if result.Handle.HandleID != "" {
		t.Error("handle issued despite block")
	}
}

func TestExecuteBlocksScamRecipient(t *testing.T) {
	scam := "0x00000000000000000000000000000000000bAd01"
	ad := goodAdapter()
	svc := newTestService(t, false, ad)
	svc.analyzer.AddScamAddress(scam)

	req := testReq()
	req.Recipient = scam
	ad.quote.ToAddress = scam
	_, err := svc.Execute(context.Background(), req, nil)
	if !aperr.HasCode(err, aperr.CodeBlocked) {
		t.Fatalf("err = %v, want CodeBlocked", err)
	}
}

func TestExecuteRejectsMalformedRecipient(t *testing.T) {
	ad := goodAdapter()
	svc := newTestService(t, false, ad)

	req := testReq()
	req.Recipient = "0xnothex"
	_, err := svc.Execute(context.Background(), req, nil)
	if !aperr.HasCode(err, aperr.CodeUsage) {
		t.Fatalf("err = %v, want CodeUsage", err)
	}
	if ad.executeCalls != 0 {
		t.Error("execute dispatched despite invalid recipient")
	}
}

func TestExecuteNoRoute(t *testing.T) {
	svc := newTestService(t, false, goodAdapter())
	req := testReq()
	req.FromChain = "solana"
	_, err := svc.Execute(context.Background(), req, nil)
	if !aperr.HasCode(err, aperr.CodeNoRoute) {
		t.Fatalf("err = %v, want CodeNoRoute", err)
	}
}

func TestStatusWithoutStore(t *testing.T) {
	svc := newTestService(t, false, goodAdapter())
	if _, err := svc.StatusByID(context.Background(), "bh-1"); !aperr.HasCode(err, aperr.CodeUsage) {
		t.Fatalf("err = %v, want CodeUsage", err)
	}

	handle := model.ExecutionHandle{Bridge: "deBridge", Status: model.StatusPending}
	refreshed, err := svc.Status(context.Background(), handle)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if refreshed.Status != model.StatusCompleted {
		t.Errorf("status = %s", refreshed.Status)
	}
}

func TestRoutesAndChains(t *testing.T) {
	svc := newTestService(t, false, goodAdapter())
	routes := svc.Routes("ethereum", "arbitrum")
	if len(routes) != 1 || !routes[0].Supported {
		t.Errorf("routes = %+v", routes)
	}
	if unsupported := svc.Routes("ethereum", "polygon"); len(unsupported) != 0 {
		t.Errorf("routes for unsupported pair = %+v, want none", unsupported)
	}
	chains := svc.Chains()
	if len(chains) != 2 {
		t.Errorf("chains = %v", chains)
	}
}
