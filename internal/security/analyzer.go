package security

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/bulltickr/aoprism-sub000/internal/httpx"
	"github.com/bulltickr/aoprism-sub000/internal/model"
	"github.com/bulltickr/aoprism-sub000/internal/registry"
)

// RiskPolicy holds the thresholds and penalties behind risk analysis.
// The figures are policy constants, not derived from market data.
type RiskPolicy struct {
	LargeAmount        float64 `json:"large_amount"`
	LargeAmountPoints  int     `json:"large_amount_points"`
	HighFeePct         float64 `json:"high_fee_pct"`
	HighFeePoints      int     `json:"high_fee_points"`
	HighSlippagePct    float64 `json:"high_slippage_pct"`
	HighSlippagePoints int     `json:"high_slippage_points"`
	SlowTimeSec        int64   `json:"slow_time_s"`
	SlowTimePoints     int     `json:"slow_time_points"`
	NoAdapterPoints    int     `json:"no_adapter_points"`
	SafeScoreBelow     int     `json:"safe_score_below"`
}

func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		LargeAmount:        100000,
		LargeAmountPoints:  20,
		HighFeePct:         1,
		HighFeePoints:      10,
		HighSlippagePct:    3,
		HighSlippagePoints: 15,
		SlowTimeSec:        3600,
		SlowTimePoints:     5,
		NoAdapterPoints:    10,
		SafeScoreBelow:     30,
	}
}

// Analyzer evaluates quotes for contract trust, recipient trust and
// quantitative risk. The allow and deny sets are instance state, safe
// for concurrent use and mutable at runtime.
type Analyzer struct {
	http         *httpx.Client
	policy       RiskPolicy
	explorerBase string

	mu       sync.RWMutex
	verified map[string]bool
	scam     map[string]bool
}

func New(httpClient *httpx.Client, policy RiskPolicy) *Analyzer {
	if policy == (RiskPolicy{}) {
		policy = DefaultRiskPolicy()
	}
	return &Analyzer{
		http:     httpClient,
		policy:   policy,
		verified: make(map[string]bool),
		scam:     make(map[string]bool),
	}
}

// NewWithExplorerBase routes every ABI lookup through one explorer
// host instead of the per-chain table, for tests and proxies.
func NewWithExplorerBase(httpClient *httpx.Client, policy RiskPolicy, base string) *Analyzer {
	a := New(httpClient, policy)
	a.explorerBase = base
	return a
}

func (a *Analyzer) AddVerifiedContract(address string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verified[strings.ToLower(address)] = true
}

func (a *Analyzer) RemoveVerifiedContract(address string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.verified, strings.ToLower(address))
}

func (a *Analyzer) AddScamAddress(address string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scam[strings.ToLower(address)] = true
}

func (a *Analyzer) IsContractVerified(address string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.verified[strings.ToLower(address)]
}

func (a *Analyzer) IsScamAddress(address string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.scam[strings.ToLower(address)]
}

// VerifyTransaction runs the contract, scam and risk checks
// concurrently and combines them into a single verdict. Assessments
// are computed fresh per call; risk inputs vary per quote.
func (a *Analyzer) VerifyTransaction(ctx context.Context, quote model.Quote) model.RiskAssessment {
	var (
		wg         sync.WaitGroup
		contractOK bool
		notScam    bool
		risk       riskResult
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		contractOK = a.verifyContract(ctx, quote)
	}()
	go func() {
		defer wg.Done()
		notScam = !a.IsScamAddress(quote.ToAddress)
	}()
	go func() {
		defer wg.Done()
		risk = analyzeRisk(quote, a.policy)
	}()
	wg.Wait()

	return model.RiskAssessment{
		Safe:             contractOK && notScam && risk.score < a.policy.SafeScoreBelow,
		ContractVerified: contractOK,
		ScamCheckPassed:  notScam,
		RiskScore:        risk.score,
		RiskFactors:      risk.factors,
		Warnings:         buildWarnings(contractOK, notScam, risk),
		Recommendations:  buildRecommendations(quote),
	}
}

// verifyContract asks the chain explorer for the contract's ABI. An
// unreachable explorer is not a verdict, so the lookup degrades to the
// local allow list.
func (a *Analyzer) verifyContract(ctx context.Context, quote model.Quote) bool {
	address := quote.ContractAddress
	if address == "" {
		address = quote.ToAddress
	}
	if address == "" {
		return false
	}

	explorer, ok := a.explorerBase, a.explorerBase != ""
	if !ok {
		explorer, ok = registry.ExplorerAPI(chainIDFromQuote(quote))
	}
	if ok && a.http != nil {
		var resp struct {
			Status string `json:"status"`
			Result string `json:"result"`
		}
		vals := url.Values{}
		vals.Set("module", "contract")
		vals.Set("action", "getabi")
		vals.Set("address", address)
		err := httpx.GetJSON(ctx, a.http, explorer+"/api?"+vals.Encode(), &resp)
		if err == nil {
			return resp.Status == "1" && resp.Result != "" && resp.Result != "Contract source code not verified"
		}
	}

	return a.IsContractVerified(address)
}

func chainIDFromQuote(quote model.Quote) int64 {
	if id, ok := registry.ChainID(quote.FromChain); ok {
		return id
	}
	if id, ok := registry.ChainID(quote.ToChain); ok {
		return id
	}
	return 1
}

type riskResult struct {
	score   int
	factors []string
}

func analyzeRisk(quote model.Quote, p RiskPolicy) riskResult {
	factors := []string{}
	score := 0

	amount, _ := strconv.ParseFloat(quote.FromAmount, 64)
	if amount > p.LargeAmount {
		score += p.LargeAmountPoints
		factors = append(factors, "Large transaction amount")
	}
	if quote.Fee.Percentage > p.HighFeePct {
		score += p.HighFeePoints
		factors = append(factors, "High fee percentage")
	}
	if quote.SlippagePct > p.HighSlippagePct {
		score += p.HighSlippagePoints
		factors = append(factors, "High slippage tolerance")
	}
	if quote.EstimatedTimeSec > p.SlowTimeSec {
		score += p.SlowTimePoints
		factors = append(factors, "Long processing time")
	}
	if quote.Adapter == "" {
		score += p.NoAdapterPoints
		factors = append(factors, "Unknown bridge adapter")
	}

	if score > 100 {
		score = 100
	}
	return riskResult{score: score, factors: factors}
}

func buildWarnings(contractOK, notScam bool, risk riskResult) []string {
	warnings := []string{}
	if !contractOK {
		warnings = append(warnings, "Bridge contract not verified - exercise caution")
	}
	if !notScam {
		warnings = append(warnings, "WARNING: Recipient address flagged as potentially suspicious")
	}
	if risk.score > 20 {
		warnings = append(warnings, "High risk transaction - review carefully before proceeding")
	}
	for _, f := range risk.factors {
		if f == "Large transaction amount" {
			warnings = append(warnings, "Consider breaking up large transactions")
			break
		}
	}
	return warnings
}

func buildRecommendations(quote model.Quote) []string {
	recommendations := []string{}
	if quote.SlippagePct > 1 {
		recommendations = append(recommendations, "Consider lowering slippage tolerance")
	}
	if quote.Fee.Percentage > 0.5 {
		recommendations = append(recommendations, "Compare fees across different bridges")
	}
	if quote.EstimatedTimeSec > 1800 {
		recommendations = append(recommendations, "Consider a faster bridge for time-sensitive transfers")
	}
	recommendations = append(recommendations, "Always verify the destination address before confirming")
	return recommendations
}

// GetSecurityScore is a quick penalty-subtraction score for display.
// It consults only local state and never gates execution.
func (a *Analyzer) GetSecurityScore(quote model.Quote) int {
	score := 100
	if !a.IsContractVerified(quote.ContractAddress) {
		score -= 20
	}
	if a.IsScamAddress(quote.ToAddress) {
		score -= 50
	}
	amount, _ := strconv.ParseFloat(quote.FromAmount, 64)
	if amount > 10000 {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	return score
}
