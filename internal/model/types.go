package model

import "encoding/json"

// Status is the canonical transfer state shared by every adapter.
// Provider-specific codes are mapped onto this set.
type Status string

const (
	StatusPending       Status = "pending"
	StatusCompleted     Status = "completed"
	StatusExpired       Status = "expired"
	StatusCancelled     Status = "cancelled"
	StatusPartialFilled Status = "partial_filled"
	StatusFailed        Status = "failed"
	StatusUnknown       Status = "unknown"
)

// TransferRequest describes a cross-chain transfer to be quoted.
// Amount is a decimal string; Recipient is optional and defaults to the
// signing address at execution time.
type TransferRequest struct {
	FromChain string `json:"from_chain"`
	ToChain   string `json:"to_chain"`
	FromToken string `json:"from_token"`
	ToToken   string `json:"to_token"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient,omitempty"`
}

type Fee struct {
	Fixed      float64 `json:"fixed"`
	Percentage float64 `json:"percentage"`
	Token      string  `json:"token,omitempty"`
}

// Quote is a priced estimate from one adapter. Immutable once produced;
// ToAmount and Fee are always populated, via live provider data when the
// provider is reachable and a local fallback estimate otherwise.
type Quote struct {
	Adapter          string          `json:"adapter"`
	FromChain        string          `json:"from_chain"`
	ToChain          string          `json:"to_chain"`
	FromToken        string          `json:"from_token"`
	ToToken          string          `json:"to_token"`
	FromAmount       string          `json:"from_amount"`
	ToAmount         string          `json:"to_amount"`
	Fee              Fee             `json:"fee"`
	EstimatedTimeSec int64           `json:"estimated_time_s"`
	SlippagePct      float64         `json:"slippage_pct"`
	ContractAddress  string          `json:"contract_address,omitempty"`
	ToAddress        string          `json:"to_address,omitempty"`
	Fallback         bool            `json:"fallback,omitempty"`
	Raw              json.RawMessage `json:"raw,omitempty"`
}

// ScoredQuote pairs a quote with its composite score. Created per
// aggregation call and discarded after selection.
type ScoredQuote struct {
	Adapter string  `json:"adapter"`
	Quote   Quote   `json:"quote"`
	Score   float64 `json:"score"`
}

type RouteOption struct {
	Adapter   string `json:"adapter"`
	Supported bool   `json:"supported"`
}

// PlatformLink is a deep link into the provider's own web UI, prefilled
// with the quoted route.
type PlatformLink struct {
	URL    string `json:"url"`
	Label  string `json:"label"`
	Bridge string `json:"bridge"`
}

// ExecutionHandle is the result of dispatching a transfer. Execution
// failures are absorbed into the handle (Error set, status pending)
// rather than returned, so callers always receive one.
type ExecutionHandle struct {
	HandleID   string `json:"handle_id,omitempty"`
	TxHash     string `json:"tx_hash,omitempty"`
	Status     Status `json:"status"`
	Bridge     string `json:"bridge"`
	OrderID    string `json:"order_id,omitempty"`
	Simulation bool   `json:"simulation"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// RiskAssessment is the security verdict for a single quote. Computed
// fresh per verification call, never cached.
type RiskAssessment struct {
	Safe             bool     `json:"safe"`
	ContractVerified bool     `json:"contract_verified"`
	ScamCheckPassed  bool     `json:"scam_check_passed"`
	RiskScore        int      `json:"risk_score"`
	RiskFactors      []string `json:"risk_factors"`
	Warnings         []string `json:"warnings"`
	Recommendations  []string `json:"recommendations"`
}
