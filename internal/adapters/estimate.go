package adapters

import (
	"strconv"

	"github.com/bulltickr/aoprism-sub000/internal/model"
)

// FeeTier maps a minimum transfer amount to the fee charged at that
// size. Tiers are evaluated highest threshold first.
type FeeTier struct {
	MinAmount  float64
	Fixed      float64
	Percentage float64
}

// FallbackTables hold the per-adapter constants behind the local quote
// estimate. The figures are rough route placeholders, not market data;
// they exist so a provider outage degrades quote quality instead of
// aborting the request.
type FallbackTables struct {
	Rates       map[string]float64
	DefaultRate float64
	FeeTiers    []FeeTier
	DefaultFee  model.Fee
	Times       map[string]map[string]int64
	DefaultTime int64
	SlippagePct float64
}

// Estimate prices a transfer from static tables. It is the named
// fallback path taken whenever the live provider query fails, and is
// deterministic for a given request.
func Estimate(req model.TransferRequest, t FallbackTables) model.Quote {
	amount, _ := strconv.ParseFloat(req.Amount, 64)

	rate, ok := t.Rates[req.ToChain]
	if !ok {
		rate = t.DefaultRate
	}
	toAmount := strconv.FormatFloat(amount*rate, 'f', -1, 64)

	fee := t.DefaultFee
	for _, tier := range t.FeeTiers {
		if amount > tier.MinAmount {
			fee = model.Fee{Fixed: tier.Fixed, Percentage: tier.Percentage, Token: req.FromToken}
			break
		}
	}
	if fee.Token == "" {
		fee.Token = req.FromToken
	}

	return model.Quote{
		FromChain:        req.FromChain,
		ToChain:          req.ToChain,
		FromToken:        req.FromToken,
		ToToken:          req.ToToken,
		FromAmount:       req.Amount,
		ToAmount:         toAmount,
		Fee:              fee,
		EstimatedTimeSec: EstimateTime(req.FromChain, req.ToChain, t),
		SlippagePct:      t.SlippagePct,
		ToAddress:        req.Recipient,
		Fallback:         true,
	}
}

func EstimateTime(fromChain, toChain string, t FallbackTables) int64 {
	if row, ok := t.Times[fromChain]; ok {
		if v, ok := row[toChain]; ok {
			return v
		}
	}
	return t.DefaultTime
}
