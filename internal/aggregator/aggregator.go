package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bulltickr/aoprism-sub000/internal/adapters"
	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
	"github.com/bulltickr/aoprism-sub000/internal/model"
)

// ScoreWeights control the composite quote score. They should sum to 1
// but the scorer does not enforce that; callers tuning weights own the
// normalization.
type ScoreWeights struct {
	Receive  float64 `json:"receive"`
	Fee      float64 `json:"fee"`
	Time     float64 `json:"time"`
	Slippage float64 `json:"slippage"`
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Receive: 0.4, Fee: 0.3, Time: 0.2, Slippage: 0.1}
}

const defaultQuoteTimeout = 10 * time.Second

// Aggregator fans quote requests out to its adapter set and ranks the
// results. The set is mutable at runtime; all methods are safe for
// concurrent use.
type Aggregator struct {
	mu           sync.RWMutex
	adapters     []adapters.Adapter
	weights      ScoreWeights
	quoteTimeout time.Duration
}

func New(weights ScoreWeights, quoteTimeout time.Duration, set ...adapters.Adapter) *Aggregator {
	if quoteTimeout <= 0 {
		quoteTimeout = defaultQuoteTimeout
	}
	zero := ScoreWeights{}
	if weights == zero {
		weights = DefaultScoreWeights()
	}
	return &Aggregator{adapters: set, weights: weights, quoteTimeout: quoteTimeout}
}

func (a *Aggregator) Add(ad adapters.Adapter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.adapters {
		if existing.Name() == ad.Name() {
			a.adapters[i] = ad
			return
		}
	}
	a.adapters = append(a.adapters, ad)
}

func (a *Aggregator) Remove(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, ad := range a.adapters {
		if ad.Name() == name {
			a.adapters = append(a.adapters[:i], a.adapters[i+1:]...)
			return true
		}
	}
	return false
}

func (a *Aggregator) Get(name string) (adapters.Adapter, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, ad := range a.adapters {
		if ad.Name() == name {
			return ad, true
		}
	}
	return nil, false
}

func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.adapters))
	for _, ad := range a.adapters {
		names = append(names, ad.Name())
	}
	return names
}

func (a *Aggregator) snapshot() ([]adapters.Adapter, ScoreWeights, time.Duration) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	set := make([]adapters.Adapter, len(a.adapters))
	copy(set, a.adapters)
	return set, a.weights, a.quoteTimeout
}

// GetQuotes queries every adapter supporting both chains in parallel
// and returns the scored results in descending score order. A slow,
// failing, or panicking adapter costs its own slot only; the rest of
// the fan-out is unaffected.
func (a *Aggregator) GetQuotes(ctx context.Context, req model.TransferRequest) []model.ScoredQuote {
	set, weights, timeout := a.snapshot()

	results := make([]model.ScoredQuote, len(set))
	filled := make([]bool, len(set))
	var wg sync.WaitGroup
	for i, ad := range set {
		if !ad.IsChainSupported(req.FromChain) || !ad.IsChainSupported(req.ToChain) {
			continue
		}
		wg.Add(1)
		go func(i int, ad adapters.Adapter) {
			defer wg.Done()
			defer func() {
				// a panicking adapter forfeits its slot
				_ = recover()
			}()
			qctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			quote, err := ad.GetQuote(qctx, req)
			if err != nil {
				return
			}
			results[i] = model.ScoredQuote{
				Adapter: quote.Adapter,
				Quote:   quote,
				Score:   Score(quote, weights),
			}
			filled[i] = true
		}(i, ad)
	}
	wg.Wait()

	scored := make([]model.ScoredQuote, 0, len(set))
	for i := range results {
		if filled[i] {
			scored = append(scored, results[i])
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// Score weighs received amount, fees, speed and slippage into a single
// comparable figure, clamped at zero.
func Score(q model.Quote, w ScoreWeights) float64 {
	from, _ := strconv.ParseFloat(q.FromAmount, 64)
	to, _ := strconv.ParseFloat(q.ToAmount, 64)

	var receiveScore, feeScore float64
	if from > 0 {
		receiveScore = to / from
		feeScore = 1 - q.Fee.Fixed/from - q.Fee.Percentage/100
	}

	minutes := float64(q.EstimatedTimeSec) / 60
	if minutes < 1 {
		minutes = 1
	}
	timeScore := 1 / minutes

	slippageScore := 1 - q.SlippagePct/100

	score := receiveScore*w.Receive + feeScore*w.Fee + timeScore*w.Time + slippageScore*w.Slippage
	if score < 0 {
		return 0
	}
	return score
}

func (a *Aggregator) FindBestQuote(ctx context.Context, req model.TransferRequest) (model.ScoredQuote, error) {
	quotes := a.GetQuotes(ctx, req)
	if len(quotes) == 0 {
		return model.ScoredQuote{}, aperr.New(aperr.CodeNoRoute, fmt.Sprintf("no route available from %s to %s", req.FromChain, req.ToChain))
	}
	return quotes[0], nil
}

// CompareRoutes lists the registered adapters that support both sides
// of the chain pair. It performs no network I/O.
func (a *Aggregator) CompareRoutes(fromChain, toChain string) []model.RouteOption {
	set, _, _ := a.snapshot()
	options := make([]model.RouteOption, 0, len(set))
	for _, ad := range set {
		if !ad.IsChainSupported(fromChain) || !ad.IsChainSupported(toChain) {
			continue
		}
		options = append(options, model.RouteOption{
			Adapter:   ad.Name(),
			Supported: true,
		})
	}
	return options
}

// Execute dispatches a previously obtained quote through its adapter.
// The adapter set may have changed since the quote was produced, so the
// owning adapter is resolved again by name.
func (a *Aggregator) Execute(ctx context.Context, quote model.Quote, signer adapters.SigningCapability) (model.ExecutionHandle, error) {
	ad, ok := a.Get(quote.Adapter)
	if !ok {
		return model.ExecutionHandle{}, aperr.New(aperr.CodeUnknownAdapter, fmt.Sprintf("adapter %q is not registered", quote.Adapter))
	}
	return ad.ExecuteBridge(ctx, quote, signer)
}

func (a *Aggregator) ExecuteBestQuote(ctx context.Context, req model.TransferRequest, signer adapters.SigningCapability) (model.ScoredQuote, model.ExecutionHandle, error) {
	best, err := a.FindBestQuote(ctx, req)
	if err != nil {
		return model.ScoredQuote{}, model.ExecutionHandle{}, err
	}
	handle, err := a.Execute(ctx, best.Quote, signer)
	if err != nil {
		return best, model.ExecutionHandle{}, err
	}
	return best, handle, nil
}

// Status resolves the adapter that issued the handle and polls it.
func (a *Aggregator) Status(ctx context.Context, handle model.ExecutionHandle) (model.Status, error) {
	ad, ok := a.Get(handle.Bridge)
	if !ok {
		return model.StatusUnknown, aperr.New(aperr.CodeUnknownAdapter, fmt.Sprintf("adapter %q is not registered", handle.Bridge))
	}
	return ad.GetStatus(ctx, handle)
}

func (a *Aggregator) PlatformLink(quote model.Quote) (model.PlatformLink, error) {
	ad, ok := a.Get(quote.Adapter)
	if !ok {
		return model.PlatformLink{}, aperr.New(aperr.CodeUnknownAdapter, fmt.Sprintf("adapter %q is not registered", quote.Adapter))
	}
	return ad.PlatformLink(quote), nil
}

// SupportedChains is the union across the adapter set, sorted.
func (a *Aggregator) SupportedChains() []string {
	set, _, _ := a.snapshot()
	seen := map[string]bool{}
	for _, ad := range set {
		for _, chain := range ad.SupportedChains() {
			seen[chain] = true
		}
	}
	union := make([]string, 0, len(seen))
	for chain := range seen {
		union = append(union, chain)
	}
	sort.Strings(union)
	return union
}

func (a *Aggregator) IsChainSupported(chain string) bool {
	set, _, _ := a.snapshot()
	for _, ad := range set {
		if ad.IsChainSupported(chain) {
			return true
		}
	}
	return false
}
