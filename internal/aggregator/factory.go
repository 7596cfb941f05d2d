package aggregator

import (
	"fmt"
	"strings"
	"time"

	"github.com/bulltickr/aoprism-sub000/internal/adapters"
	"github.com/bulltickr/aoprism-sub000/internal/adapters/across"
	"github.com/bulltickr/aoprism-sub000/internal/adapters/debridge"
	"github.com/bulltickr/aoprism-sub000/internal/adapters/layerzero"
	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
	"github.com/bulltickr/aoprism-sub000/internal/httpx"
)

// NewAdapter resolves an adapter by its registry name or alias.
func NewAdapter(name string, httpClient *httpx.Client) (adapters.Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debridge":
		return debridge.New(httpClient), nil
	case "layerzero", "lz":
		return layerzero.New(httpClient), nil
	case "across":
		return across.New(httpClient), nil
	default:
		return nil, aperr.New(aperr.CodeUnknownAdapter, fmt.Sprintf("unknown bridge adapter %q", name))
	}
}

// BaseURLs optionally redirect each provider, mainly for tests and
// self-hosted proxies.
type BaseURLs struct {
	DeBridge  string
	LayerZero string
	Across    string
}

// NewDefault builds an aggregator over the three stock adapters.
func NewDefault(httpClient *httpx.Client, weights ScoreWeights, quoteTimeout time.Duration, urls BaseURLs) *Aggregator {
	return New(weights, quoteTimeout,
		debridge.NewWithBaseURL(httpClient, urls.DeBridge),
		layerzero.NewWithBaseURL(httpClient, urls.LayerZero),
		across.NewWithBaseURL(httpClient, urls.Across),
	)
}
