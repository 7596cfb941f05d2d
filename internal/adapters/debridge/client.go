package debridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bulltickr/aoprism-sub000/internal/adapters"
	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
	"github.com/bulltickr/aoprism-sub000/internal/httpx"
	"github.com/bulltickr/aoprism-sub000/internal/model"
	"github.com/bulltickr/aoprism-sub000/internal/registry"
)

const (
	adapterName = "deBridge"
	defaultBase = "https://api.debridge.finance/v1.0"

	// DeBridgeGate proxy, identical address on every EVM deployment.
	bridgeContract = "0x43de2d77bf8027e25dbd179b491e8d64f38398aa"
)

var supportedChains = []string{"ethereum", "bsc", "polygon", "arbitrum", "avalanche", "optimism", "arweave"}

// deBridge wire chain ids; arweave has no API coverage so quotes for it
// always take the fallback path.
var apiChainIDs = map[string]int64{
	"ethereum":  1,
	"bsc":       56,
	"polygon":   137,
	"arbitrum":  42161,
	"optimism":  10,
	"avalanche": 43114,
	"base":      8453,
}

var fallbackTables = adapters.FallbackTables{
	Rates: map[string]float64{
		"ethereum":  1,
		"bsc":       0.998,
		"polygon":   0.997,
		"arbitrum":  0.999,
		"avalanche": 0.996,
		"optimism":  0.998,
	},
	DefaultRate: 0.99,
	FeeTiers: []adapters.FeeTier{
		{MinAmount: 10000, Fixed: 5, Percentage: 0.1},
		{MinAmount: 1000, Fixed: 3, Percentage: 0.2},
	},
	DefaultFee: model.Fee{Fixed: 1, Percentage: 0.3},
	Times: map[string]map[string]int64{
		"ethereum": {"bsc": 300, "polygon": 600, "arbitrum": 900},
		"bsc":      {"ethereum": 300, "polygon": 600, "arbitrum": 900},
		"polygon":  {"ethereum": 600, "bsc": 600, "arbitrum": 300},
		"arbitrum": {"ethereum": 900, "bsc": 900, "polygon": 300},
	},
	DefaultTime: 600,
	SlippagePct: 0.5,
}

type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(httpClient *httpx.Client) *Client {
	return &Client{http: httpClient, baseURL: defaultBase}
}

func NewWithBaseURL(httpClient *httpx.Client, baseURL string) *Client {
	c := New(httpClient)
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

func (c *Client) Name() string { return adapterName }

func (c *Client) SupportedChains() []string {
	out := make([]string, len(supportedChains))
	copy(out, supportedChains)
	return out
}

func (c *Client) IsChainSupported(chain string) bool {
	return adapters.ChainSupported(supportedChains, registry.NormalizeChain(chain))
}

func (c *Client) GetQuote(ctx context.Context, req model.TransferRequest) (model.Quote, error) {
	req.FromChain = registry.NormalizeChain(req.FromChain)
	req.ToChain = registry.NormalizeChain(req.ToChain)
	if !c.IsChainSupported(req.FromChain) {
		return model.Quote{}, aperr.New(aperr.CodeUnsupported, fmt.Sprintf("%s does not support chain %s", adapterName, req.FromChain))
	}
	if !c.IsChainSupported(req.ToChain) {
		return model.Quote{}, aperr.New(aperr.CodeUnsupported, fmt.Sprintf("%s does not support chain %s", adapterName, req.ToChain))
	}

	quote, err := c.liveQuote(ctx, req)
	if err != nil {
		quote = adapters.Estimate(req, fallbackTables)
	}
	quote.Adapter = adapterName
	quote.ContractAddress = bridgeContract
	return quote, nil
}

type quoteResponse struct {
	ToAmount          json.Number `json:"toAmount"`
	FixedFee          float64     `json:"fixedFee"`
	PriceImpact       float64     `json:"priceImpact"`
	EstimatedDuration int64       `json:"estimatedDuration"`
	SlippageTolerance float64     `json:"slippageTolerance"`
	ErrorCode         int         `json:"errorCode"`
	ErrorMessage      string      `json:"errorMessage"`
}

func (c *Client) liveQuote(ctx context.Context, req model.TransferRequest) (model.Quote, error) {
	fromChainID, ok := apiChainIDs[registry.NormalizeChain(req.FromChain)]
	if !ok {
		return model.Quote{}, aperr.New(aperr.CodeUnavailable, "chain not covered by deBridge API")
	}
	toChainID, ok := apiChainIDs[registry.NormalizeChain(req.ToChain)]
	if !ok {
		return model.Quote{}, aperr.New(aperr.CodeUnavailable, "chain not covered by deBridge API")
	}

	vals := url.Values{}
	vals.Set("fromChainId", strconv.FormatInt(fromChainID, 10))
	vals.Set("toChainId", strconv.FormatInt(toChainID, 10))
	vals.Set("fromTokenAddress", registry.ResolveTokenAddress(req.FromChain, req.FromToken))
	vals.Set("toTokenAddress", registry.ResolveTokenAddress(req.ToChain, req.ToToken))
	vals.Set("amount", req.Amount)
	vals.Set("fromAddress", registry.NativeTokenAddress)

	var resp quoteResponse
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+"/quote?"+vals.Encode(), &resp); err != nil {
		return model.Quote{}, err
	}
	if resp.ErrorCode != 0 || resp.ErrorMessage != "" {
		return model.Quote{}, aperr.New(aperr.CodeUnavailable, fmt.Sprintf("deBridge quote error %d: %s", resp.ErrorCode, resp.ErrorMessage))
	}
	if resp.ToAmount.String() == "" {
		return model.Quote{}, aperr.New(aperr.CodeUnavailable, "deBridge quote missing output amount")
	}

	estimated := resp.EstimatedDuration
	if estimated == 0 {
		estimated = adapters.EstimateTime(req.FromChain, req.ToChain, fallbackTables)
	}
	slippage := resp.SlippageTolerance
	if slippage == 0 {
		slippage = fallbackTables.SlippagePct
	}
	raw, _ := json.Marshal(resp)

	return model.Quote{
		FromChain:        req.FromChain,
		ToChain:          req.ToChain,
		FromToken:        req.FromToken,
		ToToken:          req.ToToken,
		FromAmount:       req.Amount,
		ToAmount:         resp.ToAmount.String(),
		Fee:              model.Fee{Fixed: resp.FixedFee, Percentage: resp.PriceImpact, Token: req.FromToken},
		EstimatedTimeSec: estimated,
		SlippagePct:      slippage,
		ToAddress:        req.Recipient,
		Raw:              raw,
	}, nil
}

type createTxResponse struct {
	OrderID string `json:"orderId"`
	Tx      struct {
		To       string `json:"to"`
		Data     string `json:"data"`
		Value    string `json:"value"`
		ChainID  int64  `json:"chainId"`
		GasLimit uint64 `json:"gasLimit"`
	} `json:"tx"`
}

func (c *Client) ExecuteBridge(ctx context.Context, quote model.Quote, signer adapters.SigningCapability) (model.ExecutionHandle, error) {
	if signer == nil {
		return model.ExecutionHandle{
			TxHash:     adapters.SyntheticTxHash(),
			Status:     model.StatusPending,
			Bridge:     adapterName,
			Simulation: true,
		}, nil
	}

	descriptor, orderID, err := c.buildTx(ctx, quote, signer.Address())
	if err != nil {
		return failedHandle(orderID, err), nil
	}
	signed, err := signer.Sign(ctx, descriptor)
	if err != nil {
		return failedHandle(orderID, err), nil
	}
	hash, err := signer.Broadcast(ctx, signed)
	if err != nil {
		return failedHandle(orderID, err), nil
	}
	return model.ExecutionHandle{
		TxHash:  hash,
		Status:  model.StatusPending,
		Bridge:  adapterName,
		OrderID: orderID,
	}, nil
}

func (c *Client) buildTx(ctx context.Context, quote model.Quote, sender string) (adapters.TxDescriptor, string, error) {
	fromChainID, ok := apiChainIDs[registry.NormalizeChain(quote.FromChain)]
	if !ok {
		return adapters.TxDescriptor{}, "", aperr.New(aperr.CodeUnavailable, "chain not covered by deBridge API")
	}
	toChainID := apiChainIDs[registry.NormalizeChain(quote.ToChain)]

	recipient := quote.ToAddress
	if recipient == "" {
		recipient = sender
	}
	vals := url.Values{}
	vals.Set("fromChainId", strconv.FormatInt(fromChainID, 10))
	vals.Set("toChainId", strconv.FormatInt(toChainID, 10))
	vals.Set("fromTokenAddress", registry.ResolveTokenAddress(quote.FromChain, quote.FromToken))
	vals.Set("toTokenAddress", registry.ResolveTokenAddress(quote.ToChain, quote.ToToken))
	vals.Set("amount", quote.FromAmount)
	vals.Set("fromAddress", sender)
	vals.Set("receiver", recipient)

	var resp createTxResponse
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+"/order/create-tx?"+vals.Encode(), &resp); err != nil {
		return adapters.TxDescriptor{}, "", err
	}
	if resp.Tx.To == "" || resp.Tx.Data == "" {
		return adapters.TxDescriptor{}, resp.OrderID, aperr.New(aperr.CodeUnavailable, "deBridge returned incomplete transaction payload")
	}
	chainID := resp.Tx.ChainID
	if chainID == 0 {
		chainID = fromChainID
	}
	return adapters.TxDescriptor{
		ChainID:  chainID,
		To:       resp.Tx.To,
		Data:     resp.Tx.Data,
		Value:    resp.Tx.Value,
		GasLimit: resp.Tx.GasLimit,
		OrderID:  resp.OrderID,
	}, resp.OrderID, nil
}

func failedHandle(orderID string, err error) model.ExecutionHandle {
	return model.ExecutionHandle{
		TxHash:  adapters.SyntheticTxHash(),
		Status:  model.StatusPending,
		Bridge:  adapterName,
		OrderID: orderID,
		Error:   err.Error(),
	}
}

// deBridge order lifecycle codes.
var statusByCode = map[int]model.Status{
	0: model.StatusPending,
	1: model.StatusPending,
	2: model.StatusCompleted,
	3: model.StatusCancelled,
	4: model.StatusExpired,
	5: model.StatusPartialFilled,
	6: model.StatusFailed,
}

func (c *Client) GetStatus(ctx context.Context, handle model.ExecutionHandle) (model.Status, error) {
	if handle.OrderID == "" {
		return model.StatusUnknown, nil
	}
	var resp struct {
		Status int `json:"status"`
	}
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+"/order/"+url.PathEscape(handle.OrderID)+"/status", &resp); err != nil {
		return model.StatusPending, nil
	}
	if status, ok := statusByCode[resp.Status]; ok {
		return status, nil
	}
	return model.StatusUnknown, nil
}

func (c *Client) PlatformLink(quote model.Quote) model.PlatformLink {
	srcChainID, ok := apiChainIDs[registry.NormalizeChain(quote.FromChain)]
	if !ok {
		srcChainID = 1
	}
	dstChainID, ok := apiChainIDs[registry.NormalizeChain(quote.ToChain)]
	if !ok {
		dstChainID = 42161
	}
	token := registry.ResolveTokenAddress(quote.FromChain, quote.FromToken)
	vals := url.Values{}
	vals.Set("inputChain", strconv.FormatInt(srcChainID, 10))
	vals.Set("outputChain", strconv.FormatInt(dstChainID, 10))
	vals.Set("inputCurrency", token)
	vals.Set("amount", quote.FromAmount)
	return model.PlatformLink{
		URL:    "https://app.debridge.finance/deport?" + vals.Encode(),
		Label:  "Bridge on " + adapterName,
		Bridge: adapterName,
	}
}

var _ adapters.Adapter = (*Client)(nil)
