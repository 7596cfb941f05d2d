package across

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bulltickr/aoprism-sub000/internal/adapters"
	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
	"github.com/bulltickr/aoprism-sub000/internal/httpx"
	"github.com/bulltickr/aoprism-sub000/internal/model"
	"github.com/bulltickr/aoprism-sub000/internal/registry"
)

const (
	adapterName = "Across"
	defaultBase = "https://app.across.to"
)

var supportedChains = []string{"ethereum", "arbitrum", "optimism", "polygon"}

// SpokePool per origin chain; deposits enter the bridge through these.
var spokePoolByChain = map[string]string{
	"ethereum": "0x5c7bcd6e7de5423a257d81b442095a1a6ced35c5",
	"optimism": "0x6f26bf09b1c792e3228e5467807a900a503c0281",
	"polygon":  "0x9295ee1d8c5b022be115a2ad3c30c72e34e7f096",
	"arbitrum": "0xe35e9842fceaca96570b734083f4a58e8f7c5f2a",
}

var fallbackTables = adapters.FallbackTables{
	DefaultRate: 0.999,
	DefaultFee:  model.Fee{Fixed: 1, Percentage: 0.05},
	Times: map[string]map[string]int64{
		"ethereum": {"arbitrum": 180},
	},
	DefaultTime: 600,
	SlippagePct: 0.1,
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
	quote.ContractAddress = spokePoolByChain[req.FromChain]
	return quote, nil
}

type suggestedFeesResponse struct {
	OutputAmount  json.Number `json:"outputAmount"`
	TotalRelayFee struct {
		Total string `json:"total"`
		Pct   string `json:"pct"`
	} `json:"totalRelayFee"`
	EstimatedFillTimeSec int64 `json:"estimatedFillTimeSec"`
}

func (c *Client) liveQuote(ctx context.Context, req model.TransferRequest) (model.Quote, error) {
	originID, ok := registry.ChainID(req.FromChain)
	if !ok {
		return model.Quote{}, aperr.New(aperr.CodeUnavailable, "unknown origin chain id")
	}
	destID, ok := registry.ChainID(req.ToChain)
	if !ok {
		return model.Quote{}, aperr.New(aperr.CodeUnavailable, "unknown destination chain id")
	}

	vals := url.Values{}
	vals.Set("originChainId", strconv.FormatInt(originID, 10))
	vals.Set("destinationChainId", strconv.FormatInt(destID, 10))
	vals.Set("token", registry.ResolveTokenAddress(req.FromChain, req.FromToken))
	vals.Set("amount", req.Amount)

	var resp suggestedFeesResponse
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+"/api/suggested-fees?"+vals.Encode(), &resp); err != nil {
		return model.Quote{}, err
	}
	if resp.OutputAmount.String() == "" {
		return model.Quote{}, aperr.New(aperr.CodeUnavailable, "Across quote missing output amount")
	}

	fixed, _ := strconv.ParseFloat(resp.TotalRelayFee.Total, 64)
	pct, _ := strconv.ParseFloat(resp.TotalRelayFee.Pct, 64)
	eta := resp.EstimatedFillTimeSec
	if eta == 0 {
		eta = adapters.EstimateTime(req.FromChain, req.ToChain, fallbackTables)
	}
	raw, _ := json.Marshal(resp)

	return model.Quote{
		FromChain:        req.FromChain,
		ToChain:          req.ToChain,
		FromToken:        req.FromToken,
		ToToken:          req.ToToken,
		FromAmount:       req.Amount,
		ToAmount:         resp.OutputAmount.String(),
		Fee:              model.Fee{Fixed: fixed, Percentage: pct * 100, Token: req.FromToken},
		EstimatedTimeSec: eta,
		SlippagePct:      fallbackTables.SlippagePct,
		ToAddress:        req.Recipient,
		Raw:              raw,
	}, nil
}

type approvalTxResponse struct {
	SwapTx struct {
		To      string `json:"to"`
		Data    string `json:"data"`
		Value   string `json:"value"`
		ChainID int64  `json:"chainId"`
		Gas     uint64 `json:"gas"`
	} `json:"swapTx"`
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

	descriptor, err := c.buildTx(ctx, quote, signer.Address())
	if err != nil {
		return failedHandle(err), nil
	}
	signed, err := signer.Sign(ctx, descriptor)
	if err != nil {
		return failedHandle(err), nil
	}
	hash, err := signer.Broadcast(ctx, signed)
	if err != nil {
		return failedHandle(err), nil
	}
	// Across tracks deposits by origin chain and transaction hash; the
	// hash doubles as the order id once broadcast.
	return model.ExecutionHandle{
		TxHash:  hash,
		Status:  model.StatusPending,
		Bridge:  adapterName,
		OrderID: hash,
	}, nil
}

func (c *Client) buildTx(ctx context.Context, quote model.Quote, sender string) (adapters.TxDescriptor, error) {
	originID, ok := registry.ChainID(quote.FromChain)
	if !ok {
		return adapters.TxDescriptor{}, aperr.New(aperr.CodeUnavailable, "unknown origin chain id")
	}
	destID, _ := registry.ChainID(quote.ToChain)

	recipient := quote.ToAddress
	if recipient == "" {
		recipient = sender
	}
	vals := url.Values{}
	vals.Set("originChainId", strconv.FormatInt(originID, 10))
	vals.Set("destinationChainId", strconv.FormatInt(destID, 10))
	vals.Set("inputToken", registry.ResolveTokenAddress(quote.FromChain, quote.FromToken))
	vals.Set("outputToken", registry.ResolveTokenAddress(quote.ToChain, quote.ToToken))
	vals.Set("amount", quote.FromAmount)
	vals.Set("depositor", sender)
	vals.Set("recipient", recipient)

	var resp approvalTxResponse
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+"/api/swap/approval?"+vals.Encode(), &resp); err != nil {
		return adapters.TxDescriptor{}, err
	}
	if resp.SwapTx.To == "" || resp.SwapTx.Data == "" {
		return adapters.TxDescriptor{}, aperr.New(aperr.CodeUnavailable, "Across returned incomplete transaction payload")
	}
	chainID := resp.SwapTx.ChainID
	if chainID == 0 {
		chainID = originID
	}
	return adapters.TxDescriptor{
		ChainID:  chainID,
		To:       resp.SwapTx.To,
		Data:     resp.SwapTx.Data,
		Value:    resp.SwapTx.Value,
		GasLimit: resp.SwapTx.Gas,
	}, nil
}

func failedHandle(err error) model.ExecutionHandle {
	return model.ExecutionHandle{
		TxHash: adapters.SyntheticTxHash(),
		Status: model.StatusPending,
		Bridge: adapterName,
		Error:  err.Error(),
	}
}

var statusByName = map[string]model.Status{
	"pending":  model.StatusPending,
	"filled":   model.StatusCompleted,
	"expired":  model.StatusExpired,
	"refunded": model.StatusCancelled,
}

func (c *Client) GetStatus(ctx context.Context, handle model.ExecutionHandle) (model.Status, error) {
	if handle.TxHash == "" {
		return model.StatusUnknown, nil
	}
	vals := url.Values{}
	vals.Set("depositTxHash", handle.TxHash)

	var resp struct {
		Status string `json:"status"`
	}
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+"/api/deposit/status?"+vals.Encode(), &resp); err != nil {
		return model.StatusPending, nil
	}
	if status, ok := statusByName[strings.ToLower(resp.Status)]; ok {
		return status, nil
	}
	return model.StatusUnknown, nil
}

func (c *Client) PlatformLink(quote model.Quote) model.PlatformLink {
	originID, ok := registry.ChainID(quote.FromChain)
	if !ok {
		originID = 1
	}
	destID, ok := registry.ChainID(quote.ToChain)
	if !ok {
		destID = 42161
	}
	vals := url.Values{}
	vals.Set("originChainId", strconv.FormatInt(originID, 10))
	vals.Set("destinationChainId", strconv.FormatInt(destID, 10))
	return model.PlatformLink{
		URL:    "https://app.across.to/?" + vals.Encode(),
		Label:  "Bridge on " + adapterName,
		Bridge: adapterName,
	}
}

var _ adapters.Adapter = (*Client)(nil)
