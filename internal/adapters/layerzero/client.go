package layerzero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/bulltickr/aoprism-sub000/internal/adapters"
	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
	"github.com/bulltickr/aoprism-sub000/internal/httpx"
	"github.com/bulltickr/aoprism-sub000/internal/model"
	"github.com/bulltickr/aoprism-sub000/internal/registry"
)

const (
	adapterName = "LayerZero"
	defaultBase = "https://api.layerzero.network"

	// EndpointV2, same address across EVM deployments.
	bridgeContract = "0x1a44076050125825900e736c501f859c50fe728c"
)

var supportedChains = []string{"ethereum", "bsc", "polygon", "arbitrum", "avalanche", "optimism", "base", "arweave"}

// LayerZero routes settle through a unified messaging layer, so the
// estimate uses flat figures instead of per-route tables.
var fallbackTables = adapters.FallbackTables{
	DefaultRate: 0.998,
	DefaultFee:  model.Fee{Fixed: 2, Percentage: 0.15},
	DefaultTime: 300,
	SlippagePct: 0.3,
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
	AmountOut   json.Number `json:"amountOut"`
	NativeFee   float64     `json:"nativeFee"`
	LzTokenFee  float64     `json:"lzTokenFee"`
	EtaSeconds  int64       `json:"etaSeconds"`
	SlippageBps float64     `json:"slippageBps"`
}

func (c *Client) liveQuote(ctx context.Context, req model.TransferRequest) (model.Quote, error) {
	vals := url.Values{}
	vals.Set("srcChain", req.FromChain)
	vals.Set("dstChain", req.ToChain)
	vals.Set("token", req.FromToken)
	vals.Set("amount", req.Amount)

	var resp quoteResponse
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+"/v1/quote?"+vals.Encode(), &resp); err != nil {
		return model.Quote{}, err
	}
	if resp.AmountOut.String() == "" {
		return model.Quote{}, aperr.New(aperr.CodeUnavailable, "LayerZero quote missing output amount")
	}

	eta := resp.EtaSeconds
	if eta == 0 {
		eta = fallbackTables.DefaultTime
	}
	slippage := resp.SlippageBps / 100
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
		ToAmount:         resp.AmountOut.String(),
		Fee:              model.Fee{Fixed: resp.NativeFee, Percentage: resp.LzTokenFee, Token: req.FromToken},
		EstimatedTimeSec: eta,
		SlippagePct:      slippage,
		ToAddress:        req.Recipient,
		Raw:              raw,
	}, nil
}

type bridgeTxResponse struct {
	GUID string `json:"guid"`
	Tx   struct {
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

	descriptor, guid, err := c.buildTx(ctx, quote, signer.Address())
	if err != nil {
		return failedHandle(guid, err), nil
	}
	signed, err := signer.Sign(ctx, descriptor)
	if err != nil {
		return failedHandle(guid, err), nil
	}
	hash, err := signer.Broadcast(ctx, signed)
	if err != nil {
		return failedHandle(guid, err), nil
	}
	return model.ExecutionHandle{
		TxHash:  hash,
		Status:  model.StatusPending,
		Bridge:  adapterName,
		OrderID: guid,
	}, nil
}

func (c *Client) buildTx(ctx context.Context, quote model.Quote, sender string) (adapters.TxDescriptor, string, error) {
	recipient := quote.ToAddress
	if recipient == "" {
		recipient = sender
	}
	vals := url.Values{}
	vals.Set("srcChain", registry.NormalizeChain(quote.FromChain))
	vals.Set("dstChain", registry.NormalizeChain(quote.ToChain))
	vals.Set("token", quote.FromToken)
	vals.Set("amount", quote.FromAmount)
	vals.Set("sender", sender)
	vals.Set("receiver", recipient)

	var resp bridgeTxResponse
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+"/v1/bridge/tx?"+vals.Encode(), &resp); err != nil {
		return adapters.TxDescriptor{}, "", err
	}
	if resp.Tx.To == "" || resp.Tx.Data == "" {
		return adapters.TxDescriptor{}, resp.GUID, aperr.New(aperr.CodeUnavailable, "LayerZero returned incomplete transaction payload")
	}
	chainID := resp.Tx.ChainID
	if chainID == 0 {
		chainID, _ = registry.ChainID(quote.FromChain)
	}
	return adapters.TxDescriptor{
		ChainID:  chainID,
		To:       resp.Tx.To,
		Data:     resp.Tx.Data,
		Value:    resp.Tx.Value,
		GasLimit: resp.Tx.GasLimit,
		OrderID:  resp.GUID,
	}, resp.GUID, nil
}

func failedHandle(guid string, err error) model.ExecutionHandle {
	return model.ExecutionHandle{
		TxHash:  adapters.SyntheticTxHash(),
		Status:  model.StatusPending,
		Bridge:  adapterName,
		OrderID: guid,
		Error:   err.Error(),
	}
}

var statusByName = map[string]model.Status{
	"INFLIGHT":       model.StatusPending,
	"CONFIRMING":     model.StatusPending,
	"PENDING":        model.StatusPending,
	"DELIVERED":      model.StatusCompleted,
	"PAYLOAD_STORED": model.StatusPartialFilled,
	"BLOCKED":        model.StatusFailed,
	"FAILED":         model.StatusFailed,
}

func (c *Client) GetStatus(ctx context.Context, handle model.ExecutionHandle) (model.Status, error) {
	if handle.OrderID == "" {
		return model.StatusUnknown, nil
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+"/v1/messages/"+url.PathEscape(handle.OrderID), &resp); err != nil {
		return model.StatusPending, nil
	}
	if status, ok := statusByName[strings.ToUpper(resp.Status)]; ok {
		return status, nil
	}
	return model.StatusUnknown, nil
}

func (c *Client) PlatformLink(quote model.Quote) model.PlatformLink {
	vals := url.Values{}
	vals.Set("srcChain", registry.NormalizeChain(quote.FromChain))
	vals.Set("dstChain", registry.NormalizeChain(quote.ToChain))
	return model.PlatformLink{
		URL:    "https://stargate.finance/bridge?" + vals.Encode(),
		Label:  "Bridge via Stargate (" + adapterName + ")",
		Bridge: adapterName,
	}
}

var _ adapters.Adapter = (*Client)(nil)
