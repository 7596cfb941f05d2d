// Package adapters defines the provider adapter contract and the shared
// fallback estimator. Each bridge provider lives in its own subpackage
// and shares no state with the others.
package adapters

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/bulltickr/aoprism-sub000/internal/model"
)

// Adapter is the capability set every bridge provider implements.
type Adapter interface {
	Name() string
	SupportedChains() []string
	IsChainSupported(chain string) bool

	// GetQuote validates chain support and prices the transfer. Provider
	// unavailability is absorbed via the local fallback estimate and is
	// never returned as an error.
	GetQuote(ctx context.Context, req model.TransferRequest) (model.Quote, error)

	// ExecuteBridge dispatches a quoted transfer. A nil capability means
	// simulation mode. Signing and broadcast failures are absorbed into
	// the returned handle.
	ExecuteBridge(ctx context.Context, quote model.Quote, signer SigningCapability) (model.ExecutionHandle, error)

	// GetStatus maps the provider's view of the transfer onto the
	// canonical status set.
	GetStatus(ctx context.Context, handle model.ExecutionHandle) (model.Status, error)

	// PlatformLink builds a deep link to the provider's own UI for the
	// quoted route. Pure string construction, no I/O.
	PlatformLink(quote model.Quote) model.PlatformLink
}

// TxDescriptor is the provider-specific transaction a capability signs.
type TxDescriptor struct {
	ChainID  int64  `json:"chain_id"`
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit uint64 `json:"gas_limit,omitempty"`
	OrderID  string `json:"order_id,omitempty"`
}

type SignedTx struct {
	Raw     []byte
	Hash    string
	ChainID int64
}

// SigningCapability is supplied by the caller; its absence selects
// simulation mode, not an error.
type SigningCapability interface {
	Address() string
	Sign(ctx context.Context, tx TxDescriptor) (SignedTx, error)
	Broadcast(ctx context.Context, signed SignedTx) (string, error)
}

// SyntheticTxHash generates a locally unique hash for simulation mode
// and for handles whose broadcast failed before producing a real hash.
func SyntheticTxHash() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "0x" + hex.EncodeToString(make([]byte, 32))
	}
	return "0x" + hex.EncodeToString(b)
}

func ChainSupported(supported []string, chain string) bool {
	for _, s := range supported {
		if s == chain {
			return true
		}
	}
	return false
}
