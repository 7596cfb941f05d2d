// Package bridge combines the quote aggregator and the security
// analyzer into one execution-facing service. This is the only layer
// that enforces the safety verdict; the analyzer itself just reports.
package bridge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bulltickr/aoprism-sub000/internal/adapters"
	"github.com/bulltickr/aoprism-sub000/internal/aggregator"
	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
	"github.com/bulltickr/aoprism-sub000/internal/model"
	"github.com/bulltickr/aoprism-sub000/internal/security"
	"github.com/bulltickr/aoprism-sub000/internal/store"
)

type Service struct {
	agg      *aggregator.Aggregator
	analyzer *security.Analyzer
	handles  *store.Store
	now      func() time.Time
}

// New wires the service. The handle store is optional; without it,
// handles are returned but not persisted.
func New(agg *aggregator.Aggregator, analyzer *security.Analyzer, handles *store.Store) *Service {
	return &Service{agg: agg, analyzer: analyzer, handles: handles, now: time.Now}
}

func (s *Service) Quotes(ctx context.Context, req model.TransferRequest) []model.ScoredQuote {
	return s.agg.GetQuotes(ctx, req)
}

func (s *Service) BestQuote(ctx context.Context, req model.TransferRequest) (model.ScoredQuote, error) {
	return s.agg.FindBestQuote(ctx, req)
}

func (s *Service) Routes(fromChain, toChain string) []model.RouteOption {
	return s.agg.CompareRoutes(fromChain, toChain)
}

func (s *Service) Chains() []string {
	return s.agg.SupportedChains()
}

func (s *Service) Verify(ctx context.Context, quote model.Quote) model.RiskAssessment {
	return s.analyzer.VerifyTransaction(ctx, quote)
}

func (s *Service) PlatformLink(quote model.Quote) (model.PlatformLink, error) {
	return s.agg.PlatformLink(quote)
}

// ExecutionResult bundles everything produced by one execute call.
type ExecutionResult struct {
	Quote      model.ScoredQuote     `json:"quote"`
	Assessment model.RiskAssessment  `json:"assessment"`
	Handle     model.ExecutionHandle `json:"handle"`
}

// Execute finds the best route, verifies it, and dispatches it. An
// unsafe assessment blocks execution before any transaction is built.
func (s *Service) Execute(ctx context.Context, req model.TransferRequest, signer adapters.SigningCapability) (ExecutionResult, error) {
	if req.Recipient != "" && !common.IsHexAddress(req.Recipient) {
		return ExecutionResult{}, aperr.New(aperr.CodeUsage, fmt.Sprintf("invalid recipient address %q", req.Recipient))
	}
	best, err := s.agg.FindBestQuote(ctx, req)
	if err != nil {
		return ExecutionResult{}, err
	}
	return s.ExecuteQuote(ctx, best, signer)
}

// ExecuteQuote verifies and dispatches a previously selected quote.
func (s *Service) ExecuteQuote(ctx context.Context, scored model.ScoredQuote, signer adapters.SigningCapability) (ExecutionResult, error) {
	assessment := s.analyzer.VerifyTransaction(ctx, scored.Quote)
	if !assessment.Safe {
		msg := "security check failed"
		if len(assessment.Warnings) > 0 {
			msg += ": " + strings.Join(assessment.Warnings, "; ")
		}
		return ExecutionResult{Quote: scored, Assessment: assessment}, aperr.New(aperr.CodeBlocked, msg)
	}

	handle, err := s.agg.Execute(ctx, scored.Quote, signer)
	if err != nil {
		return ExecutionResult{Quote: scored, Assessment: assessment}, err
	}
	now := s.now().UTC().Format(time.RFC3339)
	handle.HandleID = newHandleID()
	handle.CreatedAt = now
	handle.UpdatedAt = now
	if s.handles != nil {
		if err := s.handles.Save(handle); err != nil {
			return ExecutionResult{Quote: scored, Assessment: assessment}, err
		}
	}
	return ExecutionResult{Quote: scored, Assessment: assessment, Handle: handle}, nil
}

// Status refreshes a handle by polling its owning adapter. When the
// store is configured, ref may be a persisted handle id and the
// refreshed status is written back.
func (s *Service) Status(ctx context.Context, handle model.ExecutionHandle) (model.ExecutionHandle, error) {
	status, err := s.agg.Status(ctx, handle)
	if err != nil {
		return handle, err
	}
	handle.Status = status
	handle.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if s.handles != nil && handle.HandleID != "" {
		if err := s.handles.Save(handle); err != nil {
			return handle, err
		}
	}
	return handle, nil
}

func (s *Service) StatusByID(ctx context.Context, handleID string) (model.ExecutionHandle, error) {
	if s.handles == nil {
		return model.ExecutionHandle{}, aperr.New(aperr.CodeUsage, "no handle store configured")
	}
	handle, err := s.handles.Get(handleID)
	if err != nil {
		return model.ExecutionHandle{}, err
	}
	return s.Status(ctx, handle)
}

func (s *Service) Handles(status model.Status, limit int) ([]model.ExecutionHandle, error) {
	if s.handles == nil {
		return nil, aperr.New(aperr.CodeUsage, "no handle store configured")
	}
	return s.handles.List(status, limit)
}

func newHandleID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "bh-000000000000"
	}
	return "bh-" + hex.EncodeToString(b)
}
