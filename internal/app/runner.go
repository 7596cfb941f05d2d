package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bulltickr/aoprism-sub000/internal/aggregator"
	"github.com/bulltickr/aoprism-sub000/internal/bridge"
	"github.com/bulltickr/aoprism-sub000/internal/config"
	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
	"github.com/bulltickr/aoprism-sub000/internal/httpx"
	"github.com/bulltickr/aoprism-sub000/internal/model"
	"github.com/bulltickr/aoprism-sub000/internal/out"
	"github.com/bulltickr/aoprism-sub000/internal/registry"
	"github.com/bulltickr/aoprism-sub000/internal/security"
	"github.com/bulltickr/aoprism-sub000/internal/signer"
	"github.com/bulltickr/aoprism-sub000/internal/store"
	"github.com/bulltickr/aoprism-sub000/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	svc         *bridge.Service
	handles     *store.Store
	lastCommand string
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	if state.handles != nil {
		_ = state.handles.Close()
	}
	if err == nil {
		return 0
	}
	state.renderError("", err)
	return aperr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Cross-chain bridge quote aggregation and risk scoring",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return aperr.Wrap(aperr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.lastCommand = trimRootPath(cmd.CommandPath())

			if s.svc == nil {
				httpClient := httpx.New(settings.Timeout, settings.Retries)
				agg := aggregator.NewDefault(httpClient, aggregator.ScoreWeights{
					Receive:  settings.Weights.Receive,
					Fee:      settings.Weights.Fee,
					Time:     settings.Weights.Time,
					Slippage: settings.Weights.Slippage,
				}, settings.QuoteTimeout, aggregator.BaseURLs{
					DeBridge:  settings.DeBridgeBaseURL,
					LayerZero: settings.LayerZeroBaseURL,
					Across:    settings.AcrossBaseURL,
				})

				policy := security.DefaultRiskPolicy()
				policy.LargeAmount = settings.Risk.LargeAmount
				policy.HighFeePct = settings.Risk.HighFeePct
				policy.HighSlippagePct = settings.Risk.HighSlippagePct
				policy.SlowTimeSec = settings.Risk.SlowTimeSec
				policy.SafeScoreBelow = settings.Risk.SafeScoreBelow
				var analyzer *security.Analyzer
				if settings.ExplorerBaseURL != "" {
					analyzer = security.NewWithExplorerBase(httpClient, policy, settings.ExplorerBaseURL)
				} else {
					analyzer = security.New(httpClient, policy)
				}
				for _, addr := range settings.VerifiedContracts {
					analyzer.AddVerifiedContract(addr)
				}
				for _, addr := range settings.ScamAddresses {
					analyzer.AddScamAddress(addr)
				}

				if shouldOpenStore(s.lastCommand) {
					handles, err := store.Open(settings.HandleStorePath, settings.HandleLockPath)
					if err != nil {
						return aperr.Wrap(aperr.CodeInternal, "open handle store", err)
					}
					s.handles = handles
				}
				s.svc = bridge.New(agg, analyzer, s.handles)
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return aperr.Wrap(aperr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Provider request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per provider request")
	cmd.PersistentFlags().StringVar(&s.flags.QuoteTimeout, "quote-timeout", "", "Per-adapter quote deadline")
	cmd.PersistentFlags().StringVar(&s.flags.KeySource, "key-source", "", "Signing key source (auto|env|file|keystore)")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newQuotesCommand())
	cmd.AddCommand(s.newBestCommand())
	cmd.AddCommand(s.newRoutesCommand())
	cmd.AddCommand(s.newChainsCommand())
	cmd.AddCommand(s.newVerifyCommand())
	cmd.AddCommand(s.newExecuteCommand())
	cmd.AddCommand(s.newStatusCommand())
	cmd.AddCommand(s.newSchemaCommand(func() *cobra.Command { return cmd }))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func transferFlags(cmd *cobra.Command, req *model.TransferRequest) {
	cmd.Flags().StringVar(&req.FromChain, "from-chain", "", "Source chain")
	cmd.Flags().StringVar(&req.ToChain, "to-chain", "", "Destination chain")
	cmd.Flags().StringVar(&req.FromToken, "from-token", "", "Source token symbol or address")
	cmd.Flags().StringVar(&req.ToToken, "to-token", "", "Destination token symbol or address")
	cmd.Flags().StringVar(&req.Amount, "amount", "", "Transfer amount (decimal)")
	cmd.Flags().StringVar(&req.Recipient, "recipient", "", "Recipient address (defaults to signing address)")
	_ = cmd.MarkFlagRequired("from-chain")
	_ = cmd.MarkFlagRequired("to-chain")
	_ = cmd.MarkFlagRequired("from-token")
	_ = cmd.MarkFlagRequired("amount")
}

func validateTransferRequest(req *model.TransferRequest) error {
	if strings.TrimSpace(req.ToToken) == "" {
		req.ToToken = req.FromToken
	}
	amount := strings.TrimSpace(req.Amount)
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return aperr.New(aperr.CodeUsage, fmt.Sprintf("amount %q must be a positive decimal", req.Amount))
	}
	req.Amount = amount
	return nil
}

func (s *runtimeState) newQuotesCommand() *cobra.Command {
	var req model.TransferRequest
	cmd := &cobra.Command{
		Use:   "quotes",
		Short: "Fetch scored quotes from every supporting bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateTransferRequest(&req); err != nil {
				return err
			}
			quotes := s.svc.Quotes(cmd.Context(), req)
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), quotes, nil)
		},
	}
	transferFlags(cmd, &req)
	return cmd
}

func (s *runtimeState) newBestCommand() *cobra.Command {
	var req model.TransferRequest
	cmd := &cobra.Command{
		Use:   "best",
		Short: "Fetch the highest-scoring quote",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateTransferRequest(&req); err != nil {
				return err
			}
			best, err := s.svc.BestQuote(cmd.Context(), req)
			if err != nil {
				return err
			}
			link, err := s.svc.PlatformLink(best.Quote)
			if err != nil {
				return err
			}
			data := map[string]any{
				"quote":         best,
				"platform_link": link,
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil)
		},
	}
	transferFlags(cmd, &req)
	return cmd
}

func (s *runtimeState) newRoutesCommand() *cobra.Command {
	var fromChain, toChain string
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List adapters able to serve a chain pair (no quotes fetched)",
		RunE: func(cmd *cobra.Command, args []string) error {
			routes := s.svc.Routes(fromChain, toChain)
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), routes, nil)
		},
	}
	cmd.Flags().StringVar(&fromChain, "from-chain", "", "Source chain")
	cmd.Flags().StringVar(&toChain, "to-chain", "", "Destination chain")
	_ = cmd.MarkFlagRequired("from-chain")
	_ = cmd.MarkFlagRequired("to-chain")
	return cmd
}

func (s *runtimeState) newChainsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List chains covered by at least one bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), s.svc.Chains(), nil)
		},
	}
}

func (s *runtimeState) newVerifyCommand() *cobra.Command {
	var req model.TransferRequest
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Risk-score the best quote without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateTransferRequest(&req); err != nil {
				return err
			}
			best, err := s.svc.BestQuote(cmd.Context(), req)
			if err != nil {
				return err
			}
			assessment := s.svc.Verify(cmd.Context(), best.Quote)
			data := map[string]any{
				"quote":      best,
				"assessment": assessment,
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, assessment.Warnings)
		},
	}
	transferFlags(cmd, &req)
	return cmd
}

func (s *runtimeState) newExecuteCommand() *cobra.Command {
	var req model.TransferRequest
	var broadcast bool
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Verify and execute the best route (simulation unless --broadcast)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateTransferRequest(&req); err != nil {
				return err
			}
			var capability *signer.LocalSigner
			if broadcast {
				local, err := signer.NewLocalSignerFromEnv(s.settings.KeySource)
				if err != nil {
					return err
				}
				local.RPCOverrides = s.rpcOverridesByChainID()
				capability = local
			}

			var result bridge.ExecutionResult
			var err error
			if capability != nil {
				result, err = s.svc.Execute(cmd.Context(), req, capability)
			} else {
				result, err = s.svc.Execute(cmd.Context(), req, nil)
			}
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, result.Assessment.Warnings)
		},
	}
	transferFlags(cmd, &req)
	cmd.Flags().BoolVar(&broadcast, "broadcast", false, "Sign and broadcast with the configured key")
	return cmd
}

func (s *runtimeState) newStatusCommand() *cobra.Command {
	root := &cobra.Command{Use: "status", Short: "Execution handle status"}

	var handleID string
	get := &cobra.Command{
		Use:   "get",
		Short: "Refresh one handle by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := s.svc.StatusByID(cmd.Context(), handleID)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), handle, nil)
		},
	}
	get.Flags().StringVar(&handleID, "id", "", "Handle id")
	_ = get.MarkFlagRequired("id")
	root.AddCommand(get)

	var statusFilter string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored handles",
		RunE: func(cmd *cobra.Command, args []string) error {
			handles, err := s.svc.Handles(model.Status(strings.ToLower(strings.TrimSpace(statusFilter))), limit)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), handles, nil)
		},
	}
	list.Flags().StringVar(&statusFilter, "status", "", "Filter by canonical status")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum handles to return")
	root.AddCommand(list)

	return root
}

func (s *runtimeState) rpcOverridesByChainID() map[int64]string {
	if len(s.settings.RPCOverrides) == 0 {
		return nil
	}
	overrides := make(map[int64]string, len(s.settings.RPCOverrides))
	for slug, rpcURL := range s.settings.RPCOverrides {
		if id, ok := registry.ChainID(slug); ok {
			overrides[id] = rpcURL
		}
	}
	return overrides
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := aperr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	if cErr, ok := aperr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		switch cErr.Code {
		case aperr.CodeUsage:
			typ = "usage_error"
		case aperr.CodeAuth:
			typ = "auth_error"
		case aperr.CodeRateLimited:
			typ = "rate_limited"
		case aperr.CodeUnavailable:
			typ = "provider_unavailable"
		case aperr.CodeUnsupported:
			typ = "unsupported_chain"
		case aperr.CodeNoRoute:
			typ = "no_route_available"
		case aperr.CodeUnknownAdapter:
			typ = "unknown_adapter"
		case aperr.CodeBlocked:
			typ = "security_check_failed"
		case aperr.CodeSigner:
			typ = "signing_failure"
		}
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func shouldOpenStore(commandPath string) bool {
	return strings.HasPrefix(commandPath, "execute") || strings.HasPrefix(commandPath, "status")
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := aperr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return aperr.Wrap(aperr.CodeUsage, "invalid command input", err)
	}
	return aperr.Wrap(aperr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
