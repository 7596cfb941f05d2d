package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath   string
	JSON         bool
	Plain        bool
	Timeout      string
	Retries      int
	QuoteTimeout string
	KeySource    string
}

// Weights mirror aggregator.ScoreWeights as plain policy numbers so the
// config layer stays free of domain imports.
type Weights struct {
	Receive  float64
	Fee      float64
	Time     float64
	Slippage float64
}

type RiskThresholds struct {
	LargeAmount     float64
	HighFeePct      float64
	HighSlippagePct float64
	SlowTimeSec     int64
	SafeScoreBelow  int
}

type Settings struct {
	OutputMode   string
	Timeout      time.Duration
	Retries      int
	QuoteTimeout time.Duration
	KeySource    string

	Weights Weights
	Risk    RiskThresholds

	HandleStorePath string
	HandleLockPath  string

	DeBridgeBaseURL  string
	LayerZeroBaseURL string
	AcrossBaseURL    string
	ExplorerBaseURL  string

	// RPC endpoint overrides keyed by chain slug.
	RPCOverrides map[string]string

	VerifiedContracts []string
	ScamAddresses     []string
}

type fileConfig struct {
	Output       string `yaml:"output"`
	Timeout      string `yaml:"timeout"`
	Retries      *int   `yaml:"retries"`
	QuoteTimeout string `yaml:"quote_timeout"`
	KeySource    string `yaml:"key_source"`
	Weights      struct {
		Receive  *float64 `yaml:"receive"`
		Fee      *float64 `yaml:"fee"`
		Time     *float64 `yaml:"time"`
		Slippage *float64 `yaml:"slippage"`
	} `yaml:"weights"`
	Risk struct {
		LargeAmount     *float64 `yaml:"large_amount"`
		HighFeePct      *float64 `yaml:"high_fee_pct"`
		HighSlippagePct *float64 `yaml:"high_slippage_pct"`
		SlowTime        string   `yaml:"slow_time"`
		SafeScoreBelow  *int     `yaml:"safe_score_below"`
	} `yaml:"risk"`
	Store struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"store"`
	Providers struct {
		DeBridge struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"debridge"`
		LayerZero struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"layerzero"`
		Across struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"across"`
		Explorer struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"explorer"`
	} `yaml:"providers"`
	RPC      map[string]string `yaml:"rpc"`
	Security struct {
		VerifiedContracts []string `yaml:"verified_contracts"`
		ScamAddresses     []string `yaml:"scam_addresses"`
	} `yaml:"security"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.QuoteTimeout <= 0 {
		settings.QuoteTimeout = settings.Timeout
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	storePath, lockPath, err := defaultStorePaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:      "json",
		Timeout:         10 * time.Second,
		Retries:         2,
		QuoteTimeout:    10 * time.Second,
		KeySource:       "auto",
		Weights:         Weights{Receive: 0.4, Fee: 0.3, Time: 0.2, Slippage: 0.1},
		Risk:            RiskThresholds{LargeAmount: 100000, HighFeePct: 1, HighSlippagePct: 3, SlowTimeSec: 3600, SafeScoreBelow: 30},
		HandleStorePath: storePath,
		HandleLockPath:  lockPath,
		RPCOverrides:    map[string]string{},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "aoprism", "config.yaml"), nil
}

func defaultStorePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "aoprism")
	return filepath.Join(dir, "handles.db"), filepath.Join(dir, "handles.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.QuoteTimeout != "" {
		d, err := time.ParseDuration(cfg.QuoteTimeout)
		if err != nil {
			return fmt.Errorf("config quote_timeout: %w", err)
		}
		settings.QuoteTimeout = d
	}
	if cfg.KeySource != "" {
		settings.KeySource = strings.ToLower(cfg.KeySource)
	}
	if cfg.Weights.Receive != nil {
		settings.Weights.Receive = *cfg.Weights.Receive
	}
	if cfg.Weights.Fee != nil {
		settings.Weights.Fee = *cfg.Weights.Fee
	}
	if cfg.Weights.Time != nil {
		settings.Weights.Time = *cfg.Weights.Time
	}
	if cfg.Weights.Slippage != nil {
		settings.Weights.Slippage = *cfg.Weights.Slippage
	}
	if cfg.Risk.LargeAmount != nil {
		settings.Risk.LargeAmount = *cfg.Risk.LargeAmount
	}
	if cfg.Risk.HighFeePct != nil {
		settings.Risk.HighFeePct = *cfg.Risk.HighFeePct
	}
	if cfg.Risk.HighSlippagePct != nil {
		settings.Risk.HighSlippagePct = *cfg.Risk.HighSlippagePct
	}
	if cfg.Risk.SlowTime != "" {
		d, err := time.ParseDuration(cfg.Risk.SlowTime)
		if err != nil {
			return fmt.Errorf("config risk.slow_time: %w", err)
		}
		settings.Risk.SlowTimeSec = int64(d / time.Second)
	}
	if cfg.Risk.SafeScoreBelow != nil {
		settings.Risk.SafeScoreBelow = *cfg.Risk.SafeScoreBelow
	}
	if cfg.Store.Path != "" {
		settings.HandleStorePath = cfg.Store.Path
	}
	if cfg.Store.LockPath != "" {
		settings.HandleLockPath = cfg.Store.LockPath
	}
	if cfg.Providers.DeBridge.BaseURL != "" {
		settings.DeBridgeBaseURL = cfg.Providers.DeBridge.BaseURL
	}
	if cfg.Providers.LayerZero.BaseURL != "" {
		settings.LayerZeroBaseURL = cfg.Providers.LayerZero.BaseURL
	}
	if cfg.Providers.Across.BaseURL != "" {
		settings.AcrossBaseURL = cfg.Providers.Across.BaseURL
	}
	if cfg.Providers.Explorer.BaseURL != "" {
		settings.ExplorerBaseURL = cfg.Providers.Explorer.BaseURL
	}
	for slug, rpcURL := range cfg.RPC {
		settings.RPCOverrides[strings.ToLower(slug)] = rpcURL
	}
	settings.VerifiedContracts = append(settings.VerifiedContracts, cfg.Security.VerifiedContracts...)
	settings.ScamAddresses = append(settings.ScamAddresses, cfg.Security.ScamAddresses...)

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("AOPRISM_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("AOPRISM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("AOPRISM_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("AOPRISM_QUOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.QuoteTimeout = d
		}
	}
	if v := os.Getenv("AOPRISM_KEY_SOURCE"); v != "" {
		settings.KeySource = strings.ToLower(v)
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("--json and --plain are mutually exclusive")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Timeout) != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("flag --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries > 0 {
		settings.Retries = flags.Retries
	}
	if strings.TrimSpace(flags.QuoteTimeout) != "" {
		d, err := time.ParseDuration(flags.QuoteTimeout)
		if err != nil {
			return fmt.Errorf("flag --quote-timeout: %w", err)
		}
		settings.QuoteTimeout = d
	}
	if strings.TrimSpace(flags.KeySource) != "" {
		settings.KeySource = strings.ToLower(flags.KeySource)
	}
	return nil
}
