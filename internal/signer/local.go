package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/bulltickr/aoprism-sub000/internal/adapters"
	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
	"github.com/bulltickr/aoprism-sub000/internal/registry"
)

const (
	EnvPrivateKey           = "AOPRISM_PRIVATE_KEY"
	EnvPrivateKeyFile       = "AOPRISM_PRIVATE_KEY_FILE"
	EnvKeystorePath         = "AOPRISM_KEYSTORE_PATH"
	EnvKeystorePassword     = "AOPRISM_KEYSTORE_PASSWORD"
	EnvKeystorePasswordFile = "AOPRISM_KEYSTORE_PASSWORD_FILE"

	KeySourceAuto     = "auto"
	KeySourceEnv      = "env"
	KeySourceFile     = "file"
	KeySourceKeystore = "keystore"

	defaultPrivateKeyRelativePath = "aoprism/key.hex"

	fallbackGasLimit = 400000
)

// LocalSigner signs and broadcasts bridge transactions with a key held
// in process. RPC endpoints are resolved per chain id, overridable via
// RPCOverrides.
type LocalSigner struct {
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	RPCOverrides map[int64]string
}

func (s *LocalSigner) Address() string {
	return s.address.Hex()
}

func (s *LocalSigner) Sign(ctx context.Context, tx adapters.TxDescriptor) (adapters.SignedTx, error) {
	if s == nil || s.privateKey == nil {
		return adapters.SignedTx{}, aperr.New(aperr.CodeSigner, "local signer is not initialized")
	}
	value, err := parseValue(tx.Value)
	if err != nil {
		return adapters.SignedTx{}, aperr.Wrap(aperr.CodeSigner, "parse transaction value", err)
	}
	data, err := parseData(tx.Data)
	if err != nil {
		return adapters.SignedTx{}, aperr.Wrap(aperr.CodeSigner, "parse transaction calldata", err)
	}
	if !common.IsHexAddress(tx.To) {
		return adapters.SignedTx{}, aperr.New(aperr.CodeSigner, fmt.Sprintf("invalid destination address %q", tx.To))
	}

	client, err := s.dial(ctx, tx.ChainID)
	if err != nil {
		return adapters.SignedTx{}, err
	}
	defer client.Close()

	nonce, err := client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return adapters.SignedTx{}, aperr.Wrap(aperr.CodeSigner, "fetch account nonce", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return adapters.SignedTx{}, aperr.Wrap(aperr.CodeSigner, "fetch gas price", err)
	}
	gasLimit := tx.GasLimit
	if gasLimit == 0 {
		gasLimit = fallbackGasLimit
	}

	to := common.HexToAddress(tx.To)
	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(unsigned, types.LatestSignerForChainID(big.NewInt(tx.ChainID)), s.privateKey)
	if err != nil {
		return adapters.SignedTx{}, aperr.Wrap(aperr.CodeSigner, "sign transaction", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return adapters.SignedTx{}, aperr.Wrap(aperr.CodeSigner, "encode signed transaction", err)
	}
	return adapters.SignedTx{Raw: raw, Hash: signed.Hash().Hex(), ChainID: tx.ChainID}, nil
}

func (s *LocalSigner) Broadcast(ctx context.Context, tx adapters.SignedTx) (string, error) {
	var decoded types.Transaction
	if err := decoded.UnmarshalBinary(tx.Raw); err != nil {
		return "", aperr.Wrap(aperr.CodeSigner, "decode signed transaction", err)
	}
	client, err := s.dial(ctx, tx.ChainID)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := client.SendTransaction(ctx, &decoded); err != nil {
		return "", aperr.Wrap(aperr.CodeSigner, "broadcast transaction", err)
	}
	return decoded.Hash().Hex(), nil
}

func (s *LocalSigner) dial(ctx context.Context, chainID int64) (*ethclient.Client, error) {
	rpcURL, err := registry.ResolveRPCURL(s.RPCOverrides[chainID], chainID)
	if err != nil {
		return nil, aperr.Wrap(aperr.CodeSigner, "resolve RPC endpoint", err)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, aperr.Wrap(aperr.CodeSigner, "dial RPC endpoint", err)
	}
	return client, nil
}

func NewLocalSignerFromEnv(source string) (*LocalSigner, error) {
	return NewLocalSignerFromInputs(source, "")
}

func NewLocalSignerFromInputs(source, privateKeyOverride string) (*LocalSigner, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = KeySourceAuto
	}
	privateKeyHex := strings.TrimSpace(os.Getenv(EnvPrivateKey))
	privateKeyFile := strings.TrimSpace(os.Getenv(EnvPrivateKeyFile))
	keystorePath := strings.TrimSpace(os.Getenv(EnvKeystorePath))
	keystorePassword := strings.TrimSpace(os.Getenv(EnvKeystorePassword))
	keystorePasswordFile := strings.TrimSpace(os.Getenv(EnvKeystorePasswordFile))
	if privateKeyFile == "" {
		privateKeyFile = discoverDefaultPrivateKeyFile()
	}

	switch source {
	case KeySourceAuto:
		// Keep all values to preserve precedence in loadPrivateKey.
	case KeySourceEnv:
		privateKeyFile = ""
		keystorePath = ""
		keystorePassword = ""
		keystorePasswordFile = ""
	case KeySourceFile:
		privateKeyHex = ""
		keystorePath = ""
		keystorePassword = ""
		keystorePasswordFile = ""
	case KeySourceKeystore:
		privateKeyHex = ""
		privateKeyFile = ""
	default:
		return nil, aperr.New(aperr.CodeUsage, fmt.Sprintf("unsupported key source %q (expected %s|%s|%s|%s)", source, KeySourceAuto, KeySourceEnv, KeySourceFile, KeySourceKeystore))
	}
	if strings.TrimSpace(privateKeyOverride) != "" {
		privateKeyHex = strings.TrimSpace(privateKeyOverride)
		privateKeyFile = ""
		keystorePath = ""
		keystorePassword = ""
		keystorePasswordFile = ""
	}

	return NewLocalSigner(LocalSignerConfig{
		PrivateKeyHex:        privateKeyHex,
		PrivateKeyFile:       privateKeyFile,
		KeystorePath:         keystorePath,
		KeystorePassword:     keystorePassword,
		KeystorePasswordFile: keystorePasswordFile,
	})
}

type LocalSignerConfig struct {
	PrivateKeyHex        string
	PrivateKeyFile       string
	KeystorePath         string
	KeystorePassword     string
	KeystorePasswordFile string
}

func NewLocalSigner(cfg LocalSignerConfig) (*LocalSigner, error) {
	pk, err := loadPrivateKey(cfg)
	if err != nil {
		return nil, err
	}
	pub, ok := pk.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, aperr.New(aperr.CodeSigner, "invalid ECDSA public key")
	}
	addr := crypto.PubkeyToAddress(*pub)
	return &LocalSigner{privateKey: pk, address: addr}, nil
}

func loadPrivateKey(cfg LocalSignerConfig) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(cfg.PrivateKeyHex) != "" {
		return parseHexKey(cfg.PrivateKeyHex)
	}
	if strings.TrimSpace(cfg.PrivateKeyFile) != "" {
		buf, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, aperr.Wrap(aperr.CodeSigner, "read private key file", err)
		}
		return parseHexKey(string(buf))
	}
	if strings.TrimSpace(cfg.KeystorePath) != "" {
		password := cfg.KeystorePassword
		if strings.TrimSpace(password) == "" && strings.TrimSpace(cfg.KeystorePasswordFile) != "" {
			buf, err := os.ReadFile(cfg.KeystorePasswordFile)
			if err != nil {
				return nil, aperr.Wrap(aperr.CodeSigner, "read keystore password file", err)
			}
			password = strings.TrimSpace(string(buf))
		}
		if strings.TrimSpace(password) == "" {
			return nil, aperr.New(aperr.CodeSigner, "keystore password is required")
		}
		buf, err := os.ReadFile(cfg.KeystorePath)
		if err != nil {
			return nil, aperr.Wrap(aperr.CodeSigner, "read keystore file", err)
		}
		key, err := keystore.DecryptKey(buf, password)
		if err != nil {
			return nil, aperr.Wrap(aperr.CodeSigner, "decrypt keystore", err)
		}
		return key.PrivateKey, nil
	}
	return nil, aperr.New(aperr.CodeSigner, fmt.Sprintf("missing signing key: set %s or %s or %s", EnvPrivateKey, EnvPrivateKeyFile, EnvKeystorePath))
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return nil, aperr.New(aperr.CodeSigner, "empty private key")
	}
	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, aperr.Wrap(aperr.CodeSigner, "parse private key", err)
	}
	return pk, nil
}

func discoverDefaultPrivateKeyFile() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	path := filepath.Join(base, defaultPrivateKeyRelativePath)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}

// parseValue accepts decimal or 0x-prefixed hex wei amounts; empty
// means zero.
func parseValue(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return big.NewInt(0), nil
	}
	base := 10
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		raw = raw[2:]
		base = 16
	}
	value, ok := new(big.Int).SetString(raw, base)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", raw)
	}
	return value, nil
}

func parseData(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if !strings.HasPrefix(raw, "0x") {
		return nil, fmt.Errorf("calldata must be 0x-prefixed hex")
	}
	data := common.FromHex(raw)
	if len(data) == 0 && len(raw) > 2 {
		return nil, fmt.Errorf("malformed calldata")
	}
	return data, nil
}

var _ adapters.SigningCapability = (*LocalSigner)(nil)
