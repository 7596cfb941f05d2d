package registry

import "strings"

type Token struct {
	Symbol   string
	Address  string
	Decimals int
}

// NativeTokenAddress is the pseudo-address providers accept for the
// chain's gas token.
const NativeTokenAddress = "0x0000000000000000000000000000000000000000"

// Small bootstrap registry for deterministic symbol resolution on the
// chains the default adapters cover.
var tokenRegistry = map[string][]Token{
	"ethereum": {
		{Symbol: "USDC", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6},
		{Symbol: "USDT", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Decimals: 6},
		{Symbol: "DAI", Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Decimals: 18},
		{Symbol: "WETH", Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Decimals: 18},
	},
	"bsc": {
		{Symbol: "USDC", Address: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d", Decimals: 18},
		{Symbol: "USDT", Address: "0x55d398326f99059ff775485246999027b3197955", Decimals: 18},
		{Symbol: "WETH", Address: "0x2170ed0880ac9a755fd29b2688956bd959f933f8", Decimals: 18},
	},
	"polygon": {
		{Symbol: "USDC", Address: "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359", Decimals: 6},
		{Symbol: "USDT", Address: "0xc2132d05d31c914a87c6611c10748aeb04b58e8f", Decimals: 6},
		{Symbol: "WETH", Address: "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619", Decimals: 18},
	},
	"arbitrum": {
		{Symbol: "USDC", Address: "0xaf88d065e77c8cc2239327c5edb3a432268e5831", Decimals: 6},
		{Symbol: "USDT", Address: "0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9", Decimals: 6},
		{Symbol: "WETH", Address: "0x82af49447d8a07e3bd95bd0d56f35241523fbab1", Decimals: 18},
	},
	"optimism": {
		{Symbol: "USDC", Address: "0x7f5c764cbc14f9669b88837ca1490cca17c31607", Decimals: 6},
		{Symbol: "USDT", Address: "0x94b008aa00579c1307b0ef2c499ad98a8ce58e58", Decimals: 6},
		{Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	},
	"avalanche": {
		{Symbol: "USDC", Address: "0xb97ef9ef8734c71904d8002f8b6bc66dd9c48a6e", Decimals: 6},
		{Symbol: "USDT", Address: "0x9702230a8ea53601f5cd2dc00fdbc13d4df4a8c7", Decimals: 6},
		{Symbol: "WETH", Address: "0x49d5c2bdffac6ce2bfdb6640f4f80f226bc10bab", Decimals: 18},
	},
	"base": {
		{Symbol: "USDC", Address: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", Decimals: 6},
		{Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	},
}

// ResolveTokenAddress maps a token symbol to its chain-specific contract
// address. Inputs that already look like an address pass through
// unchanged; unknown symbols resolve to the native pseudo-address.
func ResolveTokenAddress(chain, token string) string {
	clean := strings.TrimSpace(token)
	if clean == "" {
		return NativeTokenAddress
	}
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		return strings.ToLower(clean)
	}
	for _, t := range tokenRegistry[NormalizeChain(chain)] {
		if strings.EqualFold(t.Symbol, clean) {
			return t.Address
		}
	}
	return NativeTokenAddress
}

func KnownToken(chain, symbol string) (Token, bool) {
	for _, t := range tokenRegistry[NormalizeChain(chain)] {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return Token{}, false
}
