package registry

// Chain-explorer API endpoints used for contract ABI verification.
var explorerAPIByChainID = map[int64]string{
	1:     "https://api.etherscan.io",
	56:    "https://api.bscscan.com",
	137:   "https://api.polygonscan.com",
	42161: "https://api.arbiscan.io",
	10:    "https://api-optimistic.etherscan.io",
	43114: "https://api.snowtrace.io",
	8453:  "https://api.basescan.org",
}

func ExplorerAPI(chainID int64) (string, bool) {
	value, ok := explorerAPIByChainID[chainID]
	return value, ok
}
