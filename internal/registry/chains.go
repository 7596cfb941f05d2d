package registry

import "strings"

// Canonical chain slugs and numeric chain ids used across adapters.
// The solana and arweave ids follow the aggregation wire format rather
// than any on-chain convention.
var chainIDBySlug = map[string]int64{
	"ethereum":  1,
	"bsc":       56,
	"polygon":   137,
	"arbitrum":  42161,
	"optimism":  10,
	"avalanche": 43114,
	"solana":    7565164,
	"base":      8453,
	"arweave":   100,
}

var chainSlugByID = func() map[int64]string {
	out := make(map[int64]string, len(chainIDBySlug))
	for slug, id := range chainIDBySlug {
		out[id] = slug
	}
	return out
}()

func ChainID(slug string) (int64, bool) {
	id, ok := chainIDBySlug[NormalizeChain(slug)]
	return id, ok
}

func ChainSlug(id int64) (string, bool) {
	slug, ok := chainSlugByID[id]
	return slug, ok
}

func KnownChain(slug string) bool {
	_, ok := chainIDBySlug[NormalizeChain(slug)]
	return ok
}

func NormalizeChain(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
