package wallet

import (
	"fmt"
	"sort"
)

// NetworkConfig describes one supported chain. Configs are immutable;
// the registry is fixed at construction and never edited at runtime.
type NetworkConfig struct {
	Name     string // human-readable name
	RPCURL   string // JSON-RPC endpoint
	ChainID  int64  // EIP-155 chain id
	Symbol   string // native currency symbol
	Explorer string // block explorer host, no scheme
}

// Registry maps a network key to its configuration.
type Registry map[string]NetworkConfig

// DefaultRegistry returns the supported networks.
func DefaultRegistry() Registry {
	return Registry{
		"ethereum": {
			Name:     "Ethereum",
			RPCURL:   "https://eth.llamarpc.com",
			ChainID:  1,
			Symbol:   "ETH",
			Explorer: "etherscan.io",
		},
		"polygon": {
			Name:     "Polygon",
			RPCURL:   "https://polygon-rpc.com",
			ChainID:  137,
			Symbol:   "MATIC",
			Explorer: "polygonscan.com",
		},
		"mumbai": {
			Name:     "Mumbai Testnet",
			RPCURL:   "https://rpc-mumbai.maticvigil.com",
			ChainID:  80001,
			Symbol:   "MATIC",
			Explorer: "mumbai.polygonscan.com",
		},
	}
}

// Get looks up a network by key.
func (r Registry) Get(key string) (NetworkConfig, error) {
	cfg, ok := r[key]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, key)
	}
	return cfg, nil
}

// Keys returns the network keys in sorted order.
func (r Registry) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
