package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Validate checks the config for obvious operator mistakes. Whether the
// network key exists is checked against the registry at wiring time.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network == "" {
		return fmt.Errorf("network must not be empty")
	}
	if cfg.Gas.PriceGwei <= 0 {
		return fmt.Errorf("gas.price_gwei must be positive")
	}
	if cfg.Gas.MintLimit == 0 {
		return fmt.Errorf("gas.mint_limit must be positive")
	}
	for network, addr := range cfg.NFT.Contracts {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("nft.contract.%s: %q is not a valid address", network, addr)
		}
	}
	return nil
}
