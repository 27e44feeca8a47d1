package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"

	"github.com/vanta-studio/vanta/internal/ipfs"
)

// formatEther renders a wei amount as a decimal coin amount with four
// fractional digits.
func formatEther(wei *big.Int) string {
	if wei == nil || wei.Sign() == 0 {
		return "0.0000"
	}
	r := new(big.Rat).SetFrac(wei, big.NewInt(params.Ether))
	return r.FloatString(4)
}

// parseAttributes parses "k=v,k=v" into metadata attributes.
func parseAttributes(s string) ([]ipfs.Attribute, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	attrs := make([]ipfs.Attribute, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return nil, fmt.Errorf("%q is not k=v", p)
		}
		attrs = append(attrs, ipfs.Attribute{
			TraitType: strings.TrimSpace(kv[0]),
			Value:     strings.TrimSpace(kv[1]),
		})
	}
	return attrs, nil
}
