// Package nft binds the per-network minting contract and exposes the
// mint operation, with a deterministic mock path for networks without
// a deployed contract.
package nft

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/vanta-studio/vanta/internal/chain"
	"github.com/vanta-studio/vanta/internal/log"
	"github.com/vanta-studio/vanta/internal/wallet"
)

// mintABI is the contract surface the gateway binds: the mint entry
// point plus the read-path conveniences and the transfer event.
const mintABI = `[
	{"inputs":[{"name":"to","type":"address"},{"name":"uri","type":"string"}],"name":"mintNFT","outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":true,"name":"tokenId","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// MockContract is the contract tag on results produced without a
// network call. Callers must never confuse a mock result with a real
// confirmation.
const MockContract = "mock"

// mockExplorer is the placeholder explorer link on mock results.
const mockExplorer = "https://example.com"

// MintResult is the terminal value of a successful mint.
type MintResult struct {
	TxHash   string `json:"tx_hash"`
	TokenID  string `json:"token_id"`
	Contract string `json:"contract"`
	Explorer string `json:"explorer"`
}

// IsMock reports whether this result came from the mock path.
func (r *MintResult) IsMock() bool {
	return r.Contract == MockContract
}

// Gateway binds the minting contract for whichever network the wallet
// is currently on.
type Gateway struct {
	wallet    *wallet.State
	broker    *chain.Broker
	contracts map[string]common.Address // network key -> deployed contract
	gasLimit  uint64
	abi       abi.ABI
	log       zerolog.Logger
}

// NewGateway creates a gateway from a network->contract-address table.
// Networks absent from the table mint in mock mode.
func NewGateway(w *wallet.State, broker *chain.Broker, contracts map[string]string, gasLimit uint64) (*Gateway, error) {
	parsed, err := abi.JSON(strings.NewReader(mintABI))
	if err != nil {
		return nil, fmt.Errorf("parse mint abi: %w", err)
	}

	table := make(map[string]common.Address, len(contracts))
	for network, addr := range contracts {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("contract for %s: %q is not a valid address", network, addr)
		}
		table[network] = common.HexToAddress(addr)
	}

	return &Gateway{
		wallet:    w,
		broker:    broker,
		contracts: table,
		gasLimit:  gasLimit,
		abi:       parsed,
		log:       log.NFT,
	}, nil
}

// Mint mints a token pointing at metadataURI. A nil recipient mints to
// the wallet's own address. Without a contract configured for the
// active network the result is derived deterministically from the
// inputs and tagged as mock.
func (g *Gateway) Mint(ctx context.Context, metadataURI string, recipient *common.Address) (*MintResult, error) {
	binding, err := g.wallet.AcquireTx()
	if err != nil {
		if !errors.Is(err, wallet.ErrUnbound) {
			return nil, err
		}
		// Unbound wallet. Mock is only acceptable when the network has
		// no contract; a configured contract must never silently
		// degrade to a mock result.
		network := g.wallet.CurrentNetwork()
		if _, ok := g.contracts[network]; ok {
			return nil, fmt.Errorf("mint on %s: %w", network, err)
		}
		return g.mockMint(network, metadataURI, recipient), nil
	}

	// Network, contract, recipient default, and explorer all resolve
	// from the lease; a switch landing mid-mint cannot slip another
	// network's contract address into the signed payload.
	network := binding.Network()
	contract, ok := g.contracts[network]
	if !ok {
		binding.Release()
		return g.mockMint(network, metadataURI, recipient), nil
	}

	to := binding.Signer().Address()
	if recipient != nil {
		to = *recipient
	}

	data, err := g.abi.Pack("mintNFT", to, metadataURI)
	if err != nil {
		binding.Release()
		return nil, fmt.Errorf("encode mint call: %w", err)
	}

	g.log.Info().
		Str("contract", contract.Hex()).
		Str("recipient", to.Hex()).
		Str("metadata", metadataURI).
		Msg("minting")

	receipt, err := g.broker.SubmitAndConfirm(ctx, binding, contract, data, g.gasLimit)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}

	// The token id is taken from the confirming block number rather
	// than parsed out of the Transfer event log. Stable and unique
	// within a run, but not the authoritative on-chain id.
	tokenID := receipt.BlockNumber.String()
	txHash := receipt.TxHash.Hex()

	g.log.Info().Str("token_id", tokenID).Str("tx", txHash).Msg("minted")
	return &MintResult{
		TxHash:   txHash,
		TokenID:  tokenID,
		Contract: contract.Hex(),
		Explorer: fmt.Sprintf("https://%s/tx/%s", binding.Explorer(), txHash),
	}, nil
}

// mockMint derives a result from the inputs alone. No network call.
func (g *Gateway) mockMint(network, metadataURI string, recipient *common.Address) *MintResult {
	h := blake3.New()
	h.WriteString(network)
	h.WriteString("|")
	h.WriteString(metadataURI)
	if recipient != nil {
		h.Write(recipient.Bytes())
	}
	sum := h.Sum(nil)

	tokenID := fmt.Sprintf("%d", binary.BigEndian.Uint64(sum[:8]))
	txHash := "0x" + hex.EncodeToString(sum[:32])

	g.log.Info().Str("token_id", tokenID).Str("network", network).Msg("mock mint, no contract configured")
	return &MintResult{
		TxHash:   txHash,
		TokenID:  tokenID,
		Contract: MockContract,
		Explorer: mockExplorer,
	}
}

// HasContract reports whether a real contract is configured for a
// network key.
func (g *Gateway) HasContract(network string) bool {
	_, ok := g.contracts[network]
	return ok
}

// TokenURI reads the metadata URI of a minted token. Requires a bound
// wallet and a configured contract.
func (g *Gateway) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	out, err := g.call(ctx, "tokenURI", tokenID)
	if err != nil {
		return "", err
	}
	vals, err := g.abi.Unpack("tokenURI", out)
	if err != nil {
		return "", fmt.Errorf("decode tokenURI: %w", err)
	}
	uri, ok := vals[0].(string)
	if !ok {
		return "", fmt.Errorf("decode tokenURI: unexpected type %T", vals[0])
	}
	return uri, nil
}

// TotalSupply reads the number of tokens minted by the contract.
func (g *Gateway) TotalSupply(ctx context.Context) (*big.Int, error) {
	out, err := g.call(ctx, "totalSupply")
	if err != nil {
		return nil, err
	}
	vals, err := g.abi.Unpack("totalSupply", out)
	if err != nil {
		return nil, fmt.Errorf("decode totalSupply: %w", err)
	}
	supply, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode totalSupply: unexpected type %T", vals[0])
	}
	return supply, nil
}

// call performs a read-only contract call against the leased network.
func (g *Gateway) call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	binding, err := g.wallet.AcquireTx()
	if err != nil {
		return nil, err
	}
	network := binding.Network()
	client := binding.Client().Retain()
	binding.Release()
	defer client.Close()

	contract, ok := g.contracts[network]
	if !ok {
		return nil, fmt.Errorf("%s: no contract configured for %s", method, network)
	}

	data, err := g.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}

	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}
