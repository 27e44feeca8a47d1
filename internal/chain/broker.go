package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"

	"github.com/vanta-studio/vanta/internal/log"
)

// Broker builds, signs, submits, and confirms single on-chain
// transactions against whatever network the wallet is currently bound
// to. It applies a fixed gas price policy and never retries; retry
// policy belongs to the caller.
type Broker struct {
	gasPrice    *big.Int // wei
	confirmWait time.Duration
	log         zerolog.Logger
}

// NewBroker creates a broker with the given gas price in gwei.
func NewBroker(gasPriceGwei int64) *Broker {
	return &Broker{
		gasPrice:    new(big.Int).Mul(big.NewInt(gasPriceGwei), big.NewInt(params.GWei)),
		confirmWait: ConfirmTimeout,
		log:         log.Chain,
	}
}

// SubmitAndConfirm runs the full pipeline for one contract call on an
// already-acquired binding: re-read the nonce, build, sign, broadcast,
// release the binding, then wait for the receipt. The binding is
// released on every path.
//
// Each stage's failure is distinguishable: ErrChainMismatch,
// ErrBroadcastRejected, ErrConfirmationTimeout, and
// ErrContractRejected for a receipt with failure status.
func (br *Broker) SubmitAndConfirm(ctx context.Context, binding *Binding, to common.Address, data []byte, gasLimit uint64) (*types.Receipt, error) {
	// The receipt wait runs on a retained client outside the exclusion
	// scope; holding the wallet locked for up to two minutes would
	// block every switch, and a switch closing the old connection
	// mid-wait must not abort a transaction that already broadcast.
	client := binding.Client().Retain()
	defer client.Close()

	signed, err := br.broadcast(ctx, binding, to, data, gasLimit)
	binding.Release()
	if err != nil {
		return nil, err
	}

	receipt, err := client.WaitReceipt(ctx, signed.Hash(), br.confirmWait)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("tx %s: %w", signed.Hash().Hex(), ErrContractRejected)
	}

	br.log.Info().
		Str("tx", signed.Hash().Hex()).
		Uint64("block", receipt.BlockNumber.Uint64()).
		Msg("transaction confirmed")
	return receipt, nil
}

// broadcast builds, signs, and submits the transaction while the
// wallet binding is held.
func (br *Broker) broadcast(ctx context.Context, binding *Binding, to common.Address, data []byte, gasLimit uint64) (*types.Transaction, error) {
	client, signer := binding.Client(), binding.Signer()

	if client.ChainID().Int64() != binding.ChainID() {
		return nil, fmt.Errorf("%w: bound to chain %d but client reports %d",
			ErrChainMismatch, binding.ChainID(), client.ChainID().Int64())
	}

	// The nonce is read fresh for every submission; a cached nonce
	// would be rejected at broadcast.
	nonce, err := client.PendingNonce(ctx, signer.Address())
	if err != nil {
		return nil, err
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, br.gasPrice, data)
	signed, err := signer.SignTx(tx, client.ChainID())
	if err != nil {
		return nil, err
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBroadcastRejected, err)
	}

	br.log.Info().
		Str("tx", signed.Hash().Hex()).
		Uint64("nonce", nonce).
		Str("to", to.Hex()).
		Msg("transaction broadcast")
	return signed, nil
}

// SetConfirmWait overrides the confirmation window. Used by tests; the
// production value is fixed policy.
func (br *Broker) SetConfirmWait(d time.Duration) {
	br.confirmWait = d
}
