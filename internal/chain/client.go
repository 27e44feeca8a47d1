// Package chain wraps the JSON-RPC connection to one network and the
// transaction submission pipeline built on top of it.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Timeouts are fixed policy, not user-configurable.
const (
	// DialTimeout bounds the initial connection probe to an endpoint.
	DialTimeout = 10 * time.Second

	// ConfirmTimeout bounds the wait for a transaction receipt.
	ConfirmTimeout = 120 * time.Second

	// receiptPollInterval is how often the receipt is re-checked.
	receiptPollInterval = 2 * time.Second

	// rpcTimeout bounds any single RPC round trip after the dial probe.
	// Nonce reads and broadcasts run while the wallet is locked; an
	// endpoint that accepts the request and never answers must not hold
	// that lock open.
	rpcTimeout = 15 * time.Second
)

var (
	// ErrChainMismatch is returned when an endpoint reports a chain id
	// other than the one the registry promises. Signing against the
	// wrong chain id would produce a validly-signed wrong-network
	// transaction, so this is fatal, never silently corrected.
	ErrChainMismatch = errors.New("chain id mismatch")

	// ErrBroadcastRejected is returned when the node rejects a signed
	// transaction synchronously.
	ErrBroadcastRejected = errors.New("broadcast rejected")

	// ErrConfirmationTimeout is returned when no receipt appears within
	// the confirmation window.
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	// ErrContractRejected is returned when the receipt reports a failed
	// execution, as opposed to a network-level failure.
	ErrContractRejected = errors.New("contract execution failed")
)

// Client is a verified connection to one network's RPC endpoint.
// It is stateless beyond the underlying HTTP session. The connection
// is reference counted: Dial hands out the owner's reference, Retain
// takes another, and the last Close tears the session down.
type Client struct {
	eth      *ethclient.Client
	endpoint string
	chainID  *big.Int
	refs     atomic.Int32
}

// Dial connects to an RPC endpoint and proves it is both reachable and
// the network we expect, within DialTimeout.
func Dial(endpoint string, wantChainID int64) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DialTimeout)
	defer cancel()

	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	id, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain id probe %s: %w", endpoint, err)
	}
	if id.Int64() != wantChainID {
		eth.Close()
		return nil, fmt.Errorf("%w: endpoint %s reports chain %d, want %d",
			ErrChainMismatch, endpoint, id.Int64(), wantChainID)
	}

	c := &Client{eth: eth, endpoint: endpoint, chainID: id}
	c.refs.Store(1)
	return c, nil
}

// ChainID returns the verified chain id of the connected network.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Endpoint returns the RPC URL this client is connected to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// PendingNonce returns the next transaction nonce for an address,
// including pending transactions.
func (c *Client) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("read nonce: %w", err)
	}
	return nonce, nil
}

// Balance returns the native-token balance of an address in wei.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	return bal, nil
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return c.eth.SendTransaction(ctx, tx)
}

// CallContract executes a read-only contract call.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return c.eth.CallContract(ctx, msg, nil)
}

// WaitReceipt polls for the receipt of a broadcast transaction until it
// lands, the timeout elapses (ErrConfirmationTimeout), or the context
// is cancelled.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(receiptPollInterval)
	defer tick.Stop()

	for {
		// Each poll carries its own bound; a node that accepts the
		// request and never answers must not outlive the window.
		pollCtx, pollCancel := context.WithTimeout(waitCtx, receiptPollInterval)
		receipt, err := c.eth.TransactionReceipt(pollCtx, hash)
		pollCancel()
		if err == nil {
			return receipt, nil
		}
		// Not-found and transient errors are both retried until the
		// deadline; the node may still be indexing the transaction.

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("tx %s: %w", hash.Hex(), ErrConfirmationTimeout)
		case <-tick.C:
		}
	}
}

// Retain takes an additional reference so the connection survives the
// owner's Close. Work that outlives the wallet's exclusion scope, the
// receipt wait above all, retains the client first; a network switch
// closing the old connection mid-wait would otherwise abort an
// already-broadcast transaction.
func (c *Client) Retain() *Client {
	c.refs.Add(1)
	return c
}

// Close drops one reference and releases the underlying connection
// when the last one goes.
func (c *Client) Close() {
	if c.refs.Add(-1) == 0 {
		c.eth.Close()
	}
}
