package chain

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer signs transactions without exposing its key material.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// NetworkInfo is the registry snapshot a binding was created under.
// Callers resolve everything network-dependent (contract address,
// explorer host) from this snapshot, never by re-reading mutable
// wallet state after the lease was taken.
type NetworkInfo struct {
	Key      string
	ChainID  int64
	Explorer string
}

// Binding is an exclusive lease on a wallet's live connection and
// account. While a binding is held, network switches and account
// replacement block, so a concurrent switch cannot interleave with an
// in-progress build/sign/broadcast. Release must be called exactly once
// when the signed payload has been handed to the node.
type Binding struct {
	client *Client
	signer Signer
	net    NetworkInfo

	once    sync.Once
	release func()
}

// NewBinding wraps a client/signer pair and its network snapshot with
// the release callback.
func NewBinding(client *Client, signer Signer, net NetworkInfo, release func()) *Binding {
	return &Binding{client: client, signer: signer, net: net, release: release}
}

// Client returns the bound connection.
func (b *Binding) Client() *Client {
	return b.client
}

// Signer returns the bound account signer.
func (b *Binding) Signer() Signer {
	return b.signer
}

// Network returns the key of the network the lease was taken on.
func (b *Binding) Network() string {
	return b.net.Key
}

// ChainID returns the chain id the wallet believes it is bound to.
func (b *Binding) ChainID() int64 {
	return b.net.ChainID
}

// Explorer returns the block-explorer host of the leased network.
func (b *Binding) Explorer() string {
	return b.net.Explorer
}

// Release ends the exclusive lease. Safe to call more than once.
func (b *Binding) Release() {
	b.once.Do(func() {
		if b.release != nil {
			b.release()
		}
	})
}
