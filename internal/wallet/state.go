// Package wallet implements account custody and the process-wide
// wallet state: one account, one active network, one chain connection.
package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/vanta-studio/vanta/internal/chain"
	"github.com/vanta-studio/vanta/internal/log"
)

// State combines the keystore account, the active network, and the
// chain connection behind one mutex. It is constructed once by the
// application's composition root and shared by reference; there is no
// hidden global.
type State struct {
	registry Registry
	keystore *Keystore
	log      zerolog.Logger

	mu      sync.Mutex
	account *Account
	network string
	client  *chain.Client // nil while unbound

	listenerMu sync.Mutex
	listeners  []func()
}

// NewState loads (or creates) the wallet account and binds to the
// default network. A failed initial connection leaves the wallet
// unbound but usable; every later operation that needs the chain
// reports ErrUnbound instead.
func NewState(ks *Keystore, registry Registry, defaultNetwork string) (*State, error) {
	cfg, err := registry.Get(defaultNetwork)
	if err != nil {
		return nil, err
	}

	acct, err := ks.LoadOrCreate()
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	s := &State{
		registry: registry,
		keystore: ks,
		log:      log.Wallet,
		account:  acct,
		network:  defaultNetwork,
	}

	client, err := chain.Dial(cfg.RPCURL, cfg.ChainID)
	if err != nil {
		s.log.Warn().Err(err).Str("network", defaultNetwork).Msg("initial connection failed, wallet is unbound")
	} else {
		s.client = client
		s.log.Info().Str("network", cfg.Name).Msg("connected")
	}
	return s, nil
}

// AddListener registers a callback invoked after every committed state
// change (network switch, account replacement). Listeners run in
// registration order; a panicking listener is logged and does not stop
// the rest, nor does it propagate to the mutating caller.
func (s *State) AddListener(fn func()) {
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenerMu.Unlock()
}

func (s *State) notify() {
	s.listenerMu.Lock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.Unlock()

	for i, fn := range listeners {
		s.invokeListener(i, fn)
	}
}

func (s *State) invokeListener(i int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Int("listener", i).Interface("panic", r).Msg("listener panicked")
		}
	}()
	fn()
}

// SwitchNetwork moves the wallet to another network: commit when the
// target endpoint is reachable (or the switch is a no-op), roll back to
// the previous network otherwise. The wallet is never left pointing at
// an unreachable target. Blocks for at most the connect timeout.
func (s *State) SwitchNetwork(target string) error {
	cfg, err := s.registry.Get(target)
	if err != nil {
		return err
	}

	s.mu.Lock()
	previous := s.network

	client, dialErr := chain.Dial(cfg.RPCURL, cfg.ChainID)
	if dialErr == nil {
		if s.client != nil {
			s.client.Close()
		}
		s.client = client
		s.network = target
		s.mu.Unlock()
		s.log.Info().Str("network", cfg.Name).Msg("switched network")
		s.notify()
		return nil
	}

	if target == previous {
		// A no-op switch commits even when the reconnect failed; the
		// wallet already pointed here and its bound/unbound status is
		// unchanged.
		s.mu.Unlock()
		s.log.Warn().Err(dialErr).Str("network", cfg.Name).Msg("reconnect failed")
		s.notify()
		return nil
	}

	// Roll back. The previous client, if any, is still in place. If we
	// were unbound, try the previous endpoint once more; its failure
	// does not change the outcome.
	if s.client == nil {
		if prevCfg, err := s.registry.Get(previous); err == nil {
			if prevClient, err := chain.Dial(prevCfg.RPCURL, prevCfg.ChainID); err == nil {
				s.client = prevClient
			} else {
				s.log.Warn().Err(err).Str("network", previous).Msg("rollback reconnect failed, wallet stays unbound")
			}
		}
	}
	s.mu.Unlock()
	s.log.Warn().Err(dialErr).Str("network", target).Msg("switch failed, rolled back")
	return fmt.Errorf("connect %s: %w", target, ErrNetworkUnreachable)
}

// ReplaceKey imports a raw hex private key as the new active account.
// The previous key is scrubbed. Listeners fire on success.
func (s *State) ReplaceKey(rawKeyHex string) (*Account, error) {
	acct, err := s.keystore.Replace(rawKeyHex)
	if err != nil {
		return nil, err
	}
	s.adoptAccount(acct)
	return acct, nil
}

// ReplaceMnemonic imports a BIP-39 mnemonic as the new active account.
func (s *State) ReplaceMnemonic(mnemonic string) (*Account, error) {
	acct, err := s.keystore.ReplaceMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	s.adoptAccount(acct)
	return acct, nil
}

func (s *State) adoptAccount(acct *Account) {
	s.mu.Lock()
	if s.account != nil {
		s.account.zero()
	}
	s.account = acct
	s.mu.Unlock()
	s.notify()
}

// AcquireTx locks the wallet and leases out its live binding for one
// build/sign/broadcast sequence. Returns ErrUnbound when there is no
// connection or no account. The caller must Release the binding.
func (s *State) AcquireTx() (*chain.Binding, error) {
	s.mu.Lock()
	if s.client == nil || s.account == nil {
		s.mu.Unlock()
		return nil, ErrUnbound
	}
	cfg := s.registry[s.network]
	info := chain.NetworkInfo{Key: s.network, ChainID: cfg.ChainID, Explorer: cfg.Explorer}
	return chain.NewBinding(s.client, s.account, info, s.mu.Unlock), nil
}

// Balance reads the native-token balance of the active account. A
// disconnected wallet reports zero, never an error; balance display
// must always work.
func (s *State) Balance(ctx context.Context) *big.Int {
	s.mu.Lock()
	client, acct := s.client, s.account
	s.mu.Unlock()

	if client == nil || acct == nil {
		return new(big.Int)
	}
	bal, err := client.Balance(ctx, acct.Address())
	if err != nil {
		s.log.Warn().Err(err).Msg("balance read failed")
		return new(big.Int)
	}
	return bal
}

// Address returns the active account's address, or the zero address
// before the first load.
func (s *State) Address() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return common.Address{}
	}
	return s.account.Address()
}

// AddressHex returns the active address as a 0x-prefixed hex string.
func (s *State) AddressHex() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return ""
	}
	return s.account.Hex()
}

// ShortAddress returns a truncated display form of the active address.
func (s *State) ShortAddress(chars int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return ""
	}
	return s.account.Short(chars)
}

// CurrentNetwork returns the active network key.
func (s *State) CurrentNetwork() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.network
}

// NetworkConfig returns the active network's configuration.
func (s *State) NetworkConfig() NetworkConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry[s.network]
}

// Registry returns the network registry.
func (s *State) Registry() Registry {
	return s.registry
}

// IsConnected reports whether the wallet is bound to a live client.
func (s *State) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// ValidateAddress reports whether a string is a well-formed address.
func (s *State) ValidateAddress(addr string) bool {
	return common.IsHexAddress(addr)
}

// Close tears down the chain connection.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}
