package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account is an address/private-key pair controlling on-chain assets.
// The key stays inside this package; callers only get the address and
// the signing operation.
type Account struct {
	address common.Address
	key     *ecdsa.PrivateKey
}

func newAccount(key *ecdsa.PrivateKey) *Account {
	return &Account{
		address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
}

// GenerateAccount creates an account with a fresh random key.
func GenerateAccount() (*Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return newAccount(key), nil
}

// AccountFromHex derives an account from a hex-encoded private key,
// with or without the 0x prefix.
func AccountFromHex(raw string) (*Account, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "0x")
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return newAccount(key), nil
}

// Address returns the account's 20-byte address.
func (a *Account) Address() common.Address {
	return a.address
}

// Hex returns the address as a 42-character 0x-prefixed hex string.
func (a *Account) Hex() string {
	return a.address.Hex()
}

// Short returns a truncated display form of the address,
// e.g. 0x1a2b3c...d4e5f6.
func (a *Account) Short(chars int) string {
	hex := a.Hex()
	if len(hex) <= chars*2+4 {
		return hex
	}
	return hex[:2+chars] + "..." + hex[len(hex)-chars:]
}

// SignTx signs a transaction for the given chain id using EIP-155
// replay protection. This is the only operation exposed on the key.
func (a *Account) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), a.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

// keyHex returns the raw key as hex for keystore persistence.
func (a *Account) keyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(a.key))
}

// zero scrubs the private scalar. Called when the account is replaced.
func (a *Account) zero() {
	if a.key == nil {
		return
	}
	bits := a.key.D.Bits()
	for i := range bits {
		bits[i] = 0
	}
}
