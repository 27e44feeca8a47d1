package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// BIP-44 derivation path constants for the standard Ethereum account:
// m/44'/60'/0'/0/0.
const (
	purposeBIP44 = bip32.FirstHardenedChild + 44
	coinTypeEth  = bip32.FirstHardenedChild + 60
)

// ValidateMnemonic checks if a mnemonic is valid per BIP-39
// (correct word count, valid words, valid checksum).
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(normalizeMnemonic(mnemonic))
}

// AccountFromMnemonic derives the account at m/44'/60'/0'/0/0 from a
// BIP-39 mnemonic phrase.
func AccountFromMnemonic(mnemonic string) (*Account, error) {
	mnemonic = normalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("%w: not a valid BIP-39 mnemonic", ErrInvalidKey)
	}

	seed := bip39.NewSeed(mnemonic, "")
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	for _, index := range []uint32{
		purposeBIP44,
		coinTypeEth,
		bip32.FirstHardenedChild, // account 0'
		0,                        // external chain
		0,                        // address index 0
	} {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", index, err)
		}
	}

	priv, err := crypto.ToECDSA(privateKeyBytes(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return newAccount(priv), nil
}

// ReplaceMnemonic derives an account from a mnemonic, persists it, and
// returns it. Behaves like Replace for every other purpose.
func (ks *Keystore) ReplaceMnemonic(mnemonic string) (*Account, error) {
	acct, err := AccountFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	if err := ks.Persist(acct); err != nil {
		return nil, err
	}
	ks.log.Info().Str("address", acct.Short(6)).Msg("wallet imported from mnemonic")
	return acct, nil
}

// privateKeyBytes normalizes the bip32 scalar to exactly 32 bytes. The
// stored form may carry a leading 0x00 pad, or come up short when the
// derived scalar itself has leading zero bytes; both are valid keys.
func privateKeyBytes(key *bip32.Key) []byte {
	raw := key.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	if len(raw) >= 32 {
		return raw
	}
	padded := make([]byte, 32)
	copy(padded[32-len(raw):], raw)
	return padded
}

func normalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}
