package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/vanta-studio/vanta/internal/log"
)

// walletFile is the on-disk JSON format for the wallet key.
type walletFile struct {
	PrivateKey string `json:"private_key"`
	Address    string `json:"address"`
	CreatedAt  string `json:"created_at"`
}

// Keystore manages the single wallet key file on disk.
type Keystore struct {
	path string
	log  zerolog.Logger
}

// NewKeystore creates a keystore that reads/writes the given file.
func NewKeystore(path string) *Keystore {
	return &Keystore{path: path, log: log.Wallet}
}

// LoadOrCreate reads the key from disk, or generates and persists a new
// one when the file is missing or unreadable. An existing valid key is
// never discarded; repeated calls return the same address.
func (ks *Keystore) LoadOrCreate() (*Account, error) {
	data, err := os.ReadFile(ks.path)
	if err == nil {
		var wf walletFile
		if jerr := json.Unmarshal(data, &wf); jerr == nil && wf.PrivateKey != "" {
			acct, aerr := AccountFromHex(wf.PrivateKey)
			if aerr == nil {
				ks.log.Info().Str("address", acct.Short(6)).Msg("wallet loaded")
				return acct, nil
			}
			ks.log.Warn().Err(aerr).Msg("stored key unreadable, creating new wallet")
		} else {
			ks.log.Warn().Msg("wallet file corrupt, creating new wallet")
		}
	} else if !os.IsNotExist(err) {
		ks.log.Warn().Err(err).Msg("wallet file unreadable, creating new wallet")
	}

	acct, err := GenerateAccount()
	if err != nil {
		return nil, err
	}
	if err := ks.Persist(acct); err != nil {
		return nil, err
	}
	ks.log.Info().Str("address", acct.Short(6)).Msg("new wallet created")
	return acct, nil
}

// Replace derives an account from a hex-encoded key, persists it, and
// returns it. This is the only path (besides ReplaceMnemonic) that may
// change the active account identity. Nothing is persisted on a
// malformed key.
func (ks *Keystore) Replace(rawKeyHex string) (*Account, error) {
	acct, err := AccountFromHex(rawKeyHex)
	if err != nil {
		return nil, err
	}
	if err := ks.Persist(acct); err != nil {
		return nil, err
	}
	ks.log.Info().Str("address", acct.Short(6)).Msg("wallet key replaced")
	return acct, nil
}

// Persist writes the account to disk with owner-only permissions.
// The file is replaced atomically so a crash cannot leave a partial
// wallet behind. A chmod failure is logged, not fatal (Windows has no
// Unix permissions).
func (ks *Keystore) Persist(acct *Account) error {
	wf := walletFile{
		PrivateKey: acct.keyHex(),
		Address:    acct.Hex(),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(&wf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}

	if dir := filepath.Dir(ks.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create wallet dir: %w", err)
		}
	}

	tmp := ks.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	if err := os.Rename(tmp, ks.path); err != nil {
		return fmt.Errorf("replace wallet file: %w", err)
	}
	if err := os.Chmod(ks.path, 0600); err != nil {
		ks.log.Warn().Err(err).Msg("could not restrict wallet file permissions")
	}
	return nil
}

// Path returns the wallet file location.
func (ks *Keystore) Path() string {
	return ks.path
}
