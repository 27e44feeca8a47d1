// Package config handles application configuration.
//
// Settings are resolved in three layers, each overriding the last:
// built-in defaults, the vanta.conf file, then VANTA_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration.
type Config struct {
	// Core
	Network string `conf:"network" envconfig:"NETWORK"`
	DataDir string `conf:"datadir" envconfig:"DATADIR"`

	// Transaction policy
	Gas GasConfig

	// Minting contracts
	NFT NFTConfig

	// Content uploads
	IPFS IPFSConfig

	// Logging
	Log LogConfig
}

// GasConfig holds the fixed transaction pricing policy.
type GasConfig struct {
	PriceGwei int64  `conf:"gas.price_gwei" envconfig:"PRICE_GWEI"`
	MintLimit uint64 `conf:"gas.mint_limit" envconfig:"MINT_LIMIT"`
}

// NFTConfig maps network keys to deployed contract addresses. Networks
// without an entry mint in mock mode.
type NFTConfig struct {
	Contracts map[string]string `envconfig:"CONTRACTS"`
}

// IPFSConfig holds NFT.Storage upload settings. An empty APIKey selects
// mock uploads.
type IPFSConfig struct {
	Endpoint string `conf:"ipfs.endpoint" envconfig:"ENDPOINT"`
	APIKey   string `conf:"ipfs.api_key" envconfig:"API_KEY"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level" envconfig:"LEVEL"`
	File  string `conf:"log.file" envconfig:"FILE"`
	JSON  bool   `conf:"log.json" envconfig:"JSON"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.vanta
//	macOS:   ~/Library/Application Support/Vanta
//	Windows: %APPDATA%\Vanta
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vanta"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Vanta")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Vanta")
		}
		return filepath.Join(home, "AppData", "Roaming", "Vanta")
	default:
		return filepath.Join(home, ".vanta")
	}
}

// WalletFile returns the wallet persistence file path.
func (c *Config) WalletFile() string {
	return filepath.Join(c.DataDir, "vanta_wallet.json")
}

// RecordsFile returns the mint record store path.
func (c *Config) RecordsFile() string {
	return filepath.Join(c.DataDir, "my_nfts.json")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "vanta.conf")
}

// Load resolves the full configuration: defaults, then the conf file at
// path (or the default location when path is empty), then VANTA_*
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = cfg.ConfigFile()
	}

	values, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := ApplyFileConfig(cfg, values); err != nil {
		return nil, err
	}

	if err := envconfig.Process("vanta", cfg); err != nil {
		return nil, fmt.Errorf("environment config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
