package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// contractKeyPrefix names per-network contract entries, e.g.
// nft.contract.polygon = 0x...
const contractKeyPrefix = "nft.contract."

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	if network := strings.TrimPrefix(key, contractKeyPrefix); network != key {
		if network == "" {
			return fmt.Errorf("missing network key after %q", contractKeyPrefix)
		}
		if cfg.NFT.Contracts == nil {
			cfg.NFT.Contracts = make(map[string]string)
		}
		cfg.NFT.Contracts[network] = value
		return nil
	}

	switch key {
	// Core
	case "network":
		cfg.Network = value
	case "datadir":
		cfg.DataDir = value

	// Gas policy
	case "gas.price_gwei":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Gas.PriceGwei = n
	case "gas.mint_limit":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Gas.MintLimit = n

	// IPFS
	case "ipfs.endpoint":
		cfg.IPFS.Endpoint = value
	case "ipfs.api_key":
		cfg.IPFS.APIKey = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// SetFileValue rewrites one key's assignment in a conf file, leaving
// every other line (comments included) untouched. A key without an
// assignment is appended; a missing file is created holding just the
// one assignment.
func SetFileValue(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return os.WriteFile(path, []byte(key+" = "+value+"\n"), 0644)
		}
		return err
	}

	lines := strings.Split(string(data), "\n")
	replaced := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		parts := strings.SplitN(trimmed, "=", 2)
		if len(parts) == 2 && strings.TrimSpace(parts[0]) == key {
			lines[i] = key + " = " + value
			replaced = true
		}
	}

	out := strings.Join(lines, "\n")
	if !replaced {
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += key + " = " + value + "\n"
	}
	return os.WriteFile(path, []byte(out), 0644)
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path, network string) error {
	content := `# Vanta Configuration

# Active network: ethereum, polygon, or mumbai
network = ` + network + `

# Data directory (default: ~/.vanta)
# datadir = ~/.vanta

# ============================================================================
# Transaction Policy
# ============================================================================

gas.price_gwei = 30
gas.mint_limit = 300000

# ============================================================================
# Minting Contracts
# ============================================================================

# Deployed contract per network. Networks without an entry mint in
# mock mode.
# nft.contract.polygon = 0x0000000000000000000000000000000000000000
# nft.contract.mumbai = 0x0000000000000000000000000000000000000000

# ============================================================================
# IPFS Uploads
# ============================================================================

# ipfs.endpoint = https://api.nft.storage/upload

# NFT.Storage API key. Leave unset to upload in mock mode.
# ipfs.api_key =

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
