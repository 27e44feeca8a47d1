package config

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Network: "polygon",
		DataDir: DefaultDataDir(),
		Gas: GasConfig{
			PriceGwei: 30,
			MintLimit: 300000,
		},
		NFT: NFTConfig{
			Contracts: map[string]string{},
		},
		IPFS: IPFSConfig{
			Endpoint: "https://api.nft.storage/upload",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
