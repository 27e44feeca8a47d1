// vanta-cli is the command-line client for the Vanta wallet and
// minting studio.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/term"

	"github.com/vanta-studio/vanta/config"
	"github.com/vanta-studio/vanta/internal/chain"
	"github.com/vanta-studio/vanta/internal/ipfs"
	"github.com/vanta-studio/vanta/internal/log"
	"github.com/vanta-studio/vanta/internal/mint"
	"github.com/vanta-studio/vanta/internal/nft"
	"github.com/vanta-studio/vanta/internal/records"
	"github.com/vanta-studio/vanta/internal/wallet"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	configPath := ""
	dataDir := ""
	network := ""

	// Scan for --config, --datadir, and --network before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--config" && len(args) > 1:
			configPath = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--config="):
			configPath = args[0][len("--config="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if network != "" {
		cfg.Network = network
	}
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "init":
		cmdInit(cfg)
	case "status":
		cmdStatus(cfg)
	case "wallet":
		cmdWallet(cfg, cmdArgs)
	case "networks":
		cmdNetworks(cfg)
	case "switch":
		cmdSwitch(cfg, configPath, cmdArgs)
	case "mint":
		cmdMint(cfg, cmdArgs)
	case "gallery":
		cmdGallery(cfg)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: vanta-cli [global flags] <command> [flags]

Global flags:
  --config <path>     Config file (default: <datadir>/vanta.conf)
  --datadir <path>    Data directory (default: ~/.vanta)
  --network <key>     Active network (ethereum, polygon, mumbai)

Commands:
  init                            Write a default config file
  status                          Show wallet address, network, and balance
  networks                        List supported networks
  switch <network>                Switch the active network

  wallet                          Show the active account
  wallet import                   Import a raw private key (prompted)
  wallet import-mnemonic          Import a BIP-39 mnemonic (prompted)

  mint --name <n> --image <file> [--description <d>] [--to <addr>]
       [--attrs k=v,k=v]          Mint an NFT from an image file
  gallery                         List minted NFTs, newest first
`)
}

// app is the composition root: every consumer shares the one wallet
// state constructed here.
type app struct {
	cfg      *config.Config
	state    *wallet.State
	gateway  *nft.Gateway
	uploader *ipfs.Client
	store    *records.Store
}

func newApp(cfg *config.Config) *app {
	registry := wallet.DefaultRegistry()
	if _, err := registry.Get(cfg.Network); err != nil {
		fatal("%v (choose one of: %s)", err, strings.Join(registry.Keys(), ", "))
	}

	ks := wallet.NewKeystore(cfg.WalletFile())
	state, err := wallet.NewState(ks, registry, cfg.Network)
	if err != nil {
		fatal("open wallet: %v", err)
	}

	broker := chain.NewBroker(cfg.Gas.PriceGwei)
	gateway, err := nft.NewGateway(state, broker, cfg.NFT.Contracts, cfg.Gas.MintLimit)
	if err != nil {
		fatal("configure contracts: %v", err)
	}

	return &app{
		cfg:      cfg,
		state:    state,
		gateway:  gateway,
		uploader: ipfs.New(cfg.IPFS.Endpoint, cfg.IPFS.APIKey),
		store:    records.NewStore(cfg.RecordsFile()),
	}
}

// ── init ────────────────────────────────────────────────────────────────

func cmdInit(cfg *config.Config) {
	path := cfg.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		fatal("config already exists: %s", path)
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		fatal("create data dir: %v", err)
	}
	if err := config.WriteDefaultConfig(path, cfg.Network); err != nil {
		fatal("write config: %v", err)
	}
	fmt.Printf("Wrote %s\n", path)
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(cfg *config.Config) {
	app := newApp(cfg)
	defer app.state.Close()

	netCfg := app.state.NetworkConfig()
	fmt.Printf("Address:   %s\n", app.state.AddressHex())
	fmt.Printf("Network:   %s (chain id %d)\n", netCfg.Name, netCfg.ChainID)
	if app.state.IsConnected() {
		bal := app.state.Balance(context.Background())
		fmt.Printf("Balance:   %s %s\n", formatEther(bal), netCfg.Symbol)
	} else {
		fmt.Printf("Balance:   unavailable (not connected)\n")
	}
	if app.gateway.HasContract(app.state.CurrentNetwork()) {
		fmt.Printf("Contract:  configured\n")
	} else {
		fmt.Printf("Contract:  none (mints run in mock mode)\n")
	}
	if app.uploader.MockMode() {
		fmt.Printf("Uploads:   mock (no API key)\n")
	} else {
		fmt.Printf("Uploads:   %s\n", cfg.IPFS.Endpoint)
	}
}

// ── networks ────────────────────────────────────────────────────────────

func cmdNetworks(cfg *config.Config) {
	app := newApp(cfg)
	defer app.state.Close()

	active := app.state.CurrentNetwork()
	for _, key := range app.state.Registry().Keys() {
		netCfg, _ := app.state.Registry().Get(key)
		marker := " "
		if key == active {
			marker = "*"
		}
		fmt.Printf("%s %-10s chain id %-6d %s (%s)\n", marker, key, netCfg.ChainID, netCfg.RPCURL, netCfg.Symbol)
	}
}

// ── switch ──────────────────────────────────────────────────────────────

func cmdSwitch(cfg *config.Config, configPath string, args []string) {
	if len(args) < 1 {
		fatal("Usage: vanta-cli switch <network>")
	}

	app := newApp(cfg)
	defer app.state.Close()

	target := args[0]
	if err := app.state.SwitchNetwork(target); err != nil {
		fatal("switch to %s failed, still on %s: %v", target, app.state.CurrentNetwork(), err)
	}
	netCfg := app.state.NetworkConfig()
	fmt.Printf("Switched to %s (chain id %d)\n", netCfg.Name, netCfg.ChainID)

	// Write the choice back so the next invocation starts here too.
	if err := persistNetwork(configPath, target); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: switched for this run only, could not update %s: %v\n", configPath, err)
		return
	}
	fmt.Printf("Saved as the default network in %s\n", configPath)
}

func persistNetwork(configPath, network string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
			return err
		}
		return config.WriteDefaultConfig(configPath, network)
	}
	return config.SetFileValue(configPath, "network", network)
}

// ── wallet ──────────────────────────────────────────────────────────────

func cmdWallet(cfg *config.Config, args []string) {
	if len(args) == 0 {
		cmdWalletShow(cfg)
		return
	}

	switch args[0] {
	case "show":
		cmdWalletShow(cfg)
	case "import":
		cmdWalletImport(cfg)
	case "import-mnemonic":
		cmdWalletImportMnemonic(cfg)
	default:
		fatal("Unknown wallet command: %s\nUsage: vanta-cli wallet [show|import|import-mnemonic]", args[0])
	}
}

func cmdWalletShow(cfg *config.Config) {
	app := newApp(cfg)
	defer app.state.Close()

	fmt.Printf("Address: %s\n", app.state.AddressHex())
	fmt.Printf("File:    %s\n", cfg.WalletFile())
}

func cmdWalletImport(cfg *config.Config) {
	app := newApp(cfg)
	defer app.state.Close()

	key, err := readSecret("Private key (hex): ")
	if err != nil {
		fatal("read key: %v", err)
	}

	acct, err := app.state.ReplaceKey(string(key))
	if err != nil {
		fatal("import key: %v", err)
	}
	fmt.Printf("Imported: %s\n", acct.Hex())
}

func cmdWalletImportMnemonic(cfg *config.Config) {
	app := newApp(cfg)
	defer app.state.Close()

	mnemonic, err := readSecret("Mnemonic: ")
	if err != nil {
		fatal("read mnemonic: %v", err)
	}

	acct, err := app.state.ReplaceMnemonic(string(mnemonic))
	if err != nil {
		fatal("import mnemonic: %v", err)
	}
	fmt.Printf("Imported: %s\n", acct.Hex())
}

// ── mint ────────────────────────────────────────────────────────────────

func cmdMint(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	name := fs.String("name", "", "NFT name")
	description := fs.String("description", "", "NFT description")
	image := fs.String("image", "", "Path to the image file")
	toAddr := fs.String("to", "", "Recipient address (default: own wallet)")
	attrsStr := fs.String("attrs", "", "Attributes as k=v,k=v")
	fs.Parse(args)

	if *name == "" || *image == "" {
		fatal("Usage: vanta-cli mint --name <n> --image <file> [--description <d>] [--to <addr>] [--attrs k=v,k=v]")
	}

	var recipient *common.Address
	if *toAddr != "" {
		if !common.IsHexAddress(*toAddr) {
			fatal("invalid recipient address: %s", *toAddr)
		}
		addr := common.HexToAddress(*toAddr)
		recipient = &addr
	}

	attrs, err := parseAttributes(*attrsStr)
	if err != nil {
		fatal("invalid attributes: %v", err)
	}

	app := newApp(cfg)
	defer app.state.Close()

	pipeline := mint.NewPipeline(app.uploader, app.gateway, app.store, app.state)
	req := mint.Request{
		Name:        *name,
		Description: *description,
		ImageFile:   *image,
		Recipient:   recipient,
		Attributes:  attrs,
	}

	if _, err := pipeline.Start(context.Background(), req, mint.FileRenderer{Path: *image}); err != nil {
		fatal("start mint: %v", err)
	}

	// The pipeline reports progress through its event channel; drain it
	// until the run reaches a terminal stage.
	for ev := range pipeline.Events() {
		switch ev.Stage {
		case mint.Succeeded:
			pipeline.Acknowledge()
			rec := ev.Record
			fmt.Printf("Minted!\n")
			fmt.Printf("  Token ID: %s\n", rec.TokenID)
			fmt.Printf("  Tx Hash:  %s\n", rec.TxHash)
			fmt.Printf("  Metadata: %s\n", rec.MetadataURI)
			if rec.Contract == nft.MockContract {
				fmt.Println("  Note: minted in mock mode, no contract configured for this network.")
			}
			return
		case mint.Failed:
			pipeline.Acknowledge()
			fatal("mint failed at %s: %v", ev.Failure.Kind, ev.Failure.Err)
		default:
			fmt.Printf("  %s...\n", ev.Stage)
		}
	}
}

// ── gallery ─────────────────────────────────────────────────────────────

func cmdGallery(cfg *config.Config) {
	store := records.NewStore(cfg.RecordsFile())
	recs := store.LoadAll()
	if len(recs) == 0 {
		fmt.Println("No NFTs minted yet.")
		return
	}

	fmt.Printf("NFTs: %d\n\n", len(recs))
	for i, rec := range recs {
		fmt.Printf("  [%d] %s\n", i, rec.Name)
		fmt.Printf("      Token ID: %s\n", rec.TokenID)
		fmt.Printf("      Network:  %s\n", rec.Network)
		fmt.Printf("      Tx:       %s\n", rec.TxHash)
		fmt.Printf("      Metadata: %s\n", rec.MetadataURI)
		fmt.Printf("      Minted:   %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
		fmt.Println()
	}
}

// ── Secret input helper ─────────────────────────────────────────────────

func readSecret(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return secret, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
