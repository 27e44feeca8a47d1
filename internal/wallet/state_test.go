package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

// startNode serves just enough JSON-RPC for the wallet: the chain id
// probe and balance reads.
func startNode(t *testing.T, chainID int64, balanceHex string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var result string
		switch req.Method {
		case "eth_chainId":
			result = fmt.Sprintf("0x%x", chainID)
		case "eth_getBalance":
			result = balanceHex
		default:
			http.Error(w, "unsupported: "+req.Method, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestState(t *testing.T, registry Registry, network string) *State {
	t.Helper()
	ks := NewKeystore(filepath.Join(t.TempDir(), "vanta_wallet.json"))
	s, err := NewState(ks, registry, network)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestNewStateBindsDefaultNetwork(t *testing.T) {
	node := startNode(t, 137, "0xde0b6b3a7640000")
	registry := Registry{
		"polygon": {Name: "Polygon", RPCURL: node.URL, ChainID: 137, Symbol: "MATIC", Explorer: "polygonscan.com"},
	}

	s := newTestState(t, registry, "polygon")
	if !s.IsConnected() {
		t.Fatal("state not connected to reachable default network")
	}
	if s.CurrentNetwork() != "polygon" {
		t.Errorf("CurrentNetwork = %q, want polygon", s.CurrentNetwork())
	}
	if s.AddressHex() == "" {
		t.Error("no account after NewState")
	}
	if bal := s.Balance(context.Background()); bal.Sign() == 0 {
		t.Error("Balance = 0 on funded fake node")
	}
}

func TestNewStateUnknownNetwork(t *testing.T) {
	ks := NewKeystore(filepath.Join(t.TempDir(), "w.json"))
	if _, err := NewState(ks, DefaultRegistry(), "nonesuch"); !errors.Is(err, ErrUnknownNetwork) {
		t.Fatalf("NewState = %v, want ErrUnknownNetwork", err)
	}
}

func TestNewStateUnreachableStaysUsable(t *testing.T) {
	registry := Registry{
		"polygon": {Name: "Polygon", RPCURL: "http://127.0.0.1:1", ChainID: 137},
	}

	s := newTestState(t, registry, "polygon")
	if s.IsConnected() {
		t.Fatal("connected to an unreachable endpoint")
	}
	// Balance never errors while unbound, it reports zero.
	if bal := s.Balance(context.Background()); bal.Sign() != 0 {
		t.Errorf("Balance = %s while unbound, want 0", bal)
	}
	if _, err := s.AcquireTx(); !errors.Is(err, ErrUnbound) {
		t.Errorf("AcquireTx = %v, want ErrUnbound", err)
	}
}

func TestSwitchNetworkCommit(t *testing.T) {
	alpha := startNode(t, 137, "0x0")
	beta := startNode(t, 1, "0x0")
	registry := Registry{
		"polygon":  {Name: "Polygon", RPCURL: alpha.URL, ChainID: 137},
		"ethereum": {Name: "Ethereum", RPCURL: beta.URL, ChainID: 1},
	}

	s := newTestState(t, registry, "polygon")

	notified := 0
	s.AddListener(func() { notified++ })

	if err := s.SwitchNetwork("ethereum"); err != nil {
		t.Fatalf("SwitchNetwork: %v", err)
	}
	if s.CurrentNetwork() != "ethereum" {
		t.Errorf("CurrentNetwork = %q, want ethereum", s.CurrentNetwork())
	}
	if !s.IsConnected() {
		t.Error("not connected after committed switch")
	}
	if notified != 1 {
		t.Errorf("listeners notified %d times, want 1", notified)
	}
}

func TestSwitchNetworkRollback(t *testing.T) {
	alpha := startNode(t, 137, "0x0")
	registry := Registry{
		"polygon":  {Name: "Polygon", RPCURL: alpha.URL, ChainID: 137},
		"ethereum": {Name: "Ethereum", RPCURL: "http://127.0.0.1:1", ChainID: 1},
	}

	s := newTestState(t, registry, "polygon")

	notified := 0
	s.AddListener(func() { notified++ })

	err := s.SwitchNetwork("ethereum")
	if !errors.Is(err, ErrNetworkUnreachable) {
		t.Fatalf("SwitchNetwork = %v, want ErrNetworkUnreachable", err)
	}
	// Rollback completeness: still on the previous network, still bound.
	if s.CurrentNetwork() != "polygon" {
		t.Errorf("CurrentNetwork = %q after failed switch, want polygon", s.CurrentNetwork())
	}
	if !s.IsConnected() {
		t.Error("lost the previous connection during rollback")
	}
	if notified != 0 {
		t.Errorf("listeners notified %d times on a failed switch, want 0", notified)
	}
}

func TestSwitchNetworkUnknownTarget(t *testing.T) {
	alpha := startNode(t, 137, "0x0")
	registry := Registry{
		"polygon": {Name: "Polygon", RPCURL: alpha.URL, ChainID: 137},
	}

	s := newTestState(t, registry, "polygon")
	if err := s.SwitchNetwork("nonesuch"); !errors.Is(err, ErrUnknownNetwork) {
		t.Fatalf("SwitchNetwork = %v, want ErrUnknownNetwork", err)
	}
	if s.CurrentNetwork() != "polygon" {
		t.Errorf("CurrentNetwork = %q, want polygon", s.CurrentNetwork())
	}
}

func TestSwitchNetworkNoopCommitsWhenUnreachable(t *testing.T) {
	alpha := startNode(t, 137, "0x0")
	registry := Registry{
		"polygon": {Name: "Polygon", RPCURL: alpha.URL, ChainID: 137},
	}

	s := newTestState(t, registry, "polygon")
	alpha.Close()

	// Re-selecting the current network is a commit even when the
	// reconnect fails; the wallet already pointed here.
	if err := s.SwitchNetwork("polygon"); err != nil {
		t.Fatalf("no-op SwitchNetwork = %v, want nil", err)
	}
	if s.CurrentNetwork() != "polygon" {
		t.Errorf("CurrentNetwork = %q, want polygon", s.CurrentNetwork())
	}
}

func TestListenerPanicIsolation(t *testing.T) {
	alpha := startNode(t, 137, "0x0")
	beta := startNode(t, 1, "0x0")
	registry := Registry{
		"polygon":  {Name: "Polygon", RPCURL: alpha.URL, ChainID: 137},
		"ethereum": {Name: "Ethereum", RPCURL: beta.URL, ChainID: 1},
	}

	s := newTestState(t, registry, "polygon")

	secondRan := false
	s.AddListener(func() { panic("listener bug") })
	s.AddListener(func() { secondRan = true })

	if err := s.SwitchNetwork("ethereum"); err != nil {
		t.Fatalf("SwitchNetwork: %v", err)
	}
	if !secondRan {
		t.Error("panicking listener blocked the next one")
	}
}

func TestReplaceAccountNotifies(t *testing.T) {
	alpha := startNode(t, 137, "0x0")
	registry := Registry{
		"polygon": {Name: "Polygon", RPCURL: alpha.URL, ChainID: 137},
	}

	s := newTestState(t, registry, "polygon")
	before := s.AddressHex()

	notified := 0
	s.AddListener(func() { notified++ })

	acct, err := s.ReplaceMnemonic(testMnemonic)
	if err != nil {
		t.Fatalf("ReplaceMnemonic: %v", err)
	}
	if acct.Hex() == before {
		t.Error("address unchanged after import")
	}
	if s.AddressHex() != testMnemonicAddr {
		t.Errorf("active address = %s, want %s", s.AddressHex(), testMnemonicAddr)
	}
	if notified != 1 {
		t.Errorf("listeners notified %d times, want 1", notified)
	}

	if _, err := s.ReplaceKey("definitely not hex"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ReplaceKey = %v, want ErrInvalidKey", err)
	}
	if s.AddressHex() != testMnemonicAddr {
		t.Error("failed import changed the active account")
	}
}

func TestAcquireTxExcludesSwitch(t *testing.T) {
	alpha := startNode(t, 137, "0x0")
	beta := startNode(t, 1, "0x0")
	registry := Registry{
		"polygon":  {Name: "Polygon", RPCURL: alpha.URL, ChainID: 137},
		"ethereum": {Name: "Ethereum", RPCURL: beta.URL, ChainID: 1},
	}

	s := newTestState(t, registry, "polygon")

	binding, err := s.AcquireTx()
	if err != nil {
		t.Fatalf("AcquireTx: %v", err)
	}
	if binding.ChainID() != 137 {
		t.Errorf("binding chain id = %d, want 137", binding.ChainID())
	}

	switched := make(chan error, 1)
	go func() { switched <- s.SwitchNetwork("ethereum") }()

	select {
	case err := <-switched:
		t.Fatalf("switch completed while a binding was held: %v", err)
	default:
	}

	binding.Release()
	if err := <-switched; err != nil {
		t.Fatalf("SwitchNetwork after release: %v", err)
	}
	if s.CurrentNetwork() != "ethereum" {
		t.Errorf("CurrentNetwork = %q, want ethereum", s.CurrentNetwork())
	}
}

func TestAcquireTxCarriesNetworkSnapshot(t *testing.T) {
	alpha := startNode(t, 137, "0x0")
	beta := startNode(t, 1, "0x0")
	registry := Registry{
		"polygon":  {Name: "Polygon", RPCURL: alpha.URL, ChainID: 137, Explorer: "polygonscan.com"},
		"ethereum": {Name: "Ethereum", RPCURL: beta.URL, ChainID: 1, Explorer: "etherscan.io"},
	}

	s := newTestState(t, registry, "polygon")

	binding, err := s.AcquireTx()
	if err != nil {
		t.Fatalf("AcquireTx: %v", err)
	}
	if binding.Network() != "polygon" || binding.ChainID() != 137 || binding.Explorer() != "polygonscan.com" {
		t.Errorf("binding snapshot = %s/%d/%s, want polygon/137/polygonscan.com",
			binding.Network(), binding.ChainID(), binding.Explorer())
	}
	binding.Release()

	if err := s.SwitchNetwork("ethereum"); err != nil {
		t.Fatalf("SwitchNetwork: %v", err)
	}

	// A lease taken after the switch reflects the new network; callers
	// resolve contracts and explorer links from the lease, never from a
	// read racing the switch.
	binding, err = s.AcquireTx()
	if err != nil {
		t.Fatalf("AcquireTx after switch: %v", err)
	}
	defer binding.Release()
	if binding.Network() != "ethereum" || binding.ChainID() != 1 || binding.Explorer() != "etherscan.io" {
		t.Errorf("binding snapshot = %s/%d/%s, want ethereum/1/etherscan.io",
			binding.Network(), binding.ChainID(), binding.Explorer())
	}
}

func TestValidateAddress(t *testing.T) {
	s := newTestState(t, Registry{
		"polygon": {Name: "Polygon", RPCURL: "http://127.0.0.1:1", ChainID: 137},
	}, "polygon")

	if !s.ValidateAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94") {
		t.Error("valid address rejected")
	}
	for _, bad := range []string{"", "0x123", "0x9858EfFD232B4033E47d90003D41EC34EcaEda9", "hello"} {
		if s.ValidateAddress(bad) {
			t.Errorf("ValidateAddress(%q) = true", bad)
		}
	}
}
