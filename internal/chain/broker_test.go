package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// testSigner signs with a throwaway key, standing in for the wallet
// account.
type testSigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &testSigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (s *testSigner) Address() common.Address {
	return s.addr
}

func (s *testSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.NewEIP155Signer(chainID), s.key)
}

// testBinding leases a client/signer pair with no release callback.
func testBinding(client *Client, signer *testSigner, chainID int64) *Binding {
	return NewBinding(client, signer, NetworkInfo{Key: "testnet", ChainID: chainID}, nil)
}

func dialFake(t *testing.T, node *fakeNode, chainID int64) *Client {
	t.Helper()
	client, err := Dial(node.URL(), chainID)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestSubmitAndConfirm(t *testing.T) {
	node := newFakeNode(t, 137)
	node.nonce = 7
	client := dialFake(t, node, 137)

	br := NewBroker(30)
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	receipt, err := br.SubmitAndConfirm(context.Background(), testBinding(client, newTestSigner(t), 137), to, []byte{0x01, 0x02}, 300000)
	if err != nil {
		t.Fatalf("SubmitAndConfirm: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Errorf("receipt status = %d, want success", receipt.Status)
	}

	sent := node.sent()
	if len(sent) != 1 {
		t.Fatalf("node saw %d raw transactions, want 1", len(sent))
	}

	// Decode the broadcast payload and check the broker's build policy.
	var tx types.Transaction
	raw := common.FromHex(sent[0])
	if err := tx.UnmarshalBinary(raw); err != nil {
		t.Fatalf("decode raw tx: %v", err)
	}
	if tx.Nonce() != 7 {
		t.Errorf("nonce = %d, want 7 (must be read fresh from the node)", tx.Nonce())
	}
	if tx.Gas() != 300000 {
		t.Errorf("gas limit = %d, want 300000", tx.Gas())
	}
	wantPrice := new(big.Int).Mul(big.NewInt(30), big.NewInt(1000000000))
	if tx.GasPrice().Cmp(wantPrice) != 0 {
		t.Errorf("gas price = %s, want %s", tx.GasPrice(), wantPrice)
	}
	if got := tx.To(); got == nil || *got != to {
		t.Errorf("to = %v, want %s", got, to.Hex())
	}
}

func TestSubmitChainMismatchIsFatal(t *testing.T) {
	node := newFakeNode(t, 137)
	client := dialFake(t, node, 137)
	// The binding believes it is bound to a different chain than the
	// client reports. Signing anyway would produce a validly-signed
	// wrong-network transaction.
	br := NewBroker(30)
	_, err := br.SubmitAndConfirm(context.Background(), testBinding(client, newTestSigner(t), 1), common.Address{}, nil, 21000)
	if !errors.Is(err, ErrChainMismatch) {
		t.Fatalf("SubmitAndConfirm = %v, want ErrChainMismatch", err)
	}
	if len(node.sent()) != 0 {
		t.Error("transaction was broadcast despite chain mismatch")
	}
}

func TestSubmitBroadcastRejected(t *testing.T) {
	node := newFakeNode(t, 137)
	node.rejectSend = "nonce too low"
	client := dialFake(t, node, 137)

	br := NewBroker(30)
	_, err := br.SubmitAndConfirm(context.Background(), testBinding(client, newTestSigner(t), 137), common.Address{}, nil, 21000)
	if !errors.Is(err, ErrBroadcastRejected) {
		t.Fatalf("SubmitAndConfirm = %v, want ErrBroadcastRejected", err)
	}
}

func TestSubmitContractRejected(t *testing.T) {
	node := newFakeNode(t, 137)
	node.receiptStatus = "0x0"
	client := dialFake(t, node, 137)

	br := NewBroker(30)
	_, err := br.SubmitAndConfirm(context.Background(), testBinding(client, newTestSigner(t), 137), common.Address{}, nil, 300000)
	if !errors.Is(err, ErrContractRejected) {
		t.Fatalf("SubmitAndConfirm = %v, want ErrContractRejected", err)
	}
}

func TestSubmitConfirmationTimeout(t *testing.T) {
	node := newFakeNode(t, 137)
	node.receiptStatus = "" // receipt never appears
	client := dialFake(t, node, 137)

	br := NewBroker(30)
	br.SetConfirmWait(50 * time.Millisecond)
	_, err := br.SubmitAndConfirm(context.Background(), testBinding(client, newTestSigner(t), 137), common.Address{}, nil, 300000)
	if !errors.Is(err, ErrConfirmationTimeout) {
		t.Fatalf("SubmitAndConfirm = %v, want ErrConfirmationTimeout", err)
	}
}

func TestBindingReleaseOnce(t *testing.T) {
	released := 0
	b := NewBinding(nil, nil, NetworkInfo{Key: "testnet", ChainID: 137}, func() { released++ })
	b.Release()
	b.Release()
	if released != 1 {
		t.Errorf("release ran %d times, want 1", released)
	}
	if b.Network() != "testnet" || b.ChainID() != 137 {
		t.Errorf("binding snapshot = %s/%d, want testnet/137", b.Network(), b.ChainID())
	}
}

func TestSubmitReleasesBinding(t *testing.T) {
	node := newFakeNode(t, 137)
	client := dialFake(t, node, 137)

	released := 0
	b := NewBinding(client, newTestSigner(t), NetworkInfo{Key: "testnet", ChainID: 137}, func() { released++ })

	br := NewBroker(30)
	if _, err := br.SubmitAndConfirm(context.Background(), b, common.Address{}, nil, 21000); err != nil {
		t.Fatalf("SubmitAndConfirm: %v", err)
	}
	if released != 1 {
		t.Errorf("binding released %d times, want 1", released)
	}
}
