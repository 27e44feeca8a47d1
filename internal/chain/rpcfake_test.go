package chain

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeNode is a minimal JSON-RPC endpoint standing in for a real node.
type fakeNode struct {
	t *testing.T

	chainID int64
	nonce   uint64
	balance string // hex wei

	mu            sync.Mutex
	sentRaw       []string
	receiptStatus string // "0x1" or "0x0"; "" means receipt never appears
	rejectSend    string // non-empty: eth_sendRawTransaction fails with this message
	stallReceipt  bool   // accept eth_getTransactionReceipt and never answer

	srv *httptest.Server
}

func newFakeNode(t *testing.T, chainID int64) *fakeNode {
	t.Helper()
	n := &fakeNode{
		t:             t,
		chainID:       chainID,
		balance:       "0xde0b6b3a7640000", // 1 ether
		receiptStatus: "0x1",
	}
	n.srv = httptest.NewServer(http.HandlerFunc(n.handle))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *fakeNode) URL() string {
	return n.srv.URL
}

func (n *fakeNode) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sentRaw...)
}

func (n *fakeNode) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var result any
	var rpcErr string

	switch req.Method {
	case "eth_chainId":
		result = fmt.Sprintf("0x%x", n.chainID)
	case "eth_getBalance":
		result = n.balance
	case "eth_getTransactionCount":
		result = fmt.Sprintf("0x%x", n.nonce)
	case "eth_sendRawTransaction":
		n.mu.Lock()
		if n.rejectSend != "" {
			rpcErr = n.rejectSend
		} else {
			var raw string
			json.Unmarshal(req.Params[0], &raw)
			n.sentRaw = append(n.sentRaw, raw)
			result = "0x" + strings.Repeat("0", 64)
		}
		n.mu.Unlock()
	case "eth_getTransactionReceipt":
		n.mu.Lock()
		status := n.receiptStatus
		stall := n.stallReceipt
		n.mu.Unlock()
		if stall {
			<-r.Context().Done()
			return
		}
		if status == "" {
			result = nil
		} else {
			var hash string
			json.Unmarshal(req.Params[0], &hash)
			result = map[string]any{
				"type":              "0x0",
				"status":            status,
				"cumulativeGasUsed": "0x5208",
				"gasUsed":           "0x5208",
				"logsBloom":         "0x" + strings.Repeat("0", 512),
				"logs":              []any{},
				"transactionHash":   hash,
				"contractAddress":   nil,
				"blockHash":         "0x" + strings.Repeat("1", 64),
				"blockNumber":       "0x2a",
				"transactionIndex":  "0x0",
				"effectiveGasPrice": "0x6fc23ac00",
			}
		}
	case "eth_call":
		result = "0x"
	default:
		rpcErr = "method not supported: " + req.Method
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != "" {
		resp["error"] = map[string]any{"code": -32000, "message": rpcErr}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
