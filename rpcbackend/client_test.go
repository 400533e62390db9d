package rpcbackend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func stubServer(t *testing.T, responses map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		result, ok := responses[req.Method]
		if !ok {
			t.Fatalf("unexpected method %q", req.Method)
		}
		resp := rpcResponse{ID: req.ID, JSONRpc: "2.0", Result: json.RawMessage(result)}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encoding response: %v", err)
		}
	}))
}

func TestGetAccountCombinesNonceAndBalance(t *testing.T) {
	srv := stubServer(t, map[string]string{
		"eth_getTransactionCount": `"0x5"`,
		"eth_getBalance":          `"0x64"`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, "")
	acc, err := c.GetAccount(common.HexToAddress("0xaa"))
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc.Nonce != 5 {
		t.Fatalf("nonce = %d, want 5", acc.Nonce)
	}
	if acc.Balance.Uint64() != 100 {
		t.Fatalf("balance = %d, want 100", acc.Balance.Uint64())
	}
}

func TestGetStorageAt(t *testing.T) {
	want := "0x0000000000000000000000000000000000000000000000000000000000002a"
	srv := stubServer(t, map[string]string{"eth_getStorageAt": `"` + want + `"`})
	defer srv.Close()

	c := NewClient(srv.URL, "latest")
	got, err := c.GetStorage(common.HexToAddress("0xaa"), common.Hash{})
	if err != nil {
		t.Fatalf("GetStorage: %v", err)
	}
	if got != common.HexToHash(want) {
		t.Fatalf("got %s, want %s", got.Hex(), want)
	}
}

func TestGetCodeDecodesHex(t *testing.T) {
	srv := stubServer(t, map[string]string{"eth_getCode": `"0x6001600101"`})
	defer srv.Close()

	c := NewClient(srv.URL, "")
	code, err := c.GetCode(common.HexToAddress("0xaa"))
	if err != nil {
		t.Fatalf("GetCode: %v", err)
	}
	want := []byte{0x60, 0x01, 0x60, 0x01, 0x01}
	if len(code) != len(want) {
		t.Fatalf("code = %x, want %x", code, want)
	}
	for i := range want {
		if code[i] != want[i] {
			t.Fatalf("code = %x, want %x", code, want)
		}
	}
}

func TestRpcErrorWrapsAsBackendFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := rpcResponse{ID: req.ID, JSONRpc: "2.0", Err: &rpcError{Code: -32000, Message: "boom"}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.GetCode(common.HexToAddress("0xaa"))
	if err == nil {
		t.Fatal("expected an error")
	}
	bf, ok := err.(interface{ Unwrap() error })
	if !ok {
		t.Fatalf("got %T, want something wrapping the rpc error", err)
	}
	if bf.Unwrap() == nil {
		t.Fatal("expected a wrapped cause")
	}
}
