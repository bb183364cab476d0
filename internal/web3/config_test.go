package web3

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseChainDefinitions(t *testing.T) {
	defs, err := ParseChainDefinitions([]byte(`
chains:
  devnet:
    rpc_url: https://api.devnet.solana.com
    commitment: finalized
  sepolia:
    type: EVM
    rpc_url: https://rpc.sepolia.org
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := defs.Chains["devnet"].Family(); got != TypeSolana {
		t.Fatalf("expected solana default, got %s", got)
	}
	if got := defs.Chains["sepolia"].Family(); got != TypeEVM {
		t.Fatalf("expected evm, got %s", got)
	}
}

func TestParseChainDefinitionsRejectsUnknownType(t *testing.T) {
	_, err := ParseChainDefinitions([]byte("chains:\n  x:\n    type: cosmos\n    rpc_url: http://x\n"))
	if err == nil {
		t.Fatal("expected error for unknown chain type")
	}
	_, err = ParseChainDefinitions([]byte("chains:\n  x:\n    type: evm\n"))
	if err == nil {
		t.Fatal("expected error for missing rpc_url")
	}
}

func TestLoadChainDefinitionsEmptyPath(t *testing.T) {
	defs, err := LoadChainDefinitions("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs.Chains) != 0 {
		t.Fatalf("expected no chains, got %d", len(defs.Chains))
	}

	path := filepath.Join(t.TempDir(), "chain.yaml")
	if err := os.WriteFile(path, []byte("chains:\n  main:\n    rpc_url: http://localhost:8899\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	defs, err = LoadChainDefinitions(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if defs.Chains["main"].RPCURL != "http://localhost:8899" {
		t.Fatalf("unexpected definition %+v", defs.Chains["main"])
	}
}

func TestSampleChainFile(t *testing.T) {
	defs, err := LoadChainDefinitions(filepath.Join("..", "..", "configs", "chain.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs.Chains) != 3 {
		t.Fatalf("expected 3 chains, got %d", len(defs.Chains))
	}
	if got := defs.Chains["sepolia"].Family(); got != TypeEVM {
		t.Fatalf("expected sepolia to be evm, got %s", got)
	}
	if got := defs.Chains["solana-devnet"].Family(); got != TypeSolana {
		t.Fatalf("expected solana-devnet to be solana, got %s", got)
	}
}
