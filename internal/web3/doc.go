// Package web3 holds chain connectivity: the chain definition file, the
// EVM client surface and, in subpackages, the Solana RPC connection, the
// go-ethereum client and the registry that builds them from configuration.
package web3
