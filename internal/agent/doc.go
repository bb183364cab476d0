// Package agent is the facade hosts construct: it owns the wallet, the chain
// connection and the configuration, attaches plugins, and hands the merged
// action list to whichever tool projection the host uses.
package agent
