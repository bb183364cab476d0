package plugin

// Type groups plugins by what they integrate with.
type Type string

const (
	TypeWallet Type = "wallet"
	TypeToken  Type = "token"
	TypeDeFi   Type = "defi"
	TypeBridge Type = "bridge"
	TypeData   Type = "data"
)

// Capability is a privilege a plugin asks for. Isolation policies allow or
// deny capabilities before a plugin's actions are registered.
type Capability string

const (
	// CapabilityNetwork covers HTTP calls to third-party services.
	CapabilityNetwork Capability = "network"
	// CapabilitySign covers asking the wallet for signatures.
	CapabilitySign Capability = "sign"
	// CapabilitySend covers submitting transactions that move funds.
	CapabilitySend       Capability = "send"
	CapabilityFilesystem Capability = "filesystem"
)

// Info contains descriptive metadata for a plugin implementation.
type Info struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Author       string       `json:"author,omitempty"`
	Version      string       `json:"version,omitempty"`
	Category     Type         `json:"category,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// State is the lifecycle position of a managed plugin.
type State string

const (
	StateRegistered  State = "registered"
	StateInitialised State = "initialised"
	StateFailed      State = "failed"
)
