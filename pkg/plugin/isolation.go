package plugin

import (
	"errors"
	"fmt"
	"slices"
)

// ErrCapabilityDenied is returned when a plugin asks for a capability its
// policy does not grant.
var ErrCapabilityDenied = errors.New("plugin capability denied")

// IsolationStrategy decides whether a plugin may attach under a policy.
type IsolationStrategy interface {
	Validate(info Info, policy IsolationPolicy) error
}

// CapabilityStrategy checks declared capabilities against the policy lists.
type CapabilityStrategy struct{}

// Validate rejects denied capabilities, then anything outside a non-empty
// allow list.
func (CapabilityStrategy) Validate(info Info, policy IsolationPolicy) error {
	for _, c := range policy.DeniedCapabilities {
		if slices.Contains(info.Capabilities, c) {
			return fmt.Errorf("%w: %s is explicitly denied for %s", ErrCapabilityDenied, c, info.ID)
		}
	}
	if len(policy.AllowedCapabilities) == 0 {
		return nil
	}
	for _, c := range info.Capabilities {
		if !slices.Contains(policy.AllowedCapabilities, c) {
			return fmt.Errorf("%w: %s not permitted for %s", ErrCapabilityDenied, c, info.ID)
		}
	}
	return nil
}

// NewIsolationStrategy returns a default isolation strategy if none is supplied.
func NewIsolationStrategy(strategy IsolationStrategy) IsolationStrategy {
	if strategy == nil {
		return CapabilityStrategy{}
	}
	return strategy
}

// MergePolicies combines the default and plugin specific isolation policies.
func MergePolicies(defaults IsolationPolicy, specific *IsolationPolicy) IsolationPolicy {
	if specific == nil {
		return defaults
	}
	merged := specific.Merge(defaults)
	if merged.Empty() {
		return defaults
	}
	return merged
}

// EnsurePolicy requires an explicit policy for external plugins that declare
// capabilities.
func EnsurePolicy(info Info, policy IsolationPolicy) error {
	if len(info.Capabilities) == 0 {
		return nil
	}
	if policy.Empty() {
		return fmt.Errorf("%w: external plugin %s declares capabilities but has no isolation policy", ErrCapabilityDenied, info.ID)
	}
	return nil
}
