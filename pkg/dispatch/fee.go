package dispatch

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// FeeTier selects a compute budget preset.
type FeeTier string

const (
	FeeLow  FeeTier = "low"
	FeeMid  FeeTier = "mid"
	FeeHigh FeeTier = "high"
)

// ComputeBudget is the unit limit and priority fee prepended to raw instructions.
type ComputeBudget struct {
	UnitLimit     uint32
	MicroLamports uint64
}

var feePresets = map[FeeTier]ComputeBudget{
	FeeLow:  {UnitLimit: 200_000, MicroLamports: 1_000},
	FeeMid:  {UnitLimit: 400_000, MicroLamports: 50_000},
	FeeHigh: {UnitLimit: 1_400_000, MicroLamports: 500_000},
}

// ParseFeeTier accepts low, mid (or medium) and high. Empty input means mid.
func ParseFeeTier(raw string) (FeeTier, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return FeeMid, nil
	case "low":
		return FeeLow, nil
	case "mid", "medium":
		return FeeMid, nil
	case "high":
		return FeeHigh, nil
	default:
		return "", fmt.Errorf("unknown fee tier %q", raw)
	}
}

// Budget returns the preset for the tier. The zero tier resolves to mid.
func (t FeeTier) Budget() (ComputeBudget, error) {
	if t == "" {
		t = FeeMid
	}
	budget, ok := feePresets[t]
	if !ok {
		return ComputeBudget{}, fmt.Errorf("unknown fee tier %q", t)
	}
	return budget, nil
}

// Instructions renders the unit-limit instruction followed by the price one.
func (b ComputeBudget) Instructions() []solana.Instruction {
	return []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(b.UnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(b.MicroLamports).Build(),
	}
}
