// Package args holds schema fragments shared by the built-in plugins.
package args

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"

	"AgentKit-Chain/pkg/schema"
)

// Well-known mints used in examples and defaults.
const (
	WrappedSOL = "So11111111111111111111111111111111111111112"
	USDC       = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = solana.LAMPORTS_PER_SOL

// Address is a base58 Solana public key.
func Address(description string) *schema.Node {
	return schema.String().Describe(description).Refine(func(v any) error {
		s, _ := v.(string)
		if _, err := solana.PublicKeyFromBase58(s); err != nil {
			return fmt.Errorf("not a valid base58 address: %q", s)
		}
		return nil
	})
}

// Positive is a number strictly greater than zero.
func Positive(description string) *schema.Node {
	return schema.Number().Describe(description).Refine(func(v any) error {
		f, ok := v.(float64)
		if !ok {
			if i, isInt := v.(int64); isInt {
				f = float64(i)
			}
		}
		if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
			return errors.New("must be greater than zero")
		}
		return nil
	})
}

// ToBaseUnits converts a UI amount into integer base units for a token with
// the given decimals, rounding down.
func ToBaseUnits(amount float64, decimals uint8) (uint64, error) {
	if amount <= 0 {
		return 0, errors.New("amount must be greater than zero")
	}
	scaled := new(big.Float).SetPrec(128).SetFloat64(amount)
	scaled.Mul(scaled, new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)))
	units, _ := scaled.Int(nil)
	if !units.IsUint64() {
		return 0, fmt.Errorf("amount %v overflows %d decimals", amount, decimals)
	}
	if units.Sign() == 0 {
		return 0, fmt.Errorf("amount %v is below the smallest unit", amount)
	}
	return units.Uint64(), nil
}

// FromBaseUnits renders base units as a decimal string.
func FromBaseUnits(units uint64, decimals uint8) string {
	if decimals == 0 {
		return new(big.Int).SetUint64(units).String()
	}
	s := fmt.Sprintf("%0*d", int(decimals)+1, units)
	whole, frac := s[:len(s)-int(decimals)], strings.TrimRight(s[len(s)-int(decimals):], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
