package action

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Input is a validated argument object. Integers are int64, numbers float64.
type Input map[string]any

// Has reports whether the key is present and not null.
func (in Input) Has(key string) bool {
	v, ok := in[key]
	return ok && v != nil
}

func (in Input) String(key string) string {
	s, _ := in[key].(string)
	return s
}

func (in Input) Float(key string) float64 {
	switch v := in[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func (in Input) Int(key string) int64 {
	switch v := in[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func (in Input) Bool(key string) bool {
	b, _ := in[key].(bool)
	return b
}

// PublicKey decodes a base58 address field.
func (in Input) PublicKey(key string) (solana.PublicKey, error) {
	raw := in.String(key)
	if raw == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", key)
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s: invalid address %q: %w", key, raw, err)
	}
	return pk, nil
}

// Decode copies the input into a struct through its JSON tags.
func (in Input) Decode(into any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, into)
}
