package wallet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// RemoteConfig describes a remote signing service.
type RemoteConfig struct {
	Endpoint  string
	PublicKey solana.PublicKey
	APIKey    string
	// CanSend selects the variant that exposes SignAndSendTransaction.
	CanSend bool
	Timeout time.Duration
}

// Remote delegates signing to an HTTP service that keeps the key material.
// The service is expected to answer:
//
//	POST /sign          {"transactions": [base64]} -> {"transactions": [base64]}
//	POST /sign-message  {"message": base64}        -> {"signature": base58}
//	POST /sign-and-send {"transaction": base64}    -> {"signature": base58}
type Remote struct {
	endpoint   string
	publicKey  solana.PublicKey
	apiKey     string
	httpClient *http.Client
}

// RemoteSender is a Remote whose service also submits transactions.
type RemoteSender struct {
	*Remote
}

var (
	_ Wallet        = (*Remote)(nil)
	_ SignAndSender = (*RemoteSender)(nil)
)

// NewRemote returns a sign-only Remote or a RemoteSender depending on cfg.CanSend.
func NewRemote(cfg RemoteConfig, httpClient *http.Client) (Wallet, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("remote wallet endpoint is empty")
	}
	if cfg.PublicKey == (solana.PublicKey{}) {
		return nil, errors.New("remote wallet public key is empty")
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	remote := &Remote{
		endpoint:   endpoint,
		publicKey:  cfg.PublicKey,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
	if cfg.CanSend {
		return &RemoteSender{Remote: remote}, nil
	}
	return remote, nil
}

func (r *Remote) PublicKey() solana.PublicKey { return r.publicKey }

func (r *Remote) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	signed, err := r.SignAllTransactions(ctx, []*solana.Transaction{tx})
	if err != nil {
		return nil, err
	}
	return signed[0], nil
}

func (r *Remote) SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	encoded := make([]string, 0, len(txs))
	for i, tx := range txs {
		b64, err := encodeTransaction(tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		encoded = append(encoded, b64)
	}
	var resp struct {
		Transactions []string `json:"transactions"`
	}
	if err := r.call(ctx, "/sign", map[string]any{"transactions": encoded}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Transactions) != len(txs) {
		return nil, fmt.Errorf("remote signer returned %d transactions, want %d", len(resp.Transactions), len(txs))
	}
	out := make([]*solana.Transaction, 0, len(resp.Transactions))
	for i, b64 := range resp.Transactions {
		tx, err := DecodeTransaction(b64)
		if err != nil {
			return nil, fmt.Errorf("signed transaction %d: %w", i, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *Remote) SignMessage(ctx context.Context, message []byte) (solana.Signature, error) {
	var resp struct {
		Signature string `json:"signature"`
	}
	if err := r.call(ctx, "/sign-message", map[string]any{"message": base64.StdEncoding.EncodeToString(message)}, &resp); err != nil {
		return solana.Signature{}, err
	}
	return solana.SignatureFromBase58(resp.Signature)
}

func (s *RemoteSender) SignAndSendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	b64, err := encodeTransaction(tx)
	if err != nil {
		return solana.Signature{}, err
	}
	var resp struct {
		Signature string `json:"signature"`
	}
	if err := s.call(ctx, "/sign-and-send", map[string]any{"transaction": b64}, &resp); err != nil {
		return solana.Signature{}, err
	}
	return solana.SignatureFromBase58(resp.Signature)
}

func (r *Remote) call(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote signer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("remote signer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode remote signer response: %w", err)
	}
	return nil
}

func encodeTransaction(tx *solana.Transaction) (string, error) {
	if tx == nil {
		return "", errors.New("transaction is nil")
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeTransaction parses a base64 wire transaction.
func DecodeTransaction(b64 string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}

// EncodeTransaction renders a transaction in base64 wire format.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	return encodeTransaction(tx)
}
