// Package bridge waits for cross-chain message attestations issued by a
// Circle CCTP style attestation service.
package bridge

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/logger"
	"AgentKit-Chain/pkg/plugin"
	"AgentKit-Chain/pkg/schema"
)

// ID is the plugin identifier.
const ID = "bridge"

const (
	defaultBaseURL     = "https://iris-api.circle.com"
	defaultMaxAttempts = 30
	defaultInterval    = 5 * time.Second

	statusComplete = "complete"
	statusPending  = "pending_confirmations"
)

var errRejected = stdErrors.New("attestation rejected")

// Config controls the attestation wait loop.
type Config struct {
	BaseURL     string
	MaxAttempts int
	Interval    time.Duration
	HTTPClient  *http.Client
}

func (c *Config) applyDefaults() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
}

// Attestation is a completed attestation.
type Attestation struct {
	MessageHash string `json:"message_hash"`
	Attestation string `json:"attestation"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
}

// Plugin is bound to the agent it was built for.
type Plugin struct {
	cfg     Config
	actions []*action.Action
	log     *slog.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

// New returns a factory using cfg.
func New(cfg Config) plugin.Factory {
	cfg.applyDefaults()
	return func(action.Agent) (plugin.Plugin, error) {
		p := &Plugin{cfg: cfg, log: logger.Named("bridge")}
		p.actions = []*action.Action{p.attestationAction()}
		return p, nil
	}
}

func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		ID:           ID,
		Name:         "Bridge",
		Description:  "Cross-chain message attestation lookup",
		Version:      "1.0.0",
		Category:     plugin.TypeBridge,
		Capabilities: []plugin.Capability{plugin.CapabilityNetwork},
	}
}

func (p *Plugin) Actions() []*action.Action { return p.actions }

// MessageHash is the keccak256 hash attestation services index messages by.
func MessageHash(message []byte) common.Hash {
	return crypto.Keccak256Hash(message)
}

// WaitForAttestation polls until the attestation is complete. Exhausting the
// attempts or ctx ending yields ATTESTATION_TIMEOUT; a rejection by the
// service yields ATTESTATION_FAILED.
func (p *Plugin) WaitForAttestation(ctx context.Context, hash common.Hash) (*Attestation, error) {
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		att, err := p.fetch(ctx, hash)
		switch {
		case err == nil && att != nil:
			att.Attempts = attempt
			return att, nil
		case stdErrors.Is(err, errRejected):
			return nil, xerrors.Wrap(xerrors.CodeAttestationFailed, err, "attestation failed",
				xerrors.WithMetadata("message_hash", hash.Hex()))
		case ctx.Err() != nil:
			return nil, p.timeout(hash, attempt, ctx.Err())
		case err != nil:
			p.log.Debug("attestation lookup failed", "message_hash", hash.Hex(), "attempt", attempt, "error", err)
		default:
			p.log.Debug("attestation pending", "message_hash", hash.Hex(), "attempt", attempt)
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}
		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, p.timeout(hash, attempt, ctx.Err())
		case <-timer.C:
		}
	}
	return nil, p.timeout(hash, p.cfg.MaxAttempts, nil)
}

func (p *Plugin) timeout(hash common.Hash, attempts int, cause error) error {
	msg := fmt.Sprintf("attestation for %s not available after %d attempts", hash.Hex(), attempts)
	opts := []xerrors.Option{xerrors.WithMetadata("message_hash", hash.Hex())}
	if cause != nil {
		return xerrors.Wrap(xerrors.CodeAttestationTimeout, cause, msg, opts...)
	}
	return xerrors.New(xerrors.CodeAttestationTimeout, msg, opts...)
}

// fetch returns nil, nil while the attestation is pending.
func (p *Plugin) fetch(ctx context.Context, hash common.Hash) (*Attestation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/attestations/"+hash.Hex(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("attestation service status %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("%w: status %d: %s", errRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Status      string `json:"status"`
		Attestation string `json:"attestation"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode attestation: %w", err)
	}
	switch decoded.Status {
	case statusComplete:
		if decoded.Attestation == "" || decoded.Attestation == "PENDING" {
			return nil, nil
		}
		return &Attestation{MessageHash: hash.Hex(), Attestation: decoded.Attestation, Status: statusComplete}, nil
	case statusPending, "pending", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: status %q", errRejected, decoded.Status)
	}
}

func (p *Plugin) attestationAction() *action.Action {
	return action.MustNew(action.Action{
		Name: "get_bridge_attestation",
		Description: "Wait for the attestation of a burned cross-chain message so it can be received on the destination chain. " +
			"Pass either the raw message bytes or their keccak256 hash. Times out with ATTESTATION_TIMEOUT when the " +
			"message is not attested in time; ATTESTATION_FAILED means the service rejected it.",
		Similes: []string{"bridge status", "wait for attestation", "cctp attestation"},
		Schema: schema.Object(
			schema.F("message", hexField("0x-prefixed message bytes emitted by the source chain").Optional()),
			schema.F("message_hash", hexField("0x-prefixed keccak256 hash of the message").Optional().Refine(func(v any) error {
				if s, _ := v.(string); len(s) != 66 {
					return fmt.Errorf("message_hash must be 32 bytes")
				}
				return nil
			})),
		),
		Examples: []action.Example{{
			Input: map[string]any{"message_hash": "0x2b3b5b4ef3e1e3a5bd9f1f4d1f0e7c5e7b0a8f7b4c7e0c2b0c5e9f1a7d3c2b1a"},
			Output: map[string]any{
				"message_hash": "0x2b3b5b4ef3e1e3a5bd9f1f4d1f0e7c5e7b0a8f7b4c7e0c2b0c5e9f1a7d3c2b1a",
				"attestation":  "0xdeadbeef",
				"status":       statusComplete,
				"attempts":     1,
			},
			Explanation: "The message was already attested on the first lookup.",
		}, {
			Input: map[string]any{"message": "0x6275726e206d657373616765"},
			Output: map[string]any{
				"message_hash": "0x6d00d2911b5d07bd3b11db12354029872bb6695db60bdd6ab690d10ac76f6a32",
				"attestation":  "0xdeadbeef",
				"status":       statusComplete,
				"attempts":     1,
			},
			Explanation: "Raw message bytes are hashed with keccak256 before the lookup.",
		}},
		Handler: func(ctx context.Context, _ action.Agent, in action.Input) (any, error) {
			var hash common.Hash
			switch {
			case in.Has("message_hash"):
				hash = common.HexToHash(in.String("message_hash"))
			case in.Has("message"):
				raw, err := hexutil.Decode(in.String("message"))
				if err != nil {
					return nil, fmt.Errorf("message: %w", err)
				}
				hash = MessageHash(raw)
			default:
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "message or message_hash is required")
			}
			return p.WaitForAttestation(ctx, hash)
		},
	})
}

func hexField(description string) *schema.Node {
	return schema.String().Describe(description).Refine(func(v any) error {
		s, _ := v.(string)
		if _, err := hexutil.Decode(s); err != nil {
			return fmt.Errorf("not 0x-prefixed hex: %v", err)
		}
		return nil
	})
}
