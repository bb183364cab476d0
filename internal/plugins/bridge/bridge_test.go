package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AgentKit-Chain/internal/agent"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/plugins/plugintest"
)

// attester answers with the scripted responses in order and repeats the
// last one afterwards.
type attester struct {
	calls     atomic.Int32
	responses []func(w http.ResponseWriter)
	lastPath  atomic.Value
}

func (a *attester) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(a.calls.Add(1)) - 1
	a.lastPath.Store(r.URL.Path)
	if n >= len(a.responses) {
		n = len(a.responses) - 1
	}
	a.responses[n](w)
}

func notFound(w http.ResponseWriter) { http.Error(w, "not found", http.StatusNotFound) }

func unavailable(w http.ResponseWriter) { http.Error(w, "busy", http.StatusServiceUnavailable) }

func status(s, attestation string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": s, "attestation": attestation})
	}
}

func setup(t *testing.T, a *attester, attempts int) *agent.Agent {
	t.Helper()
	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)
	ag := plugintest.NewAgent(t, nil, false)
	require.NoError(t, ag.Use(New(Config{BaseURL: srv.URL, MaxAttempts: attempts, Interval: time.Millisecond})))
	return ag
}

func TestExamplesReplay(t *testing.T) {
	ag := setup(t, &attester{responses: []func(http.ResponseWriter){status(statusComplete, "0xdeadbeef")}}, 3)
	plugintest.ReplayExamples(t, ag, "get_bridge_attestation")
}

func TestWaitsThroughPendingAndTransientFailures(t *testing.T) {
	a := &attester{responses: []func(http.ResponseWriter){
		notFound,
		status(statusPending, "PENDING"),
		unavailable,
		status(statusComplete, "0xabcd"),
	}}
	ag := setup(t, a, 5)

	message := []byte("burn message")
	out, err := ag.Invoke(context.Background(), "get_bridge_attestation",
		[]byte(`{"message":"0x`+common.Bytes2Hex(message)+`"}`))
	require.NoError(t, err)

	att := out.(*Attestation)
	assert.Equal(t, 4, att.Attempts)
	assert.Equal(t, "0xabcd", att.Attestation)
	assert.Equal(t, crypto.Keccak256Hash(message).Hex(), att.MessageHash)
	assert.True(t, strings.HasSuffix(a.lastPath.Load().(string), att.MessageHash))
}

func TestExhaustedAttemptsAreTimeout(t *testing.T) {
	a := &attester{responses: []func(http.ResponseWriter){notFound}}
	ag := setup(t, a, 3)
	p, err := agent.PluginAs[*Plugin](ag, ID)
	require.NoError(t, err)

	_, err = p.WaitForAttestation(context.Background(), MessageHash([]byte("x")))
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeAttestationTimeout, xerrors.CodeOf(err))
	assert.True(t, xerrors.RetryableError(err))
	assert.EqualValues(t, 3, a.calls.Load())
}

func TestRejectedAttestationIsFailure(t *testing.T) {
	a := &attester{responses: []func(http.ResponseWriter){notFound, status("failed", "")}}
	ag := setup(t, a, 10)
	p, err := agent.PluginAs[*Plugin](ag, ID)
	require.NoError(t, err)

	_, err = p.WaitForAttestation(context.Background(), MessageHash([]byte("x")))
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeAttestationFailed, xerrors.CodeOf(err))
	assert.EqualValues(t, 2, a.calls.Load())
}

func TestCancellationAbortsWait(t *testing.T) {
	a := &attester{responses: []func(http.ResponseWriter){notFound}}
	srv := httptest.NewServer(a)
	defer srv.Close()
	ag := plugintest.NewAgent(t, nil, false)
	require.NoError(t, ag.Use(New(Config{BaseURL: srv.URL, MaxAttempts: 1000, Interval: time.Hour})))
	p, err := agent.PluginAs[*Plugin](ag, ID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = p.WaitForAttestation(ctx, MessageHash([]byte("x")))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, xerrors.CodeAttestationTimeout, xerrors.CodeOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRequiresMessageOrHash(t *testing.T) {
	ag := setup(t, &attester{responses: []func(http.ResponseWriter){notFound}}, 1)
	_, err := ag.Invoke(context.Background(), "get_bridge_attestation", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))

	_, err = ag.Invoke(context.Background(), "get_bridge_attestation", []byte(`{"message_hash":"0x1234"}`))
	assert.Error(t, err)
}
