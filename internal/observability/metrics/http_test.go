package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AgentKit-Chain/internal/adapter"
	"AgentKit-Chain/pkg/dispatch"
)

var (
	_ adapter.Observer  = (*Metrics)(nil)
	_ dispatch.Observer = (*Metrics)(nil)
)

func TestMiddlewareCountsStatusCodes(t *testing.T) {
	m := New()
	h := m.Middleware("actions", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))

	for _, target := range []string{"/", "/", "/?fail=1"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("actions", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("actions", "GET", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpErrors.WithLabelValues("actions", "GET")))
}

func TestToolAndDispatchObservers(t *testing.T) {
	m := New()
	m.ObserveTool("mcp", "transfer", "ok", 10*time.Millisecond)
	m.ObserveTool("mcp", "transfer", "error", 10*time.Millisecond)
	m.ObserveDispatch(dispatch.KindInstructions, true, nil, time.Millisecond)
	m.ObserveDispatch(dispatch.KindBatch, false, errors.New("rpc down"), time.Millisecond)
	m.ObserveTask("succeeded")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("mcp", "transfer", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("instructions", "sign_only", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("batch", "send", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues("succeeded")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveTool("openai", "get_balance", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `agentkit_tool_calls_total{action="get_balance",adapter="openai",status="ok"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
