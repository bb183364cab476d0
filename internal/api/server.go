package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"AgentKit-Chain/internal/adapter"
	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/internal/chat"
	"AgentKit-Chain/internal/config"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/internal/task"
	"AgentKit-Chain/pkg/logger"
)

// AdapterName 是 HTTP 调用在工具指标中的 adapter 标签。
const AdapterName = "http"

// maxBodyBytes 限制请求体大小。
const maxBodyBytes = 1 << 20

// Server 负责暴露 REST 接口，供外部直接调用 Action、提交异步任务与对话。
type Server struct {
	addr    string
	agent   *agent.Agent
	tasks   *task.Service
	chat    *chat.Runner
	metrics *metrics.Metrics
	auth    *Authenticator
	log     *slog.Logger
}

// Option 定义 Server 的可选组件。
type Option func(*Server)

// WithTaskService 启用 /api/v1/tasks。
func WithTaskService(svc *task.Service) Option {
	return func(s *Server) { s.tasks = svc }
}

// WithChatRunner 启用 /api/v1/chat。
func WithChatRunner(runner *chat.Runner) Option {
	return func(s *Server) { s.chat = runner }
}

// WithMetrics 为每个路由记录请求指标并暴露 /metrics。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAuth 使用静态令牌保护 /api/v1 路由。
func WithAuth(cfg config.AuthConfig) Option {
	return func(s *Server) { s.auth = NewAuthenticator(cfg) }
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, ag *agent.Agent, opts ...Option) *Server {
	s := &Server{addr: addr, agent: ag, log: logger.Named("api")}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.auth == nil {
		s.auth = NewAuthenticator(config.AuthConfig{})
	}
	return s
}

// Handler 返回挂载了全部路由的 http.Handler。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /healthz", "healthz", "", s.handleHealth)
	s.route(mux, "GET /api/v1/actions", "actions", ScopeRead, s.handleListActions)
	s.route(mux, "GET /api/v1/actions/{name}", "action", ScopeRead, s.handleGetAction)
	s.route(mux, "POST /api/v1/actions/{name}", "invoke", ScopeInvoke, s.handleInvokeAction)
	s.route(mux, "GET /api/v1/plugins", "plugins", ScopeRead, s.handleListPlugins)
	s.route(mux, "GET /api/v1/tools", "tools", ScopeRead, s.handleListTools)
	s.route(mux, "POST /api/v1/tasks", "tasks_create", ScopeInvoke, s.handleCreateTask)
	s.route(mux, "GET /api/v1/tasks", "tasks_list", ScopeRead, s.handleListTasks)
	s.route(mux, "GET /api/v1/tasks/{id}", "task_detail", ScopeRead, s.handleTaskDetail)
	s.route(mux, "POST /api/v1/chat", "chat", ScopeInvoke, s.handleChat)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return withRequestID(mux)
}

func (s *Server) route(mux *http.ServeMux, pattern, name, scope string, fn http.HandlerFunc) {
	var h http.Handler = fn
	if scope != "" {
		h = s.auth.Require(scope, h)
	}
	if s.metrics != nil {
		h = s.metrics.Middleware(name, h)
	}
	mux.Handle(pattern, h)
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("api server listening", slog.String("address", s.addr), slog.Bool("auth", s.auth.Enabled()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.agent != nil {
		body["actions"] = len(s.agent.Actions())
		body["plugins"] = len(s.agent.Plugins())
	}
	if s.tasks != nil {
		stats, err := s.tasks.Stats(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
			return
		}
		body["tasks"] = stats
	}
	writeJSON(w, http.StatusOK, body)
}

// trampoline 为一次请求构建调用入口，signOnly 只在请求显式指定时覆盖配置。
func (s *Server) trampoline(r *http.Request) *adapter.Trampoline {
	ag := s.agent
	if raw := r.URL.Query().Get("sign_only"); raw != "" {
		ag = ag.WithSignOnly(raw == "true" || raw == "1")
	}
	var opts []adapter.Option
	if s.metrics != nil {
		opts = append(opts, adapter.WithObserver(s.metrics))
	}
	return adapter.NewTrampoline(AdapterName, ag, opts...)
}

// writeJSON 以 JSON 输出响应。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 输出与工具调用一致的错误结构。
func writeError(w http.ResponseWriter, status int, code xerrors.Code, message string) {
	writeJSON(w, status, xerrors.Payload{Status: "error", Message: message, Code: code})
}

// writeFailure 按错误码选择 HTTP 状态码。
func writeFailure(w http.ResponseWriter, err error) {
	payload := xerrors.PayloadOf(err)
	writeJSON(w, statusForCode(payload.Code), payload)
}

func statusForCode(code xerrors.Code) int {
	switch code {
	case xerrors.CodeActionNotFound, xerrors.CodeNotFound, task.CodeTaskNotFound:
		return http.StatusNotFound
	case xerrors.CodeSchemaValidation, xerrors.CodeUnsupportedType:
		return http.StatusUnprocessableEntity
	case xerrors.CodeInvalidArgument, task.CodeTaskValidation, xerrors.CodeCapabilityMissing:
		return http.StatusBadRequest
	case xerrors.CodeConflict, task.CodeTaskConflict:
		return http.StatusConflict
	case xerrors.CodeNetworkFailure, xerrors.CodeAttestationFailed:
		return http.StatusBadGateway
	case xerrors.CodeTimeout, xerrors.CodeAttestationTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) xerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return xerrors.CodeNotFound
	case http.StatusServiceUnavailable:
		return xerrors.CodeInitializationFailure
	default:
		return xerrors.CodeInvalidArgument
	}
}

type requestIDKey struct{}

// RequestIDFrom 返回当前请求的 ID。
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID 透传或生成 X-Request-ID。
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, xerrors.CodeInitializationFailure, "服务已关闭")
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
