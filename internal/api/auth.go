package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"AgentKit-Chain/internal/config"
	"AgentKit-Chain/pkg/logger"
)

// 访问权限范围。
const (
	ScopeRead   = "read"
	ScopeInvoke = "invoke"
)

var (
	errMissingToken     = errors.New("missing bearer token")
	errInvalidToken     = errors.New("invalid token")
	errPermissionDenied = errors.New("permission denied")
)

// Subject 是通过认证的调用方。
type Subject struct {
	Name   string
	Scopes map[string]struct{}
}

// Allows 判断调用方是否拥有指定权限。
func (s *Subject) Allows(scope string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Scopes[scope]
	return ok
}

type subjectKey struct{}

// SubjectFrom 从请求上下文中取出调用方，未启用认证时返回 nil。
func SubjectFrom(ctx context.Context) *Subject {
	s, _ := ctx.Value(subjectKey{}).(*Subject)
	return s
}

type credential struct {
	token   []byte
	subject *Subject
}

// Authenticator 使用配置中的静态令牌校验 Bearer 认证头。
type Authenticator struct {
	credentials []credential
	audit       *slog.Logger
}

// NewAuthenticator 构造认证器。没有配置令牌时所有请求直接放行。
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	a := &Authenticator{audit: logger.Audit()}
	for i, tc := range cfg.Tokens {
		token := strings.TrimSpace(tc.Token)
		if token == "" {
			continue
		}
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			name = fmt.Sprintf("token-%d", i+1)
		}
		scopes := make(map[string]struct{}, len(tc.Scopes))
		for _, scope := range tc.Scopes {
			scopes[strings.ToLower(strings.TrimSpace(scope))] = struct{}{}
		}
		a.credentials = append(a.credentials, credential{token: []byte(token), subject: &Subject{Name: name, Scopes: scopes}})
	}
	return a
}

// Enabled 表示是否配置了至少一个令牌。
func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.credentials) > 0
}

func (a *Authenticator) authenticate(header string) (*Subject, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, errMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, errMissingToken
	}
	presented := []byte(strings.TrimSpace(token))
	for _, c := range a.credentials {
		if subtle.ConstantTimeCompare(c.token, presented) == 1 {
			return c.subject, nil
		}
	}
	return nil, errInvalidToken
}

// Require 返回一个要求指定权限的中间件，并为通过的请求记录审计日志。
func (a *Authenticator) Require(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		subject, err := a.authenticate(r.Header.Get("Authorization"))
		if err == nil && !subject.Allows(scope) {
			err = errPermissionDenied
		}
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, errPermissionDenied) {
				status = http.StatusForbidden
			}
			writeError(w, status, codeForStatus(status), err.Error())
			a.audit.Warn("access_denied",
				slog.String("path", r.URL.Path),
				slog.String("method", r.Method),
				slog.String("scope", scope),
				slog.Int("status", status),
				slog.String("error", err.Error()),
			)
			return
		}

		start := time.Now()
		aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(aw, r.WithContext(context.WithValue(r.Context(), subjectKey{}, subject)))
		a.audit.Info("api_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", aw.status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("subject", subject.Name),
			slog.String("request_id", RequestIDFrom(r.Context())),
		)
	})
}

// auditWriter 捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
