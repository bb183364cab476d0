package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"AgentKit-Chain/internal/adapter/toolspec"
	"AgentKit-Chain/internal/chat"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/internal/task"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/schema"
)

// actionView 是 Action 的只读展示。
type actionView struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Similes     []string         `json:"similes,omitempty"`
	Examples    []action.Example `json:"examples,omitempty"`
	Schema      map[string]any   `json:"schema"`
}

func viewOf(a *action.Action) actionView {
	return actionView{
		Name:        a.Name,
		Description: a.Description,
		Similes:     a.Similes,
		Examples:    a.Examples,
		Schema:      schema.JSONSchema(a.Schema),
	}
}

func (s *Server) requireAgent(w http.ResponseWriter) bool {
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.CodeInitializationFailure, "Agent 未初始化")
		return false
	}
	return true
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	if !s.requireAgent(w) {
		return
	}
	actions := s.agent.Actions()
	views := make([]actionView, 0, len(actions))
	for _, a := range actions {
		views = append(views, viewOf(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": views, "count": len(views)})
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	if !s.requireAgent(w) {
		return
	}
	a, err := s.agent.Action(r.PathValue("name"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(a))
}

// handleInvokeAction 同步执行一个 Action，参数为请求体中的 JSON 对象。
func (s *Server) handleInvokeAction(w http.ResponseWriter, r *http.Request) {
	if !s.requireAgent(w) {
		return
	}
	a, err := s.agent.Action(r.PathValue("name"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, xerrors.CodeInvalidArgument, "读取请求体失败")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	res := s.trampoline(r).Invoke(r.Context(), a, body)
	if !res.OK() {
		writeJSON(w, statusForCode(res.Error.Code), res.Error)
		return
	}
	writeJSON(w, http.StatusOK, res.Value)
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	if !s.requireAgent(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plugins": s.agent.Plugins()})
}

// handleListTools 返回指定格式下模型可见的工具列表。
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if !s.requireAgent(w) {
		return
	}
	format, err := toolspec.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, xerrors.CodeInvalidArgument, err.Error())
		return
	}
	listing, err := toolspec.Render(r.Context(), format, s.agent, s.agent.Actions())
	if err != nil {
		writeError(w, http.StatusInternalServerError, xerrors.CodeInvalidSchema, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// handleCreateTask 提交异步任务，返回 202 与任务快照。
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.CodeInitializationFailure, "任务服务未启用")
		return
	}
	var req task.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.CodeInvalidArgument, "请求体解析失败")
		return
	}
	submitted, err := s.tasks.Submit(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitted)
}

// handleListTasks 支持 limit、offset、status、action、q、order、has_result、since、until 参数。
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.CodeInitializationFailure, "任务服务未启用")
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, xerrors.CodeInvalidArgument, err.Error())
		return
	}
	tasks, err := s.tasks.List(r.Context(), opts...)
	if err != nil {
		writeFailure(w, err)
		return
	}
	stats, err := s.tasks.Stats(r.Context(), opts...)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "stats": stats})
}

func parseListOptions(r *http.Request) ([]task.ListOption, error) {
	q := r.URL.Query()
	var opts []task.ListOption
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, errors.New("limit 必须为正整数")
		}
		opts = append(opts, task.WithLimit(n))
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, errors.New("offset 必须为非负整数")
		}
		opts = append(opts, task.WithOffset(n))
	}
	if raw := q.Get("status"); raw != "" {
		var statuses []task.Status
		for _, part := range strings.Split(raw, ",") {
			status := task.Status(strings.TrimSpace(part))
			if !task.IsValidStatus(status) {
				return nil, errors.New("未知的任务状态: " + string(status))
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if name := strings.TrimSpace(q.Get("action")); name != "" {
		opts = append(opts, task.WithAction(name))
	}
	if query := strings.TrimSpace(q.Get("q")); query != "" {
		opts = append(opts, task.WithQuery(query))
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	default:
		return nil, errors.New("order 仅支持 asc 或 desc")
	}
	if raw := q.Get("has_result"); raw != "" {
		has, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("has_result 必须为布尔值")
		}
		opts = append(opts, task.WithResultPresence(has))
	}
	for key, apply := range map[string]func(time.Time) task.ListOption{
		"since": task.WithUpdatedSince,
		"until": task.WithUpdatedUntil,
	} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New(key + " 必须为 RFC3339 时间")
		}
		opts = append(opts, apply(ts))
	}
	return opts, nil
}

func (s *Server) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.CodeInitializationFailure, "任务服务未启用")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, xerrors.CodeInvalidArgument, "缺少任务 ID")
		return
	}
	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// chatRequest 支持单条 prompt 或完整的历史消息。
type chatRequest struct {
	Prompt   string        `json:"prompt"`
	Messages []llm.Message `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.CodeInitializationFailure, "对话功能未启用")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.CodeInvalidArgument, "请求体解析失败")
		return
	}

	var (
		reply *chat.Reply
		err   error
	)
	switch {
	case len(req.Messages) > 0:
		reply, err = s.chat.Continue(r.Context(), req.Messages)
	case strings.TrimSpace(req.Prompt) != "":
		reply, err = s.chat.Run(r.Context(), req.Prompt)
	default:
		writeError(w, http.StatusBadRequest, xerrors.CodeInvalidArgument, "prompt 与 messages 不能同时为空")
		return
	}
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, chat.ErrStepLimit) {
			status = http.StatusUnprocessableEntity
		}
		body := map[string]any{"status": "error", "message": err.Error()}
		if reply != nil {
			body["steps"] = reply.Steps
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
