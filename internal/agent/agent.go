package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go/rpc"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/dispatch"
	"AgentKit-Chain/pkg/logger"
	"AgentKit-Chain/pkg/plugin"
	"AgentKit-Chain/pkg/wallet"
)

// Config 是 Agent 的运行配置。
type Config struct {
	SignOnly   bool
	FeeTier    dispatch.FeeTier
	Commitment rpc.CommitmentType
	APIKeys    map[string]string
}

// catalog 保存插件与合并后的 Action 列表，由同一 Agent 派生出的实例共享。
type catalog struct {
	mu      sync.RWMutex
	actions *action.Registry
	plugins []plugin.Plugin
	byID    map[string]plugin.Plugin
}

// Agent 聚合钱包、链连接与插件，是各工具适配器的统一入口。
// 钱包与 signOnly 在一次调用过程中不会变化；多租户场景通过
// WithWallet / WithSignOnly 派生新实例。
type Agent struct {
	wallet     wallet.Wallet
	conn       action.Connection
	cfg        Config
	dispatcher *dispatch.Dispatcher
	catalog    *catalog
	log        *slog.Logger
}

var _ action.Agent = (*Agent)(nil)

// Option 定义可选的 Agent 配置。
type Option func(*options)

type options struct {
	dispatchOpts []dispatch.DispatcherOption
}

// WithDispatchObserver 为交易分发器挂载观测者（通常为指标采集）。
func WithDispatchObserver(observer dispatch.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.dispatchOpts = append(o.dispatchOpts, dispatch.WithObserver(observer))
		}
	}
}

// WithPolling 设置交易确认轮询参数。
func WithPolling(opts ...dispatch.Option) Option {
	return func(o *options) {
		o.dispatchOpts = append(o.dispatchOpts, dispatch.WithDefaults(opts...))
	}
}

// New 创建一个 Agent。conn 可以为 nil，此时只能处理已构建好的交易。
func New(cfg Config, w wallet.Wallet, conn action.Connection, opts ...Option) *Agent {
	// 应用可选配置。
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if cfg.FeeTier == "" {
		cfg.FeeTier = dispatch.FeeMid
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	cfg.APIKeys = cloneKeys(cfg.APIKeys)

	// 分发器默认使用配置中的确认级别，调用方选项在其后生效。
	dispatchOpts := append([]dispatch.DispatcherOption{
		dispatch.WithDefaults(dispatch.WithCommitment(cfg.Commitment)),
	}, o.dispatchOpts...)

	var dconn dispatch.Connection
	if conn != nil {
		dconn = conn
	}
	return &Agent{
		wallet:     w,
		conn:       conn,
		cfg:        cfg,
		dispatcher: dispatch.New(dconn, dispatchOpts...),
		catalog: &catalog{
			actions: action.NewRegistry(),
			byID:    make(map[string]plugin.Plugin),
		},
		log: logger.Named("agent"),
	}
}

// Wallet 返回当前钱包。
func (a *Agent) Wallet() wallet.Wallet { return a.wallet }

// Connection 返回链 RPC 连接。
func (a *Agent) Connection() action.Connection { return a.conn }

// Config 返回提供给 Action 处理器的配置视图。
func (a *Agent) Config() action.Config {
	return action.Config{SignOnly: a.cfg.SignOnly, FeeTier: a.cfg.FeeTier, APIKeys: cloneKeys(a.cfg.APIKeys)}
}

// Execute 使用当前钱包分发交易请求。原始指令未指定费用档位时使用配置档位。
func (a *Agent) Execute(ctx context.Context, req dispatch.Request, opts ...dispatch.Option) (*dispatch.Result, error) {
	switch r := req.(type) {
	case dispatch.RawInstructions:
		if r.FeeTier == "" {
			r.FeeTier = a.cfg.FeeTier
		}
		req = r
	case *dispatch.RawInstructions:
		if r != nil && r.FeeTier == "" {
			cp := *r
			cp.FeeTier = a.cfg.FeeTier
			req = cp
		}
	}
	all := append([]dispatch.Option{dispatch.WithSignOnly(a.cfg.SignOnly)}, opts...)
	return a.dispatcher.Execute(ctx, a.wallet, req, all...)
}

// WithWallet 返回使用另一钱包的派生 Agent，插件与 Action 列表共享。
// 插件自身的方法仍绑定在构建它们的 Agent 上。
func (a *Agent) WithWallet(w wallet.Wallet) *Agent {
	cp := *a
	cp.wallet = w
	return &cp
}

// WithSignOnly 返回切换 signOnly 的派生 Agent。
func (a *Agent) WithSignOnly(signOnly bool) *Agent {
	cp := *a
	cp.cfg.SignOnly = signOnly
	return &cp
}

// Use 依次调用插件工厂并注册其 Action。
//
// 工厂返回错误的插件被跳过，其余插件照常注册，错误汇总后返回。
// 若本批次内出现重名 Action（与已注册的或批次内彼此重名），整批不注册。
func (a *Agent) Use(factories ...plugin.Factory) error {
	// 构建插件实例，初始化失败只影响该插件。
	built := make([]plugin.Plugin, 0, len(factories))
	var initErrs error
	for i, factory := range factories {
		if factory == nil {
			continue
		}
		p, err := factory(a)
		if err != nil {
			a.log.Warn("plugin initialisation failed", "index", i, "error", err)
			initErrs = stdErrors.Join(initErrs, xerrors.Wrap(xerrors.CodeRegistrationFailed, err, "plugin initialisation failed"))
			continue
		}
		built = append(built, p)
	}

	// 整批校验插件 ID 与 Action 名称，再一次性写入。
	c := a.catalog
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(built))
	var actions []*action.Action
	for _, p := range built {
		id := p.Info().ID
		if _, exists := c.byID[id]; exists {
			return stdErrors.Join(initErrs, xerrors.New(xerrors.CodeRegistrationFailed, fmt.Sprintf("plugin %s already attached", id)))
		}
		if _, exists := seen[id]; exists {
			return stdErrors.Join(initErrs, xerrors.New(xerrors.CodeRegistrationFailed, fmt.Sprintf("plugin %s listed twice", id)))
		}
		seen[id] = struct{}{}
		actions = append(actions, p.Actions()...)
	}
	if err := c.actions.Add(actions...); err != nil {
		return stdErrors.Join(initErrs, xerrors.Wrap(xerrors.CodeDuplicateAction, err, "action registration rejected"))
	}
	for _, p := range built {
		c.plugins = append(c.plugins, p)
		c.byID[p.Info().ID] = p
		a.log.Info("plugin attached", "plugin", p.Info().ID, "actions", len(p.Actions()))
	}
	return initErrs
}

// Actions 返回合并后的 Action 列表（按注册顺序）。
func (a *Agent) Actions() []*action.Action {
	return a.catalog.actions.List()
}

// Action 按名称查找 Action。
func (a *Agent) Action(name string) (*action.Action, error) {
	return a.catalog.actions.Get(name)
}

// Plugin 按 ID 查找已挂载的插件。
func (a *Agent) Plugin(id string) (plugin.Plugin, bool) {
	a.catalog.mu.RLock()
	defer a.catalog.mu.RUnlock()
	p, ok := a.catalog.byID[id]
	return p, ok
}

// Plugins 返回已挂载插件的元信息。
func (a *Agent) Plugins() []plugin.Info {
	a.catalog.mu.RLock()
	defer a.catalog.mu.RUnlock()
	infos := make([]plugin.Info, 0, len(a.catalog.plugins))
	for _, p := range a.catalog.plugins {
		infos = append(infos, p.Info())
	}
	return infos
}

// PluginAs 以具体类型取回插件，以便调用其绑定方法。
func PluginAs[T any](a *Agent, id string) (T, error) {
	var zero T
	p, ok := a.Plugin(id)
	if !ok {
		return zero, xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("plugin %s not attached", id))
	}
	typed, ok := p.(T)
	if !ok {
		return zero, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("plugin %s is %T", id, p))
	}
	return typed, nil
}

// Invoke 直接按名称执行 Action，参数为原始 JSON。
func (a *Agent) Invoke(ctx context.Context, name string, raw []byte) (any, error) {
	act, err := a.Action(name)
	if err != nil {
		return nil, err
	}
	return act.Run(ctx, a, raw)
}

// Start 启动实现了 plugin.Starter 的插件。
func (a *Agent) Start(ctx context.Context) error {
	a.catalog.mu.RLock()
	plugins := append([]plugin.Plugin(nil), a.catalog.plugins...)
	a.catalog.mu.RUnlock()
	for _, p := range plugins {
		if s, ok := p.(plugin.Starter); ok {
			if err := s.Start(ctx); err != nil {
				return fmt.Errorf("start plugin %s: %w", p.Info().ID, err)
			}
		}
	}
	return nil
}

// Close 逆序停止实现了 plugin.Stopper 的插件。
func (a *Agent) Close(ctx context.Context) error {
	a.catalog.mu.RLock()
	plugins := append([]plugin.Plugin(nil), a.catalog.plugins...)
	a.catalog.mu.RUnlock()
	var errs error
	for i := len(plugins) - 1; i >= 0; i-- {
		if s, ok := plugins[i].(plugin.Stopper); ok {
			errs = stdErrors.Join(errs, s.Stop(ctx))
		}
	}
	return errs
}

func cloneKeys(keys map[string]string) map[string]string {
	out := make(map[string]string, len(keys))
	for k, v := range keys {
		out[k] = v
	}
	return out
}
