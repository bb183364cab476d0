package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/internal/config"
	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/internal/llm/openai"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/internal/plugins"
	"AgentKit-Chain/internal/web3/provider"
	"AgentKit-Chain/internal/web3/solana"
	"AgentKit-Chain/pkg/dispatch"
	"AgentKit-Chain/pkg/logger"
	"AgentKit-Chain/pkg/plugin"
	"AgentKit-Chain/pkg/wallet"
)

// runtime 聚合一次进程生命周期内共享的组件。
type runtime struct {
	cfg     *config.Config
	chains  *provider.Registry
	agent   *agent.Agent
	manager *plugin.Manager
	metrics *metrics.Metrics
}

// buildRuntime 按配置依次构建链连接、钱包、Agent 与插件。
func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	chains, err := provider.NewRegistry(ctx, cfg.Web3)
	if err != nil {
		return nil, fmt.Errorf("初始化链连接失败: %w", err)
	}
	rt := &runtime{cfg: cfg, chains: chains, metrics: metrics.New()}

	conn := chains.Default()
	w, err := buildWallet(cfg.Wallet, conn)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}

	feeTier, err := dispatch.ParseFeeTier(cfg.Agent.FeeTier)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}
	commitment, err := solana.ParseCommitment(cfg.Agent.Commitment)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}
	rt.agent = agent.New(agent.Config{
		SignOnly:   cfg.Agent.SignOnly,
		FeeTier:    feeTier,
		Commitment: commitment,
		APIKeys:    cfg.Agent.APIKeys,
	}, w, conn, agent.WithDispatchObserver(rt.metrics))

	manager, err := plugin.NewManager(cfg.Plugins)
	if err != nil {
		rt.close(ctx)
		return nil, fmt.Errorf("加载外部插件失败: %w", err)
	}
	if err := plugins.Register(manager, cfg.Agent.Builtins, plugins.DepsFromConfig(*cfg, chains)); err != nil {
		rt.close(ctx)
		return nil, fmt.Errorf("注册内置插件失败: %w", err)
	}
	rt.manager = manager

	// 单个插件初始化失败不影响其他插件，但至少要有一个 Action 可用。
	if err := rt.agent.Use(manager.Factories()...); err != nil {
		if len(rt.agent.Actions()) == 0 {
			rt.close(ctx)
			return nil, fmt.Errorf("挂载插件失败: %w", err)
		}
		logger.L().Warn("部分插件挂载失败", slog.Any("error", err))
	}
	logger.L().Info("agent ready",
		slog.String("wallet", w.PublicKey().String()),
		slog.String("chain", conn.Name()),
		slog.Bool("sign_only", cfg.Agent.SignOnly),
		slog.Int("plugins", len(rt.agent.Plugins())),
		slog.Int("actions", len(rt.agent.Actions())),
	)
	return rt, nil
}

// buildWallet 支持本地密钥（文件或环境变量中的 base58）与远程签名服务。
func buildWallet(cfg config.WalletConfig, conn *solana.Conn) (wallet.Wallet, error) {
	switch cfg.Kind {
	case "remote":
		key, err := solanago.PublicKeyFromBase58(strings.TrimSpace(cfg.Remote.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("远程钱包公钥无效: %w", err)
		}
		return wallet.NewRemote(wallet.RemoteConfig{
			Endpoint:  cfg.Remote.Endpoint,
			PublicKey: key,
			APIKey:    cfg.Remote.APIKey,
			CanSend:   cfg.Remote.CanSend,
			Timeout:   cfg.Timeout,
		}, nil)
	default:
		source := cfg.KeypairPath
		if source == "" && cfg.KeypairEnv != "" {
			if secret := strings.TrimSpace(os.Getenv(cfg.KeypairEnv)); secret != "" {
				source = "base58:" + secret
			}
		}
		if source == "" {
			return nil, errors.New("未配置钱包密钥: 设置 wallet.keypair_path 或环境变量 " + cfg.KeypairEnv)
		}
		kp, err := wallet.LoadKeypair(source)
		if err != nil {
			return nil, err
		}
		return kp.Connect(conn, rpc.TransactionOpts{PreflightCommitment: conn.Commitment()}), nil
	}
}

// buildLLM 构建对话使用的大模型客户端。未配置 API Key 时返回 nil。
func buildLLM(cfg config.LLMConfig) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
			return nil, nil
		}
		return openai.NewClient(cfg.OpenAI)
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.Provider)
	}
}

func (rt *runtime) close(ctx context.Context) {
	if rt.agent != nil {
		if err := rt.agent.Close(ctx); err != nil {
			logger.L().Warn("关闭插件失败", slog.Any("error", err))
		}
	}
	if rt.chains != nil {
		rt.chains.Close()
	}
}
