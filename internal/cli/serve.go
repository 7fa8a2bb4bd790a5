package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skillforge/skillbridge/internal/bridge"
	"github.com/skillforge/skillbridge/internal/chain"
	"github.com/skillforge/skillbridge/internal/config"
	bridgeerrors "github.com/skillforge/skillbridge/internal/errors"
	"github.com/skillforge/skillbridge/internal/executor"
	"github.com/skillforge/skillbridge/internal/mcp"
	"github.com/skillforge/skillbridge/internal/metadata"
	"github.com/skillforge/skillbridge/internal/skills"
	"github.com/skillforge/skillbridge/internal/version"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "🚀 Start the MCP bridge",
		Long: `Start the MCP bridge. The registry is synced once before the SSE endpoint
opens and then every SYNC_INTERVAL. Stop with Ctrl+C.`,
		Example: `  # Start with settings from .env
  skillbridge serve

  # Configure an MCP client to connect over SSE:
  {
    "mcpServers": {
      "skillforge": { "url": "http://localhost:3001/sse" }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

// registryStack is the read side shared by serve and the skills commands.
type registryStack struct {
	client   *ethclient.Client
	registry *chain.RegistryReader
	cache    *skills.Cache
}

func (r *registryStack) Close() {
	r.client.Close()
}

func dialRegistry(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*registryStack, error) {
	client, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, bridgeerrors.NetworkErrorWithHint(err, "Check MONAD_RPC_URL.")
	}

	registry, err := chain.NewRegistryReader(client, common.HexToAddress(cfg.RegistryAddress))
	if err != nil {
		client.Close()
		return nil, bridgeerrors.RuntimeError(err)
	}

	fetcherOpts := []metadata.Option{
		metadata.WithTimeout(time.Duration(cfg.MetadataTimeout)),
		metadata.WithLogger(logger.Named("metadata")),
	}
	if len(cfg.Gateways) > 0 {
		fetcherOpts = append(fetcherOpts, metadata.WithGateways(cfg.Gateways))
	}
	cache := skills.NewCache(metadata.NewFetcher(fetcherOpts...), logger.Named("cache"))

	return &registryStack{client: client, registry: registry, cache: cache}, nil
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		return err
	}

	flush := initSentry(cfg, logger)
	defer flush()

	wallet, err := chain.ParseWallet(cfg.PrivateKey)
	if err != nil {
		return bridgeerrors.ConfigErrorWithHint(err, "PRIVATE_KEY must be a hex-encoded secp256k1 key.")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := dialRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	execOpts := []executor.Option{
		executor.WithTimeout(time.Duration(cfg.BackendTimeout)),
		executor.WithLogger(logger.Named("executor")),
	}
	if cfg.PayBeforeExecute {
		payer, err := chain.NewPayer(stack.client, common.HexToAddress(cfg.PaymentAddress), wallet, logger.Named("payments"))
		if err != nil {
			return bridgeerrors.ConfigError(err)
		}
		execOpts = append(execOpts, executor.WithPayer(payer))
	}
	exec := executor.NewClient(cfg.BackendURL, wallet.Address.Hex(), execOpts...)

	srvCfg := mcp.DefaultConfig(cfg.Port)
	srvCfg.ServerVersion = version.Version
	srvCfg.ToolTimeout = time.Duration(cfg.BackendTimeout) + 30*time.Second
	srvCfg.RateLimit = mcp.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}
	srv := mcp.NewServer(srvCfg, logger.Named("mcp"))

	reconciler := bridge.NewReconciler(stack.registry, stack.cache, exec, srv, bridge.Options{
		Concurrency:    cfg.MaxConcurrentFetches,
		CurrencySymbol: cfg.CurrencySymbol,
		Observer:       srv,
		Logger:         logger.Named("sync"),
	})
	srv.AttachStatus(reconciler)

	logger.Info("starting skillbridge",
		zap.String("version", version.Version),
		zap.String("registry", stack.registry.Address().Hex()),
		zap.String("rpc", cfg.RPCURL),
		zap.String("backend", cfg.BackendURL),
		zap.String("buyer", wallet.Address.Hex()),
		zap.Bool("pay_before_execute", cfg.PayBeforeExecute),
		zap.Duration("sync_interval", time.Duration(cfg.SyncInterval)))

	// A failed first pass is not fatal; the scheduler retries.
	reconciler.Sync(ctx)

	scheduler := bridge.NewScheduler(reconciler, time.Duration(cfg.SyncInterval), logger.Named("scheduler"))
	if err := scheduler.Start(ctx); err != nil {
		return bridgeerrors.RuntimeError(err)
	}
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			return bridgeerrors.NetworkError(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return bridgeerrors.RuntimeError(fmt.Errorf("shutdown: %w", err))
	}
	return <-errCh
}
