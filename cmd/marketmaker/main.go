// Command marketmaker runs one Hyperliquidity engine process against one
// coin on one Hyperliquid deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"hyperliquidity-mm/internal/bootstrap"
	"hyperliquidity-mm/internal/config"
	"hyperliquidity-mm/internal/emitter"
	"hyperliquidity-mm/internal/hyperliquid"
	"hyperliquidity-mm/internal/orchestrator"
	"hyperliquidity-mm/internal/orderstate"
	"hyperliquidity-mm/internal/pricinggrid"
	"hyperliquidity-mm/pkg/telemetry"
	"hyperliquidity-mm/pkg/tradingutils"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// shutdownTimeout bounds the OTel exporter's flush-on-exit window.
const shutdownTimeout = 10 * time.Second

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/marketmaker.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("marketmaker version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	app, err := bootstrap.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	cfg, logger := app.Cfg, app.Logger

	secrets, err := config.LoadSecrets()
	if err != nil {
		logger.Error("failed to load secrets", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("starting marketmaker", "version", version, "coin", cfg.Market.Coin, "testnet", cfg.Market.Testnet)

	if cfg.Telemetry.EnableMetrics {
		tel, err := telemetry.Setup(cfg.Telemetry.ServiceName)
		if err != nil {
			logger.Warn("telemetry setup failed, continuing without it", "error", err.Error())
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = tel.Shutdown(shutdownCtx)
			}()
			if err := telemetry.GetGlobalMetrics().InitMetrics(telemetry.GetMeter("hyperliquidity-mm")); err != nil {
				logger.Warn("metrics instrument init failed", "error", err.Error())
			}
		}

		metricsSrv := telemetry.NewMetricsServer(cfg.Telemetry.MetricsPort, logger)
		metricsSrv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = metricsSrv.Stop(shutdownCtx)
		}()
	}

	signer, err := hyperliquid.NewEcdsaSigner(string(secrets.PrivateKey))
	if err != nil {
		logger.Error("failed to build signer", "error", err.Error())
		os.Exit(1)
	}
	if signer.Address() != secrets.WalletAddress {
		logger.Warn("derived address does not match HL_WALLET_ADDRESS; continuing with derived address",
			"derived", signer.Address(), "configured", secrets.WalletAddress)
	}

	exchangeClient := hyperliquid.New(hyperliquid.Config{
		Coin:               cfg.Market.Coin,
		Asset:              cfg.Market.AssetIndex,
		RestBaseURL:        cfg.Transport.RestBaseURL,
		WsURL:              cfg.Transport.WsURL,
		RequestTimeout:     cfg.Transport.RequestTimeout,
		WsHeartbeatTimeout: cfg.Transport.WsHeartbeatTimeout,
	}, signer, logger)
	defer exchangeClient.Close()

	ctx := context.Background()
	szDecimals, err := exchangeClient.SpotMeta(ctx, cfg.Market.Coin)
	if err != nil {
		logger.Error("failed to fetch spot meta", "error", err.Error())
		os.Exit(1)
	}

	grid, err := buildGrid(cfg, szDecimals)
	if err != nil {
		logger.Error("failed to build pricing grid", "error", err.Error())
		os.Exit(1)
	}

	allocatedToken, allocatedUSDC, err := parseAllocation(cfg)
	if err != nil {
		logger.Error("failed to parse allocation", "error", err.Error())
		os.Exit(1)
	}

	state := orderstate.New(logger)
	// 25/sec with burst of 30 mirrors the teacher's OrderExecutor pacing;
	// it is a physical safety net under the budget-formula gate, not a
	// replacement for it.
	limiter := rate.NewLimiter(rate.Limit(25), 30)
	emit := emitter.New(exchangeClient, state, logger, limiter)

	orchCfg, err := buildOrchestratorConfig(cfg)
	if err != nil {
		logger.Error("failed to build orchestrator config", "error", err.Error())
		os.Exit(1)
	}

	orch := orchestrator.New(orchCfg, exchangeClient, logger, grid, state, emit)

	if err := orch.Seed(ctx, allocatedToken, allocatedUSDC); err != nil {
		logger.Error("seed failed", "error", err.Error())
		os.Exit(1)
	}

	if err := app.Run(&orchestratorRunner{orch: orch}); err != nil {
		logger.Error("marketmaker exited with error", "error", err.Error())
		os.Exit(1)
	}
}

// orchestratorRunner adapts *orchestrator.Orchestrator to bootstrap.Runner:
// it subscribes to the WS feeds and then runs the event loop, returning when
// ctx is cancelled (bootstrap.App.Run cancels ctx on SIGINT/SIGTERM).
type orchestratorRunner struct {
	orch *orchestrator.Orchestrator
}

func (r *orchestratorRunner) Run(ctx context.Context) error {
	if err := r.orch.Subscribe(ctx); err != nil {
		return err
	}
	return r.orch.Run(ctx)
}

func buildGrid(cfg *bootstrap.Config, szDecimals int32) (*pricinggrid.Grid, error) {
	startPx, err := decimal.NewFromString(cfg.Strategy.StartPx)
	if err != nil {
		return nil, fmt.Errorf("strategy.start_px: %w", err)
	}
	tick, err := decimal.NewFromString(cfg.Strategy.Tick)
	if err != nil {
		return nil, fmt.Errorf("strategy.tick: %w", err)
	}

	round := func(px decimal.Decimal) decimal.Decimal {
		return tradingutils.RoundPrice(px, int(szDecimals))
	}
	return pricinggrid.New(startPx, cfg.Strategy.NOrders, tick, round)
}

func parseAllocation(cfg *bootstrap.Config) (token, usdc decimal.Decimal, err error) {
	token, err = decimal.NewFromString(cfg.Allocation.AllocatedToken)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("allocation.allocated_token: %w", err)
	}
	usdc, err = decimal.NewFromString(cfg.Allocation.AllocatedUSDC)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("allocation.allocated_usdc: %w", err)
	}
	return token, usdc, nil
}

func buildOrchestratorConfig(cfg *bootstrap.Config) (orchestrator.Config, error) {
	orderSz, err := decimal.NewFromString(cfg.Strategy.OrderSz)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("strategy.order_sz: %w", err)
	}
	minNotional, err := decimal.NewFromString(cfg.Tuning.MinNotional)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("tuning.min_notional: %w", err)
	}

	return orchestrator.Config{
		Coin:              cfg.Market.Coin,
		Interval:          time.Duration(cfg.Tuning.IntervalS * float64(time.Second)),
		ReconcileEvery:    cfg.Tuning.ReconcileEvery,
		DeadZoneBps:       decimal.NewFromFloat(cfg.Tuning.DeadZoneBps),
		PriceToleranceBps: decimal.NewFromFloat(cfg.Tuning.PriceToleranceBps),
		SizeTolerancePct:  decimal.NewFromFloat(cfg.Tuning.SizeTolerancePct),
		MinNotional:       minNotional,
		OrderSize:         orderSz,
		CancelOnExit:      cfg.System.CancelOnExit,
		NSeededLevels:     cfg.Strategy.NSeededLevels,
	}, nil
}
