package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"time26/alerting"
	"time26/chain"
	"time26/config"
	"time26/database"
	"time26/events"
	"time26/merkle"
	"time26/metrics"
	"time26/pricing"
	"time26/repository"
	"time26/rewards"
	"time26/server"
	"time26/service"
)

// app holds every long-lived dependency
type app struct {
	cfg      *config.Config
	db       *database.DB
	bus      *events.Bus
	registry *prometheus.Registry
	chain    *chain.Client
	nats     *events.NATSPublisher
	services server.Services
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	indicators := metrics.NewPromIndicators(a.registry)

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, database.ConstructDatabaseURL(cfg.Database.URL, cfg.Database.Name), cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db

	a.bus = events.NewBus()
	if cfg.NATS.URL != "" {
		publisher, err := events.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		a.nats = publisher
		events.NewForwarder(a.bus, publisher,
			events.EventTypeSettlementCompleted,
			events.EventTypeLedgerInconsistency,
			events.EventTypeMerkleRootPushed,
			events.EventTypeGaslessMint,
		)
		log.WithField("url", cfg.NATS.URL).Info("Forwarding events to NATS")
	}
	uowFactory := repository.NewUnitOfWorkFactory(db, a.bus)

	log.WithField("rpc", cfg.Chain.RPCURL).Info("Connecting to chain...")
	client, err := chain.Dial(ctx, chain.Config{
		RPCURL:              cfg.Chain.RPCURL,
		ChainID:             cfg.Chain.ChainID,
		OperatorPrivateKey:  cfg.Chain.OperatorPrivateKey,
		TxTimeout:           cfg.Chain.TxTimeout,
		ReceiptPollInterval: cfg.Chain.ReceiptPollInterval,
	}, indicators)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to chain: %w", err)
	}
	a.chain = client

	addresses := map[string]string{
		"chain.reward_pool_address":   cfg.Chain.RewardPoolAddress,
		"chain.token_address":         cfg.Chain.TokenAddress,
		"chain.mint_contract_address": cfg.Chain.MintContractAddress,
	}
	for key, value := range addresses {
		if !common.IsHexAddress(value) {
			a.Close()
			return nil, fmt.Errorf("%s is not a valid address: %q", key, value)
		}
	}
	pool := chain.NewRewardPool(client,
		common.HexToAddress(cfg.Chain.RewardPoolAddress),
		common.HexToAddress(cfg.Chain.TokenAddress))
	mint := chain.NewMintContract(client, common.HexToAddress(cfg.Chain.MintContractAddress))

	annualTokens, err := decimal.NewFromString(cfg.Rewards.AnnualPoolTokens)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid rewards.annual_pool_tokens: %w", err)
	}
	minimumBalance, err := decimal.NewFromString(cfg.Gasless.MinimumBalanceWei)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid gasless.minimum_balance_wei: %w", err)
	}

	var alerter service.Alerter = alerting.LogAlerter{}
	if cfg.Alerts.DiscordWebhookURL != "" {
		discord, err := alerting.NewDiscordAlerter(cfg.Alerts.DiscordWebhookURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to configure discord alerts: %w", err)
		}
		alerter = discord
	}

	oracle := pricing.NewOracle(pricing.Config{
		FeedURL:          cfg.Pricing.FeedURL,
		TokenID:          cfg.Pricing.TokenID,
		NativeID:         cfg.Pricing.NativeID,
		CacheTTL:         cfg.Pricing.CacheTTL,
		RequestTimeout:   cfg.Pricing.RequestTimeout,
		RefreshPerMinute: cfg.Pricing.RefreshPerMinute,
	}, indicators)

	tree := merkle.NewCache(repository.NewUserRepository(db), cfg.Rewards.MerkleCacheTTL, nil)
	// a settlement changes balances, so the next proof request rebuilds
	a.bus.Subscribe(events.EventTypeSettlementCompleted, func(context.Context, events.Event) {
		tree.Invalidate()
	})

	ledger := service.NewLedgerService(uowFactory, alerter, indicators, cfg.Rewards.RollbackRetryBase)
	a.services = server.Services{
		Ledger:     ledger,
		Settlement: service.NewSettlementService(uowFactory, pool, rewards.DailyBudget(rewards.TokensToWei(annualTokens)), indicators, nil),
		Claim:      service.NewClaimService(tree, pool, a.bus, indicators),
		Gasless: service.NewGaslessService(uowFactory, ledger, mint, pool, oracle, service.GaslessConfig{
			MinimumBalance:     minimumBalance,
			TxTimeout:          cfg.Chain.TxTimeout,
			ReconcileBatchSize: cfg.Gasless.ReconcileBatchSize,
		}, indicators),
	}

	return a, nil
}

func (a *app) Close() {
	if a.nats != nil {
		a.nats.Close()
	}
	if a.chain != nil {
		a.chain.Close()
	}
	if a.db != nil {
		log.Info("Closing database connection...")
		a.db.Close()
	}
}
