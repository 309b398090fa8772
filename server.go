package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/metalego/contracts/config"
	"github.com/metalego/contracts/gateway/chain"
	depositGateway "github.com/metalego/contracts/gateway/deposit"
	"github.com/metalego/contracts/gateway/ledger"
	notifyGateway "github.com/metalego/contracts/gateway/notify"
	"github.com/metalego/contracts/gateway/signer"
	accountHandler "github.com/metalego/contracts/handler/account"
	depositHandler "github.com/metalego/contracts/handler/deposit"
	eventHandler "github.com/metalego/contracts/handler/event"
	factoryHandler "github.com/metalego/contracts/handler/factory"
	marketHandler "github.com/metalego/contracts/handler/market"
	"github.com/metalego/contracts/handler/response"
	"github.com/metalego/contracts/model"
	accountUsecase "github.com/metalego/contracts/usecase/account"
	depositUsecase "github.com/metalego/contracts/usecase/deposit"
	eventUsecase "github.com/metalego/contracts/usecase/event"
	factoryUsecase "github.com/metalego/contracts/usecase/factory"
	marketUsecase "github.com/metalego/contracts/usecase/market"
)

// devnet はジェネシス済みのワールドとデプロイ済みコントラクト
type devnet struct {
	world       *ledger.World
	market      *marketUsecase.Market
	factory     *factoryUsecase.Factory
	collections [3]*ledger.Collection
	tokens      []*ledger.Token
}

// newDevnet はコントラクトをデプロイし、設定に従ってジェネシス状態を作る
func newDevnet(ctx context.Context, cfg *config.Config, headers ledger.HeaderSource) (*devnet, error) {
	if !common.IsHexAddress(cfg.Market.Owner) || !common.IsHexAddress(cfg.Market.FeeReceiver) {
		return nil, fmt.Errorf("invalid owner or fee receiver address")
	}
	if cfg.Market.FeeRate > 1000 {
		return nil, fmt.Errorf("FEE_RATE must be at most 1000, got %d", cfg.Market.FeeRate)
	}
	owner := common.HexToAddress(cfg.Market.Owner)
	feeReceiver := common.HexToAddress(cfg.Market.FeeReceiver)
	// SetFeeReceiver と同じくゼロアドレスは受け付けない
	if owner == (common.Address{}) || feeReceiver == (common.Address{}) {
		return nil, fmt.Errorf("owner and fee receiver must not be the zero address")
	}

	fees, err := mintFees(cfg.Factory)
	if err != nil {
		return nil, err
	}
	signerAddr, err := signerAddress(cfg.Factory)
	if err != nil {
		return nil, err
	}
	allocs, err := config.ParseAlloc(cfg.Genesis.Alloc)
	if err != nil {
		return nil, err
	}

	// --- 1. デプロイ ---
	world := ledger.NewWorld(headers)
	d := &devnet{world: world}

	world.Deploy(owner, func(addr common.Address) interface{} {
		d.market = marketUsecase.NewMarket(world, addr, owner, feeReceiver, cfg.Market.FeeRate)
		return d.market
	})
	world.Deploy(owner, func(addr common.Address) interface{} {
		d.factory = factoryUsecase.NewFactory(world, addr, owner, signer.NewAuthority())
		return d.factory
	})
	for i, tier := range model.Tiers {
		d.collections[i] = world.DeployCollection(owner,
			fmt.Sprintf("Metalego Tier %d", tier), fmt.Sprintf("MLT%d", tier), d.factory.Address())
	}
	for _, symbol := range cfg.Genesis.CurrencyTokens {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		d.tokens = append(d.tokens, world.DeployToken(owner, symbol, symbol))
	}

	// --- 2. マーケットの初期設定 ---
	_, err = world.Transact(ctx, model.Msg{From: owner, To: d.market.Address()}, func(call *model.Call) error {
		if err := d.market.SetSalesEnabled(call, cfg.Market.SalesEnabled); err != nil {
			return err
		}
		for _, c := range d.collections {
			if err := d.market.AddSupportedAsset(call, c.Address()); err != nil {
				return err
			}
		}
		for _, t := range d.tokens {
			if err := d.market.AddSupportedCurrency(call, t.Address()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("market genesis failed: %w", err)
	}

	// --- 3. ファクトリーの初期設定 ---
	_, err = world.Transact(ctx, model.Msg{From: owner, To: d.factory.Address()}, func(call *model.Call) error {
		for i, tier := range model.Tiers {
			if err := d.factory.SetTierAsset(call, tier, d.collections[i].Address()); err != nil {
				return err
			}
			if err := d.factory.SetMintFee(call, tier, fees[i]); err != nil {
				return err
			}
		}
		if err := d.factory.SetQuota(call, cfg.Factory.Quota); err != nil {
			return err
		}
		return d.factory.SetSigner(call, signerAddr)
	})
	if err != nil {
		return nil, fmt.Errorf("factory genesis failed: %w", err)
	}

	// --- 4. 残高の割り当て ---
	for _, alloc := range allocs {
		if err := world.Fund(alloc.Address, alloc.Amount); err != nil {
			return nil, err
		}
		for _, t := range d.tokens {
			if err := t.Mint(alloc.Address, alloc.Amount); err != nil {
				return nil, err
			}
		}
	}

	zap.L().With(
		zap.String("market", d.market.Address().Hex()),
		zap.String("factory", d.factory.Address().Hex()),
		zap.String("signer", signerAddr.Hex()),
		zap.Int("tokens", len(d.tokens)),
		zap.Int("allocations", len(allocs)),
	).Info("Devnet genesis complete")
	return d, nil
}

func mintFees(cfg config.FactoryConfig) ([3]*uint256.Int, error) {
	var fees [3]*uint256.Int
	for i, s := range []string{cfg.FeeTierOne, cfg.FeeTierTwo, cfg.FeeTierThree} {
		fee, err := config.ParseEther(s)
		if err != nil {
			return fees, fmt.Errorf("invalid tier %d mint fee: %w", i+1, err)
		}
		fees[i] = fee
	}
	return fees, nil
}

// signerAddress は SIGNER_ADDRESS、なければ SIGNER_PRIVATE_KEY から署名者を決める
// どちらもない場合はゼロアドレスとなり、ティア2と3のミントは全て拒否される
func signerAddress(cfg config.FactoryConfig) (common.Address, error) {
	if cfg.SignerAddress != "" {
		if !common.IsHexAddress(cfg.SignerAddress) {
			return common.Address{}, fmt.Errorf("invalid SIGNER_ADDRESS %q", cfg.SignerAddress)
		}
		return common.HexToAddress(cfg.SignerAddress), nil
	}
	if cfg.SignerPrivateKey != "" {
		key, err := parseKey(cfg.SignerPrivateKey)
		if err != nil {
			return common.Address{}, fmt.Errorf("invalid SIGNER_PRIVATE_KEY: %w", err)
		}
		return crypto.PubkeyToAddress(key.PublicKey), nil
	}
	zap.L().Warn("No mint signer configured; tier two and three mints are disabled")
	return common.Address{}, nil
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
}

// ===============================================
// ルーティング
// ===============================================

type routes struct {
	market  *marketHandler.MarketHandler
	factory *factoryHandler.FactoryHandler
	account *accountHandler.AccountHandler
	event   *eventHandler.EventHandler
	deposit *depositHandler.DepositHandler // 外部チェーン未接続の場合は nil
}

func newRouter(h routes) http.Handler {
	router := mux.NewRouter()

	// ヘルスチェック用エンドポイント
	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
	router.HandleFunc("/", health).Methods("GET")
	router.HandleFunc("/health", health).Methods("GET")

	h.market.Register(router)
	h.factory.Register(router)
	h.account.Register(router)
	h.event.Register(router)
	if h.deposit != nil {
		h.deposit.Register(router)
	}
	router.Use(response.RequestIDMiddleware)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", response.RequestIDHeader},
		ExposedHeaders:   []string{response.RequestIDHeader},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// ===============================================
// サーバー起動
// ===============================================

func serve(ctx context.Context, cfg *config.Config) error {
	// --- 1. ブロックヘッダーの供給元 ---
	var headers ledger.HeaderSource = chain.NewSimulatedHeaders()
	var client *ethclient.Client
	if cfg.InfuraSepoliaURL != "" {
		var err error
		client, err = ethclient.Dial(cfg.InfuraSepoliaURL)
		if err != nil {
			return fmt.Errorf("failed to connect to Sepolia network: %w", err)
		}
		headers = chain.NewEthHeaders(client)
		zap.L().Info("Successfully connected to Sepolia network (HTTP)")
	}

	d, err := newDevnet(ctx, cfg, headers)
	if err != nil {
		return err
	}

	// --- 2. 依存性注入 ---
	h := routes{
		market:  marketHandler.NewMarketHandler(marketUsecase.NewMarketUsecase(d.world, d.market)),
		factory: factoryHandler.NewFactoryHandler(factoryUsecase.NewFactoryUsecase(d.world, d.factory)),
		account: accountHandler.NewAccountHandler(accountUsecase.NewAccountUsecase(d.world)),
	}

	var eventUC eventUsecase.EventUsecase
	if cfg.BackendBaseURL != "" {
		notifier := notifyGateway.NewBackendGateway(notifyGateway.NewRetryClient(), cfg.BackendBaseURL)
		eventUC = eventUsecase.NewEventUsecase(d.world, notifier)
		zap.S().Infof("Backend URL: %s", cfg.BackendBaseURL)
	} else {
		eventUC = eventUsecase.NewEventUsecase(d.world, nil)
	}
	if err := eventUC.StartEventListener(ctx); err != nil {
		zap.L().With(zap.Error(err)).Warn("Failed to start event listener")
	}
	h.event = eventHandler.NewEventHandler(eventUC)

	if client != nil && common.IsHexAddress(cfg.CollectWallet) {
		gw := depositGateway.NewEthGateway(client, cfg.CollectWallet)
		h.deposit = depositHandler.NewDepositHandler(depositUsecase.NewDepositUsecase(gw, d.world))
		zap.S().Infof("Deposit address: %s", cfg.CollectWallet)
	} else if client != nil {
		zap.L().Warn("APP_COLLECT_WALLET_ADDRESS not set. Deposit features will be disabled.")
	}

	// --- 3. 起動 ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: newRouter(h)}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	zap.S().Infof("Devnet service starting on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}
