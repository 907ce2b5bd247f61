package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"digital-will/chain"
	"digital-will/common/logger"
	"digital-will/conf"
	"digital-will/controller"
	"digital-will/controller/handler"
	"digital-will/database"
	"digital-will/model/dao"
	"digital-will/oracle"
	"digital-will/service/distribution_service"
	"digital-will/service/scheduler_service"
	"digital-will/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ENV        string
	configPath string
)

func init() {
	flag.StringVar(&ENV, "env", "loc", "Environment: loc/mainnet/testnet/example")
	flag.StringVar(&configPath, "config", "", "Config file path, overrides -env")
}

// processor anything with the Start/Stop lifecycle
type processor interface {
	Start()
	Stop()
}

// app holds everything main starts and later stops
type app struct {
	cfg        *conf.Config
	db         database.Database
	redis      *database.RedisClient
	client     *chain.EthClient
	archive    storage.Archive
	processors []processor
	srv        *http.Server
	log        *zap.Logger
}

// @title           Digital Will Distributor Ops API
// @version         1.0
// @description     Read-only view of assets, distribution attempts and scheduler loops
// @BasePath        /api/v1

func main() {
	// Initialize all components
	a, err := initAll()
	if err != nil {
		log.Fatalf("Failed to initialize distributor: %v", err)
	}
	defer a.cleanup()

	for _, p := range a.processors {
		p.Start()
	}
	a.log.Info("Distributor started", zap.Int("processors", len(a.processors)))

	go a.startServer()

	// Wait for shutdown signal
	waitForShutdown()

	a.log.Info("Shutting down distributor...")

	// Stop loops first; each lets its in-flight cycle finish
	for _, p := range a.processors {
		p.Stop()
	}

	shutdownServer(a.srv, a.log)

	a.log.Info("Server exited")
}

// initEnv initialize environment
func initEnv() {
	switch ENV {
	case "mainnet":
		conf.SystemEnvironmentEnum = conf.MainnetEnvironmentEnum
	case "testnet":
		conf.SystemEnvironmentEnum = conf.TestnetEnvironmentEnum
	case "example":
		conf.SystemEnvironmentEnum = conf.ExampleEnvironmentEnum
	default:
		conf.SystemEnvironmentEnum = conf.LocalEnvironmentEnum
	}
	conf.ConfigPath = configPath
	fmt.Printf("Environment: %s\n", ENV)
}

// initAll initialize all components
func initAll() (*app, error) {
	flag.Parse()
	initEnv()

	if err := conf.InitConfig(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg := conf.Cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, log: logger.Named("main")}
	a.log.Info("Configuration loaded", zap.String("env", ENV), zap.String("port", cfg.Port),
		zap.String("db", cfg.Database.Type))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var err error
	if a.db, err = database.WaitForDB(ctx, connectDatabase(cfg.Database), cfg.Database.WaitAttempts, 2*time.Second); err != nil {
		return nil, err
	}

	// Redis is optional: without it there is no lease and no oracle cache
	if cfg.Redis.Enabled {
		a.redis, err = database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			CacheTTL: time.Duration(cfg.Redis.CacheTTL) * time.Second,
		})
		if err != nil {
			a.log.Warn("Redis initialization failed, running without lease and cache", zap.Error(err))
		}
	}

	if err := a.initProcessors(ctx); err != nil {
		a.cleanup()
		return nil, err
	}

	assets := dao.NewAssetDAO(a.db)
	attempts := dao.NewDistributionAttemptDAO(a.db)
	var sources []handler.StatsSource
	for _, p := range a.processors {
		if s, ok := p.(handler.StatsSource); ok {
			sources = append(sources, s)
		}
	}
	router := controller.SetupDistributorRouter(
		handler.NewDistributionQueryHandler(assets, attempts, sources, a.archive, a.db.Ping),
		cfg.SwaggerBaseUrl)
	a.srv = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	return a, nil
}

// connectDatabase returns the connect func WaitForDB retries
func connectDatabase(c conf.DatabaseConfig) func() (database.Database, error) {
	return func() (database.Database, error) {
		switch database.DBType(c.Type) {
		case database.DBTypePebble:
			return database.NewDatabase(database.DBTypePebble, &database.PebbleConfig{DataDir: c.DataDir})
		default:
			return database.NewDatabase(database.DBTypeMySQL, &database.MySQLConfig{
				DSN:          c.Dsn,
				MaxOpenConns: c.MaxOpenConns,
				MaxIdleConns: c.MaxIdleConns,
			})
		}
	}
}

// initProcessors builds the chain stack and every configured loop
func (a *app) initProcessors(ctx context.Context) error {
	cfg := a.cfg

	wallet, err := chain.NewWallet(cfg.Chain.PrivateKey)
	if err != nil {
		return err
	}
	if cfg.Chain.OperatorAddress != "" && !strings.EqualFold(cfg.Chain.OperatorAddress, wallet.Address().Hex()) {
		return fmt.Errorf("private key controls %s, not operator %s", wallet.Address().Hex(), cfg.Chain.OperatorAddress)
	}
	if !common.IsHexAddress(cfg.Chain.ContractAddress) {
		return fmt.Errorf("invalid contract address %q", cfg.Chain.ContractAddress)
	}
	contract, err := chain.NewDistributor(common.HexToAddress(cfg.Chain.ContractAddress), cfg.Chain.AbiPath)
	if err != nil {
		return err
	}

	if a.client, err = chain.Dial(ctx, cfg.Chain.RpcUrl); err != nil {
		return err
	}

	dispatchCfg, err := distribution_service.NewConfig(cfg.Chain)
	if err != nil {
		return err
	}

	assets := dao.NewAssetDAO(a.db)
	attempts := dao.NewDistributionAttemptDAO(a.db)
	dispatcher := distribution_service.NewDispatcher(a.client, wallet, contract, attempts, dispatchCfg)

	if a.archive, err = storage.NewArchive(cfg.Archive); err != nil {
		return err
	}

	oracleOpts := []oracle.Option{oracle.WithExplorer(cfg.Oracle.ExplorerTxUrl)}
	if a.redis != nil {
		oracleOpts = append(oracleOpts, oracle.WithCache(a.redis))
	}
	activity := oracle.New(cfg.Oracle.BaseUrl, time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second, oracleOpts...)

	owner := leaseOwner()
	leaseTTL := time.Duration(cfg.Redis.LeaseTTL) * time.Second

	for _, sc := range cfg.Schedulers {
		opts, err := scheduler_service.NewOptions(sc, cfg.Dispatch)
		if err != nil {
			return err
		}
		options := []scheduler_service.Option{scheduler_service.WithArchive(a.archive)}
		if a.redis != nil {
			options = append(options, scheduler_service.WithLease(a.redis, owner, leaseTTL))
		}
		a.processors = append(a.processors, scheduler_service.NewScheduler(opts, assets, attempts, dispatcher, options...))
	}

	if cfg.Inactivity.Enabled {
		p := scheduler_service.NewInactivityScorer(assets, activity,
			time.Duration(cfg.Inactivity.Interval)*time.Second, cfg.Inactivity.BatchSize)
		if a.redis != nil {
			p.WithLease(a.redis, owner, leaseTTL)
		}
		a.processors = append(a.processors, p)
	}

	if cfg.Validation.Enabled {
		p := scheduler_service.NewValidationProcessor(assets, activity, scheduler_service.ValidationOptions{
			Interval:     time.Duration(cfg.Validation.Interval) * time.Second,
			BatchSize:    cfg.Validation.BatchSize,
			CreatedDelay: time.Duration(cfg.Validation.CreatedDelay) * time.Second,
			FundedDelay:  time.Duration(cfg.Validation.FundedDelay) * time.Second,
			OkStatus:     cfg.Validation.ExplorerOkTag,
		})
		if a.redis != nil {
			p.WithLease(a.redis, owner, leaseTTL)
		}
		a.processors = append(a.processors, p)
	}

	if len(a.processors) == 0 {
		return errors.New("no scheduler or processor configured")
	}
	return nil
}

func leaseOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "-" + uuid.NewString()
}

// cleanup closes connections after every loop has stopped
func (a *app) cleanup() {
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Failed to close Redis", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	logger.Sync()
}

// startServer start HTTP server
func (a *app) startServer() {
	a.log.Info("Ops API starting", zap.String("port", a.cfg.Port))
	if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.log.Fatal("Failed to start server", zap.Error(err))
	}
}

// waitForShutdown wait for shutdown signal
func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
}

// shutdownServer gracefully shutdown server
func shutdownServer(srv *http.Server, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("Server forced to shutdown", zap.Error(err))
	}
}
