package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config application configuration structure
type Config struct {
	Port           string // Ops API port
	SwaggerBaseUrl string // Swagger API base URL (e.g., "example.com:7391")

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (lease + oracle cache)
	Redis RedisConfig

	// EVM chain and distribution contract
	Chain ChainConfig

	// Activity oracle / explorer
	Oracle OracleConfig

	// Poll loop profiles
	Schedulers []SchedulerConfig

	Inactivity InactivityConfig
	Validation ValidationConfig
	Dispatch   DispatchConfig

	// Receipt archive
	Archive ArchiveConfig

	Log LogConfig
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	Type         string // mysql, pebble
	Dsn          string // MySQL DSN
	MaxOpenConns int    // MySQL max open connections
	MaxIdleConns int    // MySQL max idle connections
	DataDir      string // PebbleDB data directory
	WaitAttempts int    // Ping attempts before giving up at startup
}

// RedisConfig redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL int // Oracle score cache TTL in seconds
	LeaseTTL int // Scheduler lease TTL in seconds, must outlive one asset's receipt wait
}

// ChainConfig EVM chain configuration
type ChainConfig struct {
	RpcUrl                 string
	ChainID                int64 // 0 = ask the node
	ContractAddress        string
	OperatorAddress        string
	PrivateKey             string
	AbiPath                string
	GasLimit               uint64
	GasPolicy              string // markup, fixed
	GasPriceWei            int64  // used by the fixed policy
	GasMarkupPercent       int64
	UnderpricedBumpPercent int64
	MaxSubmitRetries       int
	RetryBackoffMs         int
	ReceiptTimeoutSeconds  int
}

// OracleConfig activity oracle configuration
type OracleConfig struct {
	BaseUrl        string
	ExplorerTxUrl  string
	TimeoutSeconds int
}

// SchedulerConfig one distribution poll loop profile
type SchedulerConfig struct {
	Name         string   `mapstructure:"name"`
	Interval     int      `mapstructure:"interval"` // seconds
	TriggerTypes []string `mapstructure:"trigger_types"`
	BatchSize    int      `mapstructure:"batch_size"`
}

// InactivityConfig inactivity scorer configuration
type InactivityConfig struct {
	Enabled   bool
	Interval  int // seconds
	BatchSize int
}

// ValidationConfig asset validation processor configuration
type ValidationConfig struct {
	Enabled       bool
	Interval      int // seconds
	BatchSize     int
	CreatedDelay  int // seconds
	FundedDelay   int // seconds
	ExplorerOkTag string
}

// DispatchConfig revert handling
type DispatchConfig struct {
	RevertCooldownSeconds int
	MaxReverts            int // 0 = default 5, negative = unlimited
}

// ArchiveConfig receipt archive configuration
type ArchiveConfig struct {
	Type  string // local, s3, oss, none
	Local LocalStorageConfig
	OSS   OSSStorageConfig
	S3    S3StorageConfig
}

// LocalStorageConfig local storage configuration
type LocalStorageConfig struct {
	BasePath string
}

// OSSStorageConfig OSS storage configuration
type OSSStorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// S3StorageConfig AWS S3 storage configuration
type S3StorageConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Endpoint  string // Optional custom endpoint
}

// LogConfig logger configuration
type LogConfig struct {
	Level       string
	Development bool
}

var (
	ErrMissingRpcUrl     = errors.New("chain.rpc_url is required")
	ErrMissingContract   = errors.New("chain.contract_address is required")
	ErrMissingPrivateKey = errors.New("chain.private_key is required")
	ErrLeaseTooShort     = errors.New("redis.lease_ttl must be at least twice chain.receipt_timeout_seconds")
)

// Cfg configuration loaded by InitConfig
var Cfg *Config

// InitConfig initialize configuration from the environment's YAML file
func InitConfig() error {
	cfg, err := LoadConfig(GetYaml())
	if err != nil {
		return err
	}
	Cfg = cfg
	return nil
}

// LoadConfig reads the YAML file at path. Every key can be overridden by an
// environment variable, e.g. chain.private_key -> CHAIN_PRIVATE_KEY.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("Fatal error config file: %s", err)
	}
	return buildConfig(v)
}

func buildConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:           v.GetString("server.port"),
		SwaggerBaseUrl: v.GetString("server.swagger_base_url"),

		Database: DatabaseConfig{
			Type:         v.GetString("database.type"),
			Dsn:          v.GetString("database.dsn"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
			MaxIdleConns: v.GetInt("database.max_idle_conns"),
			DataDir:      v.GetString("database.data_dir"),
			WaitAttempts: v.GetInt("database.wait_attempts"),
		},

		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: v.GetInt("redis.cache_ttl"),
			LeaseTTL: v.GetInt("redis.lease_ttl"),
		},

		Chain: ChainConfig{
			RpcUrl:                 v.GetString("chain.rpc_url"),
			ChainID:                v.GetInt64("chain.chain_id"),
			ContractAddress:        v.GetString("chain.contract_address"),
			OperatorAddress:        v.GetString("chain.operator_address"),
			PrivateKey:             v.GetString("chain.private_key"),
			AbiPath:                v.GetString("chain.abi_path"),
			GasLimit:               v.GetUint64("chain.gas_limit"),
			GasPolicy:              v.GetString("chain.gas_policy"),
			GasPriceWei:            v.GetInt64("chain.gas_price_wei"),
			GasMarkupPercent:       v.GetInt64("chain.gas_markup_percent"),
			UnderpricedBumpPercent: v.GetInt64("chain.underpriced_bump_percent"),
			MaxSubmitRetries:       v.GetInt("chain.max_submit_retries"),
			RetryBackoffMs:         v.GetInt("chain.retry_backoff_ms"),
			ReceiptTimeoutSeconds:  v.GetInt("chain.receipt_timeout_seconds"),
		},

		Oracle: OracleConfig{
			BaseUrl:        v.GetString("oracle.base_url"),
			ExplorerTxUrl:  v.GetString("oracle.explorer_tx_url"),
			TimeoutSeconds: v.GetInt("oracle.timeout_seconds"),
		},

		Inactivity: InactivityConfig{
			Enabled:   v.GetBool("inactivity.enabled"),
			Interval:  v.GetInt("inactivity.interval"),
			BatchSize: v.GetInt("inactivity.batch_size"),
		},

		Validation: ValidationConfig{
			Enabled:       v.GetBool("validation.enabled"),
			Interval:      v.GetInt("validation.interval"),
			BatchSize:     v.GetInt("validation.batch_size"),
			CreatedDelay:  v.GetInt("validation.created_delay"),
			FundedDelay:   v.GetInt("validation.funded_delay"),
			ExplorerOkTag: v.GetString("validation.explorer_ok_tag"),
		},

		Dispatch: DispatchConfig{
			RevertCooldownSeconds: v.GetInt("dispatch.revert_cooldown_seconds"),
			MaxReverts:            v.GetInt("dispatch.max_reverts"),
		},

		Archive: ArchiveConfig{
			Type: v.GetString("archive.type"),
			Local: LocalStorageConfig{
				BasePath: v.GetString("archive.local.base_path"),
			},
			OSS: OSSStorageConfig{
				Endpoint:  v.GetString("archive.oss.endpoint"),
				AccessKey: v.GetString("archive.oss.access_key"),
				SecretKey: v.GetString("archive.oss.secret_key"),
				Bucket:    v.GetString("archive.oss.bucket"),
			},
			S3: S3StorageConfig{
				Region:    v.GetString("archive.s3.region"),
				AccessKey: v.GetString("archive.s3.access_key"),
				SecretKey: v.GetString("archive.s3.secret_key"),
				Bucket:    v.GetString("archive.s3.bucket"),
				Endpoint:  v.GetString("archive.s3.endpoint"),
			},
		},

		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
	}

	if v.IsSet("schedulers") {
		var schedulers []SchedulerConfig
		if err := v.UnmarshalKey("schedulers", &schedulers); err != nil {
			return nil, fmt.Errorf("failed to parse schedulers: %w", err)
		}
		cfg.Schedulers = schedulers
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values
func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "7391"
	}
	if c.SwaggerBaseUrl == "" {
		c.SwaggerBaseUrl = "localhost:" + c.Port
	}
	if c.Database.Type == "" {
		c.Database.Type = "mysql"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.DataDir == "" {
		c.Database.DataDir = "./data"
	}
	if c.Database.WaitAttempts == 0 {
		c.Database.WaitAttempts = 30
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = 600
	}
	if c.Chain.GasLimit == 0 {
		c.Chain.GasLimit = 300000
	}
	if c.Chain.GasPolicy == "" {
		c.Chain.GasPolicy = "markup"
	}
	if c.Chain.GasPriceWei == 0 {
		c.Chain.GasPriceWei = 10_000_000_000 // 10 gwei
	}
	if c.Chain.GasMarkupPercent == 0 {
		c.Chain.GasMarkupPercent = 10
	}
	if c.Chain.UnderpricedBumpPercent == 0 {
		c.Chain.UnderpricedBumpPercent = 20
	}
	if c.Chain.MaxSubmitRetries == 0 {
		c.Chain.MaxSubmitRetries = 3
	}
	if c.Chain.RetryBackoffMs == 0 {
		c.Chain.RetryBackoffMs = 500
	}
	if c.Chain.ReceiptTimeoutSeconds == 0 {
		c.Chain.ReceiptTimeoutSeconds = 120
	}
	if c.Redis.LeaseTTL == 0 {
		c.Redis.LeaseTTL = 2*c.Chain.ReceiptTimeoutSeconds + 60
	}
	if c.Oracle.TimeoutSeconds == 0 {
		c.Oracle.TimeoutSeconds = 15
	}
	if len(c.Schedulers) == 0 {
		c.Schedulers = []SchedulerConfig{
			{Name: "due_date", Interval: 60, TriggerTypes: []string{"due_date"}},
			{Name: "inactivity", Interval: 3600, TriggerTypes: []string{"inactivity"}},
		}
	}
	for i := range c.Schedulers {
		if c.Schedulers[i].Interval <= 0 {
			c.Schedulers[i].Interval = 60
		}
		if c.Schedulers[i].BatchSize <= 0 {
			c.Schedulers[i].BatchSize = 100
		}
	}
	if c.Inactivity.Interval == 0 {
		c.Inactivity.Interval = 3600
	}
	if c.Inactivity.BatchSize == 0 {
		c.Inactivity.BatchSize = 100
	}
	if c.Validation.Interval == 0 {
		c.Validation.Interval = 30
	}
	if c.Validation.BatchSize == 0 {
		c.Validation.BatchSize = 50
	}
	if c.Validation.CreatedDelay == 0 {
		c.Validation.CreatedDelay = 5
	}
	if c.Validation.FundedDelay == 0 {
		c.Validation.FundedDelay = 20
	}
	if c.Validation.ExplorerOkTag == "" {
		c.Validation.ExplorerOkTag = "ok"
	}
	if c.Dispatch.MaxReverts == 0 {
		c.Dispatch.MaxReverts = 5
	}
	if c.Archive.Type == "" {
		c.Archive.Type = "local"
	}
	if c.Archive.Local.BasePath == "" {
		c.Archive.Local.BasePath = "./data/receipts"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the settings the dispatcher cannot run without
func (c *Config) Validate() error {
	if c.Chain.RpcUrl == "" {
		return ErrMissingRpcUrl
	}
	if c.Chain.ContractAddress == "" {
		return ErrMissingContract
	}
	if c.Chain.PrivateKey == "" {
		return ErrMissingPrivateKey
	}
	if c.Redis.Enabled && c.Redis.LeaseTTL < 2*c.Chain.ReceiptTimeoutSeconds {
		return fmt.Errorf("%w: %ds < 2 x %ds", ErrLeaseTooShort, c.Redis.LeaseTTL, c.Chain.ReceiptTimeoutSeconds)
	}
	return nil
}

// ReceiptTimeout receipt wait deadline
func (c ChainConfig) ReceiptTimeout() time.Duration {
	return time.Duration(c.ReceiptTimeoutSeconds) * time.Second
}

// RetryBackoff initial in-cycle retry delay
func (c ChainConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}
