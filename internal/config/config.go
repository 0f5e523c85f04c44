package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Claim     ClaimConfig     `mapstructure:"claim"`
	Pinning   PinningConfig   `mapstructure:"pinning"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// DSN 根据驱动类型生成连接字符串
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		sslMode := d.SSLMode
		if sslMode == "" {
			sslMode = "require"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, sslMode)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      float64  `mapstructure:"rate_limit"`
	RateBurst      int      `mapstructure:"rate_burst"`
}

type ChainConfig struct {
	ID                  string   `mapstructure:"id"`
	Name                string   `mapstructure:"name"`
	RPCURL              string   `mapstructure:"rpc_url"`
	ChainID             uint64   `mapstructure:"chain_id"`
	QuestFactoryAddress string   `mapstructure:"quest_factory_address"`
	TokenFactoryAddress string   `mapstructure:"token_factory_address"`
	KyraTokenAddress    string   `mapstructure:"kyra_token_address"`
	StartBlock          int64    `mapstructure:"start_block"`
	ConfirmationBlocks  int      `mapstructure:"confirmation_blocks"`
	PullInterval        int      `mapstructure:"pull_interval"`
	BatchSize           int      `mapstructure:"batch_size"`
	ReceiptTimeout      int      `mapstructure:"receipt_timeout"`
	IndexerEnabled      bool     `mapstructure:"indexer_enabled"`
	WalletKeys          []string `mapstructure:"wallet_keys"`
}

type ClaimConfig struct {
	XPPerClaim          int64   `mapstructure:"xp_per_claim"`
	DefaultRadiusMeters float64 `mapstructure:"default_radius_meters"`
	VerificationTag     string  `mapstructure:"verification_tag"`
	QRPrefix            string  `mapstructure:"qr_prefix"`
	LocationTimeout     int     `mapstructure:"location_timeout"`
	SessionCacheSize    int     `mapstructure:"session_cache_size"`
	SessionTTL          int     `mapstructure:"session_ttl"`
	QuestSignerAddress  string  `mapstructure:"quest_signer_address"`
	QuestSignerKey      string  `mapstructure:"quest_signer_key"`
	AuthMaxSkew         int     `mapstructure:"auth_max_skew"`
}

func (c ClaimConfig) SessionTTLDuration() time.Duration {
	return time.Duration(c.SessionTTL) * time.Second
}

type PinningConfig struct {
	Provider string       `mapstructure:"provider"`
	Pinata   PinataConfig `mapstructure:"pinata"`
	S3       S3Config     `mapstructure:"s3"`
}

type PinataConfig struct {
	JWT        string `mapstructure:"jwt"`
	Endpoint   string `mapstructure:"endpoint"`
	GatewayURL string `mapstructure:"gateway_url"`
}

type S3Config struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	CDNBaseURL      string `mapstructure:"cdn_base_url"`
}

type SchedulerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	CounterCron string `mapstructure:"counter_cron"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit", 5)
	v.SetDefault("server.rate_burst", 30)

	v.SetDefault("chain.id", "mantle-sepolia")
	v.SetDefault("chain.name", "Mantle Sepolia")
	v.SetDefault("chain.rpc_url", "https://rpc.sepolia.mantle.xyz")
	v.SetDefault("chain.chain_id", 5003)
	v.SetDefault("chain.confirmation_blocks", 2)
	v.SetDefault("chain.pull_interval", 15)
	v.SetDefault("chain.batch_size", 500)
	v.SetDefault("chain.receipt_timeout", 120)

	v.SetDefault("claim.xp_per_claim", 100)
	v.SetDefault("claim.default_radius_meters", 100)
	v.SetDefault("claim.verification_tag", "KYRA")
	v.SetDefault("claim.qr_prefix", "kyra:")
	v.SetDefault("claim.location_timeout", 10)
	v.SetDefault("claim.session_cache_size", 10000)
	v.SetDefault("claim.session_ttl", 1800)
	v.SetDefault("claim.auth_max_skew", 300)

	v.SetDefault("pinning.provider", "pinata")
	v.SetDefault("pinning.pinata.endpoint", "https://api.pinata.cloud/pinning/pinFileToIPFS")
	v.SetDefault("pinning.pinata.gateway_url", "https://gateway.pinata.cloud")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.counter_cron", "0 */5 * * * *")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load 读取 YAML 配置文件，环境变量（KYRA_ 前缀）优先
// 存在 .env 时先加载到进程环境
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KYRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 校验互相依赖的配置项
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Pinning.Provider {
	case "pinata", "s3", "":
	default:
		return fmt.Errorf("unsupported pinning provider: %s", c.Pinning.Provider)
	}

	if c.Claim.VerificationTag == "" {
		return fmt.Errorf("claim.verification_tag must not be empty")
	}
	return nil
}
