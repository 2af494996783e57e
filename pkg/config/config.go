package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Provider ProviderConfig `mapstructure:"provider"`
	Custody  CustodyConfig  `mapstructure:"custody"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// ProviderConfig 托管钱包服务商 (地址生成/费用估算/广播/交易查询)
type ProviderConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"` // 通常通过环境变量 PROVIDER_API_KEY 传入
	TimeoutMS int    `mapstructure:"timeout_ms"`
	Network   string `mapstructure:"network"` // "mainnet" or "testnet3"
}

// CustodyConfig 对账与提现的业务参数
type CustodyConfig struct {
	MinWithdrawAmount     string   `mapstructure:"min_withdraw_amount"` // BTC, decimal string
	ServiceFee            string   `mapstructure:"service_fee"`         // 平台手续费, BTC
	ConfirmationThreshold int64    `mapstructure:"confirmation_threshold"`
	SweepInterval         string   `mapstructure:"sweep_interval"` // cron spec, e.g. "@every 1m"
	WebhookIPAllowlist    []string `mapstructure:"webhook_ip_allowlist"`
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "custody_user")
	viper.SetDefault("db.password", "custody_password")
	viper.SetDefault("db.name", "custody_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("provider.base_url", "https://block.io/api/v2")
	viper.SetDefault("provider.timeout_ms", 5000)
	viper.SetDefault("provider.network", "testnet3")

	viper.SetDefault("custody.min_withdraw_amount", "0.0002")
	viper.SetDefault("custody.service_fee", "0.0001")
	viper.SetDefault("custody.confirmation_threshold", 1)
	viper.SetDefault("custody.sweep_interval", "@every 1m")
}
