package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 进程配置，启动时加载一次后按引用传递
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Parteam  ParteamConfig  `mapstructure:"parteam"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	SettlementEvent string `mapstructure:"settlement_event"`
	RefundEvent     string `mapstructure:"refund_event"`
}

type ParteamConfig struct {
	APIURL         string `mapstructure:"api_url"`
	NotifyBaseURL  string `mapstructure:"notify_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type BusinessConfig struct {
	CallbackSecret    string `mapstructure:"callback_secret"`     // 支付回调签名密钥
	TaskWorkers       int    `mapstructure:"task_workers"`        // 任务执行并发数
	TaskMaxRetry      int    `mapstructure:"task_max_retry"`      // 任务默认最大重试次数
	ScanIntervalSecs  int    `mapstructure:"scan_interval_secs"`  // 周期扫描间隔
	StartNotifyAheadH int    `mapstructure:"start_notify_ahead"`  // 开赛提醒提前小时数
	MaxRetryCount     int    `mapstructure:"max_retry_count"`     // 外发消息最大重试次数
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	return config
}
