// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 聚合了服务运行所需的全部配置。
// 来源优先级: 环境变量 > yaml 配置文件 > 默认值。
type Config struct {
	App struct {
		ServiceName string `yaml:"serviceName"`
		Port        int    `yaml:"port"`
	} `yaml:"app"`

	Infra struct {
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers           []string `yaml:"brokers"`
			NotificationTopic string   `yaml:"notificationTopic"`
		} `yaml:"kafka"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Nacos struct {
			ServerAddrs string `yaml:"serverAddrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
		} `yaml:"nacos"`
	} `yaml:"infra"`

	// Monnify 支付网关的凭证与合约信息。
	// apiKey/secretKey 属于敏感信息，推荐通过环境变量注入而不是写进 yaml。
	Monnify struct {
		BaseURL      string `yaml:"baseUrl"`
		APIKey       string `yaml:"apiKey"`
		SecretKey    string `yaml:"secretKey"`
		ContractCode string `yaml:"contractCode"`
		CurrencyCode string `yaml:"currencyCode"`
	} `yaml:"monnify"`

	Services struct {
		UserServiceURL string `yaml:"userServiceUrl"`
	} `yaml:"services"`
}

var currentConfig atomic.Pointer[Config]

// Init 加载配置并缓存为全局当前配置。必须在 StartService 之前调用。
func Init() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}
	currentConfig.Store(cfg)
}

// GetCurrentConfig 返回当前生效的配置。
func GetCurrentConfig() *Config {
	return currentConfig.Load()
}

func loadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.ServiceName = "order-service"
	cfg.App.Port = 8084
	cfg.Infra.Mysql.DSN = "root:root@tcp(localhost:3306)/bazaar?charset=utf8mb4&parseTime=True&loc=Local"
	cfg.Infra.Redis.Addr = "localhost:6379"
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Kafka.NotificationTopic = "notifications"
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Nacos.ServerAddrs = "localhost:8848"
	cfg.Infra.Nacos.Group = "DEFAULT_GROUP"
	cfg.Monnify.BaseURL = "https://sandbox.monnify.com/api/v1"
	cfg.Monnify.CurrencyCode = "NGN"
	cfg.Services.UserServiceURL = "http://localhost:8082"
	return cfg
}

// applyEnvOverrides 用环境变量覆盖配置，主要面向密钥类字段。
func applyEnvOverrides(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	set(&cfg.Infra.Mysql.DSN, "MYSQL_DSN")
	set(&cfg.Infra.Redis.Addr, "REDIS_ADDR")
	set(&cfg.Infra.Jaeger.Endpoint, "JAEGER_ENDPOINT")
	set(&cfg.Infra.Nacos.ServerAddrs, "NACOS_SERVER_ADDRS")
	set(&cfg.Infra.Nacos.Namespace, "NACOS_NAMESPACE")
	set(&cfg.Infra.Nacos.Group, "NACOS_GROUP")
	set(&cfg.Monnify.BaseURL, "MONNIFY_BASE_URL")
	set(&cfg.Monnify.APIKey, "MONNIFY_API_KEY")
	set(&cfg.Monnify.SecretKey, "MONNIFY_SECRET_KEY")
	set(&cfg.Monnify.ContractCode, "MONNIFY_CONTRACT_CODE")
	set(&cfg.Services.UserServiceURL, "USER_SERVICE_URL")

	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
}
