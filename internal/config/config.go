/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the transaction-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	JWTSecret                  string `mapstructure:"JWT_SECRET"`
	FraudServiceURL            string `mapstructure:"FRAUD_SERVICE_URL"`
	NotificationExchange       string `mapstructure:"NOTIFICATION_EXCHANGE"`
	NotifyQueueSize            int    `mapstructure:"NOTIFY_QUEUE_SIZE"`
	DefaultCurrency            string `mapstructure:"DEFAULT_CURRENCY"`
	UpstreamTimeoutSeconds     int    `mapstructure:"UPSTREAM_TIMEOUT_SECONDS"`
	PersistBlockedTransactions bool   `mapstructure:"PERSIST_BLOCKED_TRANSACTIONS"`
	TransferRateLimitPerMinute int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "4003")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "lumenbank:rate_limit")
	viper.SetDefault("NOTIFICATION_EXCHANGE", "bank.events")
	viper.SetDefault("NOTIFY_QUEUE_SIZE", 256)
	viper.SetDefault("DEFAULT_CURRENCY", "USD")
	viper.SetDefault("UPSTREAM_TIMEOUT_SECONDS", 10)
	// Reference behavior: a BLOCK decision leaves no row behind.
	viper.SetDefault("PERSIST_BLOCKED_TRANSACTIONS", false)
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 60)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("FRAUD_SERVICE_URL")
	_ = viper.BindEnv("NOTIFICATION_EXCHANGE")
	_ = viper.BindEnv("NOTIFY_QUEUE_SIZE")
	_ = viper.BindEnv("DEFAULT_CURRENCY")
	_ = viper.BindEnv("UPSTREAM_TIMEOUT_SECONDS")
	_ = viper.BindEnv("PERSIST_BLOCKED_TRANSACTIONS")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	// Unmarshal the configuration into the Config struct.
	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	config.JWTSecret = strings.TrimSpace(config.JWTSecret)
	config.FraudServiceURL = strings.TrimSpace(config.FraudServiceURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "lumenbank:rate_limit"
	}

	if config.UpstreamTimeoutSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"invalid upstream timeout; using default\" seconds=%d", config.UpstreamTimeoutSeconds)
		config.UpstreamTimeoutSeconds = 10
	}
	if config.NotifyQueueSize <= 0 {
		config.NotifyQueueSize = 256
	}
	if config.TransferRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative transfer rate limit; disabling limiter\" limit=%d", config.TransferRateLimitPerMinute)
		config.TransferRateLimitPerMinute = 0
	}
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = "USD"
	}

	return
}
