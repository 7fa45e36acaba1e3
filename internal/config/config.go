/**
 * @description
 * Configuration management for the subscription engine. Settings are loaded
 * from environment variables through Viper, with an optional .env file for
 * local development.
 *
 * @dependencies
 * - github.com/spf13/viper: environment variable binding and defaults.
 */
package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration variables for the engine. Values are
// loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	StoreDriver          string `mapstructure:"STORE_DRIVER"` // memory or postgres
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RateLimitPerMinute   int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`

	OwnerAccount string `mapstructure:"OWNER_ACCOUNT"`
	AdminAccount string `mapstructure:"ADMIN_ACCOUNT"`
	NativeToken  string `mapstructure:"NATIVE_TOKEN"`

	DeploymentFee  int64 `mapstructure:"DEPLOYMENT_FEE"`
	ProtocolFeeBps int64 `mapstructure:"PROTOCOL_FEE_BPS"`

	PaymentJobSchedule string `mapstructure:"PAYMENT_JOB_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STORE_DRIVER", "memory")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "reclaim:rate_limit")
	viper.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	viper.SetDefault("OWNER_ACCOUNT", "platform")
	viper.SetDefault("NATIVE_TOKEN", "RCLM")
	viper.SetDefault("DEPLOYMENT_FEE", 0)
	viper.SetDefault("PROTOCOL_FEE_BPS", 250)
	// Every minute; payment due dates are second-granular but a minute of
	// scheduler lag is acceptable.
	viper.SetDefault("PAYMENT_JOB_SCHEDULE", "* * * * *")

	// Bind environment variables explicitly to ensure they appear in Unmarshal.
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("STORE_DRIVER")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("OWNER_ACCOUNT")
	_ = viper.BindEnv("ADMIN_ACCOUNT")
	_ = viper.BindEnv("NATIVE_TOKEN")
	_ = viper.BindEnv("DEPLOYMENT_FEE")
	_ = viper.BindEnv("PROTOCOL_FEE_BPS")
	_ = viper.BindEnv("PAYMENT_JOB_SCHEDULE")

	if err = viper.ReadInConfig(); err != nil {
		// A missing .env file is fine; anything else is worth a warning.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.StoreDriver = strings.ToLower(strings.TrimSpace(config.StoreDriver))
	if config.StoreDriver == "" {
		config.StoreDriver = "memory"
	}
	config.AdminAccount = strings.TrimSpace(config.AdminAccount)
	if config.AdminAccount == "" {
		config.AdminAccount = config.OwnerAccount
	}
	if config.DeploymentFee < 0 {
		log.Printf("level=warn component=config msg=\"negative deployment fee configured; coercing to zero\" fee=%d", config.DeploymentFee)
		config.DeploymentFee = 0
	}
	return
}
