package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// APIConfig captures runtime settings for the public API service.
type APIConfig struct {
	ListenAddr         string `mapstructure:"listen_addr"`
	DatabaseURL        string `mapstructure:"database_url"`
	RedisURL           string `mapstructure:"redis_url"`
	AuthSecret         string `mapstructure:"auth_secret"`
	BuildServiceURL    string `mapstructure:"build_service_url"`
	BuildServiceSecret string `mapstructure:"build_service_secret"`
	BundleBucketURL    string `mapstructure:"bundle_bucket_url"`
	AIBaseURL          string `mapstructure:"ai_base_url"`
	AIAPIKey           string `mapstructure:"ai_api_key"`
	AIModel            string `mapstructure:"ai_model"`
}

// LoadAPI loads API configuration from defaults, files, and env vars.
func LoadAPI() (APIConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.SetEnvPrefix("API")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "redis://localhost:6379")
	v.SetDefault("auth_secret", "")
	v.SetDefault("build_service_url", "")
	v.SetDefault("build_service_secret", "")
	v.SetDefault("bundle_bucket_url", "file:///var/lib/gameforge/bundles")
	v.SetDefault("ai_base_url", "https://api.openai.com/v1")
	v.SetDefault("ai_api_key", "")
	v.SetDefault("ai_model", "gpt-4o-mini")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return APIConfig{}, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg APIConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return APIConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// ReconcilerConfig captures settings for the stale-build sweeper.
type ReconcilerConfig struct {
	DatabaseURL  string        `mapstructure:"database_url"`
	Interval     time.Duration `mapstructure:"interval"`
	BuildTimeout time.Duration `mapstructure:"build_timeout"`
}

// LoadReconciler loads reconciler configuration.
func LoadReconciler() (ReconcilerConfig, error) {
	v := viper.New()
	v.SetConfigName("reconciler")
	v.AddConfigPath("./configs")
	v.SetEnvPrefix("RECONCILER")
	v.AutomaticEnv()

	v.SetDefault("database_url", "")
	v.SetDefault("interval", "1m")
	v.SetDefault("build_timeout", "10m")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return ReconcilerConfig{}, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg ReconcilerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ReconcilerConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
