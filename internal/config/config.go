package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL             string
	PGDSN              string
	PoolManagerAddress string
	StartingBlock      uint64
	SyncBatchSize      uint64
	MaxRetries         int
	RetryBackoff       time.Duration
	LiveQueueSize      int

	WrappedNativeAddress   string
	StablecoinNativePoolID string
	StablecoinIsToken0     bool
	StablecoinAddresses    []string
	WhitelistTokens        []string
	MinimumNativeLocked    string

	HTTPAddr      string
	NATSURL       string
	BusBufferSize int
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("V4CHART")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("sync-batch-size", uint64(1000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("live-queue-size", 4096)
	v.SetDefault("minimum-native-locked", "1")
	v.SetDefault("http-addr", ":8080")
	v.SetDefault("bus-buffer-size", 256)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:             v.GetString("rpc"),
		PGDSN:              v.GetString("pg-dsn"),
		PoolManagerAddress: v.GetString("pool-manager-address"),
		StartingBlock:      v.GetUint64("starting-block"),
		SyncBatchSize:      v.GetUint64("sync-batch-size"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		LiveQueueSize:      v.GetInt("live-queue-size"),

		WrappedNativeAddress:   strings.ToLower(v.GetString("wrapped-native-address")),
		StablecoinNativePoolID: strings.ToLower(v.GetString("stablecoin-native-pool-id")),
		StablecoinIsToken0:     v.GetBool("stablecoin-is-token0"),
		StablecoinAddresses:    lowerAll(getStringSlice(v, "stablecoin-addresses")),
		WhitelistTokens:        lowerAll(getStringSlice(v, "whitelist-tokens")),
		MinimumNativeLocked:    v.GetString("minimum-native-locked"),

		HTTPAddr:      v.GetString("http-addr"),
		NATSURL:       v.GetString("nats-url"),
		BusBufferSize: v.GetInt("bus-buffer-size"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func lowerAll(items []string) []string {
	for i, item := range items {
		items[i] = strings.ToLower(item)
	}
	return items
}
