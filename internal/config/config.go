// Package config loads the module's runtime configuration from
// environment variables via viper, mirroring
// original_source/src/config/config.rs's Brc20ProgConfig field set and
// validation rules.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// DBVersion gates on-disk schema migrations; bumping it forces a
// ConfigMismatch on any store opened with an older version.
const DBVersion = 1

// Config holds every environment-derived setting the module needs.
type Config struct {
	RPCBindAddress   string
	RPCEnableAuth    bool
	RPCUser          string
	RPCPassword      string
	BalanceOracleURL string

	BitcoinRPCURL            string
	BitcoinRPCUser           string
	BitcoinRPCPassword       string
	BitcoinRPCNetwork        string
	BitcoinRPCFailOnStartup  bool

	DBPath          string
	DBMaxOpenFiles  int
	EVMRecordTraces bool

	LogLevel string
	LogFile  string
}

// Load reads configuration from the environment only (no config file
// is read), applying the same defaults as
// original_source/src/config/config.rs.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetDefault("BRC20_PROG_RPC_SERVER_URL", "127.0.0.1:18545")
	v.SetDefault("BRC20_PROG_RPC_SERVER_ENABLE_AUTH", false)
	v.SetDefault("BRC20_PROG_BALANCE_SERVER_URL", "http://localhost:18546")
	v.SetDefault("BITCOIN_RPC_URL", "http://localhost:38332")
	v.SetDefault("BITCOIN_RPC_USER", "user")
	v.SetDefault("BITCOIN_RPC_PASSWORD", "password")
	v.SetDefault("BITCOIN_RPC_NETWORK", "signet")
	v.SetDefault("BITCOIN_RPC_FAIL_ON_STARTUP_ERROR", true)
	v.SetDefault("BRC20_PROG_DB_PATH", "target/db")
	v.SetDefault("BRC20_PROG_DB_MAX_OPEN_FILES", 256)
	v.SetDefault("EVM_RECORD_TRACES", false)
	v.SetDefault("BRC20_PROG_LOG_LEVEL", "info")
	v.SetDefault("BRC20_PROG_LOG_FILE", "")

	cfg := &Config{
		RPCBindAddress:          v.GetString("BRC20_PROG_RPC_SERVER_URL"),
		RPCEnableAuth:           v.GetBool("BRC20_PROG_RPC_SERVER_ENABLE_AUTH"),
		RPCUser:                 v.GetString("BRC20_PROG_RPC_SERVER_USER"),
		RPCPassword:             v.GetString("BRC20_PROG_RPC_SERVER_PASSWORD"),
		BalanceOracleURL:        v.GetString("BRC20_PROG_BALANCE_SERVER_URL"),
		BitcoinRPCURL:           v.GetString("BITCOIN_RPC_URL"),
		BitcoinRPCUser:          v.GetString("BITCOIN_RPC_USER"),
		BitcoinRPCPassword:      v.GetString("BITCOIN_RPC_PASSWORD"),
		BitcoinRPCNetwork:       v.GetString("BITCOIN_RPC_NETWORK"),
		BitcoinRPCFailOnStartup: v.GetBool("BITCOIN_RPC_FAIL_ON_STARTUP_ERROR"),
		DBPath:                  v.GetString("BRC20_PROG_DB_PATH"),
		DBMaxOpenFiles:          v.GetInt("BRC20_PROG_DB_MAX_OPEN_FILES"),
		EVMRecordTraces:         v.GetBool("EVM_RECORD_TRACES"),
		LogLevel:                v.GetString("BRC20_PROG_LOG_LEVEL"),
		LogFile:                 v.GetString("BRC20_PROG_LOG_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate mirrors original_source/src/config/config.rs::validate_config.
func (c *Config) Validate() error {
	if c.RPCEnableAuth && (c.RPCUser == "" || c.RPCPassword == "") {
		return fmt.Errorf("authentication is enabled but no username or password is set")
	}
	if c.RPCBindAddress == "" {
		return fmt.Errorf("RPC server URL is empty")
	}
	if c.BalanceOracleURL == "" {
		return fmt.Errorf("BRC20 balance server URL is empty")
	}
	if !strings.HasPrefix(c.BalanceOracleURL, "http://") && !strings.HasPrefix(c.BalanceOracleURL, "https://") {
		return fmt.Errorf("BRC20 balance server URL must start with http:// or https://")
	}
	return nil
}

// PersistedValues returns the three config keys compared against the
// store's config table on open (spec.md §4.2).
func (c *Config) PersistedValues() map[string]string {
	return map[string]string{
		"db_version":        strconv.Itoa(DBVersion),
		"bitcoin_network":   c.BitcoinRPCNetwork,
		"evm_record_traces": strconv.FormatBool(c.EVMRecordTraces),
	}
}
