package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	bridgeerrors "github.com/skillforge/skillbridge/internal/errors"
)

const (
	DefaultRPCURL         = "https://testnet-rpc.monad.xyz"
	DefaultBackendURL     = "http://localhost:3000"
	DefaultPort           = 3001
	DefaultSyncInterval   = 5 * time.Minute
	DefaultMetadataWait   = 2 * time.Second
	DefaultBackendTimeout = 2 * time.Minute
	DefaultFetchLimit     = 8
	DefaultCurrency       = "MON"
)

// Duration is a time.Duration that reads "90s"-style strings or a bare
// number of milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the bridge configuration, read once at startup.
type Config struct {
	RegistryAddress      string   `yaml:"registry_address"`
	PaymentAddress       string   `yaml:"payment_address"`
	RPCURL               string   `yaml:"rpc_url"`
	PrivateKey           string   `yaml:"private_key"`
	BackendURL           string   `yaml:"backend_url"`
	Port                 int      `yaml:"port"`
	SyncInterval         Duration `yaml:"sync_interval"`
	Gateways             []string `yaml:"metadata_gateways"`
	MetadataTimeout      Duration `yaml:"metadata_timeout"`
	MaxConcurrentFetches int      `yaml:"max_concurrent_fetches"`
	BackendTimeout       Duration `yaml:"backend_timeout"`
	PayBeforeExecute     bool     `yaml:"pay_before_execute"`
	CurrencySymbol       string   `yaml:"currency_symbol"`
	RateLimitRPS         float64  `yaml:"rate_limit_rps"`
	RateLimitBurst       int      `yaml:"rate_limit_burst"`
	Debug                bool     `yaml:"debug"`
	LogFormat            string   `yaml:"log_format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		RPCURL:               DefaultRPCURL,
		BackendURL:           DefaultBackendURL,
		Port:                 DefaultPort,
		SyncInterval:         Duration(DefaultSyncInterval),
		MetadataTimeout:      Duration(DefaultMetadataWait),
		MaxConcurrentFetches: DefaultFetchLimit,
		BackendTimeout:       Duration(DefaultBackendTimeout),
		CurrencySymbol:       DefaultCurrency,
		RateLimitRPS:         10,
		RateLimitBurst:       20,
		LogFormat:            "console",
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// $SKILLBRIDGE_CONFIG when path is empty) and the environment, in that order
// of increasing precedence. It does not validate; see Validate.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SKILLBRIDGE_CONFIG")
	}
	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, bridgeerrors.ConfigError(fmt.Errorf("failed to read config file %s: %w", path, err))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, bridgeerrors.ConfigError(fmt.Errorf("failed to parse %s: %w", path, err))
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, bridgeerrors.ConfigError(err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	str("SKILL_REGISTRY_ADDRESS", &c.RegistryAddress)
	str("PAYMENT_CONTRACT_ADDRESS", &c.PaymentAddress)
	str("MONAD_RPC_URL", &c.RPCURL)
	str("PRIVATE_KEY", &c.PrivateKey)
	str("SKILLFORGE_API_URL", &c.BackendURL)
	str("CURRENCY_SYMBOL", &c.CurrencySymbol)
	str("BRIDGE_LOG_FORMAT", &c.LogFormat)

	if v := os.Getenv("METADATA_GATEWAYS"); v != "" {
		c.Gateways = splitList(v)
	}

	for _, key := range []string{"PORT", "MCP_PORT"} {
		if v := os.Getenv(key); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			c.Port = port
		}
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"SYNC_INTERVAL", &c.SyncInterval},
		{"METADATA_TIMEOUT", &c.MetadataTimeout},
		{"BACKEND_TIMEOUT", &c.BackendTimeout},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := parseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.dst = Duration(parsed)
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_CONCURRENT_FETCHES", &c.MaxConcurrentFetches},
		{"RATE_LIMIT_BURST", &c.RateLimitBurst},
	}
	for _, i := range ints {
		if v := os.Getenv(i.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", i.key, v, err)
			}
			*i.dst = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		c.RateLimitRPS = rps
	}

	if v := os.Getenv("PAY_BEFORE_EXECUTE"); v != "" {
		c.PayBeforeExecute = parseBool(v)
	}
	if v := os.Getenv("BRIDGE_DEBUG"); v != "" {
		c.Debug = parseBool(v)
	}
	return nil
}

// ValidateRegistry checks the settings needed to read the registry.
func (c *Config) ValidateRegistry() error {
	if c.RegistryAddress == "" {
		return bridgeerrors.ConfigErrorWithHint(
			fmt.Errorf("SKILL_REGISTRY_ADDRESS is required"),
			"Set SKILL_REGISTRY_ADDRESS to the deployed SkillRegistry contract address.")
	}
	if !common.IsHexAddress(c.RegistryAddress) {
		return bridgeerrors.ConfigError(fmt.Errorf("SKILL_REGISTRY_ADDRESS %q is not a valid address", c.RegistryAddress))
	}
	if c.RPCURL == "" {
		return bridgeerrors.ConfigError(fmt.Errorf("MONAD_RPC_URL must not be empty"))
	}
	if c.MaxConcurrentFetches <= 0 {
		return bridgeerrors.ConfigError(fmt.Errorf("MAX_CONCURRENT_FETCHES must be positive, got %d", c.MaxConcurrentFetches))
	}
	if c.MetadataTimeout <= 0 {
		return bridgeerrors.ConfigError(fmt.Errorf("METADATA_TIMEOUT must be positive"))
	}
	return nil
}

// Validate checks everything the serve command needs.
func (c *Config) Validate() error {
	if c.PrivateKey == "" {
		return bridgeerrors.ConfigErrorWithHint(
			fmt.Errorf("PRIVATE_KEY is required"),
			"Set PRIVATE_KEY in your environment or .env file. It identifies the buyer account for skill calls.")
	}
	if err := c.ValidateRegistry(); err != nil {
		return err
	}
	if c.PayBeforeExecute {
		if c.PaymentAddress == "" {
			return bridgeerrors.ConfigError(fmt.Errorf("PAYMENT_CONTRACT_ADDRESS is required when PAY_BEFORE_EXECUTE is set"))
		}
		if !common.IsHexAddress(c.PaymentAddress) {
			return bridgeerrors.ConfigError(fmt.Errorf("PAYMENT_CONTRACT_ADDRESS %q is not a valid address", c.PaymentAddress))
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return bridgeerrors.ConfigError(fmt.Errorf("port %d is out of range", c.Port))
	}
	if c.SyncInterval <= 0 {
		return bridgeerrors.ConfigError(fmt.Errorf("SYNC_INTERVAL must be positive"))
	}
	if c.BackendTimeout <= 0 {
		return bridgeerrors.ConfigError(fmt.Errorf("BACKEND_TIMEOUT must be positive"))
	}
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a duration nor milliseconds", v)
	}
	return d, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
