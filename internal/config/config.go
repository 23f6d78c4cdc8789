// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Oracle holds the connection parameters forwarded to the executor
// subprocess. Only Host/Port/ServiceName ever appear in the
// executor's command line; User/Password are exported as environment
// variables only.
type Oracle struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	ServiceName string `mapstructure:"service_name"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
}

// Validator mirrors internal/validator.Options.
type Validator struct {
	MaxComplexity   int  `mapstructure:"max_complexity"`
	MaxRows         int  `mapstructure:"max_rows"`
	AllowCrossJoins bool `mapstructure:"allow_cross_joins"`
}

// Approval mirrors the approval tracker's single tunable.
type Approval struct {
	TokenExpirySeconds int `mapstructure:"token_expiry_seconds"`
}

// RateLimit mirrors internal/ratelimit's window parameters.
type RateLimit struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// Breaker mirrors internal/breaker.Config.
type Breaker struct {
	FailureThreshold       uint32 `mapstructure:"failure_threshold"`
	RecoveryTimeoutSeconds int    `mapstructure:"recovery_timeout_seconds"`
	SuccessThreshold       uint32 `mapstructure:"success_threshold"`
}

// Pool mirrors internal/pool.Config.
type Pool struct {
	Size                int `mapstructure:"size"`
	MaxWaitSeconds      int `mapstructure:"max_wait_seconds"`
	QueryTimeoutSeconds int `mapstructure:"query_timeout_seconds"`
}

// Executor describes how to launch the downstream subprocess.
type Executor struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// Logging controls the structured logger.
type Logging struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// Audit controls the audit event sink.
type Audit struct {
	Path string `mapstructure:"path"`
}

// Tokens controls best-effort token-usage estimation.
type Tokens struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// Config is the fully resolved gateway configuration.
type Config struct {
	Oracle    Oracle    `mapstructure:"oracle"`
	Validator Validator `mapstructure:"validator"`
	Approval  Approval  `mapstructure:"approval"`
	RateLimit RateLimit `mapstructure:"rate_limit"`
	Breaker   Breaker   `mapstructure:"breaker"`
	Pool      Pool      `mapstructure:"pool"`
	Executor  Executor  `mapstructure:"executor"`
	Logging   Logging   `mapstructure:"logging"`
	Audit     Audit     `mapstructure:"audit"`
	Tokens    Tokens    `mapstructure:"tokens"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("oracle.host", "127.0.0.1")
	v.SetDefault("oracle.port", 10006)
	v.SetDefault("oracle.service_name", "")
	v.SetDefault("oracle.user", "")
	v.SetDefault("oracle.password", "")

	v.SetDefault("validator.max_complexity", 50)
	v.SetDefault("validator.max_rows", 10000)
	v.SetDefault("validator.allow_cross_joins", false)

	v.SetDefault("approval.token_expiry_seconds", 300)

	v.SetDefault("rate_limit.max_requests", 60)
	v.SetDefault("rate_limit.window_seconds", 60)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.recovery_timeout_seconds", 60)
	v.SetDefault("breaker.success_threshold", 2)

	v.SetDefault("pool.size", 2)
	v.SetDefault("pool.max_wait_seconds", 30)
	v.SetDefault("pool.query_timeout_seconds", 5)

	v.SetDefault("executor.command", "")
	v.SetDefault("executor.args", []string{})

	v.SetDefault("logging.json", true)
	v.SetDefault("logging.level", "info")

	v.SetDefault("audit.path", "")

	v.SetDefault("tokens.enabled", true)
	v.SetDefault("tokens.model", "cl100k_base")
}

// Load resolves configuration from defaults, an optional YAML file at
// configPath (skipped if empty or not found), then environment variables,
// with environment variables taking highest precedence. GATEWAY_ prefixed
// variables bind to every nested key (e.g. GATEWAY_VALIDATOR_MAX_ROWS); the
// five legacy ORACLE_* names are bound directly since the executor
// subprocess's own credential convention uses them unprefixed.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("oracle.host", "ORACLE_HOST")
	_ = v.BindEnv("oracle.port", "ORACLE_PORT")
	_ = v.BindEnv("oracle.service_name", "ORACLE_SERVICE_NAME")
	_ = v.BindEnv("oracle.user", "ORACLE_USER")
	_ = v.BindEnv("oracle.password", "ORACLE_PASSWORD")

	if configPath != "" {
		// viper.ReadInConfig only returns ConfigFileNotFoundError for its own
		// search-path discovery; with an explicit SetConfigFile path it
		// surfaces the raw os error instead, so a missing optional file is
		// checked for up front rather than by type-asserting ReadInConfig's
		// error.
		if _, statErr := os.Stat(configPath); statErr == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("config: checking %s: %w", configPath, statErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.Oracle.User == "" || cfg.Oracle.Password == "" {
		return nil, fmt.Errorf("config: ORACLE_USER and ORACLE_PASSWORD must be set")
	}

	return &cfg, nil
}
