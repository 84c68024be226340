package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Auth   AuthConfig   `yaml:"auth" mapstructure:"auth"`
	Serp   SerpConfig   `yaml:"serp" mapstructure:"serp"`
	Scan   ScanConfig   `yaml:"scan" mapstructure:"scan"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. MaxConns and MinConns only
// apply to the postgres driver.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AuthConfig configures Google sign-in and session tokens.
type AuthConfig struct {
	GoogleClientID string `yaml:"google_client_id" mapstructure:"google_client_id"`
	JWTSecret      string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTLHours  int    `yaml:"token_ttl_hours" mapstructure:"token_ttl_hours"`
}

// SerpConfig selects and configures the rank data provider.
type SerpConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	SearchDepth int    `yaml:"search_depth" mapstructure:"search_depth"`

	DataForSeo DataForSeoConfig `yaml:"dataforseo" mapstructure:"dataforseo"`
	SerpApi    SerpApiConfig    `yaml:"serpapi" mapstructure:"serpapi"`
}

// DataForSeoConfig holds DataForSEO API credentials.
type DataForSeoConfig struct {
	Login    string `yaml:"login" mapstructure:"login"`
	Password string `yaml:"password" mapstructure:"password"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
}

// SerpApiConfig holds SerpApi credentials.
type SerpApiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScanConfig configures geo-grid scan execution.
type ScanConfig struct {
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	PointTimeoutSecs int     `yaml:"point_timeout_secs" mapstructure:"point_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOCALRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("auth.token_ttl_hours", 168)
	v.SetDefault("serp.provider", "dataforseo")
	v.SetDefault("serp.search_depth", 20)
	v.SetDefault("serp.dataforseo.base_url", "https://api.dataforseo.com")
	v.SetDefault("serp.serpapi.base_url", "https://serpapi.com")
	v.SetDefault("scan.concurrency", 5)
	v.SetDefault("scan.rate_limit", 10)
	v.SetDefault("scan.point_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration required for the given mode is
// present. Modes: "serve" (full API server), "scan" (provider access only),
// "migrate" (database only).
func (c *Config) Validate(mode string) error {
	var missing []string

	requireDB := func() {
		if c.Store.DatabaseURL == "" && c.Store.Driver != "sqlite" {
			missing = append(missing, "store.database_url is required")
		}
	}
	requireProvider := func() {
		switch c.Serp.Provider {
		case "dataforseo":
			if c.Serp.DataForSeo.Login == "" || c.Serp.DataForSeo.Password == "" {
				missing = append(missing, "serp.dataforseo.login and serp.dataforseo.password are required")
			}
		case "serpapi":
			if c.Serp.SerpApi.Key == "" {
				missing = append(missing, "serp.serpapi.key is required")
			}
		default:
			missing = append(missing, "serp.provider must be dataforseo or serpapi")
		}
	}

	switch mode {
	case "serve":
		requireDB()
		requireProvider()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		if c.Auth.JWTSecret == "" {
			missing = append(missing, "auth.jwt_secret is required")
		}
		if c.Auth.GoogleClientID == "" {
			missing = append(missing, "auth.google_client_id is required")
		}
	case "scan":
		requireProvider()
	case "migrate":
		requireDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Scan.Concurrency < 1 || c.Scan.Concurrency > 50 {
		missing = append(missing, "scan.concurrency must be between 1 and 50")
	}
	if c.Scan.RateLimit <= 0 {
		missing = append(missing, "scan.rate_limit must be > 0")
	}
	if c.Serp.SearchDepth < 1 || c.Serp.SearchDepth > 100 {
		missing = append(missing, "serp.search_depth must be between 1 and 100")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
