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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Chroma    ChromaConfig    `yaml:"chroma" mapstructure:"chroma"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds the text-generation oracle settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ChromaConfig holds the vector index connection settings.
type ChromaConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// CatalogConfig locates the reference data tables.
type CatalogConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// AnalysisConfig configures pipeline behavior. Timeouts attach to each
// blocking call individually; there is no retry loop.
type AnalysisConfig struct {
	Language             string `yaml:"language" mapstructure:"language"`
	EvidenceTopK         int    `yaml:"evidence_top_k" mapstructure:"evidence_top_k"`
	OracleTimeoutSecs    int    `yaml:"oracle_timeout_secs" mapstructure:"oracle_timeout_secs"`
	RetrievalTimeoutSecs int    `yaml:"retrieval_timeout_secs" mapstructure:"retrieval_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AnalyzePerMin   int      `yaml:"analyze_per_min" mapstructure:"analyze_per_min"`
	AnalyzeBurst    int      `yaml:"analyze_burst" mapstructure:"analyze_burst"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
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
	v.SetEnvPrefix("LABELSENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "labelsense.db")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("chroma.base_url", "http://localhost:8000")
	v.SetDefault("chroma.collection", "nutrition_knowledge")
	v.SetDefault("catalog.dir", "data")
	v.SetDefault("analysis.language", "en")
	v.SetDefault("analysis.evidence_top_k", 3)
	v.SetDefault("analysis.oracle_timeout_secs", 60)
	v.SetDefault("analysis.retrieval_timeout_secs", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.analyze_per_min", 30)
	v.SetDefault("server.analyze_burst", 5)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
