package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App             App             `mapstructure:"app"`
	AI              AI              `mapstructure:"ai"`
	Sources         Sources         `mapstructure:"sources"`
	Health          Health          `mapstructure:"health"`
	Selection       Selection       `mapstructure:"selection"`
	Curation        Curation        `mapstructure:"curation"`
	Personalization Personalization `mapstructure:"personalization"`
	Pipeline        Pipeline        `mapstructure:"pipeline"`
	Output          Output          `mapstructure:"output"`
	Server          Server          `mapstructure:"server"`
}

// App holds general application configuration.
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// AI holds LLM configuration for the narrative generator.
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration.
type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Timeout        string `mapstructure:"timeout"`
}

// Sources holds data source registry configuration.
type Sources struct {
	RegistryFile string `mapstructure:"registry_file"`
}

// Health holds source health monitor configuration.
type Health struct {
	FailureThreshold int     `mapstructure:"failure_threshold"`
	ResetTimeout     string  `mapstructure:"reset_timeout"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BaseDelay        string  `mapstructure:"base_delay"`
	MaxDelay         string  `mapstructure:"max_delay"`
	AutoHeal         bool    `mapstructure:"auto_heal"`
	HealingThreshold float64 `mapstructure:"healing_threshold"`
	HealingDelay     string  `mapstructure:"healing_delay"`
}

// Selection holds content selection stage configuration.
type Selection struct {
	MaxNews          int     `mapstructure:"max_news"`
	MaxAlerts        int     `mapstructure:"max_alerts"`
	MaxDeals         int     `mapstructure:"max_deals"`
	MaxEvents        int     `mapstructure:"max_events"`
	MinQualityScore  int     `mapstructure:"min_quality_score"`
	LookbackHours    int     `mapstructure:"lookback_hours"`
	UseEmbeddings    bool    `mapstructure:"use_embeddings"`
	ClusterThreshold float64 `mapstructure:"cluster_threshold"`
}

// Curation holds curation stage configuration.
type Curation struct {
	Enabled        bool    `mapstructure:"enabled"`
	MaxPerCategory int     `mapstructure:"max_per_category"`
	MaxTotal       int     `mapstructure:"max_total"`
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	NarrativeTopN  int     `mapstructure:"narrative_top_n"`
}

// Personalization holds personalization stage configuration.
type Personalization struct {
	Enabled       bool    `mapstructure:"enabled"`
	BlendOriginal float64 `mapstructure:"blend_original"` // Weight of the original score in the blend
	BlendPersonal float64 `mapstructure:"blend_personal"` // Weight of the personal score in the blend
}

// Pipeline holds orchestrator configuration.
type Pipeline struct {
	AbortOnCritical bool `mapstructure:"abort_on_critical"`
	SkipNarrative   bool `mapstructure:"skip_narrative"`
}

// Output holds digest output configuration.
type Output struct {
	Directory string `mapstructure:"directory"`
}

// Server holds HTTP trigger surface configuration.
type Server struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	SharedSecret string `mapstructure:"shared_secret"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

var globalConfig *Config

// Load loads configuration from the optional config file, .env, and the
// environment, merged over defaults. Subsequent calls return the cached
// configuration.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".citydigest")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.SetEnvPrefix("CITYDIGEST")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets come from the environment, never from the config file.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.AI.Gemini.APIKey = key
	}
	if secret := os.Getenv("DIGEST_SHARED_SECRET"); secret != "" {
		config.Server.SharedSecret = secret
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	globalConfig = config
	return globalConfig, nil
}

// Get returns the loaded configuration, loading defaults if Load was never
// called explicitly.
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Reset clears the cached configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// Validate checks configuration invariants once at construction instead of
// scattering fallbacks through the pipeline.
func (c *Config) Validate() error {
	if c.Health.FailureThreshold < 1 {
		return fmt.Errorf("health.failure_threshold must be >= 1, got %d", c.Health.FailureThreshold)
	}
	if c.Health.MaxRetries < 1 {
		return fmt.Errorf("health.max_retries must be >= 1, got %d", c.Health.MaxRetries)
	}
	if c.Selection.MinQualityScore < 0 || c.Selection.MinQualityScore > 100 {
		return fmt.Errorf("selection.min_quality_score must be 0-100, got %d", c.Selection.MinQualityScore)
	}
	if c.Selection.LookbackHours <= 0 {
		return fmt.Errorf("selection.lookback_hours must be > 0, got %d", c.Selection.LookbackHours)
	}
	if c.Curation.FuzzyThreshold < 0 || c.Curation.FuzzyThreshold > 1 {
		return fmt.Errorf("curation.fuzzy_threshold must be 0-1, got %f", c.Curation.FuzzyThreshold)
	}
	if sum := c.Personalization.BlendOriginal + c.Personalization.BlendPersonal; sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("personalization blend weights must sum to 1, got %f", sum)
	}
	for _, d := range []struct {
		key, val string
	}{
		{"health.reset_timeout", c.Health.ResetTimeout},
		{"health.base_delay", c.Health.BaseDelay},
		{"health.max_delay", c.Health.MaxDelay},
		{"health.healing_delay", c.Health.HealingDelay},
	} {
		if _, err := time.ParseDuration(d.val); err != nil {
			return fmt.Errorf("%s is not a valid duration: %w", d.key, err)
		}
	}
	return nil
}

// Duration parses a duration string that Validate has already checked.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".citydigest")

	// AI defaults
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.embedding_model", "gemini-embedding-001")
	viper.SetDefault("ai.gemini.timeout", "30s")

	// Sources defaults
	viper.SetDefault("sources.registry_file", "sources.yaml")

	// Health defaults
	viper.SetDefault("health.failure_threshold", 5)
	viper.SetDefault("health.reset_timeout", "5m")
	viper.SetDefault("health.max_retries", 3)
	viper.SetDefault("health.base_delay", "1s")
	viper.SetDefault("health.max_delay", "30s")
	viper.SetDefault("health.auto_heal", true)
	viper.SetDefault("health.healing_threshold", 50)
	viper.SetDefault("health.healing_delay", "500ms")

	// Selection defaults
	viper.SetDefault("selection.max_news", 5)
	viper.SetDefault("selection.max_alerts", 3)
	viper.SetDefault("selection.max_deals", 3)
	viper.SetDefault("selection.max_events", 3)
	viper.SetDefault("selection.min_quality_score", 40)
	viper.SetDefault("selection.lookback_hours", 48)
	viper.SetDefault("selection.use_embeddings", false)
	viper.SetDefault("selection.cluster_threshold", 0.85)

	// Curation defaults
	viper.SetDefault("curation.enabled", true)
	viper.SetDefault("curation.max_per_category", 3)
	viper.SetDefault("curation.max_total", 12)
	viper.SetDefault("curation.fuzzy_threshold", 0.75)
	viper.SetDefault("curation.narrative_top_n", 5)

	// Personalization defaults
	viper.SetDefault("personalization.enabled", false)
	viper.SetDefault("personalization.blend_original", 0.6)
	viper.SetDefault("personalization.blend_personal", 0.4)

	// Pipeline defaults
	viper.SetDefault("pipeline.abort_on_critical", true)
	viper.SetDefault("pipeline.skip_narrative", false)

	// Output defaults
	viper.SetDefault("output.directory", "digests")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "60s")
}
