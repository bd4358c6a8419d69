package pipeline

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EmbeddingConfig carries the embedding.* configuration keys.
type EmbeddingConfig struct {
	Model          string `mapstructure:"model"`
	IncludeContext bool   `mapstructure:"include_context"`
	BatchSize      int    `mapstructure:"batch_size"`

	Provider     string `mapstructure:"provider"` // "vertex" or "local"
	ServiceURL   string `mapstructure:"service_url"`
	Dimension    int    `mapstructure:"dimension"`
	GCPProjectID string `mapstructure:"gcp_project_id"`
	GCPLocation  string `mapstructure:"gcp_location"`
}

// PipelineConfig is the runtime configuration for one batch run, plus
// storage connection settings.
type PipelineConfig struct {
	TextPrefer   string `mapstructure:"text_prefer"`
	RequireClean bool   `mapstructure:"require_clean"`

	Seed         int64     `mapstructure:"seed"`
	Ratios       []float64 `mapstructure:"ratios"`
	HoldoutBooks []string  `mapstructure:"holdout_books"`
	HoldoutName  string    `mapstructure:"holdout_name"`

	LabelOnMiss     string `mapstructure:"label_on_miss"`
	ContiguousMerge bool   `mapstructure:"contiguous_merge"`

	Embedding EmbeddingConfig `mapstructure:"embedding"`

	Driver      string `mapstructure:"driver"`
	DatabaseURL string `mapstructure:"database_url"`
	RulesFile   string `mapstructure:"rules_file"`
	OutputDir   string `mapstructure:"output_dir"`
}

// LoadPipelineConfig loads .env, then binds environment variables, an
// optional config file at configFile (or, when empty, ./pipeline.yaml if it
// exists, else .silverbible.yaml in the working directory or $HOME), and
// viper's registered defaults into a PipelineConfig. CLI flags are not bound
// here; commands apply their own flag overrides to the returned config.
func LoadPipelineConfig(configFile string) (*PipelineConfig, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	v := viper.New()

	if configFile == "" {
		if _, err := os.Stat("pipeline.yaml"); err == nil {
			configFile = "pipeline.yaml"
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".silverbible")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, ConfigError("read pipeline config file: " + err.Error())
		}
	}

	cfg := &PipelineConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, ConfigError("unmarshal pipeline config: " + err.Error())
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("text_prefer", "auto")
	v.SetDefault("require_clean", false)
	v.SetDefault("seed", 42)
	v.SetDefault("ratios", []float64{0.8, 0.1, 0.1})
	v.SetDefault("holdout_name", "holdout")
	v.SetDefault("contiguous_merge", true)
	v.SetDefault("driver", "postgres")
	v.SetDefault("output_dir", "dist")

	v.SetDefault("embedding.model", "textembedding-gecko@003")
	v.SetDefault("embedding.include_context", true)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.service_url", "http://localhost:8001")
	v.SetDefault("embedding.dimension", 768)
	v.SetDefault("embedding.gcp_location", "us-central1")
}

func validate(cfg *PipelineConfig) error {
	if len(cfg.Ratios) != 3 {
		return ConfigError("ratios must have exactly three entries (train, dev, test)")
	}
	sum := cfg.Ratios[0] + cfg.Ratios[1] + cfg.Ratios[2]
	if sum < 1.0-1e-9 || sum > 1.0+1e-9 {
		return ConfigError("ratios must sum to 1.0")
	}
	if cfg.RulesFile == "" {
		return ConfigError("rules_file is required")
	}
	return nil
}
