package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DOCSCRAPE_MAX_PAGES.
const EnvPrefix = "DOCSCRAPE"

// Load reads configuration from file and environment on top of defaults.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
// Flags are applied by the caller after Load returns.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()

	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("docscrape")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".docscrape"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is okay if not explicitly specified
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper. Every key has to be known
// to viper for AutomaticEnv to pick it up during Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("max_pages", cfg.MaxPages)

	v.SetDefault("output.json_file", cfg.Output.JSONFile)
	v.SetDefault("output.csv_file", cfg.Output.CSVFile)
	v.SetDefault("output.jsonl_file", cfg.Output.JSONLFile)
	v.SetDefault("output.no_json", cfg.Output.NoJSON)
	v.SetDefault("output.no_csv", cfg.Output.NoCSV)
	v.SetDefault("output.debug_html", cfg.Output.DebugHTML)

	v.SetDefault("scraping.delay_between_pages", cfg.Scraping.DelayBetweenPages)
	v.SetDefault("scraping.page_timeout", cfg.Scraping.PageTimeout)
	v.SetDefault("scraping.render_wait", cfg.Scraping.RenderWait)
	v.SetDefault("scraping.headless", cfg.Scraping.Headless)
	v.SetDefault("scraping.stealth", cfg.Scraping.Stealth)
	v.SetDefault("scraping.fetcher", cfg.Scraping.Fetcher)
	v.SetDefault("scraping.wait_selector", cfg.Scraping.WaitSelector)
	v.SetDefault("scraping.consent_selectors", cfg.Scraping.ConsentSelectors)
	v.SetDefault("scraping.user_agents", cfg.Scraping.UserAgents)
	v.SetDefault("scraping.max_body_size", cfg.Scraping.MaxBodySize)

	v.SetDefault("ai.provider", cfg.AI.Provider)
	v.SetDefault("ai.model", cfg.AI.Model)
	v.SetDefault("ai.endpoint", cfg.AI.Endpoint)
	v.SetDefault("ai.api_key", cfg.AI.APIKey)
	v.SetDefault("ai.temperature", cfg.AI.Temperature)
	v.SetDefault("ai.max_tokens", cfg.AI.MaxTokens)
	v.SetDefault("ai.timeout", cfg.AI.Timeout)
	v.SetDefault("ai.max_sample_chars", cfg.AI.MaxSampleChars)
	v.SetDefault("ai.save_schema", cfg.AI.SaveSchema)
	v.SetDefault("ai.load_schema", cfg.AI.LoadSchema)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
