package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultBaseURL is the example search shown in the CLI help.
const DefaultBaseURL = "https://www.doctolib.fr/search?location=75012-paris&speciality=gastro-enterologue&availabilitiesBefore=14"

// Config is the root configuration for DocScrape.
type Config struct {
	BaseURL  string         `mapstructure:"base_url"  yaml:"base_url"  json:"base_url"`
	MaxPages int            `mapstructure:"max_pages" yaml:"max_pages" json:"max_pages"`
	Output   OutputConfig   `mapstructure:"output"    yaml:"output"    json:"output"`
	Scraping ScrapingConfig `mapstructure:"scraping"  yaml:"scraping"  json:"scraping"`
	AI       AIConfig       `mapstructure:"ai"        yaml:"ai"        json:"ai"`
	Logging  LoggingConfig  `mapstructure:"logging"   yaml:"logging"   json:"logging"`
}

// OutputConfig controls which files a run writes.
type OutputConfig struct {
	JSONFile  string `mapstructure:"json_file"  yaml:"json_file"  json:"json_file"`
	CSVFile   string `mapstructure:"csv_file"   yaml:"csv_file"   json:"csv_file"`
	JSONLFile string `mapstructure:"jsonl_file" yaml:"jsonl_file" json:"jsonl_file,omitempty"`
	NoJSON    bool   `mapstructure:"no_json"    yaml:"no_json"    json:"no_json"`
	NoCSV     bool   `mapstructure:"no_csv"     yaml:"no_csv"     json:"no_csv"`
	DebugHTML string `mapstructure:"debug_html" yaml:"debug_html" json:"debug_html,omitempty"`
}

// ScrapingConfig controls page fetching and pacing.
type ScrapingConfig struct {
	DelayBetweenPages time.Duration `mapstructure:"delay_between_pages" yaml:"delay_between_pages" json:"delay_between_pages"`
	PageTimeout       time.Duration `mapstructure:"page_timeout"        yaml:"page_timeout"        json:"page_timeout"`
	RenderWait        time.Duration `mapstructure:"render_wait"         yaml:"render_wait"         json:"render_wait"`
	Headless          bool          `mapstructure:"headless"            yaml:"headless"            json:"headless"`
	Stealth           bool          `mapstructure:"stealth"             yaml:"stealth"             json:"stealth"`
	Fetcher           string        `mapstructure:"fetcher"             yaml:"fetcher"             json:"fetcher"`
	WaitSelector      string        `mapstructure:"wait_selector"       yaml:"wait_selector"       json:"wait_selector,omitempty"`
	ConsentSelectors  []string      `mapstructure:"consent_selectors"   yaml:"consent_selectors"   json:"consent_selectors"`
	UserAgents        []string      `mapstructure:"user_agents"         yaml:"user_agents"         json:"user_agents"`
	MaxBodySize       int64         `mapstructure:"max_body_size"       yaml:"max_body_size"       json:"max_body_size"`
}

// AIConfig controls the schema oracle.
type AIConfig struct {
	Provider       string        `mapstructure:"provider"         yaml:"provider"         json:"provider"`
	Model          string        `mapstructure:"model"            yaml:"model"            json:"model"`
	Endpoint       string        `mapstructure:"endpoint"         yaml:"endpoint"         json:"endpoint,omitempty"`
	APIKey         string        `mapstructure:"api_key"          yaml:"api_key"          json:"-"`
	Temperature    float64       `mapstructure:"temperature"      yaml:"temperature"      json:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"       yaml:"max_tokens"       json:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"          yaml:"timeout"          json:"timeout"`
	MaxSampleChars int           `mapstructure:"max_sample_chars" yaml:"max_sample_chars" json:"max_sample_chars"`
	SaveSchema     string        `mapstructure:"save_schema"      yaml:"save_schema"      json:"save_schema"`
	LoadSchema     string        `mapstructure:"load_schema"      yaml:"load_schema"      json:"load_schema,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxPages: 3,
		Output: OutputConfig{
			JSONFile: "doctolib_doctors.json",
			CSVFile:  "doctolib_doctors.csv",
		},
		Scraping: ScrapingConfig{
			DelayBetweenPages: 2 * time.Second,
			PageTimeout:       30 * time.Second,
			RenderWait:        5 * time.Second,
			Headless:          true,
			Stealth:           true,
			Fetcher:           "browser",
			ConsentSelectors: []string{
				`button[data-testid="accept-all-cookies"]`,
				`#didomi-notice-agree-button`,
				`button:contains("Accepter")`,
				`.cookie-consent button`,
				`button:contains("Accept")`,
				`.gdpr-accept`,
				`#cookie-consent button`,
				`[data-cy="accept-cookies"]`,
				`.cookie-banner button`,
			},
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			MaxBodySize: 10 * 1024 * 1024, // 10MB
		},
		AI: AIConfig{
			Provider:       "groq",
			Model:          "meta-llama/llama-4-scout-17b-16e-instruct",
			Temperature:    0.1,
			MaxTokens:      4000,
			Timeout:        120 * time.Second,
			MaxSampleChars: 30000,
			SaveSchema:     "doctolib_schema.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
