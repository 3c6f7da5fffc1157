package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if err := ValidateURL(cfg.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if cfg.MaxPages < 1 {
		return fmt.Errorf("max_pages must be >= 1, got %d", cfg.MaxPages)
	}

	if cfg.Scraping.DelayBetweenPages < 0 {
		return fmt.Errorf("scraping.delay_between_pages must be >= 0")
	}
	if cfg.Scraping.PageTimeout <= 0 {
		return fmt.Errorf("scraping.page_timeout must be > 0")
	}
	if cfg.Scraping.RenderWait < 0 {
		return fmt.Errorf("scraping.render_wait must be >= 0")
	}
	if cfg.Scraping.Fetcher != "http" && cfg.Scraping.Fetcher != "browser" {
		return fmt.Errorf("scraping.fetcher must be 'http' or 'browser', got %q", cfg.Scraping.Fetcher)
	}
	if cfg.Scraping.MaxBodySize <= 0 {
		return fmt.Errorf("scraping.max_body_size must be > 0")
	}

	if cfg.Output.NoJSON && cfg.Output.NoCSV && cfg.Output.JSONLFile == "" {
		return fmt.Errorf("all outputs are disabled")
	}

	validProviders := map[string]bool{
		"groq": true, "openai": true, "ollama": true, "custom": true,
	}
	if !validProviders[cfg.AI.Provider] {
		return fmt.Errorf("ai.provider must be groq/openai/ollama/custom, got %q", cfg.AI.Provider)
	}
	if cfg.AI.Provider == "custom" && cfg.AI.Endpoint == "" {
		return fmt.Errorf("ai.endpoint is required for the custom provider")
	}
	if cfg.AI.MaxSampleChars < 1000 {
		return fmt.Errorf("ai.max_sample_chars must be >= 1000, got %d", cfg.AI.MaxSampleChars)
	}
	if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be within [0, 2], got %v", cfg.AI.Temperature)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is valid for scraping.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// IsDoctolibURL reports whether the URL points at a Doctolib host. Other
// hosts are allowed but the built-in rules are tuned for Doctolib markup.
func IsDoctolibURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "doctolib.fr" || strings.HasSuffix(host, ".doctolib.fr") ||
		host == "doctolib.de" || strings.HasSuffix(host, ".doctolib.de") ||
		host == "doctolib.it" || strings.HasSuffix(host, ".doctolib.it")
}
