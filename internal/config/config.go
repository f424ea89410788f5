package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds run-level settings sourced from environment variables.
// CLI flags may override individual fields after Load.
type AppConfig struct {
	// Input and output paths
	URLsPath      string
	OutPath       string
	SelectorsPath string

	// Browser
	Headful        bool
	BlockResources bool
	NavTimeout     time.Duration

	// Per-place collection
	MaxReviews      int // 0 = unlimited
	MaxAttempts     int
	NoProgressLimit int
	MaxScrollRounds int

	// Pacing
	ScrollDelay     time.Duration
	ScrollStepRatio float64
	PageDelay       time.Duration
	RetryBackoff    time.Duration
	CaptchaPoll     time.Duration

	Environment string
}

// Load reads the application configuration from environment variables with defaults.
func Load() *AppConfig {
	return &AppConfig{
		URLsPath:        getEnv("URLS_PATH", "urls.txt"),
		OutPath:         getEnv("OUT_PATH", "reviews.jsonl"),
		SelectorsPath:   getEnv("SELECTORS_PATH", "selectors.yaml"),
		Headful:         getEnvBool("HEADFUL", false),
		BlockResources:  getEnvBool("BLOCK_RESOURCES", true),
		NavTimeout:      getEnvDuration("NAV_TIMEOUT_SECONDS", 120) * time.Second,
		MaxReviews:      getEnvInt("MAX_REVIEWS", 0),
		MaxAttempts:     getEnvInt("MAX_ATTEMPTS", 3),
		NoProgressLimit: getEnvInt("NO_PROGRESS_LIMIT", 3),
		MaxScrollRounds: getEnvInt("MAX_SCROLL_ROUNDS", 20000),
		ScrollDelay:     getEnvDuration("SCROLL_DELAY_MS", 250) * time.Millisecond,
		ScrollStepRatio: getEnvFloat("SCROLL_STEP_RATIO", 2.0),
		PageDelay:       getEnvDuration("PAGE_DELAY_MS", 1000) * time.Millisecond,
		RetryBackoff:    getEnvDuration("RETRY_BACKOFF_MS", 1000) * time.Millisecond,
		CaptchaPoll:     getEnvDuration("CAPTCHA_POLL_SECONDS", 3) * time.Second,
		Environment:     getEnv("HARVESTER_ENVIRONMENT", "development"),
	}
}

// Validate checks settings that would otherwise fail deep inside the run.
func (c *AppConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.NoProgressLimit < 1 {
		return fmt.Errorf("NO_PROGRESS_LIMIT must be at least 1, got %d", c.NoProgressLimit)
	}
	if c.MaxScrollRounds < 1 {
		return fmt.Errorf("MAX_SCROLL_ROUNDS must be at least 1, got %d", c.MaxScrollRounds)
	}
	if c.ScrollStepRatio <= 0 {
		return fmt.Errorf("SCROLL_STEP_RATIO must be positive, got %v", c.ScrollStepRatio)
	}
	return nil
}

// SiteConfig keeps every page-structure assumption out of code: selectors,
// marker texts and URL patterns all live in the YAML file so a markup change
// on the portal means editing configuration, not the extractor.
type SiteConfig struct {
	ScrollContainers []string  `yaml:"scroll_containers"`
	ReviewCards      []string  `yaml:"review_cards"`
	Selectors        Selectors `yaml:"selectors"`

	ExpandLabels  []string `yaml:"expand_labels"`
	DismissLabels []string `yaml:"dismiss_labels"`

	Captcha CaptchaMarkers `yaml:"captcha"`

	OrgIDPattern      string `yaml:"org_id_pattern"`
	AuthorIDPattern   string `yaml:"author_id_pattern"`
	TitleSuffixMarker string `yaml:"title_suffix_marker"`

	// Compiled from the patterns above at load time.
	OrgIDRe    *regexp.Regexp `yaml:"-"`
	AuthorIDRe *regexp.Regexp `yaml:"-"`
}

// Selectors maps review record fields to CSS selectors within a review card.
type Selectors struct {
	PlaceName         string `yaml:"place_name"`
	PlaceNameFallback string `yaml:"place_name_fallback"`
	ReviewText        string `yaml:"review_text"`
	ReviewBody        string `yaml:"review_body"`
	RatingMeta        string `yaml:"rating_meta"`
	DateMeta          string `yaml:"date_meta"`
	AuthorLink        string `yaml:"author_link"`
	AuthorCaption     string `yaml:"author_caption"`
}

// CaptchaMarkers describes how a block page is recognized.
type CaptchaMarkers struct {
	URLFragments []string `yaml:"url_fragments"`
	BodyMarkers  []string `yaml:"body_markers"`
}

// LoadSiteConfig reads and validates the YAML site configuration.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site config at '%s': %w", path, err)
	}
	var cfg SiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse site config: %w", err)
	}

	if len(cfg.ReviewCards) == 0 {
		return nil, fmt.Errorf("site config must list at least one review_cards selector")
	}
	if cfg.Selectors.ReviewText == "" && cfg.Selectors.ReviewBody == "" {
		return nil, fmt.Errorf("site config must set selectors.review_text or selectors.review_body")
	}

	if cfg.OrgIDPattern != "" {
		if cfg.OrgIDRe, err = regexp.Compile(cfg.OrgIDPattern); err != nil {
			return nil, fmt.Errorf("invalid org_id_pattern: %w", err)
		}
	}
	if cfg.AuthorIDPattern != "" {
		if cfg.AuthorIDRe, err = regexp.Compile(cfg.AuthorIDPattern); err != nil {
			return nil, fmt.Errorf("invalid author_id_pattern: %w", err)
		}
	}
	return &cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal int64) time.Duration {
	return time.Duration(int64(getEnvInt(key, int(defaultVal))))
}
