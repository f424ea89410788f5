package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "urls.txt", cfg.URLsPath)
	assert.Equal(t, "reviews.jsonl", cfg.OutPath)
	assert.Equal(t, "selectors.yaml", cfg.SelectorsPath)
	assert.False(t, cfg.Headful)
	assert.Equal(t, 0, cfg.MaxReviews)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 3, cfg.NoProgressLimit)
	assert.Equal(t, 20000, cfg.MaxScrollRounds)
	assert.Equal(t, 250*time.Millisecond, cfg.ScrollDelay)
	assert.Equal(t, 120*time.Second, cfg.NavTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("URLS_PATH", "/data/targets.txt")
	t.Setenv("MAX_REVIEWS", "600")
	t.Setenv("HEADFUL", "true")
	t.Setenv("SCROLL_DELAY_MS", "50")
	t.Setenv("NO_PROGRESS_LIMIT", "5")

	cfg := Load()

	assert.Equal(t, "/data/targets.txt", cfg.URLsPath)
	assert.Equal(t, 600, cfg.MaxReviews)
	assert.True(t, cfg.Headful)
	assert.Equal(t, 50*time.Millisecond, cfg.ScrollDelay)
	assert.Equal(t, 5, cfg.NoProgressLimit)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.ScrollStepRatio = 0
	assert.Error(t, cfg.Validate())
}

const sampleSiteYAML = `
scroll_containers:
  - "div.reviews-container"
review_cards:
  - "div.review[role='listitem']"
selectors:
  place_name: "h1[itemprop='name']"
  review_text: ".review__text"
  rating_meta: "meta[itemprop='ratingValue']"
  date_meta: "meta[itemprop='datePublished']"
expand_labels: ["More"]
captcha:
  url_fragments: ["showcaptcha"]
  body_markers: ["i am not a robot"]
org_id_pattern: "/org/[^/]+/(\\d+)"
author_id_pattern: "/maps/user/([^/?#]+)"
`

func writeSiteConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSiteConfig(t *testing.T) {
	cfg, err := LoadSiteConfig(writeSiteConfig(t, sampleSiteYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"div.review[role='listitem']"}, cfg.ReviewCards)
	assert.Equal(t, ".review__text", cfg.Selectors.ReviewText)
	assert.Equal(t, []string{"showcaptcha"}, cfg.Captcha.URLFragments)

	require.NotNil(t, cfg.OrgIDRe)
	m := cfg.OrgIDRe.FindStringSubmatch("https://maps.example.com/org/cafe_x/112233/reviews/")
	require.Len(t, m, 2)
	assert.Equal(t, "112233", m[1])
}

func TestLoadSiteConfigRejectsBadInput(t *testing.T) {
	_, err := LoadSiteConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadSiteConfig(writeSiteConfig(t, "review_cards: []\n"))
	assert.Error(t, err, "empty review_cards must be rejected")

	badRegex := `
review_cards: ["div.review"]
selectors:
  review_text: ".review__text"
org_id_pattern: "(["
`
	_, err = LoadSiteConfig(writeSiteConfig(t, badRegex))
	assert.Error(t, err, "invalid regex must be rejected")
}
