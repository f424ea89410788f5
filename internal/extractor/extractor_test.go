package extractor

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-harvester/internal/config"
	"review-harvester/internal/models"
)

func testSite() *config.SiteConfig {
	return &config.SiteConfig{
		ReviewCards: []string{"div.review[role='listitem']"},
		Selectors: config.Selectors{
			PlaceName:         "h1.place-title[itemprop='name']",
			PlaceNameFallback: "h1[itemprop='name']",
			ReviewText:        ".review__text",
			ReviewBody:        ".review__body",
			RatingMeta:        "meta[itemprop='ratingValue']",
			DateMeta:          "meta[itemprop='datePublished']",
			AuthorLink:        "a.review__author[href*='/maps/user/']",
			AuthorCaption:     ".review__caption",
		},
		OrgIDRe:           regexp.MustCompile(`/org/[^/]+/(\d+)`),
		AuthorIDRe:        regexp.MustCompile(`/maps/user/([^/?#]+)`),
		TitleSuffixMarker: "яндекс",
	}
}

const sampleHTML = `
<html>
<head><title>Кофейня Восход — Яндекс Карты</title></head>
<body>
<h1 class="place-title" itemprop="name">Кофейня Восход<span class="badge">18+</span></h1>
<div class="reviews">
  <div class="review" role="listitem" aria-posinset="1">
    <a class="review__author" href="https://maps.example.com/maps/user/abc123?source=web">Anna</a>
    <div class="review__caption">Знаток города 5 уровня</div>
    <meta itemprop="ratingValue" content="4,5">
    <meta itemprop="datePublished" content="2024-03-10T12:30:00.000Z">
    <div class="review__text">Отличный   кофе
и десерты</div>
  </div>
  <div class="review" role="listitem" aria-posinset="2">
    <meta itemprop="ratingValue" content="">
    <meta itemprop="datePublished" content="2024-03-09">
    <div class="review__body">Simply the body text</div>
  </div>
  <div class="review" role="listitem" aria-posinset="3">
    <meta itemprop="ratingValue" content="5">
    <meta itemprop="datePublished" content="2024-03-08T09:00:00.000Z">
    <div class="review__text">   </div>
  </div>
</div>
</body>
</html>`

const sourceURL = "https://maps.example.com/org/voshod/42424242/reviews/"

func TestExtract(t *testing.T) {
	ext := New(testSite())

	res, err := ext.Extract(sampleHTML, sourceURL)
	require.NoError(t, err)

	assert.Equal(t, "Кофейня Восход", res.PlaceName, "badge span must not leak into the name")
	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Skipped, "empty-text candidate is a skip, not an error")

	first := res.Records[0]
	assert.Equal(t, "42424242", first.OrgID)
	assert.Equal(t, "abc123", first.AuthorID)
	assert.Equal(t, "Знаток города 5 уровня", first.AuthorCaption)
	assert.Equal(t, "Знаток города", first.AuthorBadge)
	assert.Equal(t, 5, first.AuthorLevel)
	assert.Equal(t, "Отличный кофе и десерты", first.Text, "whitespace must collapse")
	assert.True(t, first.Rating.Known())
	assert.Equal(t, 4.5, first.Rating.Value())
	assert.Equal(t, "2024-03-10", first.Date)
	assert.Equal(t, "2024-03-10T12:30:00.000Z", first.DateISO)
	assert.Equal(t, sourceURL, first.SourceURL)
	assert.NotEmpty(t, first.Key)

	second := res.Records[1]
	assert.Equal(t, "Simply the body text", second.Text, "body selector is the fallback")
	assert.False(t, second.Rating.Known(), "empty rating falls back to unknown")
	assert.Equal(t, "2024-03-09", second.Date)
	assert.Empty(t, second.AuthorID)

	assert.NotEqual(t, first.Key, second.Key)
}

func TestExtractIsRepeatable(t *testing.T) {
	ext := New(testSite())

	a, err := ext.Extract(sampleHTML, sourceURL)
	require.NoError(t, err)
	b, err := ext.Extract(sampleHTML, sourceURL)
	require.NoError(t, err)

	require.Equal(t, len(a.Records), len(b.Records))
	for i := range a.Records {
		assert.Equal(t, a.Records[i].Key, b.Records[i].Key,
			"re-scanning the same render must reproduce fingerprints")
	}
}

func TestExtractNoCards(t *testing.T) {
	ext := New(testSite())

	res, err := ext.Extract("<html><body><p>nothing here</p></body></html>", sourceURL)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Zero(t, res.Skipped)
}

func TestPlaceNameFallbacks(t *testing.T) {
	ext := New(testSite())

	res, err := ext.Extract(`<html><head>
		<meta property="og:title" content="Пекарня Юг — Яндекс Карты">
		<title>ignored</title></head><body></body></html>`, sourceURL)
	require.NoError(t, err)
	assert.Equal(t, "Пекарня Юг", res.PlaceName, "og:title with portal suffix stripped")

	res, err = ext.Extract(`<html><head><title>Бар Север | Яндекс</title></head><body></body></html>`, sourceURL)
	require.NoError(t, err)
	assert.Equal(t, "Бар Север", res.PlaceName, "document title is the last fallback")
}

func TestCleanTitleKeepsForeignSeparators(t *testing.T) {
	// A dash in the place's own name must survive when no portal marker is present.
	assert.Equal(t, "Кафе-бар Луна", cleanTitle("Кафе-бар Луна", "яндекс"))
}

func TestParseRating(t *testing.T) {
	testCases := []struct {
		raw      string
		expected models.Rating
	}{
		{"5", models.NewRating(5)},
		{"4.5", models.NewRating(4.5)},
		{"4,5", models.NewRating(4.5)},
		{" 3 ", models.NewRating(3)},
		{"", models.UnknownRating()},
		{"five", models.UnknownRating()},
		{"12", models.UnknownRating()},
		{"-1", models.UnknownRating()},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseRating(tc.raw))
		})
	}
}

func TestParseCaption(t *testing.T) {
	testCases := []struct {
		caption string
		badge   string
		level   int
	}{
		{"Знаток города 5 уровня", "Знаток города", 5},
		{"Знаток города 12 уров.", "Знаток города", 12},
		{"Просто гость", "", 0},
		{"", "", 0},
	}

	for _, tc := range testCases {
		badge, level := ParseCaption(tc.caption)
		assert.Equal(t, tc.badge, badge)
		assert.Equal(t, tc.level, level)
	}
}

func TestOrgID(t *testing.T) {
	re := regexp.MustCompile(`/org/[^/]+/(\d+)`)

	assert.Equal(t, "112233", OrgID("https://maps.example.com/org/cafe_x/112233/reviews/", re))
	assert.Equal(t, "unknown", OrgID("https://maps.example.com/search?text=cafe", re))
	assert.Equal(t, "unknown", OrgID("https://maps.example.com/org/cafe_x/112233/", nil))
}
