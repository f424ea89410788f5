// Package extractor turns a rendered page snapshot into review records.
// It is the only place that knows the portal's markup; everything it looks
// for comes from the site configuration.
package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"review-harvester/internal/config"
	"review-harvester/internal/errs"
	"review-harvester/internal/logging"
	"review-harvester/internal/models"
)

var (
	spaceRe   = regexp.MustCompile(`\s+`)
	captionRe = regexp.MustCompile(`(?i)^(.+?)\s+(\d+)\s*уров`)
)

// Result is one extraction pass over the current render. Each pass re-scans
// the full render; deduplication against earlier passes is the caller's job.
type Result struct {
	PlaceName string
	Records   []models.Review
	Skipped   int
}

// Extractor parses rendered review listings.
type Extractor struct {
	site *config.SiteConfig
	log  zerolog.Logger
}

func New(site *config.SiteConfig) *Extractor {
	return &Extractor{site: site, log: logging.For("extractor")}
}

// Extract parses the rendered HTML into review records. Candidates missing
// required fields are dropped and counted, never fatal.
func (e *Extractor) Extract(html, sourceURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.NewExtraction(sourceURL, "failed to parse rendered page", err)
	}

	orgID := OrgID(sourceURL, e.site.OrgIDRe)
	res := &Result{PlaceName: e.placeName(doc)}

	cardSel := firstMatching(doc, e.site.ReviewCards)
	if cardSel == "" {
		return res, nil
	}

	now := time.Now().Unix()
	doc.Find(cardSel).Each(func(_ int, s *goquery.Selection) {
		rec, ok := e.review(s, orgID, res.PlaceName, sourceURL, now)
		if !ok {
			res.Skipped++
			return
		}
		res.Records = append(res.Records, rec)
	})
	return res, nil
}

func (e *Extractor) review(s *goquery.Selection, orgID, placeName, sourceURL string, now int64) (models.Review, bool) {
	sel := e.site.Selectors

	text := normalizeSpace(s.Find(sel.ReviewText).First().Text())
	if text == "" && sel.ReviewBody != "" {
		text = normalizeSpace(s.Find(sel.ReviewBody).First().Text())
	}
	if text == "" {
		return models.Review{}, false
	}

	ratingRaw := strings.TrimSpace(s.Find(sel.RatingMeta).First().AttrOr("content", ""))
	dateISO := strings.TrimSpace(s.Find(sel.DateMeta).First().AttrOr("content", ""))

	date := dateISO
	if i := strings.IndexByte(dateISO, 'T'); i >= 0 {
		date = dateISO[:i]
	}

	authorID := AuthorID(s.Find(sel.AuthorLink).First().AttrOr("href", ""), e.site.AuthorIDRe)
	caption := strings.TrimSpace(s.Find(sel.AuthorCaption).First().Text())
	badge, level := ParseCaption(caption)

	return models.Review{
		Key:           models.Fingerprint(orgID, authorID, dateISO, ratingRaw, text),
		OrgID:         orgID,
		PlaceName:     placeName,
		AuthorID:      authorID,
		AuthorCaption: caption,
		AuthorBadge:   badge,
		AuthorLevel:   level,
		DateISO:       dateISO,
		Date:          date,
		RatingRaw:     ratingRaw,
		Rating:        ParseRating(ratingRaw),
		Text:          text,
		SourceURL:     sourceURL,
		ScrapedAt:     now,
	}, true
}

// placeName reads the place name from the heading, falling back to og:title
// and finally the document title with the portal suffix stripped.
func (e *Extractor) placeName(doc *goquery.Document) string {
	sel := e.site.Selectors
	for _, hSel := range []string{sel.PlaceName, sel.PlaceNameFallback} {
		if hSel == "" {
			continue
		}
		h := doc.Find(hSel).First()
		if h.Length() == 0 {
			continue
		}
		name := ownText(h)
		if name == "" {
			name = strings.TrimSpace(h.Text())
		}
		if name != "" && len(name) < 200 {
			return name
		}
	}

	if og, ok := doc.Find("meta[property='og:title']").First().Attr("content"); ok {
		if t := cleanTitle(og, e.site.TitleSuffixMarker); t != "" {
			return t
		}
	}
	return cleanTitle(doc.Find("title").First().Text(), e.site.TitleSuffixMarker)
}

// ownText returns the first non-empty direct text node of a selection,
// skipping nested badges and counters inside the heading.
func ownText(s *goquery.Selection) string {
	var name string
	s.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if goquery.NodeName(c) != "#text" {
			return true
		}
		if t := strings.TrimSpace(c.Text()); t != "" {
			name = t
			return false
		}
		return true
	})
	return name
}

// cleanTitle strips a portal suffix like " — Maps" from a page title. The
// suffix is only stripped when the marker text appears in the title.
func cleanTitle(title, marker string) string {
	t := strings.TrimSpace(title)
	if marker == "" || !strings.Contains(strings.ToLower(t), strings.ToLower(marker)) {
		return t
	}
	for _, sep := range []string{"—", "|", "–", "-"} {
		if idx := strings.Index(t, sep); idx > 0 {
			if left := strings.TrimSpace(t[:idx]); left != "" {
				return left
			}
		}
	}
	return t
}

// OrgID derives the place identifier from the target URL, "unknown" when the
// pattern does not match.
func OrgID(sourceURL string, re *regexp.Regexp) string {
	if re != nil {
		if m := re.FindStringSubmatch(sourceURL); len(m) > 1 {
			return m[1]
		}
	}
	return "unknown"
}

// AuthorID derives the reviewer identifier from their profile link.
func AuthorID(href string, re *regexp.Regexp) string {
	if href == "" || re == nil {
		return ""
	}
	if m := re.FindStringSubmatch(href); len(m) > 1 {
		return m[1]
	}
	return ""
}

// ParseCaption splits an author caption like "Знаток города 5 уровня" into
// badge and level. Captions without a level come back unchanged.
func ParseCaption(caption string) (badge string, level int) {
	m := captionRe.FindStringSubmatch(caption)
	if m == nil {
		return "", 0
	}
	level, _ = strconv.Atoi(m[2])
	return strings.TrimSpace(m[1]), level
}

// ParseRating normalizes a raw rating to the 1-5 scale. Comma decimals are
// tolerated; anything unparseable or out of range becomes the unknown sentinel.
func ParseRating(raw string) models.Rating {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return models.UnknownRating()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 5 {
		return models.UnknownRating()
	}
	return models.NewRating(v)
}

func firstMatching(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return sel
		}
	}
	return ""
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
