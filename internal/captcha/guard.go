// Package captcha detects anti-automation block pages and waits, without an
// upper bound, for a human to clear them in the visible browser window.
package captcha

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog"

	"review-harvester/internal/config"
	"review-harvester/internal/logging"
)

// Guard inspects the live page for a block indicator.
type Guard struct {
	page    *rod.Page
	markers config.CaptchaMarkers
	poll    time.Duration
	log     zerolog.Logger
}

func NewGuard(page *rod.Page, markers config.CaptchaMarkers, poll time.Duration) *Guard {
	return &Guard{
		page:    page,
		markers: markers,
		poll:    poll,
		log:     logging.For("captcha"),
	}
}

// BlockedIn reports whether the given page URL or body text carries a block
// indicator. Matching is case-insensitive.
func BlockedIn(pageURL, bodyText string, markers config.CaptchaMarkers) bool {
	u := strings.ToLower(pageURL)
	for _, frag := range markers.URLFragments {
		if frag != "" && strings.Contains(u, strings.ToLower(frag)) {
			return true
		}
	}
	body := strings.ToLower(bodyText)
	for _, m := range markers.BodyMarkers {
		if m != "" && strings.Contains(body, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// Blocked inspects the current page state. Failures to read the page are
// treated as not blocked; navigation errors surface elsewhere.
func (g *Guard) Blocked() bool {
	var pageURL, body string
	_ = rod.Try(func() {
		pageURL = g.page.MustInfo().URL
	})
	_ = rod.Try(func() {
		body = g.page.Timeout(2 * time.Second).MustElement("body").MustText()
	})
	return BlockedIn(pageURL, body, g.markers)
}

// WaitUntilCleared polls until the block indicator disappears. There is no
// timeout: resolution is paced by the human at the browser window. Only
// context cancellation aborts the wait.
func (g *Guard) WaitUntilCleared(ctx context.Context) error {
	g.log.Warn().Msg("CAPTCHA detected; solve it in the browser window, scraping is paused")

	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !g.Blocked() {
				g.log.Info().Msg("CAPTCHA cleared, resuming")
				return nil
			}
		}
	}
}
