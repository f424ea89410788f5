// Package navigator owns the browser tab for the duration of one target:
// opening the listing, clicking away interstitials, and revealing more
// reviews until the page stops growing.
package navigator

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog"

	"review-harvester/internal/config"
	"review-harvester/internal/errs"
	"review-harvester/internal/logging"
)

const countJS = `s => document.querySelectorAll(s).length`

// clickByTextJS clicks every element whose exact trimmed text matches one of
// the given labels, skipping reply/comment controls so expanding a review
// never opens the owner's answer thread.
const clickByTextJS = `labels => {
	const want = new Set(labels);
	let clicks = 0;
	for (const el of document.querySelectorAll("button,[role='button'],a,span")) {
		const t = (el.textContent || '').trim();
		if (!want.has(t)) continue;
		const cls = (('' + (el.className || '')) + ' ' +
			('' + (el.parentElement ? el.parentElement.className || '' : ''))).toLowerCase();
		if (cls.includes('answer') || cls.includes('reply') || cls.includes('comment')) continue;
		try { el.click(); clicks++; } catch (e) {}
	}
	return clicks;
}`

// scrollJS scrolls the nearest scrollable ancestor of the reviews container
// by clientHeight * ratio and reports whether it moved. The listing keeps its
// own scrollbar, so scrolling the window does nothing.
const scrollJS = `(sel, ratio) => {
	const root = document.querySelector(sel);
	function findScrollable(x) {
		while (x && x !== document.body) {
			const st = getComputedStyle(x);
			if ((st.overflowY === 'auto' || st.overflowY === 'scroll') &&
				x.scrollHeight > x.clientHeight + 5) return x;
			x = x.parentElement;
		}
		return document.scrollingElement || document.documentElement;
	}
	const sc = findScrollable(root);
	const before = sc.scrollTop;
	sc.scrollTop = before + Math.floor(sc.clientHeight * ratio);
	return sc.scrollTop !== before;
}`

// Options holds the timing knobs the navigator needs from app config.
type Options struct {
	NavTimeout      time.Duration
	ScrollDelay     time.Duration
	ScrollStepRatio float64
	ReadyTimeout    time.Duration
}

// Navigator drives the single page of the run.
type Navigator struct {
	page *rod.Page
	site *config.SiteConfig
	opts Options
	log  zerolog.Logger

	url          string
	cardSel      string
	containerSel string
}

func New(page *rod.Page, site *config.SiteConfig, opts Options) *Navigator {
	if opts.ReadyTimeout == 0 {
		opts.ReadyTimeout = 30 * time.Second
	}
	return &Navigator{
		page: page,
		site: site,
		opts: opts,
		log:  logging.For("navigator"),
	}
}

// Open loads the target page and clicks away consent/notice popups.
// Selector state from a previous target is reset.
func (n *Navigator) Open(url string) error {
	n.url = url
	n.cardSel = ""
	n.containerSel = ""

	err := rod.Try(func() {
		p := n.page.Timeout(n.opts.NavTimeout)
		p.MustNavigate(url)
		p.MustWaitStable()
	})
	if err != nil {
		return errs.NewNavigation(url, "failed to open target", err)
	}

	n.dismissPopups()
	return nil
}

// WaitReady waits until review cards are rendered and locks in which of the
// configured selector candidates this page variant uses. Pages that never
// grow a review list within the deadline are reported as navigation failures
// so the controller can abandon the target.
func (n *Navigator) WaitReady() error {
	deadline := time.Now().Add(n.opts.ReadyTimeout)
	for time.Now().Before(deadline) {
		for _, sel := range n.site.ReviewCards {
			if n.count(sel) > 0 {
				n.cardSel = sel
				n.containerSel = n.pickContainer()
				n.log.Debug().Str("cards", n.cardSel).Str("container", n.containerSel).
					Msg("review list ready")
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return errs.NewNavigation(n.url, "review cards never appeared", nil)
}

// RevealMore performs one reveal increment: expand truncated reviews, scroll
// the listing, then report whether the rendered card count grew.
func (n *Navigator) RevealMore() (bool, error) {
	before := n.ReviewCount()

	if len(n.site.ExpandLabels) > 0 {
		_ = rod.Try(func() {
			n.page.MustEval(clickByTextJS, n.site.ExpandLabels)
		})
	}

	err := rod.Try(func() {
		moved := n.page.MustEval(scrollJS, n.containerSel, n.opts.ScrollStepRatio).Bool()
		if !moved {
			// Container did not budge; nudge via mouse wheel instead.
			_ = n.page.Mouse.Scroll(0, 1600*n.opts.ScrollStepRatio, 1)
		}
	})
	if err != nil {
		return false, errs.NewNavigation(n.url, "failed to scroll review list", err)
	}

	time.Sleep(n.opts.ScrollDelay)
	return n.ReviewCount() > before, nil
}

// ReviewCount returns how many review cards are currently rendered.
func (n *Navigator) ReviewCount() int {
	if n.cardSel == "" {
		return 0
	}
	return n.count(n.cardSel)
}

// HTML snapshots the current render for the extractor.
func (n *Navigator) HTML() (string, error) {
	html, err := n.page.HTML()
	if err != nil {
		return "", errs.NewNavigation(n.url, "failed to snapshot page", err)
	}
	return html, nil
}

func (n *Navigator) count(sel string) int {
	count := 0
	_ = rod.Try(func() {
		count = n.page.MustEval(countJS, sel).Int()
	})
	return count
}

// pickContainer chooses the first configured scroll container present on the
// page, falling back to the card selector's own subtree.
func (n *Navigator) pickContainer() string {
	for _, sel := range n.site.ScrollContainers {
		if n.count(sel) > 0 {
			return sel
		}
	}
	return n.cardSel
}

func (n *Navigator) dismissPopups() {
	if len(n.site.DismissLabels) == 0 {
		return
	}
	clicks := 0
	_ = rod.Try(func() {
		clicks = n.page.MustEval(clickByTextJS, n.site.DismissLabels).Int()
	})
	if clicks > 0 {
		n.log.Debug().Int("clicks", clicks).Msg("dismissed popups")
		// Give the overlay a moment to leave the DOM.
		time.Sleep(200 * time.Millisecond)
	}
}
