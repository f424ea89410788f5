// Package browser owns the engine lifecycle: one browser per run, launched
// before the target loop and closed after it.
package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"review-harvester/internal/errs"
)

// Launch starts the browser engine. Headful mode keeps a visible window so a
// human can solve CAPTCHA challenges.
func Launch(headful bool) (*rod.Browser, error) {
	l := launcher.New().Headless(!headful).NoSandbox(true)
	u, err := l.Launch()
	if err != nil {
		return nil, errs.NewSetup("failed to launch browser engine", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, errs.NewSetup("failed to connect to browser engine", err)
	}
	return b, nil
}

// NewPage creates the single stealth page the run operates on.
func NewPage(b *rod.Browser) (*rod.Page, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, errs.NewSetup("failed to create page", err)
	}
	return page, nil
}
