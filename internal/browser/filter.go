package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Blocked reports whether requests of the given resource type should be
// aborted to cut page load time. Documents, scripts and XHR/fetch always
// pass: review content arrives through dynamically loaded requests.
func Blocked(t proto.NetworkResourceType) bool {
	switch t {
	case proto.NetworkResourceTypeImage,
		proto.NetworkResourceTypeFont,
		proto.NetworkResourceTypeMedia,
		proto.NetworkResourceTypeStylesheet:
		return true
	}
	return false
}

// AttachFilter installs the resource filter on the page. The returned stop
// function removes it again.
func AttachFilter(page *rod.Page) (func(), error) {
	router := page.HijackRequests()
	err := router.Add("*", "", func(ctx *rod.Hijack) {
		if Blocked(ctx.Request.Type()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, err
	}

	go router.Run()
	return func() { _ = router.Stop() }, nil
}
