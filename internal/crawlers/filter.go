package crawlers

import (
	"net/http"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// ShouldAllow reports whether a sub-resource request may proceed. Stylesheets,
// images, fonts and media are not needed to read the DOM.
func ShouldAllow(kind proto.NetworkResourceType) bool {
	switch kind {
	case proto.NetworkResourceTypeStylesheet,
		proto.NetworkResourceTypeImage,
		proto.NetworkResourceTypeFont,
		proto.NetworkResourceTypeMedia:
		return false
	}
	return true
}

// InstallRequestFilter hijacks every request of page. Denied kinds fail with
// BlockedByClient when block is set; the rest continue with extra headers applied.
// onBlocked may be nil. Stop the returned router when the page is done.
func InstallRequestFilter(page *rod.Page, headers http.Header, block bool, onBlocked func()) (*rod.HijackRouter, error) {
	router := page.HijackRequests()

	err := router.Add("*", "", func(h *rod.Hijack) {
		if block && !ShouldAllow(h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			if onBlocked != nil {
				onBlocked()
			}
			return
		}
		h.ContinueRequest(continueWithHeaders(h, headers))
	})
	if err != nil {
		return nil, err
	}

	go router.Run()
	return router, nil
}

// continueWithHeaders keeps the original request headers and overrides them with extra.
func continueWithHeaders(h *rod.Hijack, extra http.Header) *proto.FetchContinueRequest {
	req := &proto.FetchContinueRequest{}
	if len(extra) == 0 {
		return req
	}

	merged := make(map[string]string)
	for name, value := range h.Request.Headers() {
		merged[http.CanonicalHeaderKey(name)] = value.String()
	}
	for name, values := range extra {
		if len(values) > 0 {
			merged[http.CanonicalHeaderKey(name)] = values[0]
		}
	}

	req.Headers = make([]*proto.FetchHeaderEntry, 0, len(merged))
	for name, value := range merged {
		req.Headers = append(req.Headers, &proto.FetchHeaderEntry{Name: name, Value: value})
	}
	return req
}
