package threedsecure

import (
	"context"
	"time"

	"github.com/jrsteele09/go-threedsecure/api"
)

// BrowserDataCollector supplies the cardholder browser fingerprint.
type BrowserDataCollector interface {
	Collect(ctx context.Context) (api.BrowserData, error)
}

// BrowserDataFunc adapts a function to BrowserDataCollector.
type BrowserDataFunc func(ctx context.Context) (api.BrowserData, error)

// Collect calls f(ctx).
func (f BrowserDataFunc) Collect(ctx context.Context) (api.BrowserData, error) {
	return f(ctx)
}

// StaticBrowserData always reports browser.
func StaticBrowserData(browser api.BrowserData) BrowserDataCollector {
	return BrowserDataFunc(func(context.Context) (api.BrowserData, error) {
		return browser, nil
	})
}

// DefaultBrowserData describes a desktop browser in the local time zone,
// used when no collector is configured.
func DefaultBrowserData() api.BrowserData {
	return api.BrowserData{
		JavaEnabled:       false,
		JavascriptEnabled: true,
		Language:          "en-US",
		UserAgent:         "go-threedsecure/1.0",
		ScreenWidth:       1920,
		ScreenHeight:      1080,
		TimeZoneOffset:    api.TimeZoneOffset(time.Now()),
		ColorDepth:        24,
		AcceptHeader:      api.DefaultAcceptHeader,
	}
}
