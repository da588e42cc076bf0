package api

import "time"

// DefaultAcceptHeader is the Accept header a desktop browser sends for a top-level navigation.
const DefaultAcceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9"

// colour depths accepted by the directory servers, largest first
var allowedColorDepths = []int{48, 32, 24, 16, 15, 8, 4, 1}

// BrowserData is the cardholder browser fingerprint sent before the
// authentication starts. Collecting it is the host's job; the client only
// transmits it.
type BrowserData struct {
	IP                string `json:"ip,omitempty"`
	JavaEnabled       bool   `json:"javaEnabled"`
	JavascriptEnabled bool   `json:"javascriptEnabled"`
	Language          string `json:"language"`
	UserAgent         string `json:"userAgent"`
	ScreenWidth       int    `json:"screenWidth"`
	ScreenHeight      int    `json:"screenHeight"`
	TimeZoneOffset    int    `json:"timeZoneOffset"` // Minutes, UTC minus local time
	ColorDepth        int    `json:"colorDepth"`
	AcceptHeader      string `json:"acceptHeader"`
}

// Normalized returns a copy with the colour depth snapped to an allowed
// value and the accept header defaulted.
func (b BrowserData) Normalized() BrowserData {
	b.ColorDepth = NormalizeColorDepth(b.ColorDepth)
	if b.AcceptHeader == "" {
		b.AcceptHeader = DefaultAcceptHeader
	}
	return b
}

// NormalizeColorDepth returns the largest allowed depth not above depth, or 48 if none is.
func NormalizeColorDepth(depth int) int {
	for _, allowed := range allowedColorDepths {
		if allowed <= depth {
			return allowed
		}
	}
	return allowedColorDepths[0]
}

// TimeZoneOffset returns the offset of t's location in minutes, signed the
// way browsers report it: positive west of UTC.
func TimeZoneOffset(t time.Time) int {
	_, seconds := t.Zone()
	return -seconds / 60
}
