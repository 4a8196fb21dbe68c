package internal

import "strings"

var browserMarkers = []struct {
	marker string
	name   string
}{
	{"Edg/", "Edge"},
	{"OPR/", "Opera"},
	{"Firefox/", "Firefox"},
	{"Chrome/", "Chrome"},
	{"Safari/", "Safari"},
	{"curl/", "curl"},
}

var osMarkers = []struct {
	marker string
	name   string
}{
	{"Windows", "Windows"},
	{"iPhone", "iOS"},
	{"iPad", "iOS"},
	{"Android", "Android"},
	{"Mac OS X", "macOS"},
	{"Linux", "Linux"},
}

// DeviceLabel derives a short "Browser/OS" label from a User-Agent header.
// Unknown agents fall back to the raw header, truncated.
func DeviceLabel(userAgent string) string {
	ua := strings.TrimSpace(userAgent)
	if ua == "" {
		return "unknown"
	}

	browser := ""
	for _, m := range browserMarkers {
		if strings.Contains(ua, m.marker) {
			browser = m.name
			break
		}
	}
	os := ""
	for _, m := range osMarkers {
		if strings.Contains(ua, m.marker) {
			os = m.name
			break
		}
	}

	switch {
	case browser != "" && os != "":
		return browser + "/" + os
	case browser != "":
		return browser
	case os != "":
		return os
	}
	if len(ua) > 64 {
		return ua[:64]
	}
	return ua
}
