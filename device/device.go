// Package device classifies a raw User-Agent string into device facts and
// decides whether the client is mobile-like. Classification never affects
// authorization; it only selects how tokens travel back to the client.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Type is the coarse device category.
type Type string

const (
	TypeDesktop Type = "desktop"
	TypeMobile  Type = "mobile"
	TypeTablet  Type = "tablet"
	TypeSmartTV Type = "smarttv"
	TypeBot     Type = "bot"
	TypeUnknown Type = "unknown"
)

// Info holds the facts derived from a User-Agent.
type Info struct {
	Type    Type
	Name    string
	Browser string
	OS      string
}

// MobileLike reports whether tokens should travel in headers rather than
// cookies: true for mobile, tablet and smart-TV clients.
func (i Info) MobileLike() bool {
	switch i.Type {
	case TypeMobile, TypeTablet, TypeSmartTV:
		return true
	default:
		return false
	}
}

var (
	tvMarkers = []string{
		"smart-tv", "smarttv", "googletv", "appletv", "hbbtv", "netcast",
		"roku", "crkey", "aftb", "aftm", "aftt", "bravia", "philipstv", "viera",
	}
	tabletMarkers = []string{"ipad", "tablet", "kindle", "silk/", "playbook", "nexus 7", "nexus 10"}
	// HTTP stacks used by native mobile apps that send no browser UA.
	nativeMobileMarkers = []string{"okhttp/", "dart:io", "cfnetwork/", "expo/", "react-native"}
)

// Classify parses ua. It is a pure function.
func Classify(ua string) Info {
	raw := strings.TrimSpace(ua)
	if raw == "" {
		return Info{Type: TypeUnknown}
	}

	parsed := useragent.New(raw)
	browser, version := parsed.Browser()
	if version != "" {
		browser += " " + version
	}

	info := Info{
		Name:    deviceName(parsed),
		Browser: browser,
		OS:      parsed.OS(),
	}

	lower := strings.ToLower(raw)
	switch {
	// Single-token UAs such as okhttp are reported as bots by the parser.
	case containsAny(lower, nativeMobileMarkers):
		info.Type = TypeMobile
	case parsed.Bot():
		info.Type = TypeBot
	case containsAny(lower, tvMarkers) || (strings.Contains(lower, "tv") && (strings.Contains(lower, "tizen") || strings.Contains(lower, "webos"))):
		info.Type = TypeSmartTV
	case containsAny(lower, tabletMarkers) || (strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")):
		info.Type = TypeTablet
	case parsed.Mobile():
		info.Type = TypeMobile
	default:
		info.Type = TypeDesktop
	}

	return info
}

func deviceName(ua *useragent.UserAgent) string {
	if model := strings.TrimSpace(ua.Model()); model != "" {
		return model
	}
	return strings.TrimSpace(ua.Platform())
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
