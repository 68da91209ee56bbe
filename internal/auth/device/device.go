// Package device derives a human-readable device description from the
// User-Agent header of the request that opened a negotiation. The name is
// attached to the session for audit logging only.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// DisplayName extracts a "Browser on OS" description from a User-Agent
// string, e.g. "Chrome on Linux" or "Safari on iPhone".
func DisplayName(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgentString)

	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		platform := ua.Platform()
		if platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}

	return strings.TrimSpace(browser + " on " + os)
}
