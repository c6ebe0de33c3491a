// Package security masks wallet addresses and node credentials before they
// reach the logs.
package security

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	addressPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
	jwtPattern     = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`)
	keyPattern     = regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|password|auth)["\s:=]+["']?([a-zA-Z0-9_-]{16,})["']?`)
	// long opaque path segments, as hosted RPC providers put project keys there
	keySegment = regexp.MustCompile(`^[a-zA-Z0-9_-]{24,}$`)

	sensitiveParams = []string{"key", "token", "secret", "auth", "apikey", "api_key"}
)

const redacted = "***REDACTED***"

// MaskAddress keeps the first 6 and last 4 characters of an address
func MaskAddress(addr string) string {
	if addr == "" {
		return ""
	}
	if len(addr) < 10 {
		return "0x****"
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// MaskString masks addresses, bearer tokens and inline secrets in s
func MaskString(s string) string {
	s = jwtPattern.ReplaceAllString(s, "eyJ"+redacted)
	s = keyPattern.ReplaceAllString(s, "$1: "+redacted)
	return addressPattern.ReplaceAllStringFunc(s, MaskAddress)
}

// MaskEndpoint strips credentials from a node URL: userinfo, key-like query
// parameters and long opaque path segments.
func MaskEndpoint(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return MaskString(raw)
	}
	if u.User != nil {
		u.User = url.User(redacted)
	}

	q := u.Query()
	for name := range q {
		if isSensitiveParam(name) {
			q.Set(name, redacted)
		}
	}
	u.RawQuery = q.Encode()

	segments := strings.Split(u.Path, "/")
	for i, seg := range segments {
		if keySegment.MatchString(seg) {
			segments[i] = redacted
		}
	}
	u.Path = strings.Join(segments, "/")
	u.RawPath = ""

	return u.String()
}

func isSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveParams {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
