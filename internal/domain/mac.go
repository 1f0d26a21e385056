package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var macPattern = regexp.MustCompile(`^([0-9a-f]{2}:){5}[0-9a-f]{2}$`)

// NormalizeMAC lowercases and validates a colon-separated MAC address.
// The normalized form is the session key, so every entry point must pass
// through here before touching the store.
func NormalizeMAC(mac string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(mac))
	if !macPattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid mac address %q", mac)
	}
	return normalized, nil
}
