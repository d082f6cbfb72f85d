package domain

import (
	"regexp"
	"strings"
)

// DefaultStoreBucket partitions data when no valid store identity is given,
// so single-tenant deployments keep working.
const DefaultStoreBucket = "default"

var storeNameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*$`)

// CleanStore lowercases a store domain and strips scheme, path and port.
// It returns "" for values that are not a usable host name.
func CleanStore(store string) string {
	s := strings.ToLower(strings.TrimSpace(store))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	if s == "" || len(s) > 255 || !storeNameRegex.MatchString(s) {
		return ""
	}
	return s
}

// NormalizeStore is CleanStore with the default bucket for unusable values
func NormalizeStore(store string) string {
	if s := CleanStore(store); s != "" {
		return s
	}
	return DefaultStoreBucket
}
