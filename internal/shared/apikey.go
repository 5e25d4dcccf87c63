package shared

import "crypto/subtle"

// APIKeyMatches compares a presented key with the configured one in constant
// time. An empty configured key never matches.
func APIKeyMatches(configured, presented string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}
