package auth

import "strings"

// parseAuthorizationHeader extracts the token from an Authorization header value. The
// Bearer scheme is optional and matched without regard to case.
func parseAuthorizationHeader(value string) string {
	value = strings.TrimSpace(value)
	if scheme, token, ok := strings.Cut(value, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return value
}
