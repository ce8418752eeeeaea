package auth

import (
	"errors"
	"strings"
)

// ErrMissingCredential means no usable bearer credential was presented.
var ErrMissingCredential = errors.New("auth: missing bearer credential")

const bearerPrefix = "Bearer "

// ParseBearer extracts the token from an Authorization value of the form
// "Bearer <token>". The prefix is case-sensitive and the token must be
// non-empty after trimming.
func ParseBearer(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
