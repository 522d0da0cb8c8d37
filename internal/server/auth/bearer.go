package auth

import (
	"strings"

	"github.com/dmitrijs2005/trainlog/internal/common"
)

const bearerPrefix = common.BearerScheme + " "

// ExtractBearerToken returns the token from an Authorization header value of
// the exact form "Bearer <token>". An empty header yields
// ErrMissingAuthHeader; any other shape yields ErrInvalidAuthHeaderFormat.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || token == "" || strings.ContainsAny(token, " \t\r\n") {
		return "", ErrInvalidAuthHeaderFormat
	}
	return token, nil
}
