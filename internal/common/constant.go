// Package common contains shared constants, sentinel errors and small helpers
// used by both the trainlog server and the coach CLI.
package common

// AuthorizationHeader is the HTTP header carrying the bearer token.
const AuthorizationHeader = "Authorization"

// BearerScheme is the only accepted authorization scheme.
const BearerScheme = "Bearer"

// ResetTokenLength is the number of characters in a password-reset token.
const ResetTokenLength = 32
