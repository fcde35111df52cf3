// Package common contains shared constants and sentinel errors used across
// ContactBook components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// BearerTokenType is the fixed token_type literal returned by the login and
// refresh endpoints.
const BearerTokenType = "bearer"
