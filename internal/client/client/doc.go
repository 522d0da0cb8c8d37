// Package client talks to the trainlog HTTP API and opens the CLI's local
// SQLite store.
//
// HTTPClient sends JSON requests with the stored bearer token. A 401 on an
// authenticated call triggers one refresh with the stored refresh token and
// one retry; network failures and 502/503/504 answers are retried with
// exponential backoff. Failures surface as ErrUnavailable, ErrUnauthorized or
// *APIError.
package client
