// Package middleware provides HTTP middleware for the gateway's admin server.
// These middleware functions handle security headers, CORS, request size
// limiting, and metrics.
package middleware
