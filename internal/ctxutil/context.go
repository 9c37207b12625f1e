// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	requestIDKey contextKey = "ctxutil.requestID"
	clientKeyKey contextKey = "ctxutil.clientKey"
	curriculumKey contextKey = "ctxutil.curriculum"
)

// WithRequestID adds a request ID to the context.
// Request IDs are generated per HTTP request and used for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID if found, empty string otherwise.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if requestID, ok := v.(string); ok && requestID != "" {
			return requestID
		}
	}
	return ""
}

// WithClientKey adds a client key to the context.
// The client key identifies the caller (remote IP or API key) and is used
// for rate limiting and abuse diagnostics.
func WithClientKey(ctx context.Context, clientKey string) context.Context {
	return context.WithValue(ctx, clientKeyKey, clientKey)
}

// GetClientKey retrieves the client key from the context.
// Returns the client key if found, empty string otherwise.
func GetClientKey(ctx context.Context) string {
	if v := ctx.Value(clientKeyKey); v != nil {
		if clientKey, ok := v.(string); ok && clientKey != "" {
			return clientKey
		}
	}
	return ""
}

// WithCurriculum adds the curriculum being processed to the context.
// Set by sync operations so nested log records can identify the run.
func WithCurriculum(ctx context.Context, curriculum string) context.Context {
	return context.WithValue(ctx, curriculumKey, curriculum)
}

// GetCurriculum retrieves the curriculum from the context.
// Returns the curriculum if found, empty string otherwise.
func GetCurriculum(ctx context.Context) string {
	if v := ctx.Value(curriculumKey); v != nil {
		if curriculum, ok := v.(string); ok && curriculum != "" {
			return curriculum
		}
	}
	return ""
}
