// Package httputil provides shared HTTP response utilities for the ops
// server handlers, so every endpoint answers with the same JSON envelope.
package httputil
