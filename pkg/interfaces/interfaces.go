// Package interfaces defines the core interfaces used throughout the application.
package interfaces

// RateLimiter limits notification frequency.
type RateLimiter interface {
	Allow() bool
}
