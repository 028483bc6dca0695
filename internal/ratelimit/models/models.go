package models

import (
	"strings"
	"time"
)

// OperationClass categorizes endpoints for differentiated rate limiting.
// Routes without a class are not limited.
type OperationClass string

const (
	// ClassAuth: authentication endpoints - /api/v1/auth/*
	ClassAuth OperationClass = "auth"
	// ClassMutation: state-changing operations on business resources.
	ClassMutation OperationClass = "mutation"
	// ClassExport: high-cost data export operations.
	ClassExport OperationClass = "export"
	// ClassRead: cheap read operations.
	ClassRead OperationClass = "read"
)

// IsValid checks if the operation class is one of the supported enum values.
func (c OperationClass) IsValid() bool {
	switch c {
	case ClassAuth, ClassMutation, ClassExport, ClassRead:
		return true
	}
	return false
}

// RateLimitResult represents the outcome of an admission check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RateLimitExceededResponse is the client-visible throttling denial.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// BucketKey identifies a rate bucket for one identity and class.
type BucketKey struct {
	Identity string
	Class    OperationClass
}

// String renders the storage key. Identity segments are sanitized so a
// user-controlled value containing ':' cannot collide with adjacent buckets.
func (k BucketKey) String() string {
	return "rl:" + sanitizeKeySegment(k.Identity) + ":" + string(k.Class)
}

func sanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
