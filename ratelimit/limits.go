// Package ratelimit holds the bucket definitions shared by the memory
// and Redis limiter backends.
package ratelimit

import "time"

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Bucket names used by the gin handlers.
const (
	BucketWebhook = "checkout_webhook"
	BucketStatus  = "membership_status"
	BucketSignIn  = "sign_in"
)

// Defaults returns the shipped per-bucket limits.
func Defaults() map[string]Limit {
	return map[string]Limit{
		BucketWebhook: {Limit: 120, Window: time.Minute},
		BucketStatus:  {Limit: 60, Window: time.Minute},
		BucketSignIn:  {Limit: 10, Window: time.Minute},
		"default":     {Limit: 100, Window: time.Minute},
	}
}

// For resolves the limit for bucket, falling back to "default" and
// then a built-in 100/min.
func For(limits map[string]Limit, bucket string) Limit {
	if v, ok := limits[bucket]; ok {
		return v
	}
	if v, ok := limits["default"]; ok {
		return v
	}
	return Limit{Limit: 100, Window: time.Minute}
}
