// internal/pkg/session/limiter.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// CheckLoginAttempt checks if a login attempt is allowed.
// Allows up to 5 attempts per 15 minutes per (ip, email).
func (r *RateLimiter) CheckLoginAttempt(ctx context.Context, ip, email string) (bool, int64, error) {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, email)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment login attempt: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, 15*time.Minute)
	}

	maxAttempts := int64(5)
	remaining := maxAttempts - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= maxAttempts, remaining, nil
}

// ResetLoginAttempts resets the login attempt counter.
func (r *RateLimiter) ResetLoginAttempts(ctx context.Context, ip, email string) error {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, email)
	return r.client.Del(ctx, key).Err()
}

// CheckOTPAttempt checks the OTP verification rate limit for a pending
// session. Allows up to 5 attempts per 10 minutes.
func (r *RateLimiter) CheckOTPAttempt(ctx context.Context, jti string) (bool, error) {
	key := fmt.Sprintf("ratelimit:otp:%s", jti)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment OTP attempt: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, 10*time.Minute)
	}

	return count <= 5, nil
}

// ResetOTPAttempts resets OTP attempts after a successful verification.
func (r *RateLimiter) ResetOTPAttempts(ctx context.Context, jti string) error {
	key := fmt.Sprintf("ratelimit:otp:%s", jti)
	return r.client.Del(ctx, key).Err()
}
