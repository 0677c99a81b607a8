package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultIPLimit       = 10
	defaultIPWindow      = 15 * time.Minute
	defaultEmailCooldown = 2 * time.Minute
	generalPurpose       = "general"
)

// Limiter throttles requests per client IP and per email address using
// fixed windows stored in Redis. A nil *Limiter allows everything.
type Limiter struct {
	client        *redis.Client
	ipLimit       int64
	ipWindow      time.Duration
	emailCooldown time.Duration
}

// Option customizes a Limiter
type Option func(*Limiter)

// WithIPLimit sets how many requests an IP may make per window
func WithIPLimit(limit int64, window time.Duration) Option {
	return func(l *Limiter) {
		l.ipLimit = limit
		l.ipWindow = window
	}
}

// WithEmailCooldown sets the minimum delay between two emails to one address
func WithEmailCooldown(d time.Duration) Option {
	return func(l *Limiter) {
		l.emailCooldown = d
	}
}

func NewLimiter(client *redis.Client, opts ...Option) *Limiter {
	l := &Limiter{
		client:        client,
		ipLimit:       defaultIPLimit,
		ipWindow:      defaultIPWindow,
		emailCooldown: defaultEmailCooldown,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func ipKey(purpose, ip string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

func emailKey(email string) string {
	return fmt.Sprintf("ratelimit:email:%s", strings.ToLower(strings.TrimSpace(email)))
}

// CheckIPRateLimit reports whether ip has used up its general allowance
func (l *Limiter) CheckIPRateLimit(ctx context.Context, ip string) (bool, error) {
	return l.CheckIPRateLimitWithPurpose(ctx, ip, generalPurpose)
}

// RecordIPRequest counts one general request for ip
func (l *Limiter) RecordIPRequest(ctx context.Context, ip string) error {
	return l.RecordIPRequestWithPurpose(ctx, ip, generalPurpose)
}

// CheckIPRateLimitWithPurpose reports whether ip has used up its allowance for purpose
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	if l == nil || l.client == nil {
		return false, nil
	}

	count, err := l.client.Get(ctx, ipKey(purpose, ip)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	return count >= l.ipLimit, nil
}

// RecordIPRequestWithPurpose counts one request; the window starts at the first request
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	if l == nil || l.client == nil {
		return nil
	}

	key := ipKey(purpose, ip)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.ipWindow).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return nil
}

// CheckEmailCooldown reports whether an email was sent to address recently
func (l *Limiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	if l == nil || l.client == nil {
		return false, nil
	}

	n, err := l.client.Exists(ctx, emailKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}

	return n > 0, nil
}

// SetEmailCooldown starts the cooldown period for email
func (l *Limiter) SetEmailCooldown(ctx context.Context, email string) error {
	if l == nil || l.client == nil {
		return nil
	}

	if err := l.client.Set(ctx, emailKey(email), "1", l.emailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}

	return nil
}
