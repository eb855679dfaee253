/*
Copyright 2025 Surgecart Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package limiter provides a distributed token bucket backed by Redis.
//
// Bucket state is shared across all process replicas; the refill-and-deduct
// cycle runs as a single Lua script so two concurrent callers can never both
// spend the last token. Operations on different keys are fully independent.
package limiter

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

//go:embed token_bucket.lua
var tokenBucketScript string

// ErrStoreUnavailable marks a bucket-store failure. Callers decide whether
// that means deny (fail-closed, the default) or admit (fail-open).
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// Scope names the dimension a bucket throttles on.
type Scope string

const (
	ScopeIP      Scope = "ip"
	ScopeUser    Scope = "user"
	ScopeSeckill Scope = "seckill"
)

// Key identifies one bucket: a scope plus an identifier within it.
type Key struct {
	Scope      Scope
	Identifier string
}

func (k Key) redisKey() string {
	return fmt.Sprintf("bucket:%s:%s", k.Scope, k.Identifier)
}

// Limit is the bucket policy: a sustained refill rate, a capacity the bucket
// refills up to, and how long an idle bucket survives before the store
// reclaims it.
type Limit struct {
	Rate    float64
	Burst   float64
	IdleTTL time.Duration
}

const defaultOpTimeout = 500 * time.Millisecond

// TokenBucket is a Redis-backed limiter. All replicas sharing the Redis
// instance share the buckets.
type TokenBucket struct {
	client    redis.UniversalClient
	scriptSHA string
	opTimeout time.Duration
}

// NewTokenBucket loads the bucket script into Redis and returns a limiter.
func NewTokenBucket(client redis.UniversalClient) (*TokenBucket, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sha, err := client.ScriptLoad(ctx, tokenBucketScript).Result()
	if err != nil {
		return nil, errors.WithMessagef(ErrStoreUnavailable, "loading bucket script: %v", err)
	}

	return &TokenBucket{
		client:    client,
		scriptSHA: sha,
		opTimeout: defaultOpTimeout,
	}, nil
}

// TryAcquire atomically deducts cost tokens from the bucket for key, refilled
// according to limit. It returns false when the bucket lacks the tokens, and
// an ErrStoreUnavailable-wrapped error when the store cannot answer within
// the operation timeout. Consumed tokens are never given back.
func (b *TokenBucket) TryAcquire(ctx context.Context, key Key, limit Limit, cost float64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opTimeout)
	defer cancel()

	now := float64(time.Now().UnixMicro()) / 1e6
	args := []interface{}{
		limit.Rate,
		limit.Burst,
		now,
		cost,
		limit.IdleTTL.Milliseconds(),
	}

	cmd := b.client.EvalSha(ctx, b.scriptSHA, []string{key.redisKey()}, args...)
	result, err := cmd.Result()
	if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		// Script cache was flushed (restart, failover). Reload inline.
		result, err = b.client.Eval(ctx, tokenBucketScript, []string{key.redisKey()}, args...).Result()
	}
	if err != nil {
		return false, errors.WithMessagef(ErrStoreUnavailable, "bucket %s: %v", key.redisKey(), err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, errors.WithMessagef(ErrStoreUnavailable, "bucket %s: unexpected script reply %v", key.redisKey(), result)
	}
	allowed, _ := values[0].(int64)
	return allowed == 1, nil
}
