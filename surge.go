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

package surge

import (
	"context"
	"embed"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/surgecart/surge/broker"
	"github.com/surgecart/surge/cache"
	"github.com/surgecart/surge/config"
	"github.com/surgecart/surge/database"
	"github.com/surgecart/surge/internal/identity"
	redis_db "github.com/surgecart/surge/internal/redis-db"
	"github.com/surgecart/surge/limiter"
)

// BucketLimiter is what the admission path needs from a rate limiter.
type BucketLimiter interface {
	TryAcquire(ctx context.Context, key limiter.Key, limit limiter.Limit, cost float64) (bool, error)
}

// Surge represents the main struct for the Surge application.
type Surge struct {
	datasource database.IDataSource
	redis      redis.UniversalClient
	limiter    BucketLimiter
	publisher  broker.Publisher
	resolver   identity.Resolver
	cache      cache.Cache
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewSurge initializes a new instance of Surge with the provided database
// datasource. It fetches the configuration and wires up the Redis client,
// token bucket limiter, queue publisher, identity resolver and cache.
func NewSurge(db database.IDataSource) (*Surge, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	bucket, err := limiter.NewTokenBucket(redisClient.Client())
	if err != nil {
		return nil, err
	}
	publisher, err := broker.NewPublisher(configuration)
	if err != nil {
		return nil, err
	}
	newCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	newSurge := &Surge{
		datasource: db,
		redis:      redisClient.Client(),
		limiter:    bucket,
		publisher:  publisher,
		resolver:   identity.NewJWTResolver(configuration.Auth.JwtSecret),
		cache:      newCache,
	}
	return newSurge, nil
}

// ResolveUser resolves an optional user identity from a request credential.
// A failed resolution means the request proceeds anonymously.
func (s *Surge) ResolveUser(credential string) (string, bool) {
	return s.resolver.ResolveUserID(credential)
}
