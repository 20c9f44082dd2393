package cache

import (
	"context"
	"errors"
	"time"

	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/log"
)

const (
	keyName       = "key"
	payloadName   = "payload"
	expiresAtName = "expiresAt"
)

// ErrNotFound is returned by a Store when no live value exists under a key.
var ErrNotFound = errors.New("cache entry not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A zero ttl means the value never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type External interface {
	Store
	Mode() string
	Shutdown()
}

// SetupStore selects exactly one storage backend, in the order Redis,
// MongoDB, DynamoDB. When none of them is enabled an in-memory store is used.
func SetupStore(ctx context.Context, conf *config.CacheConfig, telemetryReporter telemetry.Reporter, log log.Logger) (External, error) {
	cacheLog := log.WithPrefix("cache")

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second) // give 15 sec to spin up the cache connection
	defer cancel()

	if conf.Redis.Enabled {
		redis, err := newRedis(&conf.Redis, telemetryReporter, cacheLog)
		if err != nil {
			return nil, err
		}
		return redis, nil
	} else if conf.MongoDb.Enabled {
		mongoDb, err := newMongoDb(ctx, &conf.MongoDb, telemetryReporter, cacheLog)
		if err != nil {
			return nil, err
		}
		return mongoDb, nil
	} else if conf.DynamoDb.Enabled {
		dynamoDb, err := newDynamoDb(ctx, &conf.DynamoDb, telemetryReporter, cacheLog)
		if err != nil {
			return nil, err
		}
		return dynamoDb, nil
	}
	return newMemory(defaultJanitorInterval, cacheLog), nil
}

func expiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
