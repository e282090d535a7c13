// Package redis provides the Redis implementation of the queue.Storage
// contract together with convenient connection helpers.
//
// The package wraps the go-redis client and adds:
//
//   - A `Storage` adapter translating the queue protocol's primitives
//     (conditional-create, atomic increment, hash and list operations) to
//     Redis commands, with redis.Nil normalized to absent values.
//   - Robust `Connect` which retries the connection using the supplied
//     configuration.
//   - Health-check helpers to integrate Redis into HTTP or GRPC liveness /
//     readiness probes.
//
// Configuration is described by the `Config` struct whose fields can be
// populated from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	cfg := redis.Config{
//	    ConnectionURL:  "redis://localhost:6379/0",
//	    RetryAttempts:  3,
//	    RetryInterval:  5 * time.Second,
//	    ConnectTimeout: 30 * time.Second,
//	}
//
//	ctx := context.Background()
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    // handle error, probably terminate the application
//	}
//	defer client.Close()
//
//	q, err := queue.New(ctx, redis.NewStorage(client), "emails")
//
// Register a health-check in your observability stack:
//
//	checker := redis.Healthcheck(client)
//	if err := checker(ctx); err != nil {
//	    // redis is not healthy
//	}
//
// # Errors
//
// The package defines several sentinel errors (e.g. ErrRedisNotReady) that
// wrap the underlying go-redis errors using errors.Join. This makes it easy
// to compare and unwrap.
package redis
