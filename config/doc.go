// Package config provides a type-safe, generic and cached way to load
// application configuration from environment variables.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11` to
// deliver a convenient API that:
//
//   - Loads values from a `.env` file in the current working directory when
//     one exists.
//   - Parses the environment into any Go struct using field tags.
//   - Caches each successfully loaded configuration type so it is only parsed
//     once for the lifetime of the process.
//   - Exposes MustLoad for scenarios where configuration is critical.
//
// # Usage
//
//	type AppConfig struct {
//	    Queue queue.Config
//	    Redis redis.Config
//	}
//
//	var cfg AppConfig
//	if err := config.Load(&cfg); err != nil {
//	    // Handle error
//	}
//
// Internally the package keeps a singleton cache storing parsed struct copies
// keyed by their fully-qualified type name, guarded by sync primitives so the
// expensive parsing work happens at most once per type even under concurrent
// access.
package config
