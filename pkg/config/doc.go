// Package config loads environment-driven configuration structs.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11:
//
//   - LoadEnv reads one or more .env files into the process environment,
//     later files overriding earlier ones.
//   - Load parses the environment into any struct with env tags and caches
//     the result per type, so each type is parsed once per process.
//   - MustLoad and MustLoadEnv panic instead of returning errors.
//   - ResetCache and ForceReloadConfig discard cached values, which tests
//     and reload hooks use after the environment changes.
//
// Every configurable package of this module exposes such a struct:
// session.Config (SESSION_*), redis.Config (REDIS_*), pg.Config (PG_*) and
// httpserver.Config (HTTP_*).
//
// # Usage
//
//	config.MustLoadEnv(".env.cluster", ".env.node")
//
//	var sessCfg session.Config
//	if err := config.Load(&sessCfg); err != nil {
//	    return err
//	}
//	manager, err := session.NewFromConfig(store, sessCfg)
//
// # Errors
//
//   - ErrParsingConfig: the environment could not be parsed into the struct.
//     A failed type is not cached and can be loaded again.
//   - ErrLoadingEnvFile: a .env file could not be read.
//   - ErrNilPointer: nil pointer passed to Load or ForceReloadConfig.
package config
