// Package config loads typed application configuration from the process
// environment.
//
// An optional `.env` file in the working directory is read once with
// `github.com/joho/godotenv`, then each configuration struct is parsed with
// `github.com/caarlos0/env/v11` and cached by type, so repeated calls from
// different packages observe the same values.
//
//	var cfg mongo.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// MustLoad panics instead of returning an error and is meant for values the
// server cannot start without, such as the database URL or the JWT secret.
// Reset clears the cache and is only useful in tests.
package config
