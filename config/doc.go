// Package config loads service configuration with Viper.
//
// Values come from defaults, a config.yml found in the standard locations
// (./cmd/<service>/, ./config/, ./), an optional .env file loaded with
// godotenv, and the process environment. Nested keys map to underscore-joined
// environment variables (server.port -> SERVER_PORT).
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("pingserver", &cfg, config.WithEnvAlias("PORT", "server.port"))
package config
