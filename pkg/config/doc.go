// Package config loads env-tagged structs from the process environment and
// optional .env files, using github.com/caarlos0/env/v11 and
// github.com/joho/godotenv.
//
//	var cfg pgstore.Config
//	config.MustLoad(&cfg, config.WithEnvFiles(".env"))
package config
