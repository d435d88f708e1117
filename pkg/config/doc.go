// Package config loads typed configuration structs from the environment
// using github.com/caarlos0/env/v11 struct tags, with optional .env files
// read through github.com/joho/godotenv.
//
// Each struct type is parsed once per process and cached; Load for the same
// type afterwards returns a copy of the cached value. ResetCache clears it.
package config
