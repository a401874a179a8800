// Package config loads typed configuration from environment variables.
//
// It combines github.com/joho/godotenv for .env files with
// github.com/caarlos0/env/v11 for struct parsing. Every component of the
// service declares its own Config struct with env tags (pg.Config,
// dispatch.Config, email.Config and so on) and the binary loads each one:
//
//	var pgCfg pg.Config
//	if err := config.Load(&pgCfg); err != nil {
//		return err
//	}
//
// Load reads ./.env once if it exists and never overrides variables already
// present in the environment. LoadEnv loads explicit files and does override.
//
// Each config type is parsed once and cached for the life of the process.
// Tests that change the environment use ResetCache or ForceReloadConfig.
//
// Errors can be matched with errors.Is against ErrParsingConfig,
// ErrLoadingEnvFile and ErrNilPointer.
package config
