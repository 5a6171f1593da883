package config

import (
	"time"

	"github.com/spf13/viper"
)

// LedgerConfig bounds the ledger engine's locking behavior.
type LedgerConfig struct {
	LockTimeout time.Duration
}

type JWTConfig struct {
	SecretKey   string
	ExpiryHours int
}

type Argon2Config struct {
	Time       int
	Memory     int
	Threads    int
	KeyLength  int
	SaltLength int
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Load reads .env plus process environment into viper and returns the
// typed views the rest of the application consumes. Missing keys fall
// back to defaults suitable for local development.
func Load() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.BindEnv("server.port", "PORT")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("ledger.lock_timeout", "LEDGER_LOCK_TIMEOUT")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("server.idle_timeout", 60*time.Second)

	viper.SetDefault("jwt.expiry_hours", 24)

	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	viper.SetDefault("ledger.lock_timeout", 3*time.Second)
}

func Server() ServerConfig {
	return ServerConfig{
		Port:         viper.GetString("server.port"),
		ReadTimeout:  viper.GetDuration("server.read_timeout"),
		WriteTimeout: viper.GetDuration("server.write_timeout"),
		IdleTimeout:  viper.GetDuration("server.idle_timeout"),
	}
}

func JWT() JWTConfig {
	return JWTConfig{
		SecretKey:   viper.GetString("jwt.secret_key"),
		ExpiryHours: viper.GetInt("jwt.expiry_hours"),
	}
}

func Argon2() Argon2Config {
	return Argon2Config{
		Time:       viper.GetInt("argon2.time"),
		Memory:     viper.GetInt("argon2.memory"),
		Threads:    viper.GetInt("argon2.threads"),
		KeyLength:  viper.GetInt("argon2.key_length"),
		SaltLength: viper.GetInt("argon2.salt_length"),
	}
}

func Ledger() LedgerConfig {
	return LedgerConfig{
		LockTimeout: viper.GetDuration("ledger.lock_timeout"),
	}
}
