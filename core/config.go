package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		Name          string
		DisableTLS    bool
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	RedisConfig struct {
		Address  string // empty: batch locks stay in-process
		Password string
		DB       int
		LockTTL  time.Duration
	}

	AllocationConfig struct {
		TeamSize           int
		DefaultBatchID     string
		DefaultBatchCutoff time.Time // users registering before this date join DefaultBatchID
	}

	Config struct {
		Database   DatabaseConfig
		Server     ServerConfig
		Redis      RedisConfig
		Allocation AllocationConfig

		AppName          string
		Build            string
		Debug            bool
		TestMode         bool
		Env              string
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		FrontendBaseURL  string
		WorkDir          string
		defaultFromEmail string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// NewConfig reads the configuration from the environment.
// ENV selects the environment: DEV (local; default), TEST, QA, PROD.
func NewConfig() *Config {
	conf := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", env == "DEV" || env == "TEST")
	conf.SetDefault("testMode", env == "TEST")
	conf.SetDefault("appName", "Capstone")
	conf.SetDefault("build", "develop")
	conf.SetDefault("secretKey", "v7#kq2-z!p0w$3x@capstone(dev)&9tr^m1n+e4l=0b8ud")
	conf.SetDefault("defaultFromEmail", "Capstone <noreply@localhost>")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")

	conf.SetDefault("database_engine", "postgres")
	conf.SetDefault("database_user", "capstone")
	conf.SetDefault("database_password", "capstone")
	conf.SetDefault("database_admin_user", "postgres")
	conf.SetDefault("database_admin_password", "postgres")
	conf.SetDefault("database_host", "localhost")
	conf.SetDefault("database_port", "5432")
	conf.SetDefault("database_name", "capstone")
	conf.SetDefault("database_disable_tls", true)

	conf.SetDefault("server_host", ":8000")
	conf.SetDefault("server_debug_host", ":4000")
	conf.SetDefault("server_shutdown_timeout", 5*time.Second)
	conf.SetDefault("jwt_expiration_delta", 8*time.Hour)
	conf.SetDefault("jwt_refresh_expiration_delta", 7*24*time.Hour)

	conf.SetDefault("redis_address", "")
	conf.SetDefault("redis_password", "")
	conf.SetDefault("redis_db", 0)
	conf.SetDefault("redis_lock_ttl", 30*time.Second)

	conf.SetDefault("team_size", 3)
	conf.SetDefault("default_batch_id", "asah-batch-1")
	conf.SetDefault("default_batch_cutoff", "2026-01-30")

	conf.SetEnvPrefix(env)

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	cutoff, err := time.Parse("2006-01-02", conf.GetString("default_batch_cutoff"))
	if err != nil {
		log.Fatalf("config.default_batch_cutoff: %v", err)
	}

	return &Config{
		Database: DatabaseConfig{
			Engine:        conf.GetString("database_engine"),
			User:          conf.GetString("database_user"),
			Password:      conf.GetString("database_password"),
			AdminUser:     conf.GetString("database_admin_user"),
			AdminPassword: conf.GetString("database_admin_password"),
			Host:          conf.GetString("database_host"),
			Port:          conf.GetString("database_port"),
			Name:          conf.GetString("database_name"),
			DisableTLS:    conf.GetBool("database_disable_tls"),
		},
		Server: ServerConfig{
			Host:                      conf.GetString("server_host"),
			DebugHost:                 conf.GetString("server_debug_host"),
			ShutdownTimeout:           conf.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta:        conf.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwt_refresh_expiration_delta"),
		},
		Redis: RedisConfig{
			Address:  conf.GetString("redis_address"),
			Password: conf.GetString("redis_password"),
			DB:       conf.GetInt("redis_db"),
			LockTTL:  conf.GetDuration("redis_lock_ttl"),
		},
		Allocation: AllocationConfig{
			TeamSize:           conf.GetInt("team_size"),
			DefaultBatchID:     conf.GetString("default_batch_id"),
			DefaultBatchCutoff: cutoff,
		},
		AppName:          conf.GetString("appName"),
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		Env:              env,
		SecretKey:        conf.GetString("secretKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		WorkDir:          workDir,
		defaultFromEmail: conf.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config suitable for tests without touching the environment.
func NewTestConfig() *Config {
	return &Config{
		Server: ServerConfig{
			JWTExpirationDelta:        8 * time.Hour,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
		},
		Allocation: AllocationConfig{
			TeamSize:           3,
			DefaultBatchID:     "asah-batch-1",
			DefaultBatchCutoff: time.Date(2026, time.January, 30, 0, 0, 0, 0, time.UTC),
		},
		AppName:          "Capstone",
		Build:            "test",
		Debug:            true,
		TestMode:         true,
		Env:              "TEST",
		SecretKey:        "test-secret-key",
		FrontendBaseURL:  "http://localhost:3000",
		defaultFromEmail: "Capstone <noreply@localhost>",
	}
}
