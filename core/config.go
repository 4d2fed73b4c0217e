package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	// Config holds all the settings required by the apps and services.
	Config struct {
		Debug        bool
		TestMode     bool
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		AppName      string
		SecretKey    string
		RollbarToken string

		Server       ServerConfig
		Academia     AcademiaConfig
		Options      OptionsConfig
		Sessions     SessionsConfig
		Verification VerificationConfig
	}

	ServerConfig struct {
		Host            string
		APIHost         string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	// AcademiaConfig configures the upstream school-administration API client.
	AcademiaConfig struct {
		BaseURL string
		APIKey  string
		Timeout time.Duration
	}

	OptionsConfig struct {
		TTL             time.Duration
		CleanupInterval time.Duration
	}

	SessionsConfig struct {
		TTL             time.Duration
		CleanupInterval time.Duration
	}

	VerificationConfig struct {
		MaxAttempts    int
		ResendCooldown time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()

	hostname, _ := os.Hostname()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Fomu")
	v.SetDefault("secretKey", "y#5x0b$+9=_ml1*41pyp)7pk7x3v!l)ye4hi&%8rt0t-2!n&dk")
	v.SetDefault("server.host", hostname)
	v.SetDefault("server.apiHost", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:8001")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("academia.baseUrl", "http://localhost:9000/api")
	v.SetDefault("academia.timeout", 10*time.Second)
	v.SetDefault("options.ttl", 5*time.Minute)
	v.SetDefault("options.cleanupInterval", 10*time.Minute)
	v.SetDefault("sessions.ttl", 1*time.Hour)
	v.SetDefault("sessions.cleanupInterval", 10*time.Minute)
	v.SetDefault("verification.maxAttempts", 3)
	v.SetDefault("verification.resendCooldown", 60*time.Second)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		Env:          v.GetString("env"),
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			APIHost:         v.GetString("server.apiHost"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Academia: AcademiaConfig{
			BaseURL: v.GetString("academia.baseUrl"),
			APIKey:  v.GetString("academia.apiKey"),
			Timeout: v.GetDuration("academia.timeout"),
		},
		Options: OptionsConfig{
			TTL:             v.GetDuration("options.ttl"),
			CleanupInterval: v.GetDuration("options.cleanupInterval"),
		},
		Sessions: SessionsConfig{
			TTL:             v.GetDuration("sessions.ttl"),
			CleanupInterval: v.GetDuration("sessions.cleanupInterval"),
		},
		Verification: VerificationConfig{
			MaxAttempts:    v.GetInt("verification.maxAttempts"),
			ResendCooldown: v.GetDuration("verification.resendCooldown"),
		},
	}
}
