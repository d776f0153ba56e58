package config

import (
	"log"
	"os"
)

type Config struct {
	DatabaseURL     string
	JWTSecret       string
	Port            string
	CORSOrigin      string
	TodoistAPIURL   string
	DefaultTimezone string
}

func Load() Config {
	cfg := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		Port:            os.Getenv("PORT"),
		CORSOrigin:      os.Getenv("CORS_ORIGIN"),
		TodoistAPIURL:   os.Getenv("TODOIST_API_URL"),
		DefaultTimezone: os.Getenv("DEFAULT_TIMEZONE"),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.TodoistAPIURL == "" {
		cfg.TodoistAPIURL = "https://api.todoist.com"
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	return cfg
}
