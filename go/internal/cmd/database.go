package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/dbconfig"
)

func setupDatabase(dbConfig dbconfig.Config, config *Config) (*sql.DB, error) {
	database, err := sql.Open("postgres", dbConfig.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	database.SetMaxOpenConns(config.Database.MaxOpenConns)
	database.SetMaxIdleConns(config.Database.MaxIdleConns)
	database.SetConnMaxLifetime(config.Database.ConnMaxLifetime)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("dsn", dbConfig.Redacted()).
		Int("max_open_conns", config.Database.MaxOpenConns).
		Msg("connected to database")
	return database, nil
}
