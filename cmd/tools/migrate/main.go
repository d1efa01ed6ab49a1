package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jewellery/internal/db"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("component", "migrate").Logger()

	steps := flag.Int("steps", 1, "number of migrations to roll back with -down")
	down := flag.Bool("down", false, "roll back instead of applying")
	version := flag.Bool("version", false, "print the applied schema version and exit")
	flag.Parse()

	_ = godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	switch {
	case *version:
		v, dirty, err := db.Version(dbURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("read version")
		}
		logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
	case *down:
		if err := db.Rollback(dbURL, *steps); err != nil {
			logger.Fatal().Err(err).Msg("rollback")
		}
		logger.Info().Int("steps", *steps).Msg("rolled back")
	default:
		if err := db.Migrate(dbURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate up")
		}
		logger.Info().Msg("migrations applied")
	}
}
