package mongo

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mongodb"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

// MigrationDSN puts the database name into the URI path, which the migrate driver requires
func MigrationDSN(uri, database string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse mongo uri: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/" + database
	}
	return u.String(), nil
}

// RunMigrations applies the JSON command migrations found at sourceURL
func RunMigrations(uri, database, sourceURL string) error {
	dsn, err := MigrationDSN(uri, database)
	if err != nil {
		return err
	}

	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("Database migration: no changes")
			return nil
		}
		return fmt.Errorf("failed to run migrate up: %w", err)
	}

	log.Info().Str("source", sourceURL).Msg("Database migration: success")
	return nil
}
