// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"authentico/internal/db"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// Run applies migrations in the given direction using the provided DSN.
// direction must be "up" or "down". Returns nil on success, including when already
// at the target version; other errors for DB or I/O failures. log may be nil.
func Run(dsn string, direction string, log logrus.FieldLogger) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	if log != nil {
		m.Log = &migrateLogger{log: log}
	}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	if log != nil {
		version, dirty, verr := m.Version()
		switch {
		case errors.Is(verr, migrate.ErrNilVersion):
			log.WithField("direction", direction).Info("migrate: no migrations applied")
		case verr == nil:
			log.WithFields(logrus.Fields{"direction": direction, "version": version, "dirty": dirty}).Info("migrate: done")
		}
	}
	return nil
}

// migrateLogger adapts a logrus logger to migrate.Logger.
type migrateLogger struct {
	log logrus.FieldLogger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf("migrate: "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
