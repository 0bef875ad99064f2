package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration directions accepted by Migrate.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ErrNoChange is returned by migrate when the schema is already at the target
// version. Migrate swallows it.
var ErrNoChange = migrate.ErrNoChange

// Migrate applies the embedded schema migrations against dsn.
func Migrate(dsn, direction string) error {
	if dsn == "" {
		return errors.New("postgres dsn is empty")
	}
	if direction != DirectionUp && direction != DirectionDown {
		return fmt.Errorf("direction must be %s or %s, got %q", DirectionUp, DirectionDown, direction)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if direction == DirectionUp {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}
