// Package migrations holds the bun migrations of the quiz and game history schema.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
