package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// EnsureSchema creates schema when it does not exist yet.
func EnsureSchema(d *gorm.DB, schema string) error {
	if schema == "" || strings.ContainsRune(schema, '"') {
		return fmt.Errorf("invalid schema name %q", schema)
	}
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS "` + schema + `"`).Error
}

// Migrate creates the service schema and auto-migrates models into it.
func Migrate(d *gorm.DB, models ...interface{}) error {
	if err := EnsureSchema(d, Schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", Schema, err)
	}
	if err := d.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
