// Package models holds the gorm row types. Column tags mirror the goose
// migrations under pkg/migrate.
package models

import "github.com/google/uuid"

// assignID fills a zero primary key so rows written to sqlite in tests carry
// the same ids Postgres would default.
func assignID(id *uuid.UUID) error {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	return nil
}
