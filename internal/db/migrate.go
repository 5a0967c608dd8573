package db

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// UpdateSchema creates or updates the tables, and on Postgres the vector extension
// and the similarity search function.
func (d *DB) UpdateSchema(ctx context.Context) error {
	tx := d.DB.WithContext(ctx)
	if d.Driver == DriverPostgres {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return errors.Wrap(err, "error enabling vector extension")
		}
	}
	if err := tx.AutoMigrate(&Conversation{}, &Message{}, &Category{}); err != nil {
		return errors.Wrap(err, "error migrating tables")
	}
	if d.Driver == DriverPostgres {
		if err := syncPostgresFunctions(tx); err != nil {
			return errors.Wrap(err, "error syncing postgres functions")
		}
	}
	log.WithField("driver", d.Driver).Info("schema is up to date")
	return nil
}
