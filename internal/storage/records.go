// ABOUTME: Record operations on the live connection: get, insert, update, upsert.
// ABOUTME: Each call runs in its own transaction and commits before returning.
package storage

import (
	"context"

	"github.com/harperreed/trackle/internal/models"
)

func (s *Store) withTable(ctx context.Context, table string, writable bool, fn func(tx *TableTx) error) error {
	tx, err := s.table(ctx, table, writable)
	if err != nil {
		return err
	}
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Get reads one record. A missing record is not an error.
func (s *Store) Get(ctx context.Context, table, key string) (models.Record, bool, error) {
	var (
		rec   models.Record
		found bool
	)
	err := s.withTable(ctx, table, false, func(tx *TableTx) error {
		var err error
		rec, found, err = tx.Get(key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return rec, found, nil
}

// Insert adds a record. It fails with ErrConstraint when the key exists.
func (s *Store) Insert(ctx context.Context, table string, rec models.Record) error {
	err := s.withTable(ctx, table, true, func(tx *TableTx) error {
		return tx.Add(rec)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("record inserted", "table", table, "date", rec.Date())
	return nil
}

// Update stores a record, replacing any existing one with the same key.
func (s *Store) Update(ctx context.Context, table string, rec models.Record) error {
	err := s.withTable(ctx, table, true, func(tx *TableTx) error {
		return tx.Put(rec)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("record updated", "table", table, "date", rec.Date())
	return nil
}

// Upsert updates the record when its key exists and inserts it otherwise.
// By default the check and the write are separate transactions, so a
// concurrent writer can still make the insert fail with ErrConstraint.
func (s *Store) Upsert(ctx context.Context, table string, rec models.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	if s.atomicUpsert {
		return s.withTable(ctx, table, true, func(tx *TableTx) error {
			_, found, err := tx.Get(rec.Date())
			if err != nil {
				return err
			}
			if found {
				return tx.Put(rec)
			}
			return tx.Add(rec)
		})
	}

	_, found, err := s.Get(ctx, table, rec.Date())
	if err != nil {
		return err
	}
	if found {
		return s.Update(ctx, table, rec)
	}
	return s.Insert(ctx, table, rec)
}

// All returns every record of a table in ascending key order. An empty
// table yields an empty slice. A failure mid-scan returns no records.
func (s *Store) All(ctx context.Context, table string) ([]models.Record, error) {
	records := []models.Record{}
	err := s.withTable(ctx, table, false, func(tx *TableTx) error {
		c := tx.Cursor()
		defer c.Close()
		for c.Next() {
			records = append(records, c.Record())
		}
		return c.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Lookup returns the records whose indexed field equals value.
func (s *Store) Lookup(ctx context.Context, table, index string, value any) ([]models.Record, error) {
	var records []models.Record
	err := s.withTable(ctx, table, false, func(tx *TableTx) error {
		var err error
		records, err = tx.IndexLookup(index, value)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
