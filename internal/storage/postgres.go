package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
)

const recordTable = "event_records"

// recordRow is the event_records table layout. Date and start time are kept as
// text so a load returns exactly what was saved.
type recordRow struct {
	ID          string    `gorm:"column:id;primaryKey"`
	City        string    `gorm:"column:city;not null"`
	SourceURL   string    `gorm:"column:source_url;not null"`
	Date        string    `gorm:"column:event_date;not null"`
	Time        string    `gorm:"column:start_time;not null"`
	Venue       string    `gorm:"column:venue;not null"`
	Address     string    `gorm:"column:address;not null"`
	LastUpdated time.Time `gorm:"column:last_updated;not null"`
}

func (recordRow) TableName() string { return recordTable }

func toRow(rec *event.Record) recordRow {
	return recordRow{
		ID:          rec.ID,
		City:        rec.City,
		SourceURL:   rec.SourceURL,
		Date:        rec.Date,
		Time:        rec.Time,
		Venue:       rec.Venue,
		Address:     rec.Address,
		// timestamptz keeps microseconds
		LastUpdated: rec.LastUpdated.UTC().Truncate(time.Microsecond),
	}
}

func (r recordRow) toRecord() *event.Record {
	return &event.Record{
		ID:          r.ID,
		City:        r.City,
		SourceURL:   r.SourceURL,
		Date:        r.Date,
		Time:        r.Time,
		Venue:       r.Venue,
		Address:     r.Address,
		LastUpdated: r.LastUpdated.UTC(),
	}
}

// PostgresStore persists the record set in PostgreSQL.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn, verifies the connection and makes sure the
// event_records table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolving postgres handle: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := db.WithContext(ctx).AutoMigrate(&recordRow{}); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrating %s: %w", recordTable, err)
	}
	return store, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load reads every row. Rows failing validation yield a *CorruptStoreError.
func (s *PostgresStore) Load(ctx context.Context) (event.Set, error) {
	var rows []recordRow
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading %s: %w", recordTable, err)
	}

	set := event.NewSet()
	for _, row := range rows {
		rec := row.toRecord()
		if reason := validateRecord(rec); reason != "" {
			return nil, &CorruptStoreError{Source: recordTable, Reason: reason}
		}
		set[rec.ID] = rec
	}
	return set, nil
}

// Save upserts every record and deletes rows whose id is not in set. Both
// steps run in one transaction.
func (s *PostgresStore) Save(ctx context.Context, set event.Set) error {
	ids := set.IDs()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			row := toRow(set[id])
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"city", "source_url", "event_date", "start_time", "venue", "address", "last_updated",
				}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upserting %s: %w", id, err)
			}
		}

		del := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if len(ids) > 0 {
			del = del.Where("id NOT IN ?", ids)
		}
		if err := del.Delete(&recordRow{}).Error; err != nil {
			return fmt.Errorf("pruning %s: %w", recordTable, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving record store: %w", err)
	}
	return nil
}
