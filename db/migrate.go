package db

import (
	"fmt"
	"time"

	"github.com/playgrid/fieldbook/models"
	"gorm.io/gorm"
)

type Migration struct {
	Version string
	Name    string
	Up      func(*gorm.DB) error
}

type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

func CreateMigrator(db *gorm.DB) *Migrator {
	m := &Migrator{db: db}
	m.register()
	return m
}

func (m *Migrator) register() {
	m.add("001", "create_core_tables", func(db *gorm.DB) error {
		return db.AutoMigrate(
			&models.Booking{},
			&models.PaymentRecord{},
			&models.Slot{},
			&models.WebhookEvent{},
		)
	})

	// The transactional overlap check is the authority; this partial unique
	// index is the storage-level backstop against two identical booked slots
	// slipping through a missed row lock.
	m.add("002", "slot_booked_guard_index", func(db *gorm.DB) error {
		if db.Dialector.Name() != "postgres" {
			return nil
		}
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_slots_booked_guard
			ON slots (field_id, date, start_time)
			WHERE status = 'booked'`).Error
	})

	m.add("003", "webhook_event_dedup_index", func(db *gorm.DB) error {
		if db.Dialector.Name() != "postgres" {
			return nil
		}
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_webhook_events_dedup
			ON webhook_events (gateway, event_id)
			WHERE event_id <> ''`).Error
	})
}

func (m *Migrator) add(version, name string, up func(*gorm.DB) error) {
	m.migrations = append(m.migrations, Migration{Version: version, Name: name, Up: up})
}

func (m *Migrator) Up() error {
	if err := m.createMigrationsTable(); err != nil {
		return err
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if applied[migration.Version] {
			continue
		}

		if err := migration.Up(m.db); err != nil {
			return fmt.Errorf("failed to apply migration %s: %v", migration.Version, err)
		}

		if err := m.recordMigration(migration.Version, migration.Name); err != nil {
			return err
		}
	}

	return nil
}

type schemaMigration struct {
	Version   string `gorm:"primaryKey"`
	Name      string
	AppliedAt time.Time
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

func (m *Migrator) createMigrationsTable() error {
	return m.db.AutoMigrate(&schemaMigration{})
}

func (m *Migrator) getAppliedMigrations() (map[string]bool, error) {
	var rows []schemaMigration
	if err := m.db.Find(&rows).Error; err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(rows))
	for _, row := range rows {
		applied[row.Version] = true
	}
	return applied, nil
}

func (m *Migrator) recordMigration(version, name string) error {
	return m.db.Create(&schemaMigration{
		Version:   version,
		Name:      name,
		AppliedAt: time.Now(),
	}).Error
}
