package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iho/goeconomy/internal/domain"
)

// SnapshotRecord is one stored snapshot.
type SnapshotRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Version   int       `gorm:"not null"`
	TakenAt   time.Time `gorm:"index;not null"`
	Accounts  int
	Orders    int
	Payload   []byte `gorm:"not null"`
	CreatedAt time.Time
}

// TableName pins the table name.
func (SnapshotRecord) TableName() string {
	return "economy_snapshots"
}

// SnapshotStore implements usecase.SnapshotStore on an embedded SQLite
// database (pure Go driver).
type SnapshotStore struct {
	db   *gorm.DB
	keep int
}

// Open opens or creates the database at path and migrates it.
// keep of zero keeps every snapshot.
func Open(path string, keep int) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&SnapshotRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SnapshotStore{db: db, keep: keep}, nil
}

// Close releases the database.
func (s *SnapshotStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save inserts the snapshot and prunes old ones in one transaction.
func (s *SnapshotStore) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	payload, err := domain.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	record := SnapshotRecord{
		Version:  snapshot.Version,
		TakenAt:  snapshot.TakenAt,
		Accounts: len(snapshot.Accounts),
		Orders:   len(snapshot.Orders),
		Payload:  payload,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		if s.keep <= 0 {
			return nil
		}
		keepIDs := tx.Model(&SnapshotRecord{}).Select("id").Order("id DESC").Limit(s.keep)
		return tx.Where("id NOT IN (?)", keepIDs).Delete(&SnapshotRecord{}).Error
	})
}

// Load returns the newest snapshot.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	var record SnapshotRecord
	err := s.db.WithContext(ctx).Order("id DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}
	return domain.DecodeSnapshot(record.Payload)
}

// Count returns the number of stored snapshots.
func (s *SnapshotStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&SnapshotRecord{}).Count(&n).Error
	return n, err
}
