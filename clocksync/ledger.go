package clocksync

import (
	"context"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	DefaultAttendanceCollection = "staffAttendanceLogs"
	DefaultStaffCollection      = "staff"
)

// Ledger is the durable attendance store, keyed by record id.
type Ledger interface {
	Exists(ctx context.Context, id string) (bool, error)
	// Create inserts doc and reports false when a row with the same id was already present.
	Create(ctx context.Context, doc AttendanceDocument) (bool, error)
}

// StaffLedger stores the staff roster keyed by user id.
type StaffLedger interface {
	StaffExists(ctx context.Context, userID string) (bool, error)
	CreateStaff(ctx context.Context, doc StaffDocument) (bool, error)
}

type LedgerConfig struct {
	DBPath          string
	Collection      string
	StaffCollection string
}

// SQLLedger keeps each collection as a table in a SQLite database.
type SQLLedger struct {
	db         *gorm.DB
	collection string
	staff      string
}

func OpenLedger(cfg LedgerConfig) (*SQLLedger, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, fmt.Errorf("ledger DBPath is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultAttendanceCollection
	}
	if cfg.StaffCollection == "" {
		cfg.StaffCollection = DefaultStaffCollection
	}
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.Table(cfg.Collection).AutoMigrate(&AttendanceDocument{}); err != nil {
		return nil, err
	}
	if err := db.Table(cfg.StaffCollection).AutoMigrate(&StaffDocument{}); err != nil {
		return nil, err
	}
	return &SQLLedger{db: db, collection: cfg.Collection, staff: cfg.StaffCollection}, nil
}

func (l *SQLLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	err = sqlDB.Close()
	l.db = nil
	return err
}

func (l *SQLLedger) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := l.db.WithContext(ctx).Table(l.collection).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *SQLLedger) Create(ctx context.Context, doc AttendanceDocument) (bool, error) {
	res := l.db.WithContext(ctx).Table(l.collection).Clauses(clause.OnConflict{DoNothing: true}).Create(&doc)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Get returns the stored document for id.
func (l *SQLLedger) Get(ctx context.Context, id string) (AttendanceDocument, error) {
	var doc AttendanceDocument
	err := l.db.WithContext(ctx).Table(l.collection).Where("id = ?", id).First(&doc).Error
	return doc, err
}

func (l *SQLLedger) Count(ctx context.Context) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).Table(l.collection).Count(&n).Error
	return n, err
}

func (l *SQLLedger) StaffExists(ctx context.Context, userID string) (bool, error) {
	var n int64
	if err := l.db.WithContext(ctx).Table(l.staff).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *SQLLedger) CreateStaff(ctx context.Context, doc StaffDocument) (bool, error) {
	res := l.db.WithContext(ctx).Table(l.staff).Clauses(clause.OnConflict{DoNothing: true}).Create(&doc)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
