package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evyataryagoni/iptracker/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// IPRecordModel is the GORM model for the ip_records cache table
type IPRecordModel struct {
	ResolvedIP  string    `gorm:"column:resolved_ip;primaryKey;size:100"`
	City        string    `gorm:"column:city;size:100"`
	Region      string    `gorm:"column:region;size:100"`
	CountryName string    `gorm:"column:country_name;size:100"`
	Org         string    `gorm:"column:org;size:200"`
	Timezone    string    `gorm:"column:timezone;size:100"`
	Latitude    *float64  `gorm:"column:latitude"`
	Longitude   *float64  `gorm:"column:longitude"`
	ExpiresAt   time.Time `gorm:"column:expires_at;index"`
}

// TableName overrides GORM's pluralized default
func (IPRecordModel) TableName() string {
	return "ip_records"
}

// MySQLStore caches records in a MySQL table through GORM
// Rows past expires_at are treated as missing and overwritten on the next save
type MySQLStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewMySQLStore connects, tunes the pool and migrates the cache table
//
// dsn format: user:password@tcp(host:port)/dbname?parseTime=true
func NewMySQLStore(dsn string, ttl time.Duration) (*MySQLStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL with GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	if err := db.AutoMigrate(&IPRecordModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ip_records: %w", err)
	}

	return newMySQLStore(db, ttl), nil
}

func newMySQLStore(db *gorm.DB, ttl time.Duration) *MySQLStore {
	return &MySQLStore{db: db, ttl: ttl, now: time.Now}
}

func (s *MySQLStore) FindByIP(ctx context.Context, ip string) (*models.TrackRecord, error) {
	var rec IPRecordModel

	// SELECT * FROM ip_records WHERE resolved_ip = ? AND expires_at > ? ORDER BY ... LIMIT 1
	result := s.db.WithContext(ctx).
		Where("resolved_ip = ? AND expires_at > ?", ip, s.now()).
		First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database query failed: %w", result.Error)
	}

	return &models.TrackRecord{
		ResolvedIP:  rec.ResolvedIP,
		City:        rec.City,
		Region:      rec.Region,
		CountryName: rec.CountryName,
		Org:         rec.Org,
		Timezone:    rec.Timezone,
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
	}, nil
}

func (s *MySQLStore) Save(ctx context.Context, record *models.TrackRecord) error {
	if record == nil || record.ResolvedIP == "" {
		return errors.New("cannot cache a record without resolved IP")
	}

	rec := IPRecordModel{
		ResolvedIP:  record.ResolvedIP,
		City:        record.City,
		Region:      record.Region,
		CountryName: record.CountryName,
		Org:         record.Org,
		Timezone:    record.Timezone,
		Latitude:    record.Latitude,
		Longitude:   record.Longitude,
		ExpiresAt:   s.now().Add(s.ttl),
	}

	// INSERT ... ON DUPLICATE KEY UPDATE
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec)
	if result.Error != nil {
		return fmt.Errorf("failed to save record: %w", result.Error)
	}
	return nil
}

func (s *MySQLStore) Name() string { return "mysql" }

func (s *MySQLStore) Close() error {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
