package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/kogoto-lab/kogoto/internal/ports"
)

// Entry is one row of the kv_entries table.
type Entry struct {
	Key       string    `gorm:"type:varchar(255);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Entry) TableName() string {
	return "kv_entries"
}

var errInsertRace = errors.New("row inserted concurrently")

type PostgresStore struct {
	db      *gorm.DB
	retries int
	log     *zap.Logger
}

// OpenPostgres connects with GORM and migrates the kv_entries table.
func OpenPostgres(url string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv_entries: %w", err)
	}

	log.Info("Successfully connected to PostgreSQL")
	return db, nil
}

func NewPostgresStore(db *gorm.DB, log *zap.Logger) ports.Store {
	return &PostgresStore{
		db:      db,
		retries: DefaultUpdateRetries,
		log:     log,
	}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var e Entry
	err := s.db.WithContext(ctx).First(&e, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ports.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	e := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&Entry{}, "key = ?", key).Error
}

func (s *PostgresStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Raw(`
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, now())
		ON CONFLICT (key) DO UPDATE
		SET value = (kv_entries.value::bigint + ?)::text, updated_at = now()
		RETURNING value::bigint`, key, fmt.Sprint(delta), delta).Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}

// Update locks the row with SELECT ... FOR UPDATE. A missing row is inserted
// with ON CONFLICT DO NOTHING; losing that race restarts the transaction.
func (s *PostgresStore) Update(ctx context.Context, key string, fn ports.UpdateFunc) (string, error) {
	for i := 0; i < s.retries; i++ {
		next, err := s.updateOnce(ctx, key, fn)
		if errors.Is(err, errInsertRace) {
			s.log.Debug("Postgres update lost an insert race, retrying",
				zap.String("key", key),
				zap.Int("attempt", i+1),
			)
			continue
		}
		return next, err
	}
	return "", fmt.Errorf("update %s: %w", key, ports.ErrConflict)
}

func (s *PostgresStore) updateOnce(ctx context.Context, key string, fn ports.UpdateFunc) (string, error) {
	var next string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e Entry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&e, "key = ?", key).Error
		exists := true
		if errors.Is(err, gorm.ErrRecordNotFound) {
			exists = false
		} else if err != nil {
			return err
		}

		next, err = fn(e.Value, exists)
		if err != nil {
			return err
		}

		if exists {
			return tx.Model(&Entry{}).Where("key = ?", key).
				Updates(map[string]interface{}{"value": next, "updated_at": time.Now()}).Error
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&Entry{Key: key, Value: next, UpdatedAt: time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errInsertRace
		}
		return nil
	})
	return next, err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
