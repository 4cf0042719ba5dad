// Package database opens the PostgreSQL record store.
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mediatheque/internal/models"
)

type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
	// ConnectWait bounds how long Open keeps retrying the first ping. Zero means 30s.
	ConnectWait time.Duration
}

const connectTimeout = 5 * time.Second

// Open connects to dsn through the pgx driver, hands the pool to gorm and waits, with
// exponential backoff, until the server answers a ping.
func Open(ctx context.Context, dsn string, pool PoolConfig) (*gorm.DB, error) {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if connConfig.ConnectTimeout == 0 {
		connConfig.ConnectTimeout = connectTimeout
	}

	sqlDB := stdlib.OpenDB(*connConfig)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	wait := pool.ConnectWait
	if wait == 0 {
		wait = 30 * time.Second
	}
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, sqlDB.PingContext(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(wait),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("[WARN] database: ping failed (%v), retrying in %s", err, next.Round(time.Millisecond))
		}),
	)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Printf("[INFO] database: connected to %s/%s", connConfig.Host, connConfig.Database)
	return db, nil
}

// Migrate creates or updates the subscribers, documents and loans tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Subscriber{}, &models.Document{}, &models.Loan{})
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
